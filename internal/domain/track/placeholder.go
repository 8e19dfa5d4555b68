package track

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// PlaceholderKind selects which family of placeholder artwork to use.
type PlaceholderKind string

const (
	PlaceholderGeneric PlaceholderKind = "generic"
	PlaceholderAlbum   PlaceholderKind = "album"
	PlaceholderArtist  PlaceholderKind = "artist"
)

// PlaceholderVariants is the number of placeholder images per kind.
const PlaceholderVariants = 8

// Placeholder returns a stable placeholder artwork URI for the given title and artist.
// The same inputs always yield the same placeholder.
func Placeholder(kind PlaceholderKind, title, artist string) string {
	switch kind {
	case PlaceholderAlbum, PlaceholderArtist:
	default:
		kind = PlaceholderGeneric
	}

	key := strings.ToLower(strings.TrimSpace(title)) + "\x00" + strings.ToLower(strings.TrimSpace(artist))
	variant := xxhash.Sum64String(key) % PlaceholderVariants
	return fmt.Sprintf("placeholder://%s/%d", kind, variant)
}

// IsPlaceholder reports whether an artwork URI is a generated placeholder.
func IsPlaceholder(uri string) bool {
	return strings.HasPrefix(uri, "placeholder://")
}

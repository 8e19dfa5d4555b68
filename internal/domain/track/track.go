// Package track provides the Track domain entity.
package track

import (
	"strings"
)

// Default display strings for missing metadata.
const (
	UnknownTitle  = "Unknown Title"
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// ID prefixes encoding provenance. Device-media ids are opaque and carry no prefix.
const (
	PrefixLocal  = "local"
	PrefixOnline = "online"
)

// Provenance describes where a track came from.
type Provenance string

const (
	ProvenanceDevice Provenance = "device" // Device media scan
	ProvenanceLocal  Provenance = "local"  // Imported file copied into app storage
	ProvenanceOnline Provenance = "online" // Remote URL
)

// Track represents a playable item in the catalog.
type Track struct {
	ID         string `json:"id"`                   // Unique across the catalog
	URI        string `json:"uri"`                  // Playable locator, empty when not resolvable
	Title      string `json:"title"`                // Display title
	Artist     string `json:"artist"`               // Display artist
	Album      string `json:"album"`                // Display album
	Duration   int64  `json:"duration"`             // Milliseconds, 0 when not yet probed
	Artwork    string `json:"artwork,omitempty"`    // Optional image URI
	IsLocal    bool   `json:"isLocal,omitempty"`    // Backed by a file in app storage
	IsFavorite bool   `json:"isFavorite,omitempty"` // User flag
}

// Fields holds the raw values used to build a Track.
type Fields struct {
	ID       string
	URI      string
	Title    string
	Artist   string
	Album    string
	Duration int64
	Artwork  string
	IsLocal  bool
}

// New builds a Track from raw fields, substituting defaults for missing metadata.
func New(f Fields) Track {
	t := Track{
		ID:       f.ID,
		URI:      strings.TrimSpace(f.URI),
		Title:    f.Title,
		Artist:   f.Artist,
		Album:    f.Album,
		Duration: f.Duration,
		Artwork:  strings.TrimSpace(f.Artwork),
		IsLocal:  f.IsLocal,
	}
	t.Normalize()
	return t
}

// Normalize substitutes defaults for blank metadata and clamps the duration.
func (t *Track) Normalize() {
	t.Title = orDefault(t.Title, UnknownTitle)
	t.Artist = orDefault(t.Artist, UnknownArtist)
	t.Album = orDefault(t.Album, UnknownAlbum)
	if t.Duration < 0 {
		t.Duration = 0
	}
}

// IsPlayable reports whether the playback path can resolve this track.
func (t *Track) IsPlayable() bool {
	return t.URI != ""
}

// Provenance derives the track's origin from its id namespace.
func (t *Track) Provenance() Provenance {
	switch {
	case strings.HasPrefix(t.ID, PrefixLocal+"-"):
		return ProvenanceLocal
	case strings.HasPrefix(t.ID, PrefixOnline+"-"):
		return ProvenanceOnline
	default:
		return ProvenanceDevice
	}
}

// SameResource reports whether two tracks point at the same playable resource.
func SameResource(a, b Track) bool {
	return a.URI != "" && a.URI == b.URI
}

// ArtworkOr returns the artwork URI, or a placeholder of the given kind when absent.
func (t *Track) ArtworkOr(kind PlaceholderKind) string {
	if t.Artwork != "" {
		return t.Artwork
	}
	return Placeholder(kind, t.Title, t.Artist)
}

func orDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

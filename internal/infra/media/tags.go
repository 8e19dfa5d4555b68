// Package media provides the device media scan provider and the file import provider.
package media

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	"github.com/spf13/afero"
)

// Tags holds the metadata read from an audio file. Empty fields were absent.
type Tags struct {
	Title  string
	Artist string
	Album  string
}

// ReadTags reads ID3/MP4/FLAC/OGG metadata from the file at path.
func ReadTags(fs afero.Fs, path string) (Tags, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Tags{}, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Tags{}, errors.Wrapf(err, "failed to read tags from %s", path)
	}

	artist := m.Artist()
	if strings.TrimSpace(artist) == "" {
		artist = m.AlbumArtist()
	}
	return Tags{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(artist),
		Album:  strings.TrimSpace(m.Album()),
	}, nil
}

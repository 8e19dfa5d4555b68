// Package playlist provides the Playlist domain entity.
package playlist

import (
	"strings"
	"time"
)

// Playlist is a named, ordered list of track ids.
type Playlist struct {
	ID        string   `json:"id"`        // Stable unique id
	Name      string   `json:"name"`      // Display name, never empty
	Tracks    []string `json:"tracks"`    // Track ids, no duplicates
	CreatedAt int64    `json:"createdAt"` // Unix milliseconds
}

// New creates an empty playlist. The name is trimmed; callers reject empty names.
func New(id, name string, createdAt time.Time) Playlist {
	return Playlist{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Tracks:    make([]string, 0),
		CreatedAt: createdAt.UnixMilli(),
	}
}

// Contains reports whether the track id is in the playlist.
func (p *Playlist) Contains(trackID string) bool {
	for _, id := range p.Tracks {
		if id == trackID {
			return true
		}
	}
	return false
}

// Add appends the track id unless already present. Returns true if it was added.
func (p *Playlist) Add(trackID string) bool {
	if p.Contains(trackID) {
		return false
	}
	p.Tracks = append(p.Tracks, trackID)
	return true
}

// Remove drops every occurrence of the track id. Returns true if anything was removed.
func (p *Playlist) Remove(trackID string) bool {
	kept := make([]string, 0, len(p.Tracks))
	for _, id := range p.Tracks {
		if id != trackID {
			kept = append(kept, id)
		}
	}
	removed := len(kept) != len(p.Tracks)
	p.Tracks = kept
	return removed
}

// Rename replaces the display name with the trimmed value.
func (p *Playlist) Rename(name string) {
	p.Name = strings.TrimSpace(name)
}

// Clone returns a deep copy.
func (p Playlist) Clone() Playlist {
	tracks := make([]string, len(p.Tracks))
	copy(tracks, p.Tracks)
	p.Tracks = tracks
	return p
}

// TrackCount returns the number of entries, including ids that may no longer resolve.
func (p *Playlist) TrackCount() int {
	return len(p.Tracks)
}

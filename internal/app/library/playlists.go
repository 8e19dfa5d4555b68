package library

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/osa030/pocketbox/internal/domain/playlist"
	"github.com/osa030/pocketbox/internal/domain/track"
	"github.com/osa030/pocketbox/internal/infra/storage"
	zlog "github.com/rs/zerolog/log"
)

// LoadPlaylists replaces the playlists with the persisted document.
// Errors are logged and the playlists are left as they were.
func (s *Store) LoadPlaylists(ctx context.Context) {
	defer s.beginLoading()()

	data, ok, err := s.storage.Get(ctx, storage.KeyPlaylists)
	if err != nil {
		zlog.Error().Msgf("library: failed to read playlists: %v", err)
		return
	}
	if !ok {
		return
	}

	var playlists []playlist.Playlist
	if err := json.Unmarshal(data, &playlists); err != nil {
		zlog.Error().Msgf("library: failed to decode playlists: %v", err)
		return
	}
	for i := range playlists {
		if playlists[i].Tracks == nil {
			playlists[i].Tracks = []string{}
		}
	}

	s.mu.Lock()
	s.playlists = playlists
	s.mu.Unlock()
	zlog.Info().Msgf("library: loaded playlists: count=%d", len(playlists))
}

// CreatePlaylist creates an empty playlist. Names are trimmed; an empty name
// is rejected and ok is false.
func (s *Store) CreatePlaylist(name string) (p playlist.Playlist, ok bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		zlog.Warn().Msg("library: playlist name is empty")
		return playlist.Playlist{}, false
	}

	p = playlist.New(uuid.NewString(), name, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists = append(s.playlists, p)
	s.persistPlaylistsLocked()

	zlog.Info().Msgf("library: created playlist: id=%s name=%s", p.ID, p.Name)
	return p.Clone(), true
}

// RenamePlaylist renames a playlist. Unknown ids and empty names are ignored.
func (s *Store) RenamePlaylist(id, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		zlog.Warn().Msgf("library: rename: empty name for playlist %s", id)
		return false
	}
	return s.updatePlaylist(id, func(p *playlist.Playlist) bool {
		if p.Name == name {
			return false
		}
		p.Rename(name)
		return true
	})
}

// DeletePlaylist removes a playlist. Unknown ids are ignored.
func (s *Store) DeletePlaylist(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfPlaylistLocked(id)
	if idx < 0 {
		return false
	}
	s.playlists = append(s.playlists[:idx:idx], s.playlists[idx+1:]...)
	s.persistPlaylistsLocked()
	zlog.Info().Msgf("library: deleted playlist: id=%s", id)
	return true
}

// AddTrackToPlaylist appends a track id to a playlist unless already present.
func (s *Store) AddTrackToPlaylist(playlistID, trackID string) bool {
	return s.updatePlaylist(playlistID, func(p *playlist.Playlist) bool {
		return p.Add(trackID)
	})
}

// RemoveTrackFromPlaylist removes every occurrence of a track id from a playlist.
func (s *Store) RemoveTrackFromPlaylist(playlistID, trackID string) bool {
	return s.updatePlaylist(playlistID, func(p *playlist.Playlist) bool {
		return p.Remove(trackID)
	})
}

// updatePlaylist applies fn to the playlist with id and persists when fn
// reports a change.
func (s *Store) updatePlaylist(id string, fn func(*playlist.Playlist) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfPlaylistLocked(id)
	if idx < 0 {
		zlog.Debug().Msgf("library: playlist not found: id=%s", id)
		return false
	}
	if !fn(&s.playlists[idx]) {
		return false
	}
	s.persistPlaylistsLocked()
	return true
}

// Playlists returns a copy of the playlists in creation order.
func (s *Store) Playlists() []playlist.Playlist {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]playlist.Playlist, 0, len(s.playlists))
	for _, p := range s.playlists {
		result = append(result, p.Clone())
	}
	return result
}

// Playlist returns the playlist with id.
func (s *Store) Playlist(id string) (playlist.Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := s.indexOfPlaylistLocked(id); idx >= 0 {
		return s.playlists[idx].Clone(), true
	}
	return playlist.Playlist{}, false
}

// PlaylistTracks resolves a playlist against the catalog. Ids with no
// matching track are skipped.
func (s *Store) PlaylistTracks(id string) []track.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]track.Track, 0)
	idx := s.indexOfPlaylistLocked(id)
	if idx < 0 {
		return result
	}
	for _, tid := range s.playlists[idx].Tracks {
		if ti := s.indexOfTrackLocked(tid); ti >= 0 {
			result = append(result, s.tracks[ti])
		}
	}
	return result
}

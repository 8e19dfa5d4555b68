package library

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/osa030/pocketbox/internal/domain/track"
	"github.com/osa030/pocketbox/internal/infra/media"
	"github.com/osa030/pocketbox/internal/infra/storage"
	zlog "github.com/rs/zerolog/log"
)

// Group is an artist or album with the number of catalog tracks under it.
type Group struct {
	Name  string
	Count int
}

// LoadTracks reloads the catalog: persisted tracks first, then the device
// media scan when permission is granted. Tracks already in the catalog that
// are not device tracks are kept, and device tracks are kept too when the
// scan fails. A failed document read leaves the catalog as it was.
func (s *Store) LoadTracks(ctx context.Context) {
	defer s.beginLoading()()

	// Pending writes must land before the documents are read back.
	s.persister.Flush()
	persisted, err := s.readTracks(ctx)
	if err != nil {
		zlog.Error().Msgf("library: failed to load tracks: %v", err)
		return
	}
	favorites, err := s.readFavorites(ctx)
	if err != nil {
		zlog.Error().Msgf("library: failed to load favorites: %v", err)
	}

	scanned, scanErr := s.scan(ctx)
	if scanErr != nil {
		zlog.Error().Msgf("library: failed to scan media library, keeping device tracks: %v", scanErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]track.Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		if scanErr != nil || t.Provenance() != track.ProvenanceDevice {
			kept = append(kept, t)
		}
	}
	tracks := mergeTracks(persisted, kept)
	before := len(tracks)
	tracks = mergeTracks(tracks, scanned)

	if favorites != nil {
		s.favorites = favorites
	}
	for i := range tracks {
		if !s.persisted(tracks[i]) {
			tracks[i].IsFavorite = s.favorites[tracks[i].ID]
		}
	}
	s.tracks = tracks

	if len(scanned) > 0 {
		zlog.Info().Msgf("library: merged media scan: scanned=%d added=%d total=%d",
			len(scanned), len(tracks)-before, len(tracks))
	}
}

// RequestPermissions asks for media library access, then loads the catalog.
// On denial only persisted tracks are loaded.
func (s *Store) RequestPermissions(ctx context.Context) bool {
	granted := false
	if s.scanner != nil {
		var err error
		granted, err = s.scanner.RequestPermission(ctx)
		if err != nil {
			zlog.Error().Msgf("library: permission request failed: %v", err)
			granted = false
		}
	}
	zlog.Info().Msgf("library: media permission: granted=%v", granted)
	s.LoadTracks(ctx)
	return granted
}

// readTracks decodes the persisted tracks document.
func (s *Store) readTracks(ctx context.Context) ([]track.Track, error) {
	data, ok, err := s.storage.Get(ctx, storage.KeyTracks)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read tracks document")
	}
	if !ok {
		return []track.Track{}, nil
	}

	var tracks []track.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, errors.Wrap(err, "failed to decode tracks document")
	}
	for i := range tracks {
		tracks[i].Normalize()
	}
	return mergeTracks(nil, tracks), nil
}

// readFavorites decodes the favorites of tracks outside the tracks document.
func (s *Store) readFavorites(ctx context.Context) (map[string]bool, error) {
	data, ok, err := s.storage.Get(ctx, storage.KeyFavorites)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read favorites document")
	}
	favorites := make(map[string]bool)
	if !ok {
		return favorites, nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, errors.Wrap(err, "failed to decode favorites document")
	}
	for _, id := range ids {
		favorites[id] = true
	}
	return favorites, nil
}

// scan lists device assets when permission is granted. It returns nothing
// when no scanner is configured or permission is missing.
func (s *Store) scan(ctx context.Context) ([]track.Track, error) {
	if s.scanner == nil {
		return nil, nil
	}
	granted, err := s.scanner.Permission(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check media permission")
	}
	if !granted {
		zlog.Debug().Msg("library: media permission not granted, skipping scan")
		return nil, nil
	}

	assets, err := s.scanner.ListAudioAssets(ctx, s.config.ScanLimit)
	if err != nil {
		return nil, err
	}

	tracks := make([]track.Track, 0, len(assets))
	for _, a := range assets {
		title := a.Title
		if strings.TrimSpace(title) == "" {
			title = media.TitleFromName(a.Filename)
		}
		tracks = append(tracks, track.New(track.Fields{
			ID:       a.ID,
			URI:      a.URI,
			Title:    title,
			Artist:   a.Artist,
			Album:    a.Album,
			Duration: a.DurationMs,
		}))
	}
	return tracks, nil
}

// mergeTracks appends each extra track whose id and uri are not already taken.
// Tracks in base always win.
func mergeTracks(base, extra []track.Track) []track.Track {
	result := make([]track.Track, 0, len(base)+len(extra))
	ids := make(map[string]bool, len(base)+len(extra))
	uris := make(map[string]bool, len(base)+len(extra))

	add := func(t track.Track) {
		if t.ID == "" || ids[t.ID] {
			return
		}
		if t.URI != "" && uris[t.URI] {
			return
		}
		ids[t.ID] = true
		if t.URI != "" {
			uris[t.URI] = true
		}
		result = append(result, t)
	}
	for _, t := range base {
		add(t)
	}
	for _, t := range extra {
		add(t)
	}
	return result
}

// DeleteTrack removes a track from the catalog and from every playlist.
// Playback stops first when it is the current track, and the backing file of
// an imported track is deleted.
func (s *Store) DeleteTrack(ctx context.Context, id string) {
	s.mu.RLock()
	idx := s.indexOfTrackLocked(id)
	var target track.Track
	if idx >= 0 {
		target = s.tracks[idx]
	}
	s.mu.RUnlock()

	if idx < 0 {
		zlog.Debug().Msgf("library: delete: track not found: id=%s", id)
		return
	}

	if current, ok := s.player.Current(); ok && current.ID == id {
		s.player.Stop()
	}

	if target.IsLocal && s.importer != nil {
		if err := s.importer.Remove(target.URI); err != nil {
			zlog.Warn().Msgf("library: failed to delete file for %s: %v", id, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOfTrackLocked(id); idx >= 0 {
		s.tracks = append(s.tracks[:idx:idx], s.tracks[idx+1:]...)
	}
	for i := range s.playlists {
		s.playlists[i].Remove(id)
	}
	if s.favorites[id] {
		s.setFavoriteLocked(id, false)
	}
	s.persistTracksLocked()
	s.persistPlaylistsLocked()
	zlog.Info().Msgf("library: deleted track: id=%s title=%s", id, target.Title)
}

// ToggleFavorite flips the favorite flag and returns the new value.
// ok is false when the track does not exist.
func (s *Store) ToggleFavorite(id string) (favorite bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfTrackLocked(id)
	if idx < 0 {
		return false, false
	}
	t := &s.tracks[idx]
	t.IsFavorite = !t.IsFavorite
	if s.persisted(*t) {
		s.persistTracksLocked()
	} else {
		s.setFavoriteLocked(t.ID, t.IsFavorite)
	}
	return t.IsFavorite, true
}

// Tracks returns a copy of the catalog in order.
func (s *Store) Tracks() []track.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]track.Track, len(s.tracks))
	copy(result, s.tracks)
	return result
}

// Track returns the track with id.
func (s *Store) Track(id string) (track.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := s.indexOfTrackLocked(id); idx >= 0 {
		return s.tracks[idx], true
	}
	return track.Track{}, false
}

// Favorites returns the favorite tracks in catalog order.
func (s *Store) Favorites() []track.Track {
	return s.selectTracks(func(t track.Track) bool { return t.IsFavorite })
}

// Search returns tracks whose title, artist or album contains query, ignoring case.
// An empty query matches nothing.
func (s *Store) Search(query string) []track.Track {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []track.Track{}
	}
	return s.selectTracks(func(t track.Track) bool {
		return strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Artist), q) ||
			strings.Contains(strings.ToLower(t.Album), q)
	})
}

// Artists groups the catalog by artist, sorted by name.
func (s *Store) Artists() []Group {
	return s.group(func(t track.Track) string { return t.Artist })
}

// Albums groups the catalog by album, sorted by name.
func (s *Store) Albums() []Group {
	return s.group(func(t track.Track) string { return t.Album })
}

func (s *Store) selectTracks(match func(track.Track) bool) []track.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]track.Track, 0)
	for _, t := range s.tracks {
		if match(t) {
			result = append(result, t)
		}
	}
	return result
}

func (s *Store) group(key func(track.Track) string) []Group {
	s.mu.RLock()
	counts := make(map[string]int)
	for _, t := range s.tracks {
		counts[key(t)]++
	}
	s.mu.RUnlock()

	groups := make([]Group, 0, len(counts))
	for name, count := range counts {
		groups = append(groups, Group{Name: name, Count: count})
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := strings.ToLower(groups[i].Name), strings.ToLower(groups[j].Name)
		if a != b {
			return a < b
		}
		return groups[i].Name < groups[j].Name
	})
	return groups
}

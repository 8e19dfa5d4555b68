package library

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/osa030/pocketbox/internal/domain/track"
	"github.com/osa030/pocketbox/internal/infra/audio"
	"github.com/osa030/pocketbox/internal/infra/media"
	zlog "github.com/rs/zerolog/log"
)

// ImportStatus is the outcome of an import.
type ImportStatus int

const (
	ImportOK          ImportStatus = iota // Track added (or already present)
	ImportCancelled                       // User backed out of the picker
	ImportInvalidURL                      // URL scheme not accepted
	ImportProbeFailed                     // Remote resource could not be opened
	ImportRejected                        // Refused by an import filter
	ImportFailed                          // Any other failure
)

// String returns the string representation of the status.
func (s ImportStatus) String() string {
	switch s {
	case ImportOK:
		return "ok"
	case ImportCancelled:
		return "cancelled"
	case ImportInvalidURL:
		return "invalid_url"
	case ImportProbeFailed:
		return "probe_failed"
	case ImportRejected:
		return "rejected"
	case ImportFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ImportResult reports an import outcome. Track is set only when Status is ImportOK.
type ImportResult struct {
	Status ImportStatus
	Track  track.Track
	Code   string // Filter code when Status is ImportRejected
	Err    error
}

// OK reports whether the import produced a track.
func (r ImportResult) OK() bool {
	return r.Status == ImportOK
}

// ImportAudioFile lets the user pick a file, copies it into app storage and
// adds it to the catalog. Tag reading and duration probing are best-effort.
func (s *Store) ImportAudioFile(ctx context.Context) ImportResult {
	if s.picker == nil || s.importer == nil {
		return ImportResult{Status: ImportFailed, Err: errors.New("file import is not available")}
	}

	picked, err := s.picker.PickAudioFile(ctx)
	if errors.Is(err, media.ErrCancelled) {
		zlog.Debug().Msg("library: file import cancelled")
		return ImportResult{Status: ImportCancelled, Err: err}
	}
	if err != nil {
		zlog.Error().Msgf("library: file picker failed: %v", err)
		return ImportResult{Status: ImportFailed, Err: errors.Wrap(err, "failed to pick file")}
	}

	defer s.beginLoading()()

	stamp := s.ids.NextStamp()
	dest, err := s.importer.Copy(ctx, picked, stamp)
	if err != nil {
		zlog.Error().Msgf("library: failed to import %s: %v", picked.URI, err)
		return ImportResult{Status: ImportFailed, Err: err}
	}

	fields := track.Fields{
		ID:      track.FormatID(track.PrefixLocal, stamp),
		URI:     dest,
		Title:   media.TitleFromName(picked.Name),
		IsLocal: true,
	}
	if tags, err := media.ReadTags(s.importer.Fs(), dest); err == nil {
		if tags.Title != "" {
			fields.Title = tags.Title
		}
		fields.Artist = tags.Artist
		fields.Album = tags.Album
	} else {
		zlog.Debug().Msgf("library: no tags in %s: %v", dest, err)
	}

	if duration, err := audio.Probe(ctx, s.engine, dest); err == nil {
		fields.Duration = duration
	} else {
		zlog.Warn().Msgf("library: could not read duration of %s: %v", dest, err)
	}

	t := track.New(fields)
	if res, rejected := s.checkFilters(ctx, t); rejected {
		if err := s.importer.Remove(dest); err != nil {
			zlog.Warn().Msgf("library: failed to remove rejected file %s: %v", dest, err)
		}
		return res
	}
	t = s.addTrack(t)
	zlog.Info().Msgf("library: imported file: id=%s title=%s duration=%dms", t.ID, t.Title, t.Duration)
	return ImportResult{Status: ImportOK, Track: t}
}

// ImportOnlineTrack adds a remote track after checking that it can be opened.
// Empty metadata falls back to the usual defaults.
func (s *Store) ImportOnlineTrack(ctx context.Context, url, title, artist, album string) ImportResult {
	url = strings.TrimSpace(url)
	if !s.acceptsURL(url) {
		zlog.Warn().Msgf("library: rejected url: %s", url)
		return ImportResult{Status: ImportInvalidURL, Err: errors.Wrapf(ErrInvalidURL, "%q", url)}
	}

	defer s.beginLoading()()

	s.mu.RLock()
	for _, existing := range s.tracks {
		if existing.URI == url {
			s.mu.RUnlock()
			zlog.Info().Msgf("library: url already in catalog: id=%s", existing.ID)
			return ImportResult{Status: ImportOK, Track: existing}
		}
	}
	s.mu.RUnlock()

	duration, err := audio.Probe(ctx, s.engine, url)
	if err != nil {
		zlog.Error().Msgf("library: failed to probe %s: %v", url, err)
		return ImportResult{Status: ImportProbeFailed, Err: errors.Wrapf(ErrProbeFailed, "%s: %v", url, err)}
	}

	t := track.New(track.Fields{
		ID:       s.ids.Next(track.PrefixOnline),
		URI:      url,
		Title:    title,
		Artist:   artist,
		Album:    album,
		Duration: duration,
	})
	if res, rejected := s.checkFilters(ctx, t); rejected {
		return res
	}
	t = s.addTrack(t)
	zlog.Info().Msgf("library: imported url: id=%s title=%s duration=%dms", t.ID, t.Title, t.Duration)
	return ImportResult{Status: ImportOK, Track: t}
}

// checkFilters runs the import filter chain against the current catalog.
func (s *Store) checkFilters(ctx context.Context, t track.Track) (ImportResult, bool) {
	if s.filters == nil {
		return ImportResult{}, false
	}
	result := s.filters.Execute(ctx, t, s.Tracks())
	if result.Accepted {
		return ImportResult{}, false
	}
	zlog.Info().Msgf("library: import rejected: title=%s code=%s", t.Title, result.Code)
	return ImportResult{
		Status: ImportRejected,
		Code:   result.Code,
		Err:    errors.Wrapf(ErrRejected, "%s", result.Code),
	}, true
}

// addTrack appends t unless a track with the same uri already exists, in
// which case the existing track is returned. A taken id is reissued.
func (s *Store) addTrack(t track.Track) track.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tracks {
		if track.SameResource(existing, t) {
			return existing
		}
	}
	for s.indexOfTrackLocked(t.ID) >= 0 {
		t.ID = s.ids.Next(string(t.Provenance()))
	}
	s.tracks = append(s.tracks, t)
	if s.persisted(t) {
		s.persistTracksLocked()
	}
	return t
}

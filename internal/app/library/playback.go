package library

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/osa030/pocketbox/internal/app/playback"
	"github.com/osa030/pocketbox/internal/domain/track"
	zlog "github.com/rs/zerolog/log"
)

// PlayTrack starts playing t, replacing the current track. Failures are
// logged; the session reports the outcome.
func (s *Store) PlayTrack(ctx context.Context, t track.Track) {
	err := s.player.Play(ctx, t)
	switch {
	case err == nil:
	case errors.Is(err, playback.ErrSuperseded):
		zlog.Debug().Msgf("library: play superseded: id=%s", t.ID)
	default:
		zlog.Error().Msgf("library: failed to play %s: %v", t.ID, err)
	}
}

// PlayTrackByID plays the catalog track with id.
func (s *Store) PlayTrackByID(ctx context.Context, id string) bool {
	t, ok := s.Track(id)
	if !ok {
		zlog.Warn().Msgf("library: play: track not found: id=%s", id)
		return false
	}
	s.PlayTrack(ctx, t)
	return true
}

// PauseTrack pauses playback.
func (s *Store) PauseTrack() {
	if err := s.player.Pause(); err != nil {
		zlog.Error().Msgf("library: %v", err)
	}
}

// ResumeTrack resumes playback.
func (s *Store) ResumeTrack() {
	if err := s.player.Resume(); err != nil {
		zlog.Error().Msgf("library: %v", err)
	}
}

// SeekTo moves the playback position.
func (s *Store) SeekTo(positionMs int64) {
	if err := s.player.SeekTo(positionMs); err != nil {
		zlog.Error().Msgf("library: %v", err)
	}
}

// PlayNextTrack plays the track after the current one in catalog order.
// Nothing happens at the end of the catalog or when the current track is
// no longer in it.
func (s *Store) PlayNextTrack(ctx context.Context) {
	if next, ok := s.neighbour(1); ok {
		s.PlayTrack(ctx, next)
	}
}

// PlayPreviousTrack plays the track before the current one in catalog order.
// Nothing happens at the start of the catalog or when the current track is
// no longer in it.
func (s *Store) PlayPreviousTrack(ctx context.Context) {
	if prev, ok := s.neighbour(-1); ok {
		s.PlayTrack(ctx, prev)
	}
}

// Cleanup stops playback and releases the engine handle.
func (s *Store) Cleanup() {
	s.player.Stop()
}

// Session returns a copy of the playback session.
func (s *Store) Session() playback.Snapshot {
	return s.player.Snapshot()
}

// neighbour returns the catalog track offset positions away from the current one.
func (s *Store) neighbour(offset int) (track.Track, bool) {
	current, ok := s.player.Current()
	if !ok {
		return track.Track{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOfTrackLocked(current.ID)
	if idx < 0 {
		return track.Track{}, false
	}
	target := idx + offset
	if target < 0 || target >= len(s.tracks) {
		return track.Track{}, false
	}
	return s.tracks[target], true
}

// onTrackFinished runs on the engine's goroutine when the current track ends.
// With auto-advance the next playable catalog track starts; otherwise the
// session goes idle.
func (s *Store) onTrackFinished(finished track.Track) {
	if s.config.AutoAdvance {
		if next, ok := s.nextPlayable(finished.ID); ok {
			zlog.Debug().Msgf("library: advancing: from=%s to=%s", finished.ID, next.ID)
			s.PlayTrack(context.Background(), next)
			return
		}
	}
	s.player.Stop()
}

func (s *Store) nextPlayable(id string) (track.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOfTrackLocked(id)
	if idx < 0 {
		return track.Track{}, false
	}
	for _, t := range s.tracks[idx+1:] {
		if t.IsPlayable() {
			return t, true
		}
	}
	return track.Track{}, false
}

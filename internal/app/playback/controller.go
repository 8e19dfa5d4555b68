package playback

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/osa030/pocketbox/internal/domain/track"
	"github.com/osa030/pocketbox/internal/infra/audio"
	zlog "github.com/rs/zerolog/log"
)

// Errors
var (
	ErrNotPlayable = errors.New("track has no playable uri")
	ErrSuperseded  = errors.New("load superseded by a newer request")
)

const eventBufferSize = 64

// Controller owns the playback session and its engine handle.
// At most one handle is loaded at any time.
type Controller struct {
	mu sync.RWMutex

	engine audio.Engine
	handle audio.Handle

	// generation is bumped whenever the handle is replaced or released.
	// Loads and status callbacks from an older generation are discarded.
	generation uint64

	current    *track.Track
	state      State
	isPlaying  bool
	positionMs int64
	durationMs int64

	onFinished func(track.Track)

	eventCh chan Event
	closed  bool
}

// NewController creates a new playback controller.
func NewController(engine audio.Engine) *Controller {
	return &Controller{
		engine:  engine,
		state:   StateIdle,
		eventCh: make(chan Event, eventBufferSize),
	}
}

// Events returns the event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// SetOnFinished registers the hook invoked when the engine reports the end of
// the current track. Without a hook the session returns to idle.
func (c *Controller) SetOnFinished(fn func(track.Track)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFinished = fn
}

// Play loads t and starts playing it, releasing the previous handle first.
// A track without a uri fails with ErrNotPlayable and leaves the session untouched.
func (c *Controller) Play(ctx context.Context, t track.Track) error {
	if !t.IsPlayable() {
		zlog.Error().Msgf("playback: track has no uri: id=%s", t.ID)
		return ErrNotPlayable
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("playback controller closed")
	}
	c.generation++
	gen := c.generation
	c.releaseLocked()
	c.current = &t
	c.state = StateLoading
	c.isPlaying = false
	c.positionMs = 0
	c.durationMs = t.Duration
	c.mu.Unlock()

	zlog.Debug().Msgf("playback: loading: id=%s uri=%s", t.ID, t.URI)
	h, err := c.engine.Load(ctx, t.URI, audio.Options{Autoplay: true})

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.closed {
		if h != nil {
			_ = h.Unload()
		}
		zlog.Debug().Msgf("playback: load superseded: id=%s", t.ID)
		return ErrSuperseded
	}

	if err != nil {
		zlog.Error().Msgf("playback: failed to load track: id=%s err=%v", t.ID, err)
		c.resetLocked()
		c.sendEventLocked(EventStopped)
		return errors.Wrapf(err, "failed to load %s", t.URI)
	}

	c.handle = h
	c.state = StatePlaying
	c.isPlaying = true
	c.positionMs = 0
	if d := h.Status().DurationMs; d > 0 {
		c.durationMs = d
	}
	h.OnStatus(func(s audio.Status) {
		c.onStatus(gen, s)
	})

	zlog.Info().Msgf("playback: started: id=%s title=%s duration=%dms", t.ID, t.Title, c.durationMs)
	c.sendEventLocked(EventTrackStarted)
	return nil
}

// Pause pauses the current handle. It is a no-op without one.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		return nil
	}
	if err := c.handle.Pause(); err != nil {
		zlog.Error().Msgf("playback: failed to pause: %v", err)
		return errors.Wrap(err, "failed to pause")
	}
	c.isPlaying = false
	c.state = StatePaused
	c.sendEventLocked(EventStateChanged)
	return nil
}

// Resume resumes the current handle. It is a no-op without one.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		return nil
	}
	if err := c.handle.Play(); err != nil {
		zlog.Error().Msgf("playback: failed to resume: %v", err)
		return errors.Wrap(err, "failed to resume")
	}
	c.isPlaying = true
	c.state = StatePlaying
	c.sendEventLocked(EventStateChanged)
	return nil
}

// SeekTo moves the current handle to positionMs. It is a no-op without one.
// The reported position is updated optimistically.
func (c *Controller) SeekTo(positionMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		return nil
	}
	if positionMs < 0 {
		positionMs = 0
	}
	if c.durationMs > 0 && positionMs > c.durationMs {
		positionMs = c.durationMs
	}
	if err := c.handle.Seek(positionMs); err != nil {
		zlog.Error().Msgf("playback: failed to seek: %v", err)
		return errors.Wrap(err, "failed to seek")
	}
	c.positionMs = positionMs
	c.sendEventLocked(EventPositionChanged)
	return nil
}

// Stop releases the handle and returns the session to idle. Safe when idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	wasActive := c.current != nil
	c.releaseLocked()
	c.resetLocked()
	if wasActive {
		zlog.Debug().Msg("playback: stopped")
		c.sendEventLocked(EventStopped)
	}
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Current returns the current track, if any.
func (c *Controller) Current() (track.Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return track.Track{}, false
	}
	return *c.current, true
}

// Close stops playback and closes the event channel.
func (c *Controller) Close() {
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.eventCh)
}

func (c *Controller) onStatus(gen uint64, s audio.Status) {
	c.mu.Lock()
	if gen != c.generation || c.handle == nil || c.current == nil {
		c.mu.Unlock()
		return
	}

	c.positionMs = s.PositionMs
	if s.DurationMs > 0 {
		c.durationMs = s.DurationMs
	}
	c.isPlaying = s.IsPlaying
	if s.IsPlaying {
		c.state = StatePlaying
	} else if c.state == StatePlaying {
		c.state = StatePaused
	}

	if !s.DidJustFinish {
		c.sendEventLocked(EventPositionChanged)
		c.mu.Unlock()
		return
	}

	finished := *c.current
	zlog.Info().Msgf("playback: finished: id=%s", finished.ID)
	c.sendEventLocked(EventTrackEnded)

	hook := c.onFinished
	if hook == nil {
		c.generation++
		c.releaseLocked()
		c.resetLocked()
		c.sendEventLocked(EventStopped)
	}
	c.mu.Unlock()

	if hook != nil {
		hook(finished)
	}
}

// releaseLocked unloads the active handle. Must be called with lock held.
func (c *Controller) releaseLocked() {
	if c.handle == nil {
		return
	}
	if err := c.handle.Unload(); err != nil {
		zlog.Warn().Msgf("playback: failed to unload handle: %v", err)
	}
	c.handle = nil
}

func (c *Controller) resetLocked() {
	c.current = nil
	c.state = StateIdle
	c.isPlaying = false
	c.positionMs = 0
	c.durationMs = 0
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:      c.state,
		IsPlaying:  c.isPlaying,
		PositionMs: c.positionMs,
		DurationMs: c.durationMs,
	}
	if c.current != nil {
		t := *c.current
		s.Track = &t
	}
	return s
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(typ EventType) {
	if c.closed {
		return
	}
	select {
	case c.eventCh <- Event{Type: typ, Session: c.snapshotLocked()}:
	default:
		// Channel full, drop event
	}
}

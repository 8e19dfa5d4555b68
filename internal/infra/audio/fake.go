package audio

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// FakeEngine is a clock-driven engine that decodes nothing. It is selected at
// composition time for environments without audio output, and in tests.
type FakeEngine struct {
	mu              sync.Mutex
	defaultDuration int64
	durations       map[string]int64
	failures        map[string]error
	tick            time.Duration
	handles         []*FakeHandle
}

// FakeOption configures a FakeEngine.
type FakeOption func(*FakeEngine)

// WithDefaultDuration sets the duration reported for uris without an explicit one.
func WithDefaultDuration(ms int64) FakeOption {
	return func(e *FakeEngine) { e.defaultDuration = ms }
}

// WithTick makes handles advance on their own every tick while playing.
// Without it, position only moves through FakeHandle.Advance.
func WithTick(d time.Duration) FakeOption {
	return func(e *FakeEngine) { e.tick = d }
}

// NewFakeEngine creates a fake engine.
func NewFakeEngine(opts ...FakeOption) *FakeEngine {
	e := &FakeEngine{
		defaultDuration: 180000,
		durations:       make(map[string]int64),
		failures:        make(map[string]error),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetDuration sets the duration reported for uri.
func (e *FakeEngine) SetDuration(uri string, ms int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.durations[uri] = ms
}

// FailOn makes Load fail for uri.
func (e *FakeEngine) FailOn(uri string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		err = errors.Newf("cannot open %s", uri)
	}
	e.failures[uri] = err
}

// Load implements Engine.
func (e *FakeEngine) Load(ctx context.Context, uri string, opts Options) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err, ok := e.failures[uri]; ok {
		return nil, err
	}
	duration, ok := e.durations[uri]
	if !ok {
		duration = e.defaultDuration
	}

	h := &FakeHandle{
		uri:      uri,
		duration: duration,
		playing:  opts.Autoplay,
		loaded:   true,
		stop:     make(chan struct{}),
	}
	e.handles = append(e.handles, h)

	if e.tick > 0 {
		go h.run(e.tick)
	}
	return h, nil
}

// Handles returns every handle created so far, in creation order.
func (e *FakeEngine) Handles() []*FakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]*FakeHandle, len(e.handles))
	copy(result, e.handles)
	return result
}

// LoadedCount returns the number of handles that have not been unloaded.
func (e *FakeEngine) LoadedCount() int {
	count := 0
	for _, h := range e.Handles() {
		if h.Loaded() {
			count++
		}
	}
	return count
}

// Last returns the most recently created handle, or nil.
func (e *FakeEngine) Last() *FakeHandle {
	handles := e.Handles()
	if len(handles) == 0 {
		return nil
	}
	return handles[len(handles)-1]
}

// FakeHandle is a handle created by FakeEngine.
type FakeHandle struct {
	mu       sync.Mutex
	uri      string
	position int64
	duration int64
	playing  bool
	loaded   bool
	finished bool
	callback func(Status)
	stop     chan struct{}
}

// URI returns the uri the handle was loaded from.
func (h *FakeHandle) URI() string {
	return h.uri
}

// Loaded reports whether the handle is still loaded.
func (h *FakeHandle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// Play implements Handle.
func (h *FakeHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return ErrUnloaded
	}
	h.playing = true
	return nil
}

// Pause implements Handle.
func (h *FakeHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return ErrUnloaded
	}
	h.playing = false
	return nil
}

// Seek implements Handle.
func (h *FakeHandle) Seek(positionMs int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return ErrUnloaded
	}
	h.position = clamp(positionMs, 0, h.duration)
	return nil
}

// Unload implements Handle. Calling it twice is harmless.
func (h *FakeHandle) Unload() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return nil
	}
	h.loaded = false
	h.playing = false
	close(h.stop)
	return nil
}

// OnStatus implements Handle.
func (h *FakeHandle) OnStatus(fn func(Status)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callback = fn
}

// Status implements Handle.
func (h *FakeHandle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked()
}

// Advance moves the position forward while playing and fires the status callback.
// Reaching the end reports DidJustFinish once.
func (h *FakeHandle) Advance(d time.Duration) {
	h.mu.Lock()
	if !h.loaded {
		h.mu.Unlock()
		return
	}
	if h.playing {
		h.position = clamp(h.position+d.Milliseconds(), 0, h.duration)
	}
	st := h.statusLocked()
	if h.position >= h.duration && !h.finished {
		h.finished = true
		h.playing = false
		st.IsPlaying = false
		st.DidJustFinish = true
	}
	fn := h.callback
	h.mu.Unlock()

	if fn != nil {
		fn(st)
	}
}

// Emit fires the status callback with an arbitrary status, as an engine would.
func (h *FakeHandle) Emit(st Status) {
	h.mu.Lock()
	fn := h.callback
	h.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (h *FakeHandle) statusLocked() Status {
	return Status{
		PositionMs: h.position,
		DurationMs: h.duration,
		IsPlaying:  h.playing,
		IsLoaded:   h.loaded,
	}
}

func (h *FakeHandle) run(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.Advance(tick)
		}
	}
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

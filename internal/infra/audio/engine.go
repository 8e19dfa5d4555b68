// Package audio provides the audio engine binding: one decode/playback handle per Load.
package audio

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrUnloaded is returned by handle operations after Unload.
var ErrUnloaded = errors.New("handle is unloaded")

// Options configures a Load call.
type Options struct {
	Autoplay bool // Start playing as soon as the resource is loaded
}

// Status is a snapshot reported by a handle.
type Status struct {
	PositionMs    int64
	DurationMs    int64
	IsPlaying     bool
	IsLoaded      bool
	DidJustFinish bool // Set once when playback reaches the end of the resource
}

// Engine creates playback handles.
type Engine interface {
	// Load opens the resource at uri. The returned handle owns decoder resources
	// until Unload is called.
	Load(ctx context.Context, uri string, opts Options) (Handle, error)
}

// Handle is a single live decode/playback resource.
//
// Implementations never invoke the status callback synchronously from inside
// Play, Pause, Seek, Unload or OnStatus, so callers may hold their own locks
// while calling them.
type Handle interface {
	Play() error
	Pause() error
	Seek(positionMs int64) error
	Unload() error
	// OnStatus registers the callback fired periodically while loaded.
	// A later registration replaces the earlier one.
	OnStatus(fn func(Status))
	// Status returns the current status without waiting for a callback.
	Status() Status
}

// Probe opens a resource only to read its duration, then releases it.
func Probe(ctx context.Context, engine Engine, uri string) (int64, error) {
	h, err := engine.Load(ctx, uri, Options{Autoplay: false})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to probe %s", uri)
	}
	defer func() { _ = h.Unload() }()

	st := h.Status()
	if !st.IsLoaded {
		return 0, errors.Newf("resource did not load: %s", uri)
	}
	return st.DurationMs, nil
}

package audio

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeEngine_LoadAndAdvance(t *testing.T) {
	engine := NewFakeEngine()
	engine.SetDuration("/a.mp3", 1000)

	h, err := engine.Load(context.Background(), "/a.mp3", Options{Autoplay: true})
	require.NoError(t, err)

	var got []Status
	h.OnStatus(func(s Status) { got = append(got, s) })

	fh := engine.Last()
	fh.Advance(400 * time.Millisecond)
	fh.Advance(400 * time.Millisecond)
	fh.Advance(400 * time.Millisecond)
	fh.Advance(400 * time.Millisecond)

	require.Len(t, got, 4)
	assert.Equal(t, int64(400), got[0].PositionMs)
	assert.True(t, got[0].IsPlaying)
	assert.Equal(t, int64(1000), got[2].PositionMs)
	assert.True(t, got[2].DidJustFinish)
	assert.False(t, got[2].IsPlaying)
	// Finish is reported only once.
	assert.False(t, got[3].DidJustFinish)
}

func TestFakeEngine_PausedDoesNotAdvance(t *testing.T) {
	engine := NewFakeEngine(WithDefaultDuration(5000))
	h, err := engine.Load(context.Background(), "/a.mp3", Options{Autoplay: false})
	require.NoError(t, err)

	engine.Last().Advance(time.Second)
	assert.Equal(t, int64(0), h.Status().PositionMs)

	require.NoError(t, h.Play())
	engine.Last().Advance(time.Second)
	assert.Equal(t, int64(1000), h.Status().PositionMs)

	require.NoError(t, h.Seek(99999))
	assert.Equal(t, int64(5000), h.Status().PositionMs)
}

func TestFakeEngine_UnloadIsIdempotent(t *testing.T) {
	engine := NewFakeEngine()
	h, err := engine.Load(context.Background(), "/a.mp3", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, engine.LoadedCount())

	require.NoError(t, h.Unload())
	require.NoError(t, h.Unload())
	assert.Equal(t, 0, engine.LoadedCount())
	assert.ErrorIs(t, h.Play(), ErrUnloaded)
	assert.False(t, h.Status().IsLoaded)
}

func TestFakeEngine_FailOn(t *testing.T) {
	engine := NewFakeEngine()
	engine.FailOn("https://bad.example/x.mp3", nil)

	_, err := engine.Load(context.Background(), "https://bad.example/x.mp3", Options{})
	assert.Error(t, err)
	assert.Empty(t, engine.Handles())
}

func TestFakeEngine_Tick(t *testing.T) {
	engine := NewFakeEngine(WithTick(5*time.Millisecond), WithDefaultDuration(100))
	h, err := engine.Load(context.Background(), "/a.mp3", Options{Autoplay: true})
	require.NoError(t, err)

	finished := make(chan struct{}, 1)
	h.OnStatus(func(s Status) {
		if s.DidJustFinish {
			finished <- struct{}{}
		}
	})

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("handle never finished")
	}
	require.NoError(t, h.Unload())
}

func TestProbe(t *testing.T) {
	engine := NewFakeEngine()
	engine.SetDuration("/a.mp3", 215000)
	engine.FailOn("/broken.mp3", errors.New("decode error"))

	d, err := Probe(context.Background(), engine, "/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, int64(215000), d)
	// The probe handle is released immediately.
	assert.Equal(t, 0, engine.LoadedCount())

	_, err = Probe(context.Background(), engine, "/broken.mp3")
	assert.Error(t, err)
}

func TestProbe_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Probe(ctx, NewFakeEngine(), "/a.mp3")
	assert.ErrorIs(t, err, context.Canceled)
}

package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/osa030/pocketbox/internal/app/playback"
	"github.com/osa030/pocketbox/internal/domain/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStream struct {
	mu       sync.Mutex
	received []NowPlaying
	err      error
	block    chan struct{}
}

func (s *recordingStream) Send(np *NowPlaying) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.received = append(s.received, *np)
	return nil
}

func (s *recordingStream) all() []NowPlaying {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]NowPlaying, len(s.received))
	copy(result, s.received)
	return result
}

func TestManager_Broadcast(t *testing.T) {
	m := NewManager(0)
	a, b := &recordingStream{}, &recordingStream{}
	idA := m.Subscribe(a)
	idB := m.Subscribe(b)
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, 2, m.SubscriberCount())

	m.Broadcast(NowPlaying{Kind: KindTrackChanged, TrackID: "t1"})
	m.Broadcast(NowPlaying{Kind: KindStopped})

	for _, s := range []*recordingStream{a, b} {
		got := s.all()
		require.Len(t, got, 2)
		assert.Equal(t, uint64(1), got[0].SequenceNo)
		assert.Equal(t, "t1", got[0].TrackID)
		assert.Equal(t, uint64(2), got[1].SequenceNo)
	}

	m.Unsubscribe(idA)
	m.Broadcast(NowPlaying{Kind: KindStopped})
	assert.Len(t, a.all(), 2)
	assert.Len(t, b.all(), 3)
}

func TestManager_FailingSubscriberIsRemoved(t *testing.T) {
	m := NewManager(0)
	m.Subscribe(&recordingStream{err: errors.New("gone")})
	ok := &recordingStream{}
	m.Subscribe(ok)

	m.Broadcast(NowPlaying{Kind: KindStopped})

	assert.Equal(t, 1, m.SubscriberCount())
	assert.Len(t, ok.all(), 1)
}

func TestManager_SlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	slow := &recordingStream{block: make(chan struct{})}
	defer close(slow.block)
	m.Subscribe(slow)

	start := time.Now()
	m.Broadcast(NowPlaying{Kind: KindStopped})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, m.SubscriberCount())
}

func TestManager_Close(t *testing.T) {
	m := NewManager(0)
	m.Subscribe(&recordingStream{})
	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestParseControl(t *testing.T) {
	tests := []struct {
		in      string
		want    Control
		wantErr bool
	}{
		{in: "pause", want: ControlPause},
		{in: " Resume ", want: ControlResume},
		{in: "TOGGLE", want: ControlToggle},
		{in: "next", want: ControlNext},
		{in: "previous", want: ControlPrevious},
		{in: "rewind", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseControl(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownControl)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakePlayer struct {
	mu      sync.Mutex
	calls   []string
	playing bool
}

func (p *fakePlayer) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakePlayer) PauseTrack() {
	p.record("pause")
	p.playing = false
}

func (p *fakePlayer) ResumeTrack() {
	p.record("resume")
	p.playing = true
}

func (p *fakePlayer) PlayNextTrack(ctx context.Context)     { p.record("next") }
func (p *fakePlayer) PlayPreviousTrack(ctx context.Context) { p.record("previous") }

func (p *fakePlayer) Session() playback.Snapshot {
	return playback.Snapshot{IsPlaying: p.playing}
}

func TestBridge_HandleControl(t *testing.T) {
	player := &fakePlayer{playing: true}
	b := NewBridge(NewManager(0), player, BridgeConfig{})
	ctx := context.Background()

	for _, c := range []Control{ControlToggle, ControlToggle, ControlNext, ControlPrevious, ControlPause, ControlResume} {
		require.NoError(t, b.HandleControl(ctx, c))
	}
	assert.Equal(t, []string{"pause", "resume", "next", "previous", "pause", "resume"}, player.calls)

	assert.ErrorIs(t, b.HandleControl(ctx, Control("eject")), ErrUnknownControl)
}

func TestBridge_PendingNavigationIsOneShot(t *testing.T) {
	b := NewBridge(NewManager(0), &fakePlayer{}, BridgeConfig{})

	_, ok := b.TakePendingNavigation()
	assert.False(t, ok)

	b.HandleTap("t1")
	b.HandleTap("t2")

	id, ok := b.TakePendingNavigation()
	require.True(t, ok)
	assert.Equal(t, "t2", id)

	_, ok = b.TakePendingNavigation()
	assert.False(t, ok)
}

func TestBridge_Run(t *testing.T) {
	m := NewManager(0)
	stream := &recordingStream{}
	m.Subscribe(stream)
	b := NewBridge(m, &fakePlayer{}, BridgeConfig{})

	tr := track.New(track.Fields{ID: "t1", URI: "a.mp3", Title: "Song", Artist: "Band"})
	events := make(chan playback.Event, 8)
	events <- playback.Event{Type: playback.EventTrackStarted, Session: playback.Snapshot{State: playback.StatePlaying, Track: &tr, IsPlaying: true, DurationMs: 1000}}
	events <- playback.Event{Type: playback.EventPositionChanged, Session: playback.Snapshot{Track: &tr, PositionMs: 500}}
	events <- playback.Event{Type: playback.EventStateChanged, Session: playback.Snapshot{State: playback.StatePaused, Track: &tr}}
	events <- playback.Event{Type: playback.EventStopped}
	close(events)

	b.Run(context.Background(), events)

	got := stream.all()
	require.Len(t, got, 3)
	assert.Equal(t, KindTrackChanged, got[0].Kind)
	assert.Equal(t, "t1", got[0].TrackID)
	assert.Equal(t, "Song", got[0].Title)
	assert.True(t, got[0].IsPlaying)
	assert.Equal(t, track.Placeholder(track.PlaceholderAlbum, "Song", "Band"), got[0].Artwork)
	assert.Equal(t, KindStateChanged, got[1].Kind)
	assert.False(t, got[1].IsPlaying)
	assert.Equal(t, KindStopped, got[2].Kind)
	assert.Empty(t, got[2].TrackID)
}

func TestBridge_ForwardPositions(t *testing.T) {
	m := NewManager(0)
	stream := &recordingStream{}
	m.Subscribe(stream)
	b := NewBridge(m, &fakePlayer{}, BridgeConfig{ForwardPositions: true})

	events := make(chan playback.Event, 1)
	events <- playback.Event{Type: playback.EventPositionChanged, Session: playback.Snapshot{PositionMs: 500}}
	close(events)
	b.Run(context.Background(), events)

	got := stream.all()
	require.Len(t, got, 1)
	assert.Equal(t, KindPositionChanged, got[0].Kind)
	assert.Equal(t, int64(500), got[0].PositionMs)
}

func TestBridge_RunStopsOnCancel(t *testing.T) {
	b := NewBridge(NewManager(0), &fakePlayer{}, BridgeConfig{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		b.Run(ctx, make(chan playback.Event))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}
}

package notification

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/osa030/pocketbox/internal/app/playback"
	"github.com/osa030/pocketbox/internal/domain/track"
	zlog "github.com/rs/zerolog/log"
)

// Control is an action requested from the lock screen or notification.
type Control string

const (
	ControlPause    Control = "pause"
	ControlResume   Control = "resume"
	ControlToggle   Control = "toggle"
	ControlNext     Control = "next"
	ControlPrevious Control = "previous"
)

// ErrUnknownControl is returned for unrecognized control names.
var ErrUnknownControl = errors.New("unknown control")

// ParseControl parses a control name, ignoring case and surrounding space.
func ParseControl(s string) (Control, error) {
	c := Control(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ControlPause, ControlResume, ControlToggle, ControlNext, ControlPrevious:
		return c, nil
	default:
		return "", errors.Wrapf(ErrUnknownControl, "%q", s)
	}
}

// Player is the library side the bridge drives.
type Player interface {
	PauseTrack()
	ResumeTrack()
	PlayNextTrack(ctx context.Context)
	PlayPreviousTrack(ctx context.Context)
	Session() playback.Snapshot
}

// BridgeConfig holds bridge configuration.
type BridgeConfig struct {
	ForwardPositions bool // Broadcast position updates, not just track and state changes
}

// Bridge mirrors playback events to subscribers and routes controls back to
// the player. A tap on the notification leaves a one-shot navigation request.
type Bridge struct {
	manager *Manager
	player  Player
	config  BridgeConfig

	mu         sync.Mutex
	pending    string
	hasPending bool
}

// NewBridge creates a bridge.
func NewBridge(manager *Manager, player Player, config BridgeConfig) *Bridge {
	return &Bridge{
		manager: manager,
		player:  player,
		config:  config,
	}
}

// Run forwards events until ctx is done or the channel is closed.
func (b *Bridge) Run(ctx context.Context, events <-chan playback.Event) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("notification: bridge loop panicked: %v", r)
			go b.Run(ctx, events)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				zlog.Debug().Msg("notification: event channel closed")
				return
			}
			b.handleEvent(event)
		}
	}
}

func (b *Bridge) handleEvent(event playback.Event) {
	var kind Kind
	switch event.Type {
	case playback.EventTrackStarted:
		kind = KindTrackChanged
	case playback.EventStateChanged:
		kind = KindStateChanged
	case playback.EventTrackEnded:
		kind = KindTrackEnded
	case playback.EventStopped:
		kind = KindStopped
	case playback.EventPositionChanged:
		if !b.config.ForwardPositions {
			return
		}
		kind = KindPositionChanged
	default:
		return
	}

	zlog.Debug().Msgf("notification: broadcast %s", kind)
	b.manager.Broadcast(nowPlaying(kind, event.Session))
}

// nowPlaying builds the notification payload from a session snapshot.
func nowPlaying(kind Kind, s playback.Snapshot) NowPlaying {
	np := NowPlaying{
		Kind:       kind,
		IsPlaying:  s.IsPlaying,
		PositionMs: s.PositionMs,
		DurationMs: s.DurationMs,
	}
	if s.Track != nil {
		np.TrackID = s.Track.ID
		np.Title = s.Track.Title
		np.Artist = s.Track.Artist
		np.Album = s.Track.Album
		np.Artwork = s.Track.ArtworkOr(track.PlaceholderAlbum)
	}
	return np
}

// HandleControl applies a control to the player.
func (b *Bridge) HandleControl(ctx context.Context, c Control) error {
	zlog.Info().Msgf("notification: control: %s", c)

	switch c {
	case ControlPause:
		b.player.PauseTrack()
	case ControlResume:
		b.player.ResumeTrack()
	case ControlToggle:
		if b.player.Session().IsPlaying {
			b.player.PauseTrack()
		} else {
			b.player.ResumeTrack()
		}
	case ControlNext:
		b.player.PlayNextTrack(ctx)
	case ControlPrevious:
		b.player.PlayPreviousTrack(ctx)
	default:
		return errors.Wrapf(ErrUnknownControl, "%q", string(c))
	}
	return nil
}

// HandleTap records that the user tapped the notification for trackID.
// A later tap replaces an earlier one that was not yet taken.
func (b *Bridge) HandleTap(trackID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = trackID
	b.hasPending = true
}

// TakePendingNavigation returns and clears the pending tap, if any.
func (b *Bridge) TakePendingNavigation() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasPending {
		return "", false
	}
	id := b.pending
	b.pending = ""
	b.hasPending = false
	return id, true
}

package playback

import "github.com/osa030/pocketbox/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted    EventType = iota // Track loaded and playing
	EventStateChanged                     // Pause/resume
	EventTrackEnded                       // Engine reported the end of the track
	EventStopped                          // Session returned to idle
	EventPositionChanged                  // Position or duration moved
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventStateChanged:
		return "state_changed"
	case EventTrackEnded:
		return "track_ended"
	case EventStopped:
		return "stopped"
	case EventPositionChanged:
		return "position_changed"
	default:
		return "unknown"
	}
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	State      State
	Track      *track.Track // nil when idle
	IsPlaying  bool
	PositionMs int64
	DurationMs int64
}

// Event represents a playback event.
type Event struct {
	Type    EventType
	Session Snapshot
}

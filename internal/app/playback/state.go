// Package playback provides the playback session: one current track bound to
// a single live engine handle.
package playback

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // No track loaded
	StateLoading              // Engine is opening the track
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Package notification provides the now-playing bridge: it mirrors the
// playback session to subscribers and routes their controls back to the library.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// DefaultSendTimeout bounds a single Send to one subscriber.
const DefaultSendTimeout = 500 * time.Millisecond

// Kind describes why a NowPlaying update was sent.
type Kind string

const (
	KindTrackChanged    Kind = "track_changed"
	KindStateChanged    Kind = "state_changed"
	KindPositionChanged Kind = "position_changed"
	KindTrackEnded      Kind = "track_ended"
	KindStopped         Kind = "stopped"
)

// NowPlaying is the lock-screen view of the session.
type NowPlaying struct {
	SequenceNo uint64
	Kind       Kind
	TrackID    string // Empty when stopped
	Title      string
	Artist     string
	Album      string
	Artwork    string // Track artwork or a placeholder
	IsPlaying  bool
	PositionMs int64
	DurationMs int64
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*NowPlaying) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sendTimeout   time.Duration

	sequenceNoMu sync.Mutex
	sequenceNo   uint64
}

// NewManager creates a new notification manager. A non-positive timeout
// means DefaultSendTimeout.
func NewManager(sendTimeout time.Duration) *Manager {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   sendTimeout,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	zlog.Debug().Msgf("notification: subscribed: id=%s", id)
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast stamps np with the next sequence number and sends it to every
// subscriber in parallel. Each send is bounded by the send timeout; a
// subscriber whose send fails is removed.
func (m *Manager) Broadcast(np NowPlaying) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	np.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			msg := np
			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(&msg)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Warn().Msgf("notification: send failed, unsubscribing: id=%s err=%v", s.id, err)
					m.Unsubscribe(s.id)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send timed out: id=%s", s.id)
			}
		}(sub)
	}

	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}

package track

import (
	"strconv"
	"sync"
	"time"
)

// IDGenerator issues timestamp-based ids that never repeat within a process.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGenerator creates a generator using the given clock. A nil clock means time.Now.
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// NextStamp returns a unix-millisecond stamp strictly greater than every stamp issued before.
func (g *IDGenerator) NextStamp() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	stamp := g.now().UnixMilli()
	if stamp <= g.last {
		stamp = g.last + 1
	}
	g.last = stamp
	return stamp
}

// Next returns a fresh "<prefix>-<stamp>" id.
func (g *IDGenerator) Next(prefix string) string {
	return FormatID(prefix, g.NextStamp())
}

// FormatID builds an id in the "<prefix>-<stamp>" namespace.
func FormatID(prefix string, stamp int64) string {
	return prefix + "-" + strconv.FormatInt(stamp, 10)
}

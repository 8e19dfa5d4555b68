package filter

import (
	"context"

	"github.com/osa030/pocketbox/internal/domain/track"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the candidate.
// Filters are only applied if they declare they apply to the candidate's provenance.
// A nil chain accepts everything.
func (c *Chain) Execute(ctx context.Context, candidate track.Track, catalog []track.Track) Result {
	if c == nil {
		return Accept()
	}
	p := candidate.Provenance()
	for _, f := range c.filters {
		if !f.AppliesTo(p) {
			continue
		}

		result := f.Check(ctx, candidate, catalog)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}

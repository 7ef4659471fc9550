// Package quota tracks the free-trial allowance for anonymous users. Each
// user gets a fixed number of generations per UTC day; the counter resets
// when the day rolls over. All backends perform the check-and-increment
// atomically so concurrent requests cannot overdraw the allowance.
package quota

import (
	"context"
	"time"
)

// Decision is the outcome of a single Consume call.
type Decision struct {
	Allowed   bool `json:"allowed"`
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
}

// Ledger is a per-user daily counter with atomic consume semantics.
type Ledger interface {
	// Consume attempts to spend one unit of today's allowance for userID.
	// When denied, Used reports the already-spent amount and no state changes.
	Consume(ctx context.Context, userID string) (Decision, error)
	// Peek reports the current state without spending.
	Peek(ctx context.Context, userID string) (Decision, error)
	Close(ctx context.Context) error
}

// dayKey is the UTC calendar date used for reset boundaries.
func dayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

func remaining(limit, used int) int {
	if r := limit - used; r > 0 {
		return r
	}
	return 0
}

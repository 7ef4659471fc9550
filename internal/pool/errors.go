package pool

import "errors"

var (
	// ErrPoolUnavailable is returned when the pool has no credentials
	// configured. This is a configuration problem, not a transient state,
	// so Acquire fails immediately instead of blocking.
	ErrPoolUnavailable = errors.New("pool: no credentials configured")

	// ErrDoubleRelease is returned when a lease is released more than once.
	// The second release never touches the counters.
	ErrDoubleRelease = errors.New("pool: lease already released")
)

package pool

import (
	"sync"
	"time"
)

// rateWindow is the trailing window the upstream applies to new session
// starts. Only starts inside this window count against MaxStartsPerMinute.
const rateWindow = 60 * time.Second

// Spec describes one shared upstream credential supplied by configuration.
type Spec struct {
	Secret             string
	MaxConcurrent      int
	MaxStartsPerMinute int
}

// Credential is one pooled upstream credential together with its live usage
// counters. Records are created once at pool construction and never removed;
// only the counters change. Each record guards its own state with its own
// mutex so contention stays per-credential.
type Credential struct {
	id            string
	secret        string
	maxConcurrent int
	maxStarts     int

	mu            sync.Mutex
	activeHolders int
	sessionStarts []time.Time
}

// Snapshot is a read-only view of a credential's counters for diagnostics.
type Snapshot struct {
	ID                 string    `json:"id"`
	SecretTail         string    `json:"secret_tail"`
	ActiveHolders      int       `json:"active_holders"`
	MaxConcurrent      int       `json:"max_concurrent"`
	StartsInWindow     int       `json:"starts_in_window"`
	MaxStartsPerMinute int       `json:"max_starts_per_minute"`
	OldestStart        time.Time `json:"oldest_start,omitempty"`
}

// pruneLocked drops session starts that fell out of the trailing window.
// Must run before every eligibility check so stale entries never count.
func (c *Credential) pruneLocked(now time.Time) {
	cutoff := now.Add(-rateWindow)
	idx := 0
	for idx < len(c.sessionStarts) && !c.sessionStarts[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		c.sessionStarts = append(c.sessionStarts[:0], c.sessionStarts[idx:]...)
	}
}

// tryAdmit attempts to admit a new session at the given instant. The rate
// check and the concurrency slot are taken under one lock so no other
// acquirer can observe one without the other. Returns false when either
// ceiling would be exceeded; counters are untouched in that case.
func (c *Credential) tryAdmit(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(now)
	if len(c.sessionStarts) >= c.maxStarts {
		return false
	}
	if c.activeHolders >= c.maxConcurrent {
		return false
	}
	c.activeHolders++
	c.sessionStarts = append(c.sessionStarts, now)
	return true
}

// releaseSlot frees one concurrency slot. Session starts are deliberately
// left alone: the rate ceiling governs new session starts, not duration,
// so finishing early frees no rate-window capacity.
func (c *Credential) releaseSlot() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeHolders > 0 {
		c.activeHolders--
	}
}

// ID returns the stable pool-unique identifier.
func (c *Credential) ID() string { return c.id }

// Secret returns the opaque upstream credential value. Callers must never
// log it in full; use SecretTail for diagnostics.
func (c *Credential) Secret() string { return c.secret }

// SecretTail returns the trailing fragment of the secret for log lines.
func (c *Credential) SecretTail() string {
	if len(c.secret) <= 4 {
		return c.secret
	}
	return c.secret[len(c.secret)-4:]
}

// snapshot captures the counters at the given instant, pruning first so the
// reported window count matches what an eligibility check would see.
func (c *Credential) snapshot(now time.Time) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(now)
	s := Snapshot{
		ID:                 c.id,
		SecretTail:         c.SecretTail(),
		ActiveHolders:      c.activeHolders,
		MaxConcurrent:      c.maxConcurrent,
		StartsInWindow:     len(c.sessionStarts),
		MaxStartsPerMinute: c.maxStarts,
	}
	if len(c.sessionStarts) > 0 {
		s.OldestStart = c.sessionStarts[0]
	}
	return s
}

// Package pool schedules callers onto a small fixed set of shared upstream
// credentials. Each credential carries two independent ceilings imposed by
// the upstream API: a maximum number of simultaneous holders and a maximum
// number of newly started sessions within any trailing 60 seconds. Acquire
// blocks until some credential satisfies both; Release returns capacity as
// soon as the holder finishes.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"svgforge-go/internal/monitoring"
)

// defaultRecheck bounds how long a waiter can sleep past the instant a
// rate-window slot expires. Release wakes waiters immediately; the ticker
// only covers slots freed by the passage of time.
const defaultRecheck = 100 * time.Millisecond

// Pool is a fixed-membership collection of credentials with the dual-limit
// admission logic. Membership is immutable after New, so iteration needs no
// lock; only the per-credential counters and the scan cursor do.
type Pool struct {
	creds   []*Credential
	recheck time.Duration
	now     func() time.Time

	mu   sync.Mutex
	next int
	wake chan struct{}
}

// Options tune pool behaviour. The zero value is fine.
type Options struct {
	// Recheck overrides the bounded re-check interval used while waiting
	// for a rate-window slot to expire. Defaults to 100ms.
	Recheck time.Duration
}

// New builds a pool from the configured credential specs. An empty specs
// slice is a valid but degraded configuration: the pool starts, but every
// Acquire fails with ErrPoolUnavailable.
func New(specs []Spec, opts Options) *Pool {
	recheck := opts.Recheck
	if recheck <= 0 {
		recheck = defaultRecheck
	}
	p := &Pool{
		recheck: recheck,
		now:     time.Now,
		wake:    make(chan struct{}),
	}
	for i, spec := range specs {
		maxConc := spec.MaxConcurrent
		if maxConc <= 0 {
			maxConc = 1
		}
		maxStarts := spec.MaxStartsPerMinute
		if maxStarts <= 0 {
			maxStarts = 1
		}
		cred := &Credential{
			id:            fmt.Sprintf("pooled-credential-%d", i+1),
			secret:        spec.Secret,
			maxConcurrent: maxConc,
			maxStarts:     maxStarts,
		}
		p.creds = append(p.creds, cred)
		log.WithFields(log.Fields{
			"credential":     cred.id,
			"secret_tail":    cred.SecretTail(),
			"max_concurrent": maxConc,
			"max_per_minute": maxStarts,
		}).Info("Pool credential registered")
	}
	return p
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int { return len(p.creds) }

// Acquire blocks until some credential is simultaneously under its
// concurrency ceiling and under its 60-second session-start ceiling, then
// leases it. The two counter updates happen atomically per credential.
// There is no intrinsic timeout; callers bound the wait through ctx. A
// cancelled wait returns ctx.Err() and mutates no counters.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	if p == nil || len(p.creds) == 0 {
		return nil, ErrPoolUnavailable
	}

	// Fast path first so uncontended acquires never touch the waiter gauge.
	if lease := p.tryAcquire(); lease != nil {
		return lease, nil
	}

	monitoring.PoolWaiters.Inc()
	defer monitoring.PoolWaiters.Dec()

	for {
		// Grab the wake channel before scanning: a release that lands
		// mid-scan closes this channel and the select falls through
		// immediately instead of sleeping on a stale signal.
		wake := p.wakeChan()

		if lease := p.tryAcquire(); lease != nil {
			return lease, nil
		}

		timer := time.NewTimer(p.recheck)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// tryAcquire scans the pool once, starting just past the credential that
// granted the previous admission so load spreads round-robin instead of
// hammering the low indexes. Returns nil when nothing is eligible.
func (p *Pool) tryAcquire() *Lease {
	p.mu.Lock()
	start := p.next
	p.mu.Unlock()

	now := p.now()
	n := len(p.creds)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		cred := p.creds[idx]
		if !cred.tryAdmit(now) {
			continue
		}
		p.mu.Lock()
		p.next = (idx + 1) % n
		p.mu.Unlock()

		monitoring.PoolAdmissionsTotal.WithLabelValues(cred.id).Inc()
		monitoring.PoolActiveHolders.WithLabelValues(cred.id).Inc()
		log.WithFields(log.Fields{
			"credential":  cred.id,
			"secret_tail": cred.SecretTail(),
		}).Debug("Pool admission granted")
		return &Lease{pool: p, cred: cred}
	}
	return nil
}

// wakeChan returns the current wake-broadcast channel. The channel is
// closed and replaced on every release.
func (p *Pool) wakeChan() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wake
}

// broadcast wakes every waiter so it can re-evaluate eligibility.
func (p *Pool) broadcast() {
	p.mu.Lock()
	close(p.wake)
	p.wake = make(chan struct{})
	p.mu.Unlock()
}

// Snapshots reports per-credential counters for the admin surface.
func (p *Pool) Snapshots() []Snapshot {
	now := p.now()
	out := make([]Snapshot, 0, len(p.creds))
	for _, cred := range p.creds {
		out = append(out, cred.snapshot(now))
	}
	return out
}

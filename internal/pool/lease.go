package pool

import (
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"svgforge-go/internal/monitoring"
)

// Lease is the exclusive right to use one pooled credential between Acquire
// and Release. It must be released exactly once, on every exit path; the
// usual shape is:
//
//	lease, err := p.Acquire(ctx)
//	if err != nil { ... }
//	defer lease.Release()
type Lease struct {
	pool     *Pool
	cred     *Credential
	released atomic.Bool
}

// CredentialID returns the identifier of the leased credential.
func (l *Lease) CredentialID() string { return l.cred.id }

// Secret returns the leased credential's upstream secret.
func (l *Lease) Secret() string { return l.cred.secret }

// Release frees the concurrency slot on the leased credential and wakes any
// callers blocked in Acquire. Releasing twice is a programmer error: the
// second call returns ErrDoubleRelease, is logged at error level, and does
// not decrement anything.
func (l *Lease) Release() error {
	if !l.released.CompareAndSwap(false, true) {
		log.WithField("credential", l.cred.id).Error("Lease released twice")
		return ErrDoubleRelease
	}
	l.cred.releaseSlot()
	monitoring.PoolActiveHolders.WithLabelValues(l.cred.id).Dec()
	l.pool.broadcast()
	return nil
}

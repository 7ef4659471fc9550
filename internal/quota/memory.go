package quota

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	day  string
	used int
}

// MemoryLedger keeps counters in process memory. Suitable for single-node
// deployments and tests; counters do not survive a restart.
type MemoryLedger struct {
	mu    sync.Mutex
	items map[string]*memoryEntry
	limit int
	now   func() time.Time
}

func NewMemoryLedger(limit int) *MemoryLedger {
	if limit <= 0 {
		limit = 3
	}
	return &MemoryLedger{
		items: make(map[string]*memoryEntry),
		limit: limit,
		now:   time.Now,
	}
}

func (m *MemoryLedger) Consume(_ context.Context, userID string) (Decision, error) {
	today := dayKey(m.now())
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[userID]
	if !ok || e.day != today {
		e = &memoryEntry{day: today}
		m.items[userID] = e
	}
	if e.used >= m.limit {
		return Decision{Allowed: false, Used: e.used, Limit: m.limit}, nil
	}
	e.used++
	return Decision{Allowed: true, Used: e.used, Limit: m.limit, Remaining: remaining(m.limit, e.used)}, nil
}

func (m *MemoryLedger) Peek(_ context.Context, userID string) (Decision, error) {
	today := dayKey(m.now())
	m.mu.Lock()
	defer m.mu.Unlock()

	used := 0
	if e, ok := m.items[userID]; ok && e.day == today {
		used = e.used
	}
	return Decision{
		Allowed:   used < m.limit,
		Used:      used,
		Limit:     m.limit,
		Remaining: remaining(m.limit, used),
	}, nil
}

func (m *MemoryLedger) Close(context.Context) error { return nil }

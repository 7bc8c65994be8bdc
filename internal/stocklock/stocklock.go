// Package stocklock serialises stock mutations per product inside one
// process. Locks are taken in ascending key order so two callers needing
// overlapping product sets can never deadlock, and waiting is bounded.
//
// Postgres row locks (SELECT ... FOR UPDATE) still guard against other
// replicas; this layer keeps same-process callers from piling up on the
// connection pool while they wait for those rows.
package stocklock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTimeout is returned when the locks could not be acquired in time.
var ErrTimeout = errors.New("stocklock: timed out waiting for product lock")

// Manager hands out one exclusive lock per product id.
type Manager struct {
	mu      sync.Mutex
	slots   map[uuid.UUID]*slot
	timeout time.Duration
}

// slot is a one-token semaphore; refs counts holders plus waiters so the
// entry can be dropped from the map once nobody needs it.
type slot struct {
	ch   chan struct{}
	refs int
}

// New returns a Manager whose Acquire waits at most timeout (0 = only ctx).
func New(timeout time.Duration) *Manager {
	return &Manager{slots: make(map[uuid.UUID]*slot), timeout: timeout}
}

// Acquire locks every distinct id in ascending order and returns a release
// func that unlocks them all. On timeout or ctx cancellation everything
// already held is released before returning.
func (m *Manager) Acquire(ctx context.Context, ids []uuid.UUID) (func(), error) {
	keys := SortedUnique(ids)

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	held := make([]uuid.UUID, 0, len(keys))
	for _, id := range keys {
		s := m.ref(id)
		select {
		case s.ch <- struct{}{}:
			held = append(held, id)
		case <-ctx.Done():
			m.unref(id)
			m.release(held)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(func() { m.release(held) }) }, nil
}

func (m *Manager) release(held []uuid.UUID) {
	for i := len(held) - 1; i >= 0; i-- {
		m.mu.Lock()
		s := m.slots[held[i]]
		m.mu.Unlock()
		<-s.ch
		m.unref(held[i])
	}
}

func (m *Manager) ref(id uuid.UUID) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[id] = s
	}
	s.refs++
	return s
}

func (m *Manager) unref(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slots[id]
	s.refs--
	if s.refs == 0 {
		delete(m.slots, id)
	}
}

// Len reports how many product slots are live. Used by tests.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// SortedUnique returns ids deduplicated and in ascending byte order, the
// same order Postgres uses for uuid comparison.
func SortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

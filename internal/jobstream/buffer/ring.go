// Package buffer holds each job's bounded history of recent log events so
// late subscribers can be bootstrapped with context before live data.
package buffer

import (
	"sync"

	"jobstream/internal/jobstream/domain"
)

// Ring is a fixed-capacity FIFO of the most recent log events for one job.
// Insertion order is preserved; the oldest entry is evicted at capacity.
// Safe for one writer and any number of concurrent readers.
type Ring struct {
	mu       sync.RWMutex
	events   []domain.LogEvent
	capacity int
}

// NewRing creates a ring retaining at most capacity events.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		events:   make([]domain.LogEvent, 0, capacity),
		capacity: capacity,
	}
}

// Append stores ev, evicting the oldest entry if the ring is full.
func (r *Ring) Append(ev domain.LogEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == r.capacity {
		copy(r.events, r.events[1:])
		r.events[len(r.events)-1] = ev
		return
	}
	r.events = append(r.events, ev)
}

// Snapshot returns the current contents oldest-first. The returned slice is a
// copy and stays valid while appends continue.
func (r *Ring) Snapshot() []domain.LogEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.LogEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of buffered events.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// LastSeq returns the sequence number of the newest buffered event, or 0 when
// the ring is empty.
func (r *Ring) LastSeq() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.events) == 0 {
		return 0
	}
	return r.events[len(r.events)-1].Seq
}

// Manager maps job ids to their rings, creating them lazily on first use.
type Manager struct {
	mu       sync.RWMutex
	rings    map[string]*Ring
	capacity int
}

// NewManager creates a manager whose rings hold capacity events each.
func NewManager(capacity int) *Manager {
	return &Manager{
		rings:    make(map[string]*Ring),
		capacity: capacity,
	}
}

// Get returns the ring for jobID, creating it if needed.
func (m *Manager) Get(jobID string) *Ring {
	m.mu.Lock()
	defer m.mu.Unlock()

	ring, exists := m.rings[jobID]
	if !exists {
		ring = NewRing(m.capacity)
		m.rings[jobID] = ring
	}
	return ring
}

// Lookup returns the ring for jobID without creating one.
func (m *Manager) Lookup(jobID string) (*Ring, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ring, exists := m.rings[jobID]
	return ring, exists
}

// Remove drops the ring for jobID.
func (m *Manager) Remove(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rings, jobID)
}

// Len returns the number of tracked rings.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rings)
}

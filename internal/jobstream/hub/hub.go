// Package hub provides in-memory fan-out of log events from running jobs to
// any number of attached stream subscribers. Delivery is per-job and uses
// buffered Go channels; a slow subscriber never blocks the producing job.
package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"jobstream/internal/jobstream/domain"
	"jobstream/pkg/errors"
	"jobstream/pkg/logger"
)

// Hub routes published log events to the subscribers of each job.
type Hub struct {
	jobs       map[string]*jobEntry
	jobsMutex  sync.RWMutex
	bufferSize int
	closed     bool
	closeMutex sync.RWMutex
	subSeq     int64
	logger     *logger.Logger
}

// jobEntry holds the subscriber set for a single job.
type jobEntry struct {
	jobID       string
	subscribers map[string]*Subscription
	subMutex    sync.RWMutex

	// closed is set by CloseJob so a Subscribe racing it cannot register on
	// the stale entry and end up with a channel nothing will ever close.
	closed bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithBufferSize sets the channel buffer for each subscription.
func WithBufferSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// New creates a hub. The default subscription buffer is 256 events.
func New(opts ...Option) *Hub {
	h := &Hub{
		jobs:       make(map[string]*jobEntry),
		bufferSize: 256,
		logger:     logger.WithField("component", "hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish delivers ev to every subscriber of the job. Delivery is
// non-blocking: subscribers whose buffer is full miss the event.
func (h *Hub) Publish(jobID string, ev domain.LogEvent) error {
	h.closeMutex.RLock()
	defer h.closeMutex.RUnlock()
	if h.closed {
		return errors.ErrHubClosed
	}

	h.jobsMutex.RLock()
	entry, exists := h.jobs[jobID]
	h.jobsMutex.RUnlock()
	if !exists {
		// No one is listening yet. The ring buffer keeps history, so this
		// is not a loss.
		return nil
	}

	entry.subMutex.RLock()
	defer entry.subMutex.RUnlock()
	for _, sub := range entry.subscribers {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe attaches a new subscriber to the job's event flow. The returned
// subscription is live immediately, so events published after Subscribe
// returns are never missed. Cancelling ctx unsubscribes.
func (h *Hub) Subscribe(ctx context.Context, jobID string) (*Subscription, error) {
	h.closeMutex.RLock()
	defer h.closeMutex.RUnlock()
	if h.closed {
		return nil, errors.ErrHubClosed
	}

	entry := h.getOrCreateEntry(jobID)

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		id:    fmt.Sprintf("sub_%s_%d", jobID, atomic.AddInt64(&h.subSeq, 1)),
		jobID: jobID,
		ch:    make(chan domain.LogEvent, h.bufferSize),
		ctx:   subCtx,
	}
	sub.unsubscribe = func() {
		cancel()
		entry.subMutex.Lock()
		if _, ok := entry.subscribers[sub.id]; ok {
			delete(entry.subscribers, sub.id)
			close(sub.ch)
		}
		entry.subMutex.Unlock()
	}

	entry.subMutex.Lock()
	if entry.closed {
		entry.subMutex.Unlock()
		cancel()
		close(sub.ch)
		return sub, nil
	}
	entry.subscribers[sub.id] = sub
	entry.subMutex.Unlock()

	go func() {
		<-subCtx.Done()
		sub.unsubscribe()
	}()

	h.logger.Debug("subscriber attached", "jobId", jobID, "subscriberId", sub.id)
	return sub, nil
}

// CloseJob ends the event flow for a finished job. Every subscriber channel
// is closed after any buffered events drain; attached pumps observe the close
// and end their streams.
func (h *Hub) CloseJob(jobID string) {
	h.jobsMutex.Lock()
	entry, exists := h.jobs[jobID]
	if exists {
		delete(h.jobs, jobID)
	}
	h.jobsMutex.Unlock()
	if !exists {
		return
	}

	entry.subMutex.Lock()
	entry.closed = true
	for id, sub := range entry.subscribers {
		delete(entry.subscribers, id)
		close(sub.ch)
	}
	entry.subMutex.Unlock()

	h.logger.Debug("job channel closed", "jobId", jobID)
}

// SubscriberCount returns the number of active subscribers for a job.
func (h *Hub) SubscriberCount(jobID string) int {
	h.jobsMutex.RLock()
	entry, exists := h.jobs[jobID]
	h.jobsMutex.RUnlock()
	if !exists {
		return 0
	}

	entry.subMutex.RLock()
	defer entry.subMutex.RUnlock()
	return len(entry.subscribers)
}

// Close shuts down the hub and closes every subscription.
func (h *Hub) Close() error {
	h.closeMutex.Lock()
	defer h.closeMutex.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	h.jobsMutex.Lock()
	defer h.jobsMutex.Unlock()
	for _, entry := range h.jobs {
		entry.subMutex.Lock()
		for id, sub := range entry.subscribers {
			delete(entry.subscribers, id)
			close(sub.ch)
		}
		entry.subMutex.Unlock()
	}
	h.jobs = make(map[string]*jobEntry)
	return nil
}

func (h *Hub) getOrCreateEntry(jobID string) *jobEntry {
	h.jobsMutex.RLock()
	if entry, exists := h.jobs[jobID]; exists {
		h.jobsMutex.RUnlock()
		return entry
	}
	h.jobsMutex.RUnlock()

	h.jobsMutex.Lock()
	defer h.jobsMutex.Unlock()
	if entry, exists := h.jobs[jobID]; exists {
		return entry
	}
	entry := &jobEntry{
		jobID:       jobID,
		subscribers: make(map[string]*Subscription),
	}
	h.jobs[jobID] = entry
	return entry
}

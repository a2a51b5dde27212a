package hub

import (
	"context"
	"sync/atomic"
	"time"

	"jobstream/internal/jobstream/domain"
	"jobstream/pkg/errors"
)

// Sink receives the events of one subscription in order. Implementations
// wrap a transport such as an SSE response or a WebSocket connection.
type Sink interface {
	// Send writes one event to the client.
	Send(ev domain.LogEvent) error

	// Ping writes a keep-alive frame to the client.
	Ping() error
}

// Subscription is one attached consumer of a job's event flow.
type Subscription struct {
	id          string
	jobID       string
	ch          chan domain.LogEvent
	ctx         context.Context
	unsubscribe func()
	dropped     atomic.Int64
}

// Events exposes the raw event channel. Most callers should use Run instead.
func (s *Subscription) Events() <-chan domain.LogEvent {
	return s.ch
}

// Unsubscribe detaches the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.unsubscribe()
}

// Dropped returns how many events were discarded because the subscriber's
// buffer was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Run pumps events into sink until the job finishes, the context is
// cancelled, or a send fails. Events with a sequence number at or below
// afterSeq are skipped, so a caller that already replayed buffered history
// resumes exactly where the replay stopped. A keep-alive ping is sent after
// every keepAlive of silence; pass zero to disable pings.
//
// Run returns nil when the stream ended normally (terminal event delivered or
// channel closed), the context error on cancellation, and the sink error when
// a write fails.
func (s *Subscription) Run(sink Sink, afterSeq uint64, keepAlive time.Duration) error {
	var pings <-chan time.Time
	var ticker *time.Ticker
	if keepAlive > 0 {
		ticker = time.NewTicker(keepAlive)
		defer ticker.Stop()
		pings = ticker.C
	}
	defer s.unsubscribe()

	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()

		case ev, ok := <-s.ch:
			if !ok {
				return nil
			}
			if ev.Seq > 0 && ev.Seq <= afterSeq {
				continue
			}
			if err := sink.Send(ev); err != nil {
				return errors.WrapStreamError(s.jobID, "send", err)
			}
			if ticker != nil {
				ticker.Reset(keepAlive)
			}
			if ev.IsTerminal() {
				return nil
			}

		case <-pings:
			if err := sink.Ping(); err != nil {
				return errors.WrapStreamError(s.jobID, "ping", err)
			}
		}
	}
}

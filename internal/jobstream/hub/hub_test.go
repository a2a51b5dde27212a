package hub

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobstream/internal/jobstream/domain"
	"jobstream/pkg/errors"
)

func logEvent(jobID string, seq uint64, line string) domain.LogEvent {
	return domain.LogEvent{
		Type:   domain.EventLog,
		JobID:  jobID,
		Seq:    seq,
		Stream: domain.StreamStdout,
		Line:   line,
	}
}

func doneEvent(jobID string, seq uint64) domain.LogEvent {
	return domain.LogEvent{
		Type:    domain.EventDone,
		JobID:   jobID,
		Seq:     seq,
		Stream:  domain.StreamControl,
		Outcome: domain.StatusCompleted,
	}
}

// recordSink collects delivered events and counts pings.
type recordSink struct {
	mu      sync.Mutex
	events  []domain.LogEvent
	pings   int
	sendErr error
}

func (s *recordSink) Send(ev domain.LogEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordSink) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings++
	return nil
}

func (s *recordSink) recorded() []domain.LogEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LogEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordSink) pingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pings
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	h := New()
	defer h.Close()

	err := h.Publish("j1", logEvent("j1", 1, "nobody listening\n"))
	assert.NoError(t, err)
}

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	h := New()
	defer h.Close()

	sub, err := h.Subscribe(context.Background(), "j1")
	require.NoError(t, err)

	require.NoError(t, h.Publish("j1", logEvent("j1", 1, "hello\n")))
	require.NoError(t, h.Publish("j1", logEvent("j1", 2, "world\n")))

	ev := <-sub.Events()
	assert.Equal(t, uint64(1), ev.Seq)
	ev = <-sub.Events()
	assert.Equal(t, "world\n", ev.Line)
}

func TestFanOutToMultipleSubscribers(t *testing.T) {
	h := New()
	defer h.Close()

	var subs []*Subscription
	for i := 0; i < 3; i++ {
		sub, err := h.Subscribe(context.Background(), "j1")
		require.NoError(t, err)
		subs = append(subs, sub)
	}

	require.NoError(t, h.Publish("j1", logEvent("j1", 1, "shared\n")))

	for i, sub := range subs {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, "shared\n", ev.Line, "subscriber %d", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive event", i)
		}
	}
}

func TestSubscribersAreIsolatedPerJob(t *testing.T) {
	h := New()
	defer h.Close()

	sub1, err := h.Subscribe(context.Background(), "j1")
	require.NoError(t, err)
	sub2, err := h.Subscribe(context.Background(), "j2")
	require.NoError(t, err)

	require.NoError(t, h.Publish("j1", logEvent("j1", 1, "only j1\n")))

	ev := <-sub1.Events()
	assert.Equal(t, "j1", ev.JobID)

	select {
	case ev := <-sub2.Events():
		t.Fatalf("j2 subscriber received foreign event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := New(WithBufferSize(2))
	defer h.Close()

	sub, err := h.Subscribe(context.Background(), "j1")
	require.NoError(t, err)

	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, h.Publish("j1", logEvent("j1", seq, "x\n")))
	}

	assert.Equal(t, int64(3), sub.Dropped())
	ev := <-sub.Events()
	assert.Equal(t, uint64(1), ev.Seq)
}

func TestCloseJobClosesSubscriberChannels(t *testing.T) {
	h := New()
	defer h.Close()

	sub, err := h.Subscribe(context.Background(), "j1")
	require.NoError(t, err)

	require.NoError(t, h.Publish("j1", logEvent("j1", 1, "last\n")))
	h.CloseJob("j1")

	// Buffered event still drains before the close is observed.
	ev, ok := <-sub.Events()
	require.True(t, ok)
	assert.Equal(t, "last\n", ev.Line)

	_, ok = <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, h.SubscriberCount("j1"))
}

func TestSubscribeRacingCloseJobGetsClosedChannel(t *testing.T) {
	h := New()
	defer h.Close()

	// Recreate the losing side of the race: a subscriber resolves the entry,
	// CloseJob runs, and only then does the registration happen. Pinning the
	// stale entry back into the map lets Subscribe take that exact path.
	entry := h.getOrCreateEntry("j1")
	h.CloseJob("j1")

	h.jobsMutex.Lock()
	h.jobs["j1"] = entry
	h.jobsMutex.Unlock()

	sub, err := h.Subscribe(context.Background(), "j1")
	require.NoError(t, err)

	// The channel arrives already closed instead of hanging forever.
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, h.SubscriberCount("j1"))
}

func TestContextCancelUnsubscribes(t *testing.T) {
	h := New()
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := h.Subscribe(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, 1, h.SubscriberCount("j1"))

	cancel()
	assert.Eventually(t, func() bool {
		return h.SubscriberCount("j1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeAfterCloseFails(t *testing.T) {
	h := New()
	require.NoError(t, h.Close())

	_, err := h.Subscribe(context.Background(), "j1")
	assert.ErrorIs(t, err, errors.ErrHubClosed)

	err = h.Publish("j1", logEvent("j1", 1, "x\n"))
	assert.ErrorIs(t, err, errors.ErrHubClosed)
}

func TestRunDeliversUntilTerminalEvent(t *testing.T) {
	h := New()
	defer h.Close()

	sub, err := h.Subscribe(context.Background(), "j1")
	require.NoError(t, err)

	sink := &recordSink{}
	done := make(chan error, 1)
	go func() {
		done <- sub.Run(sink, 0, 0)
	}()

	require.NoError(t, h.Publish("j1", logEvent("j1", 1, "a\n")))
	require.NoError(t, h.Publish("j1", logEvent("j1", 2, "b\n")))
	require.NoError(t, h.Publish("j1", doneEvent("j1", 3)))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pump did not finish after terminal event")
	}

	events := sink.recorded()
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventDone, events[2].Type)
}

func TestRunSkipsAlreadyReplayedSequences(t *testing.T) {
	h := New()
	defer h.Close()

	sub, err := h.Subscribe(context.Background(), "j1")
	require.NoError(t, err)

	// Seqs 1-3 were covered by the bootstrap replay; the pump must resume
	// at 4 without duplicating or skipping anything.
	for seq := uint64(1); seq <= 6; seq++ {
		require.NoError(t, h.Publish("j1", logEvent("j1", seq, fmt.Sprintf("line-%d\n", seq))))
	}
	require.NoError(t, h.Publish("j1", doneEvent("j1", 7)))

	sink := &recordSink{}
	require.NoError(t, sub.Run(sink, 3, 0))

	events := sink.recorded()
	require.Len(t, events, 4)
	assert.Equal(t, uint64(4), events[0].Seq)
	assert.Equal(t, uint64(5), events[1].Seq)
	assert.Equal(t, uint64(6), events[2].Seq)
	assert.Equal(t, domain.EventDone, events[3].Type)
}

func TestRunReturnsContextErrorOnCancel(t *testing.T) {
	h := New()
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := h.Subscribe(ctx, "j1")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- sub.Run(&recordSink{}, 0, 0)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("pump did not observe cancellation")
	}
}

func TestRunSendsKeepAlivePings(t *testing.T) {
	h := New()
	defer h.Close()

	sub, err := h.Subscribe(context.Background(), "j1")
	require.NoError(t, err)

	sink := &recordSink{}
	done := make(chan error, 1)
	go func() {
		done <- sub.Run(sink, 0, 20*time.Millisecond)
	}()

	assert.Eventually(t, func() bool {
		return sink.pingCount() >= 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.Publish("j1", doneEvent("j1", 1)))
	require.NoError(t, <-done)
}

func TestRunFailingSinkDoesNotAffectOthers(t *testing.T) {
	h := New()
	defer h.Close()

	bad, err := h.Subscribe(context.Background(), "j1")
	require.NoError(t, err)
	good, err := h.Subscribe(context.Background(), "j1")
	require.NoError(t, err)

	badSink := &recordSink{sendErr: fmt.Errorf("connection reset")}
	goodSink := &recordSink{}

	badDone := make(chan error, 1)
	goodDone := make(chan error, 1)
	go func() { badDone <- bad.Run(badSink, 0, 0) }()
	go func() { goodDone <- good.Run(goodSink, 0, 0) }()

	require.NoError(t, h.Publish("j1", logEvent("j1", 1, "a\n")))

	select {
	case err := <-badDone:
		assert.True(t, errors.IsStreamError(err))
	case <-time.After(time.Second):
		t.Fatal("failing sink pump did not exit")
	}

	require.NoError(t, h.Publish("j1", doneEvent("j1", 2)))
	require.NoError(t, <-goodDone)
	require.Len(t, goodSink.recorded(), 2)
}

package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"jobstream/internal/jobstream/domain"
)

type captureHandler struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (h *captureHandler) Handle(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *captureHandler) SupportedEvents() []EventType {
	return []EventType{JobCompleted, JobFailed}
}

func (h *captureHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestPublishDeliversToSubscribedHandlers(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := &captureHandler{}
	if err := bus.Subscribe(JobCompleted, handler); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	event := Event{Type: JobCompleted, JobID: "j1", Timestamp: time.Now()}
	if err := bus.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if handler.count() != 1 {
		t.Errorf("expected 1 event, got %d", handler.count())
	}
}

func TestPublishWithoutHandlersSucceeds(t *testing.T) {
	bus := NewInMemoryEventBus()
	err := bus.Publish(context.Background(), Event{Type: JobFailed, JobID: "j1"})
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestPublishOnlyMatchingType(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := &captureHandler{}
	_ = bus.Subscribe(JobCompleted, handler)

	_ = bus.Publish(context.Background(), Event{Type: JobFailed, JobID: "j1"})
	if handler.count() != 0 {
		t.Errorf("handler received event of unsubscribed type")
	}
}

func TestPublishCollectsHandlerErrors(t *testing.T) {
	bus := NewInMemoryEventBus()
	ok := &captureHandler{}
	failing := &captureHandler{err: fmt.Errorf("webhook unreachable")}
	_ = bus.Subscribe(JobFailed, ok)
	_ = bus.Subscribe(JobFailed, failing)

	err := bus.Publish(context.Background(), Event{Type: JobFailed, JobID: "j1"})
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if ok.count() != 1 {
		t.Errorf("healthy handler should still receive the event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := &captureHandler{}
	_ = bus.Subscribe(JobCompleted, handler)
	_ = bus.Unsubscribe(JobCompleted, handler)

	_ = bus.Publish(context.Background(), Event{Type: JobCompleted, JobID: "j1"})
	if handler.count() != 0 {
		t.Errorf("unsubscribed handler still received events")
	}
}

func TestTypeForStatus(t *testing.T) {
	cases := map[domain.JobStatus]EventType{
		domain.StatusCompleted: JobCompleted,
		domain.StatusFailed:    JobFailed,
		domain.StatusCanceled:  JobCanceled,
		domain.StatusTimedOut:  JobTimedOut,
	}
	for status, want := range cases {
		if got := TypeForStatus(status); got != want {
			t.Errorf("TypeForStatus(%s) = %s, want %s", status, got, want)
		}
	}
}

func TestLoggingHandlerAcceptsJobData(t *testing.T) {
	handler := NewLoggingHandler()
	job := &domain.Job{ID: "j1", Status: domain.StatusCompleted}
	event := Event{
		Type:      JobCompleted,
		JobID:     "j1",
		Data:      JobEventData{Job: job},
		Timestamp: time.Now(),
	}
	if err := handler.Handle(context.Background(), event); err != nil {
		t.Errorf("logging handler returned error: %v", err)
	}
}

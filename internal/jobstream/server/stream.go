package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"jobstream/internal/jobstream/buffer"
	"jobstream/internal/jobstream/domain"
	"jobstream/internal/jobstream/hub"
	"jobstream/pkg/api"
)

// frameSink extends hub.Sink with control frames that never come from the
// hub: the bootstrap snapshot and the hello marker.
type frameSink interface {
	hub.Sink
	SendFrame(ev api.Event) error
}

// handleStream attaches the caller to a job's event flow over SSE.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	ring, ok := s.registry.Ring(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sink := &sseSink{w: w, fl: fl}
	if err := s.attach(r.Context(), jobID, ring, sink); err != nil {
		s.log.Debug("stream ended with error", "jobId", jobID, "error", err)
	}
}

// attach performs the shared stream sequence: subscribe first so no live
// event is lost, replay the ring snapshot as a bootstrap frame, mark the
// seam with hello, then pump live events skipping everything the snapshot
// already covered.
func (s *Server) attach(ctx context.Context, jobID string, ring *buffer.Ring, sink frameSink) error {
	sub, err := s.hub.Subscribe(ctx, jobID)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	snapshot := ring.Snapshot()

	bootstrap := api.Event{Type: api.EventBootstrap, JobID: jobID}
	bootstrap.Events = make([]api.Event, 0, len(snapshot))
	for _, ev := range snapshot {
		bootstrap.Events = append(bootstrap.Events, api.FromLogEvent(ev))
	}
	if err := sink.SendFrame(bootstrap); err != nil {
		return err
	}
	if err := sink.SendFrame(api.Event{Type: api.EventHello, JobID: jobID}); err != nil {
		return err
	}

	var afterSeq uint64
	for _, ev := range snapshot {
		if ev.Seq > afterSeq {
			afterSeq = ev.Seq
		}
		if ev.IsTerminal() {
			// The job already finished; the snapshot was the whole story.
			return nil
		}
	}

	return sub.Run(sink, afterSeq, s.keepAlive)
}

// sseSink writes frames in the text/event-stream format: each event is a
// `data: {json}` record, pings are bodyless `event: ping` records.
type sseSink struct {
	w  http.ResponseWriter
	fl http.Flusher
}

func (s *sseSink) SendFrame(ev api.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(append(append([]byte("data: "), data...), '\n', '\n')); err != nil {
		return err
	}
	s.fl.Flush()
	return nil
}

func (s *sseSink) Send(ev domain.LogEvent) error {
	return s.SendFrame(api.FromLogEvent(ev))
}

func (s *sseSink) Ping() error {
	if _, err := s.w.Write([]byte("event: ping\ndata: {}\n\n")); err != nil {
		return err
	}
	s.fl.Flush()
	return nil
}

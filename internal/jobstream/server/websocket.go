package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"jobstream/internal/jobstream/domain"
	"jobstream/pkg/api"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket attaches the caller to a job's event flow over a
// WebSocket. The frame sequence is identical to the SSE channel; pings use
// the protocol's native control frames.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	ring, ok := s.registry.Ring(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "jobId", jobID, "error", err)
		return
	}
	defer conn.Close()

	// The client never sends data frames; the read pump only detects the
	// peer going away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	sink := &wsSink{conn: conn}
	if err := s.attach(ctx, jobID, ring, sink); err != nil {
		s.log.Debug("websocket stream ended with error", "jobId", jobID, "error", err)
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) SendFrame(ev api.Event) error {
	return s.conn.WriteJSON(ev)
}

func (s *wsSink) Send(ev domain.LogEvent) error {
	return s.SendFrame(api.FromLogEvent(ev))
}

func (s *wsSink) Ping() error {
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

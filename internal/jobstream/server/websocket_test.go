package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobstream/pkg/api"
)

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func TestWebSocketStreamDeliversFullSequence(t *testing.T) {
	ts, _ := newTestServer(t)

	startJob(t, ts, api.StartJobRequest{
		JobID:   "wsjob",
		Command: "/bin/sh",
		Args:    []string{"-c", "echo alpha; echo beta"},
	})

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/v1/jobs/wsjob/ws"), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	// The server closes the connection after the terminal event, so reading
	// until error collects the whole stream either way.
	var frames []api.Event
	for {
		var ev api.Event
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		frames = append(frames, ev)
		if ev.Type == api.EventDone {
			break
		}
	}
	require.GreaterOrEqual(t, len(frames), 2)
	require.Equal(t, api.EventBootstrap, frames[0].Type)
	assert.Equal(t, api.EventHello, frames[1].Type)

	var all []api.Event
	all = append(all, frames[0].Events...)
	all = append(all, frames[2:]...)

	var lines []string
	sawDone := false
	for _, ev := range all {
		if ev.Type == api.EventLog {
			lines = append(lines, ev.Line)
		}
		if ev.Type == api.EventDone {
			sawDone = true
		}
	}
	assert.Contains(t, lines, "alpha\n")
	assert.Contains(t, lines, "beta\n")
	assert.True(t, sawDone)
}

func TestWebSocketUnknownJobRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/v1/jobs/ghost/ws"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobstream/internal/jobstream/buffer"
	"jobstream/internal/jobstream/events"
	"jobstream/internal/jobstream/hub"
	"jobstream/internal/jobstream/registry"
	"jobstream/internal/jobstream/runner"
	"jobstream/internal/jobstream/server"
	"jobstream/pkg/api"
	"jobstream/pkg/config"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()

	h := hub.New()
	t.Cleanup(func() { _ = h.Close() })

	reg := registry.New(buffer.NewManager(2000), h, events.NewInMemoryEventBus(), registry.Config{
		GracePeriod:      time.Hour,
		DefaultTargetDir: "/tmp/fake",
		Runner:           runner.Config{StopGraceTimeout: 2 * time.Second},
	})

	cfg := config.DefaultConfig
	cfg.Stream.KeepAlive = 100 * time.Millisecond

	ts := httptest.NewServer(server.New(reg, h, &cfg).Routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestNewJobClientRequiresAddress(t *testing.T) {
	_, err := NewJobClient("")
	assert.Error(t, err)
}

func TestStartGetAndListJobs(t *testing.T) {
	ts := newBackend(t)
	c, err := NewJobClient(ts.URL)
	require.NoError(t, err)

	ctx := context.Background()
	ack, err := c.StartJob(ctx, api.StartJobRequest{
		JobID:   "c1",
		Command: "/bin/sh",
		Args:    []string{"-c", "echo from-client"},
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", ack.JobID)
	assert.True(t, ack.Started)

	require.Eventually(t, func() bool {
		info, err := c.GetJob(ctx, "c1")
		return err == nil && info.Status == "COMPLETED"
	}, 10*time.Second, 20*time.Millisecond)

	jobs, err := c.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "c1", jobs[0].JobID)
}

func TestGetUnknownJobFails(t *testing.T) {
	ts := newBackend(t)
	c, err := NewJobClient(ts.URL)
	require.NoError(t, err)

	_, err = c.GetJob(context.Background(), "ghost")
	assert.ErrorContains(t, err, "404")
}

func TestCancelJob(t *testing.T) {
	ts := newBackend(t)
	c, err := NewJobClient(ts.URL)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.StartJob(ctx, api.StartJobRequest{
		JobID:   "c2",
		Command: "/bin/sh",
		Args:    []string{"-c", "sleep 30"},
	})
	require.NoError(t, err)

	require.NoError(t, c.CancelJob(ctx, "c2"))
	require.Eventually(t, func() bool {
		info, err := c.GetJob(ctx, "c2")
		return err == nil && info.Status == "CANCELED"
	}, 10*time.Second, 20*time.Millisecond)

	assert.Error(t, c.CancelJob(ctx, "ghost"))
}

func TestStreamLogsDeliversFrames(t *testing.T) {
	ts := newBackend(t)
	c, err := NewJobClient(ts.URL)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.StartJob(ctx, api.StartJobRequest{
		JobID:   "c3",
		Command: "/bin/sh",
		Args:    []string{"-c", "echo first; echo second"},
	})
	require.NoError(t, err)

	var frames []api.Event
	err = c.StreamLogs(ctx, "c3", func(ev api.Event) error {
		frames = append(frames, ev)
		return nil
	})
	require.NoError(t, err)

	require.NotEmpty(t, frames)
	assert.Equal(t, api.EventBootstrap, frames[0].Type)

	var lines []string
	collect := func(ev api.Event) {
		if ev.Type == api.EventLog {
			lines = append(lines, ev.Line)
		}
	}
	for _, ev := range frames[0].Events {
		collect(ev)
	}
	for _, ev := range frames[1:] {
		collect(ev)
	}
	assert.Contains(t, lines, "first\n")
	assert.Contains(t, lines, "second\n")
}

func TestStreamLogsUnknownJob(t *testing.T) {
	ts := newBackend(t)
	c, err := NewJobClient(ts.URL)
	require.NoError(t, err)

	err = c.StreamLogs(context.Background(), "ghost", func(api.Event) error { return nil })
	assert.ErrorContains(t, err, "404")
}

// Package client is the Go client for the jobstream HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jobstream/pkg/api"
)

// JobClient talks to a jobstream server.
type JobClient struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
}

// NewJobClient creates a client for the server at baseURL, e.g.
// "http://localhost:8080".
func NewJobClient(baseURL string) (*JobClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	return &JobClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		// Long-lived streams must not be cut off by the request timeout.
		stream: &http.Client{},
	}, nil
}

// StartJob admits a job and returns the server's acknowledgement.
func (c *JobClient) StartJob(ctx context.Context, req api.StartJobRequest) (*api.StartJobResponse, error) {
	var out api.StartJobResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/jobs", req, &out, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelJob requests termination of a running job.
func (c *JobClient) CancelJob(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/jobs/"+jobID+"/cancel", nil, nil, http.StatusOK)
}

// GetJob fetches a job's status snapshot.
func (c *JobClient) GetJob(ctx context.Context, jobID string) (*api.JobInfo, error) {
	var out api.JobInfo
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+jobID, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListJobs fetches every job the server tracks.
func (c *JobClient) ListJobs(ctx context.Context) ([]api.JobInfo, error) {
	var out api.ListJobsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// StreamLogs attaches to a job's SSE channel and invokes handle for every
// frame, pings excluded. It blocks until the stream ends. handle may return
// io.EOF to stop early without error.
func (c *JobClient) StreamLogs(ctx context.Context, jobID string, handle func(ev api.Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/jobs/"+jobID+"/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.errorFrom(resp)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\n")
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev api.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return fmt.Errorf("malformed event frame: %w", err)
		}
		if err := handle(ev); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if ev.Type == api.EventDone {
			return nil
		}
	}
}

func (c *JobClient) do(ctx context.Context, method, path string, in, out interface{}, wantStatus int) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.errorFrom(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *JobClient) errorFrom(resp *http.Response) error {
	var apiErr api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}

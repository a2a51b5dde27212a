// Package api defines the wire types shared by the server and its clients.
package api

import (
	"time"

	"jobstream/internal/jobstream/domain"
)

// Event frame types.
const (
	EventBootstrap = "bootstrap"
	EventHello     = "hello"
	EventLog       = "log"
	EventDone      = "done"
	EventPing      = "ping"
)

// StartJobRequest asks the server to admit a job.
type StartJobRequest struct {
	JobID     string   `json:"jobId,omitempty"`
	Command   string   `json:"command,omitempty"`
	Args      []string `json:"args,omitempty"`
	Dir       string   `json:"dir,omitempty"`
	Target    string   `json:"target,omitempty"`
	Simulated bool     `json:"simulated,omitempty"`
}

// StartJobResponse acknowledges an admitted job.
type StartJobResponse struct {
	JobID   string `json:"jobId"`
	Started bool   `json:"started"`
	Target  string `json:"target,omitempty"`
}

// CancelJobResponse acknowledges a cancellation request.
type CancelJobResponse struct {
	JobID string `json:"jobId"`
	OK    bool   `json:"ok"`
}

// ErrorResponse carries a failed request's reason.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JobInfo is a point-in-time job status snapshot.
type JobInfo struct {
	JobID     string     `json:"jobId"`
	Status    string     `json:"status"`
	Command   string     `json:"command,omitempty"`
	Args      []string   `json:"args,omitempty"`
	Simulated bool       `json:"simulated,omitempty"`
	Pid       int32      `json:"pid,omitempty"`
	ExitCode  int32      `json:"exitCode"`
	Target    string     `json:"target,omitempty"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// ListJobsResponse wraps a job listing.
type ListJobsResponse struct {
	Jobs []JobInfo `json:"jobs"`
}

// Event is one frame on a job's push channel.
type Event struct {
	Type    string    `json:"type"`
	JobID   string    `json:"jobId,omitempty"`
	Seq     uint64    `json:"seq,omitempty"`
	Stream  string    `json:"stream,omitempty"`
	Line    string    `json:"line,omitempty"`
	Code    *int32    `json:"code,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	Target  string    `json:"target,omitempty"`
	TS      time.Time `json:"ts,omitzero"`

	// Events carries the ring snapshot on a bootstrap frame.
	Events []Event `json:"events,omitempty"`
}

// FromLogEvent converts an internal log event to its wire form.
func FromLogEvent(ev domain.LogEvent) Event {
	return Event{
		Type:    string(ev.Type),
		JobID:   ev.JobID,
		Seq:     ev.Seq,
		Stream:  string(ev.Stream),
		Line:    ev.Line,
		Code:    ev.ExitCode,
		Outcome: string(ev.Outcome),
		Target:  ev.Target,
		TS:      ev.Timestamp,
	}
}

// FromJob converts an internal job to its wire snapshot.
func FromJob(job *domain.Job) JobInfo {
	return JobInfo{
		JobID:     job.ID,
		Status:    string(job.Status),
		Command:   job.Command,
		Args:      job.Args,
		Simulated: job.Simulated,
		Pid:       job.Pid,
		ExitCode:  job.ExitCode,
		Target:    job.Target,
		StartTime: job.StartTime,
		EndTime:   job.EndTime,
	}
}

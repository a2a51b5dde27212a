package domain

import "time"

// StreamTag identifies which stream of a job an event belongs to.
type StreamTag string

const (
	StreamStdout  StreamTag = "stdout"
	StreamStderr  StreamTag = "stderr"
	StreamControl StreamTag = "control"
)

// EventType discriminates the wire records pushed to subscribers.
type EventType string

const (
	// EventLog carries one complete output line.
	EventLog EventType = "log"
	// EventDone is the single terminal event of a job; always delivered last.
	EventDone EventType = "done"
	// EventHello is sent to a subscriber after its bootstrap replay.
	EventHello EventType = "hello"
	// EventPing is a keep-alive control frame with no payload.
	EventPing EventType = "ping"
)

// LogEvent is one immutable record of a job's event stream. Data lines are
// produced by the line assembler; control events are synthesized by the
// runner (done) or the transport (hello, ping). Seq is monotonic per job and
// gap-free for events that reach the ring buffer; hello and ping carry no Seq.
type LogEvent struct {
	Type      EventType `json:"type"`
	JobID     string    `json:"jobId"`
	Seq       uint64    `json:"seq,omitempty"`
	Stream    StreamTag `json:"stream,omitempty"`
	Line      string    `json:"line,omitempty"`
	Outcome   JobStatus `json:"outcome,omitempty"`
	ExitCode  *int32    `json:"exitCode,omitempty"`
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// IsTerminal reports whether this is the job's final event.
func (e LogEvent) IsTerminal() bool {
	return e.Type == EventDone
}

package domain

import (
	"errors"
	"time"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	StatusPending   JobStatus = "PENDING"
	StatusRunning   JobStatus = "RUNNING"
	StatusCompleted JobStatus = "COMPLETED"
	StatusFailed    JobStatus = "FAILED"
	StatusCanceled  JobStatus = "CANCELED"
	StatusTimedOut  JobStatus = "TIMEDOUT"
)

// ErrInvalidCommand is returned when a process job has no command.
var ErrInvalidCommand = errors.New("job command cannot be empty")

// Job is one tracked instance of a long-running operation. A Job is mutated
// only by its owning runner; everything else sees deep copies.
type Job struct {
	ID        string     // Unique identifier for job tracking
	Command   string     // Executable command path (empty for simulated jobs)
	Args      []string   // Command line arguments
	Dir       string     // Working directory for the spawned process
	Target    string     // Target/result location reported in the terminal event
	Simulated bool       // True for the simulated clone workload
	Status    JobStatus  // Current lifecycle state
	Pid       int32      // Process ID when running (0 for simulated jobs)
	StartTime time.Time  // When the run was accepted
	EndTime   *time.Time // Completion timestamp (nil while non-terminal)
	ExitCode  int32      // Process exit status; defined only in terminal states
}

// IsRunning returns true while the underlying operation is active.
func (j *Job) IsRunning() bool {
	return j.Status == StatusRunning
}

// IsTerminal returns true once the job has reached a final state.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCanceled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// Duration returns how long the job has run, or ran.
func (j *Job) Duration() time.Duration {
	if j.EndTime == nil {
		if j.IsRunning() {
			return time.Since(j.StartTime)
		}
		return 0
	}
	return j.EndTime.Sub(j.StartTime)
}

// Validate checks the job configuration.
func (j *Job) Validate() error {
	if !j.Simulated && j.Command == "" {
		return ErrInvalidCommand
	}
	return nil
}

// DeepCopy creates an independent copy of the job.
func (j *Job) DeepCopy() *Job {
	if j == nil {
		return nil
	}

	jobCopy := &Job{
		ID:        j.ID,
		Command:   j.Command,
		Args:      make([]string, len(j.Args)),
		Dir:       j.Dir,
		Target:    j.Target,
		Simulated: j.Simulated,
		Status:    j.Status,
		Pid:       j.Pid,
		StartTime: j.StartTime,
		ExitCode:  j.ExitCode,
	}
	copy(jobCopy.Args, j.Args)

	if j.EndTime != nil {
		endTime := *j.EndTime
		jobCopy.EndTime = &endTime
	}

	return jobCopy
}

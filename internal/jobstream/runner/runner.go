// Package runner owns the lifecycle of a single job: it launches the
// workload, turns its raw output into sequenced log events, feeds the ring
// buffer and broadcast hub, and finalizes the job with exactly one terminal
// event.
package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"jobstream/internal/jobstream/buffer"
	"jobstream/internal/jobstream/domain"
	"jobstream/internal/jobstream/events"
	"jobstream/internal/jobstream/hub"
	"jobstream/internal/jobstream/lineio"
	"jobstream/pkg/errors"
	"jobstream/pkg/logger"
)

// Config carries the runner's timing knobs.
type Config struct {
	// StopGraceTimeout is how long a canceled process gets between SIGTERM
	// and SIGKILL.
	StopGraceTimeout time.Duration

	// SimulatedInterval is the tick period of the simulated workload.
	SimulatedInterval time.Duration

	// SimulatedDuration is the simulated workload's deadline.
	SimulatedDuration time.Duration
}

// TerminalFunc is invoked exactly once when the job reaches a terminal state.
type TerminalFunc func(job *domain.Job)

// Runner executes one job and publishes its output as ordered log events.
type Runner struct {
	job   *domain.Job
	jobMu sync.RWMutex

	ring *buffer.Ring
	hub  *hub.Hub
	bus  events.EventBus
	cfg  Config
	log  *logger.Logger

	emitMu sync.Mutex
	seq    uint64

	cancelRequested atomic.Bool
	procMu          sync.Mutex
	proc            *exec.Cmd
	simCancel       context.CancelFunc

	onTerminal TerminalFunc
	finishOnce sync.Once
	done       chan struct{}
}

// New creates a runner for job. onTerminal may be nil.
func New(job *domain.Job, ring *buffer.Ring, h *hub.Hub, bus events.EventBus, cfg Config, onTerminal TerminalFunc) *Runner {
	if cfg.StopGraceTimeout <= 0 {
		cfg.StopGraceTimeout = 5 * time.Second
	}
	if cfg.SimulatedInterval <= 0 {
		cfg.SimulatedInterval = 900 * time.Millisecond
	}
	if cfg.SimulatedDuration <= 0 {
		cfg.SimulatedDuration = 2 * time.Minute
	}
	return &Runner{
		job:        job,
		ring:       ring,
		hub:        h,
		bus:        bus,
		cfg:        cfg,
		log:        logger.WithFields("component", "runner", "jobId", job.ID),
		onTerminal: onTerminal,
		done:       make(chan struct{}),
	}
}

// Start launches the workload. It returns after the job is running; output
// flows from a background goroutine until the terminal event. A launch
// failure finalizes the job as Failed and is returned to the caller.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.snapshot().Validate(); err != nil {
		return errors.WrapJobError(r.jobID(), "start", errors.JoinErrors(errors.ErrInvalidJobSpec, err))
	}

	if r.snapshot().Simulated {
		return r.startSimulated()
	}
	return r.startProcess(ctx)
}

// Cancel requests termination of a running job. For real processes SIGTERM
// is sent first and SIGKILL follows after the grace timeout; for simulated
// jobs the workload context is cancelled. The job stays Running until the
// workload has actually exited.
func (r *Runner) Cancel() error {
	if !r.snapshot().IsRunning() {
		return errors.WrapJobError(r.jobID(), "cancel", errors.ErrJobNotRunning)
	}

	r.procMu.Lock()
	proc := r.proc
	simCancel := r.simCancel
	r.procMu.Unlock()

	switch {
	case simCancel != nil:
		r.cancelRequested.Store(true)
		simCancel()

	case proc != nil && proc.Process != nil:
		pid := proc.Process.Pid
		r.log.Info("sending SIGTERM", "pid", pid)
		// cancelRequested is only set once the signal was delivered; a
		// process that exited on its own keeps its real outcome.
		if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
			if stderrors.Is(err, syscall.ESRCH) {
				return errors.WrapJobError(r.jobID(), "cancel", errors.ErrJobNotRunning)
			}
			return errors.WrapJobError(r.jobID(), "cancel", err)
		}
		r.cancelRequested.Store(true)
		go func() {
			select {
			case <-r.done:
			case <-time.After(r.cfg.StopGraceTimeout):
				r.log.Warn("grace timeout expired, sending SIGKILL", "pid", pid)
				_ = syscall.Kill(-pid, syscall.SIGKILL)
			}
		}()

	default:
		return errors.WrapJobError(r.jobID(), "cancel", errors.ErrJobNotRunning)
	}
	return nil
}

// Done is closed once the job has reached a terminal state and its terminal
// event has been published.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Job returns an independent copy of the job's current state.
func (r *Runner) Job() *domain.Job {
	return r.snapshot()
}

// LastSeq returns the sequence number of the most recent emitted event.
func (r *Runner) LastSeq() uint64 {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	return r.seq
}

func (r *Runner) startProcess(ctx context.Context) error {
	job := r.snapshot()

	cmd := exec.Command(job.Command, job.Args...)
	cmd.Dir = job.Dir
	// Own process group so cancellation reaches children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = lineio.NewAssembler(func(line []byte) {
		r.emitLine(domain.StreamStdout, line)
	})
	cmd.Stderr = lineio.NewAssembler(func(line []byte) {
		r.emitLine(domain.StreamStderr, line)
	})

	if err := cmd.Start(); err != nil {
		r.log.Error("failed to launch process", "command", job.Command, "error", err)
		r.finish(domain.StatusFailed, -1, err)
		return errors.WrapJobError(job.ID, "start", err)
	}

	r.procMu.Lock()
	r.proc = cmd
	r.procMu.Unlock()

	r.markRunning(int32(cmd.Process.Pid))
	r.log.Info("process started", "command", job.Command, "pid", cmd.Process.Pid)
	r.notify(events.JobStarted, nil)

	go r.waitProcess(cmd)
	return nil
}

// waitProcess blocks on the process and finalizes the job from its real exit
// state. cmd.Wait also waits for the output pipes to drain, so every complete
// line is emitted before the terminal event.
func (r *Runner) waitProcess(cmd *exec.Cmd) {
	defer r.recoverPanic()

	err := cmd.Wait()

	var status domain.JobStatus
	var exitCode int32
	switch {
	case r.cancelRequested.Load():
		status = domain.StatusCanceled
		exitCode = exitCodeOf(err)
	case err == nil:
		status = domain.StatusCompleted
		exitCode = 0
	default:
		status = domain.StatusFailed
		exitCode = exitCodeOf(err)
	}

	r.finish(status, exitCode, err)
}

func exitCodeOf(err error) int32 {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return int32(exitErr.ExitCode())
	}
	return -1
}

// emitLine assigns the next sequence number and publishes the line. Append
// happens before broadcast so a bootstrap snapshot taken between the two
// never misses the event.
func (r *Runner) emitLine(stream domain.StreamTag, line []byte) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.seq++
	ev := domain.LogEvent{
		Type:      domain.EventLog,
		JobID:     r.jobID(),
		Seq:       r.seq,
		Stream:    stream,
		Line:      string(line),
		Timestamp: time.Now(),
	}
	r.ring.Append(ev)
	_ = r.hub.Publish(ev.JobID, ev)
}

// finish publishes the single terminal event, closes the job's broadcast
// channel, and notifies the lifecycle bus. Safe to call more than once; only
// the first call takes effect.
func (r *Runner) finish(status domain.JobStatus, exitCode int32, cause error) {
	r.finishOnce.Do(func() {
		now := time.Now()
		r.jobMu.Lock()
		r.job.Status = status
		r.job.ExitCode = exitCode
		r.job.EndTime = &now
		job := r.job.DeepCopy()
		r.jobMu.Unlock()

		r.emitMu.Lock()
		r.seq++
		code := exitCode
		ev := domain.LogEvent{
			Type:      domain.EventDone,
			JobID:     job.ID,
			Seq:       r.seq,
			Stream:    domain.StreamControl,
			Line:      "finished\n",
			Outcome:   status,
			ExitCode:  &code,
			Target:    job.Target,
			Timestamp: now,
		}
		r.ring.Append(ev)
		_ = r.hub.Publish(job.ID, ev)
		r.emitMu.Unlock()

		// Subscriber channels close here; events already buffered still
		// drain to attached clients.
		r.hub.CloseJob(job.ID)

		r.log.Info("job finished", "status", string(status), "exitCode", exitCode)
		r.notify(events.TypeForStatus(status), cause)

		if r.onTerminal != nil {
			r.onTerminal(job)
		}
		close(r.done)
	})
}

func (r *Runner) notify(eventType events.EventType, cause error) {
	if r.bus == nil {
		return
	}
	job := r.snapshot()
	err := r.bus.Publish(context.Background(), events.Event{
		Type:      eventType,
		JobID:     job.ID,
		Data:      events.JobEventData{Job: job, Error: cause},
		Timestamp: time.Now(),
	})
	if err != nil {
		r.log.Warn("lifecycle notification failed", "event", string(eventType), "error", err)
	}
}

func (r *Runner) recoverPanic() {
	if rec := recover(); rec != nil {
		r.log.Error("runner panicked", "panic", rec)
		r.finish(domain.StatusFailed, -1, fmt.Errorf("runner panic: %v", rec))
	}
}

func (r *Runner) markRunning(pid int32) {
	r.jobMu.Lock()
	defer r.jobMu.Unlock()
	r.job.Status = domain.StatusRunning
	r.job.Pid = pid
	r.job.StartTime = time.Now()
}

func (r *Runner) snapshot() *domain.Job {
	r.jobMu.RLock()
	defer r.jobMu.RUnlock()
	return r.job.DeepCopy()
}

func (r *Runner) jobID() string {
	r.jobMu.RLock()
	defer r.jobMu.RUnlock()
	return r.job.ID
}

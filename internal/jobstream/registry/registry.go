// Package registry tracks every job the server knows about and owns job
// admission: id assignment, duplicate rejection, and retention of finished
// jobs for the attach grace period.
package registry

import (
	"context"
	stderrors "errors"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobstream/internal/jobstream/buffer"
	"jobstream/internal/jobstream/domain"
	"jobstream/internal/jobstream/events"
	"jobstream/internal/jobstream/hub"
	"jobstream/internal/jobstream/runner"
	"jobstream/pkg/errors"
	"jobstream/pkg/logger"
)

// Config carries the registry's policy knobs.
type Config struct {
	// GracePeriod is how long a finished job stays attachable.
	GracePeriod time.Duration

	// DefaultTargetDir is the base directory for simulated clone targets.
	DefaultTargetDir string

	// Runner is passed through to every job runner.
	Runner runner.Config
}

// StartRequest describes a job to admit.
type StartRequest struct {
	// ID is the caller-chosen job id. Empty means the registry assigns one.
	ID string

	// Command and Args define a real process job.
	Command string
	Args    []string
	Dir     string

	// Target overrides the result location reported in the terminal event.
	Target string

	// Simulated selects the fake clone workload instead of a process.
	Simulated bool
}

type entry struct {
	runner     *runner.Runner
	gcTimer    *time.Timer
	gcTimerMu  sync.Mutex
	terminalAt time.Time
}

// Registry is the single authority on which jobs exist.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool

	rings *buffer.Manager
	hub   *hub.Hub
	bus   events.EventBus
	cfg   Config
	log   *logger.Logger
}

// New creates a registry backed by the given ring manager and hub.
func New(rings *buffer.Manager, h *hub.Hub, bus events.EventBus, cfg Config) *Registry {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 30 * time.Second
	}
	if cfg.DefaultTargetDir == "" {
		cfg.DefaultTargetDir = "/tmp/jobstream"
	}
	return &Registry{
		entries: make(map[string]*entry),
		rings:   rings,
		hub:     h,
		bus:     bus,
		cfg:     cfg,
		log:     logger.WithField("component", "registry"),
	}
}

// Start admits and launches a job. An empty request id gets a generated
// UUID. A request whose id collides with an active job is rejected; a
// collision with a finished job still inside its grace period evicts the old
// record and starts fresh.
func (r *Registry) Start(ctx context.Context, req StartRequest) (*domain.Job, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.ErrHubClosed
	}

	jobID := req.ID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	job := &domain.Job{
		ID:        jobID,
		Command:   req.Command,
		Args:      append([]string(nil), req.Args...),
		Dir:       req.Dir,
		Simulated: req.Simulated,
		Status:    domain.StatusPending,
	}
	job.Target = req.Target
	if req.Simulated && job.Target == "" {
		job.Target = path.Join(r.cfg.DefaultTargetDir, jobID)
	}

	// Reject a bad spec before touching any registry state; a rejected start
	// must leave no record behind and must not evict a finished predecessor.
	if err := job.Validate(); err != nil {
		r.mu.Unlock()
		return nil, errors.WrapJobError(jobID, "start", errors.JoinErrors(errors.ErrInvalidJobSpec, err))
	}

	if existing, ok := r.entries[jobID]; ok {
		existingJob := existing.runner.Job()
		if !existingJob.IsTerminal() {
			r.mu.Unlock()
			return nil, errors.NewDuplicateJobError(jobID)
		}
		existing.stopGC()
		delete(r.entries, jobID)
		r.rings.Remove(jobID)
		r.log.Info("evicted finished job for id reuse", "jobId", jobID)
	}

	ring := r.rings.Get(jobID)
	e := &entry{}
	e.runner = runner.New(job, ring, r.hub, r.bus, r.cfg.Runner, func(finished *domain.Job) {
		r.scheduleRemoval(jobID, e)
	})
	r.entries[jobID] = e
	r.mu.Unlock()

	if err := e.runner.Start(ctx); err != nil {
		// The runner already finalized the job as Failed; the terminal
		// callback schedules its removal.
		return nil, err
	}

	r.log.Info("job admitted", "jobId", jobID, "simulated", req.Simulated)
	return e.runner.Job(), nil
}

// Cancel requests termination of a running job. Unknown ids and jobs that
// already finished both report not found.
func (r *Registry) Cancel(jobID string) error {
	r.mu.RLock()
	e, ok := r.entries[jobID]
	r.mu.RUnlock()
	if !ok {
		return errors.NewJobNotFoundError(jobID)
	}
	if e.runner.Job().IsTerminal() {
		return errors.NewJobNotFoundError(jobID)
	}
	return e.runner.Cancel()
}

// Job returns the current state of a tracked job.
func (r *Registry) Job(jobID string) (*domain.Job, error) {
	r.mu.RLock()
	e, ok := r.entries[jobID]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewJobNotFoundError(jobID)
	}
	return e.runner.Job(), nil
}

// List returns every tracked job sorted by id.
func (r *Registry) List() []*domain.Job {
	r.mu.RLock()
	jobs := make([]*domain.Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.runner.Job())
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

// Ring returns the event history of a tracked job.
func (r *Registry) Ring(jobID string) (*buffer.Ring, bool) {
	r.mu.RLock()
	_, tracked := r.entries[jobID]
	r.mu.RUnlock()
	if !tracked {
		return nil, false
	}
	return r.rings.Lookup(jobID)
}

// Shutdown cancels every running job and waits for the runners to finish or
// ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	running := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		e.stopGC()
		if !e.runner.Job().IsTerminal() {
			running = append(running, e)
		}
	}
	r.mu.Unlock()

	for _, e := range running {
		if err := e.runner.Cancel(); err != nil && !stderrors.Is(err, errors.ErrJobNotRunning) {
			r.log.Warn("cancel during shutdown failed", "jobId", e.runner.Job().ID, "error", err)
		}
	}

	for _, e := range running {
		select {
		case <-e.runner.Done():
		case <-ctx.Done():
			return errors.WrapJobError(e.runner.Job().ID, "shutdown", ctx.Err())
		}
	}
	return nil
}

// scheduleRemoval drops the job record and its ring after the grace period.
func (r *Registry) scheduleRemoval(jobID string, e *entry) {
	e.gcTimerMu.Lock()
	e.terminalAt = time.Now()
	e.gcTimer = time.AfterFunc(r.cfg.GracePeriod, func() {
		r.mu.Lock()
		if current, ok := r.entries[jobID]; ok && current == e {
			delete(r.entries, jobID)
			r.rings.Remove(jobID)
			r.log.Debug("job record expired", "jobId", jobID)
		}
		r.mu.Unlock()
	})
	e.gcTimerMu.Unlock()
}

func (e *entry) stopGC() {
	e.gcTimerMu.Lock()
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
	e.gcTimerMu.Unlock()
}

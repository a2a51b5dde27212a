package runner

import (
	"context"
	"fmt"
	"time"

	"jobstream/internal/jobstream/domain"
	"jobstream/internal/jobstream/events"
	"jobstream/internal/jobstream/lineio"
)

// startSimulated runs the fake clone workload: a progress line every tick
// until the deadline expires or the job is canceled. The deadline is the
// workload's own lifetime, so its expiry is a TimedOut outcome rather than a
// successful completion.
func (r *Runner) startSimulated() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SimulatedDuration)

	r.procMu.Lock()
	r.simCancel = cancel
	r.procMu.Unlock()

	r.markRunning(0)
	r.log.Info("simulated job started", "deadline", r.cfg.SimulatedDuration)
	r.notify(events.JobStarted, nil)

	go r.runSimulated(ctx, cancel)
	return nil
}

func (r *Runner) runSimulated(ctx context.Context, cancel context.CancelFunc) {
	defer r.recoverPanic()
	defer cancel()

	stdout := lineio.NewAssembler(func(line []byte) {
		r.emitLine(domain.StreamStdout, line)
	})
	stderr := lineio.NewAssembler(func(line []byte) {
		r.emitLine(domain.StreamStderr, line)
	})

	target := r.snapshot().Target
	fmt.Fprintln(stdout, "starting clone...")

	ticker := time.NewTicker(r.cfg.SimulatedInterval)
	defer ticker.Stop()

	step := 0
	for {
		select {
		case <-ctx.Done():
			if r.cancelRequested.Load() {
				r.finish(domain.StatusCanceled, 0, nil)
			} else {
				r.finish(domain.StatusTimedOut, 0, ctx.Err())
			}
			return

		case <-ticker.C:
			step++
			if step%4 == 0 {
				fmt.Fprintln(stderr, "remote: counting objects...")
			} else {
				fmt.Fprintf(stdout, "Cloning into '%s'... step=%d\n", target, step)
			}
		}
	}
}

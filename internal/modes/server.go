// Package modes wires the application together for each way the binary can
// run. The only mode today is the streaming server.
package modes

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"jobstream/internal/jobstream/buffer"
	"jobstream/internal/jobstream/events"
	"jobstream/internal/jobstream/hub"
	"jobstream/internal/jobstream/registry"
	"jobstream/internal/jobstream/runner"
	"jobstream/internal/jobstream/server"
	"jobstream/pkg/config"
	"jobstream/pkg/logger"
)

// RunServer starts the jobstream server and blocks until a termination
// signal arrives, then drains in-flight streams and running jobs within the
// configured shutdown timeout.
func RunServer(cfg *config.Config) error {
	log := logger.WithField("mode", "server")
	log.Info("starting jobstream server",
		"address", cfg.GetServerAddress(),
		"ringCapacity", cfg.Buffers.RingCapacity)

	h := hub.New(hub.WithBufferSize(cfg.Buffers.SubscriberBuffer))
	defer func() {
		if closeErr := h.Close(); closeErr != nil {
			log.Error("error closing hub", "error", closeErr)
		}
	}()

	bus := events.NewInMemoryEventBus()
	loggingHandler := events.NewLoggingHandler()
	for _, eventType := range loggingHandler.SupportedEvents() {
		if err := bus.Subscribe(eventType, loggingHandler); err != nil {
			return err
		}
	}

	rings := buffer.NewManager(cfg.Buffers.RingCapacity)
	reg := registry.New(rings, h, bus, registry.Config{
		GracePeriod:      cfg.Jobs.GracePeriod,
		DefaultTargetDir: cfg.Jobs.DefaultTargetDir,
		Runner: runner.Config{
			StopGraceTimeout:  cfg.Jobs.StopGraceTimeout,
			SimulatedInterval: cfg.Jobs.SimulatedInterval,
			SimulatedDuration: cfg.Jobs.SimulatedDuration,
		},
	})

	srv := server.New(reg, h, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		log.Info("received shutdown signal, stopping server...", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if err := reg.Shutdown(ctx); err != nil {
		log.Error("registry shutdown failed", "error", err)
		return err
	}

	log.Info("server stopped")
	return nil
}

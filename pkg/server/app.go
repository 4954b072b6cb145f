package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"AlphaDesk/internal/realtime"
	"AlphaDesk/internal/usecase"
	"AlphaDesk/pkg/config"
	xhttp "AlphaDesk/pkg/http"
	pkgkafka "AlphaDesk/pkg/kafka"
	applogger "AlphaDesk/pkg/logger"
	"AlphaDesk/pkg/pubsub"
	"AlphaDesk/pkg/scheduler"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg          *config.Config
	l            *applogger.Logger
	orchestrator *usecase.Orchestrator
	aggregator   *usecase.AlphaAggregator
	sched        *scheduler.Ticker
	halt         *usecase.EmergencyStop
	hub          *realtime.Hub
	bus          pubsub.Bus
	consumer     *pkgkafka.Consumer
	httpServer   *xhttp.Server
}

// New creates a new App instance with all dependencies. consumer may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	orchestrator *usecase.Orchestrator,
	aggregator *usecase.AlphaAggregator,
	sched *scheduler.Ticker,
	halt *usecase.EmergencyStop,
	hub *realtime.Hub,
	bus pubsub.Bus,
	consumer *pkgkafka.Consumer,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:          cfg,
		l:            l,
		orchestrator: orchestrator,
		aggregator:   aggregator,
		sched:        sched,
		halt:         halt,
		hub:          hub,
		bus:          bus,
		consumer:     consumer,
		httpServer:   httpServer,
	}
}

// Run starts every component and blocks until SIGINT/SIGTERM or a listener failure.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A halt from a previous process must be in force before the first tick.
	a.halt.Restore(ctx)

	if err := a.hub.Forward(a.bus); err != nil {
		return fmt.Errorf("realtime forward: %w", err)
	}

	a.orchestrator.Start(ctx)
	a.aggregator.Start(a.sched)

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start failed", applogger.Error(err))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.shutdown()
		return err
	}

	a.l.Info("alphadesk started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Bool("halted", a.halt.Halted()),
		applogger.Strings("tasks", a.sched.Tasks()),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err := <-a.httpServer.Errors():
		runErr = fmt.Errorf("http server: %w", err)
	}

	a.shutdown()
	return runErr
}

// shutdown stops producers of work first, then the edges. Clients are closed by the DI cleanup.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.orchestrator.Stop()
	a.sched.StopAll()

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	a.hub.Close()

	a.l.Info("shutdown complete")
}

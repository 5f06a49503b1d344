package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"monitoring/internal/clock"
	"monitoring/internal/command"
	"monitoring/internal/config"
	"monitoring/internal/engine"
	"monitoring/internal/ingest"
	"monitoring/internal/logging"
	"monitoring/internal/macros"
	"monitoring/internal/metrics"
	"monitoring/internal/notifier"
	"monitoring/internal/notify"
	"monitoring/internal/objects"
	"monitoring/internal/retention"
)

const (
	restoreTimeout      = 30 * time.Second
	httpShutdownTimeout = 10 * time.Second
)

// Service composes runtime dependencies and process lifecycle.
// Params: config snapshot and shared runtime components.
// Returns: runnable monitoring service.
type Service struct {
	cfg          config.Config
	logger       *slog.Logger
	closeLog     func()
	clock        clock.Clock
	env          *notifier.Environment
	registry     *objects.Registry
	retention    *retention.Manager
	metrics      *metrics.Metrics
	commands     *command.Queue
	checkResults *command.Queue
	engine       *engine.Engine
	httpSrv      *http.Server
	natsSub      interface{ Close() error }
	readyFlag    atomic.Bool
}

// NewService builds service instance from config source.
// Params: config source and clock implementation.
// Returns: initialized service with restored state, or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log, slog.String("service", cfg.Service.Name))
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		clock:    clk,
		metrics:  metrics.New(),
	}
	if err := s.build(); err != nil {
		s.cleanupInitResources()
		return nil, err
	}
	return s, nil
}

// build wires objects, retention, queues, engine, and ingest in dependency order.
func (s *Service) build() error {
	s.buildEnvironment()

	registry, err := objects.Build(s.cfg, s.env)
	if err != nil {
		return fmt.Errorf("build objects: %w", err)
	}
	s.env.Dependencies = registry
	var warnings, errs int
	if err := registry.ResolveAll(&warnings, &errs); err != nil {
		return fmt.Errorf("resolve objects (%d errors): %w", errs, err)
	}
	if warnings > 0 {
		s.logger.Warn("object resolution finished with warnings", "warnings", warnings)
	}
	s.registry = registry

	store, err := buildRetentionStore(s.cfg)
	if err != nil {
		return err
	}
	s.retention = retention.NewManager(store, s.logger)

	queueRetry := time.Duration(s.cfg.Engine.QueueRetryMS) * time.Millisecond
	s.commands = command.NewQueue(s.cfg.Engine.CommandQueueSize, queueRetry)
	s.checkResults = command.NewQueue(s.cfg.Engine.CheckResultQueueSize, queueRetry)
	if err := s.metrics.RegisterQueue("commands", s.commands); err != nil {
		return err
	}
	if err := s.metrics.RegisterQueue("check_results", s.checkResults); err != nil {
		return err
	}

	s.engine = engine.New(registry, s.env, s.commands, s.checkResults, engine.Options{
		TickInterval:      time.Duration(s.cfg.Service.TickIntervalMS) * time.Millisecond,
		SaveInterval:      time.Duration(s.cfg.Service.RetentionSaveIntervalSec) * time.Second,
		FlapLowThreshold:  s.cfg.Engine.FlapLowThreshold,
		FlapHighThreshold: s.cfg.Engine.FlapHighThreshold,
		Retention:         s.retention,
		Observer:          s.metrics,
		Logger:            s.logger,
	})
	restoreCtx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()
	if err := s.engine.Restore(restoreCtx); err != nil {
		return fmt.Errorf("restore retained state: %w", err)
	}

	s.buildHTTPServer()
	return s.buildNATSSubscriber()
}

// buildEnvironment creates the notifier environment with macros and transport.
func (s *Service) buildEnvironment() {
	env := notifier.NewEnvironment(s.clock, s.logger)
	if s.cfg.Engine.IntervalLengthSec > 0 {
		env.IntervalLength = time.Duration(s.cfg.Engine.IntervalLengthSec) * time.Second
	}
	env.SendRecoveryAnyways = s.cfg.Engine.SendRecoveryNotificationsAnyways
	env.SetNotificationsEnabled(s.cfg.Engine.NotificationsEnabled())
	env.Macros = macros.New(s.clock)
	env.Transport = notify.NewTransport(s.cfg.Notify, s.logger, notify.WithObserver(s.metrics.ObserveDelivery))
	s.env = env
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: first run or shutdown error.
//
// Ingest stops before the engine so queued commands are still drained and the
// final retention save sees them.
func (s *Service) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engineCtx, stopEngine := context.WithCancel(context.WithoutCancel(ctx))
	defer stopEngine()

	s.readyFlag.Store(true)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.engine.Run(engineCtx)
	})
	g.Go(func() error {
		s.logger.Info("http server starting", "listen", s.cfg.Service.Listen)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer stopEngine()
		return s.stopIngest()
	})

	s.logger.Info("service started", "name", s.cfg.Service.Name, "notifiers", len(s.registry.Notifiers()))

	runErr := g.Wait()
	if err := s.close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// stopIngest marks the service unready and closes inbound interfaces.
// Params: none.
// Returns: first close error.
func (s *Service) stopIngest() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats subscriber close failed", "error", err.Error())
			markErr(fmt.Errorf("nats subscriber close: %w", err))
		}
	}
	s.commands.Close()
	s.checkResults.Close()
	return firstErr
}

// close releases retention and logging after the engine has stopped.
func (s *Service) close() error {
	var err error
	if closeErr := s.retention.Close(); closeErr != nil {
		s.logger.Error("retention close failed", "error", closeErr.Error())
		err = fmt.Errorf("retention close: %w", closeErr)
	}
	s.logger.Info("service stopped")
	if s.closeLog != nil {
		s.closeLog()
	}
	return err
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.retention != nil {
		_ = s.retention.Close()
		s.retention = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// Handler exposes the HTTP routes for in-process use.
func (s *Service) Handler() http.Handler {
	return s.httpSrv.Handler
}

// buildHTTPServer wires health, readiness, metrics, and command ingest routes.
// Params: none.
// Returns: none.
func (s *Service) buildHTTPServer() {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Service.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.HandleFunc(s.cfg.Service.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte("not-ready"))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ready"))
	})
	mux.Handle(s.cfg.Service.MetricsPath, s.metrics.Handler())

	if s.cfg.Ingest.HTTP.Enabled {
		router := ingest.NewRouter(s.commands, s.checkResults)
		mux.Handle(s.cfg.Ingest.HTTP.CommandPath,
			ingest.NewHTTPHandler(router, s.clock, s.cfg.Ingest.HTTP.MaxBodyBytes, s.logger))
	}

	s.httpSrv = &http.Server{
		Addr:              s.cfg.Service.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// buildNATSSubscriber starts NATS ingest when enabled.
// Params: none.
// Returns: initialization error.
func (s *Service) buildNATSSubscriber() error {
	if !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	router := ingest.NewRouter(s.commands, s.checkResults)
	subscriber, err := ingest.NewNATSSubscriber(s.cfg.Ingest.NATS, router, s.clock, s.logger)
	if err != nil {
		return err
	}
	s.natsSub = subscriber
	return nil
}

// buildRetentionStore creates the retention backend from config.
// Params: root config snapshot.
// Returns: selected store backend.
func buildRetentionStore(cfg config.Config) (retention.Store, error) {
	if cfg.Retention.Backend == config.RetentionBackendNATS {
		return retention.NewNATSStore(cfg.Retention)
	}
	return retention.NewMemoryStore(), nil
}

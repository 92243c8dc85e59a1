package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/runboard/internal/adapters/http/api"
	"github.com/okian/runboard/internal/adapters/http/live"
	"github.com/okian/runboard/internal/adapters/http/site"
	"github.com/okian/runboard/internal/adapters/http/swagger"
	"github.com/okian/runboard/internal/adapters/mq/queue"
	"github.com/okian/runboard/internal/adapters/mq/worker"
	"github.com/okian/runboard/internal/adapters/repository"
	app "github.com/okian/runboard/internal/app"
	"github.com/okian/runboard/internal/config"
	"github.com/okian/runboard/internal/domain/ratelimit"
	"github.com/okian/runboard/internal/domain/validate"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "runboard exited", logger.Error(err))
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		return err
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	a.start()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("storage", cfg.Driver()),
			logger.Bool("feed", cfg.FeedEnabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			a.close(context.Background(), log)
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	a.close(shutdownCtx, log)

	log.Info(ctx, "server stopped")
	return nil
}

// application holds the assembled components that need an orderly stop.
type application struct {
	handler    http.Handler
	service    *app.Service
	store      repository.Store
	queue      *queue.InMemoryQueue
	hub        *live.Hub
	dispatcher *worker.Dispatcher
}

// build assembles storage, the service and the HTTP surface from cfg.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &application{store: store}

	limiter := ratelimit.New(
		ratelimit.WithWindow(cfg.RateLimitWindow()),
		ratelimit.WithMax(cfg.RateLimitMax),
	)

	var validatorOpts []validate.Option
	if cfg.CensorNames {
		validatorOpts = append(validatorOpts, validate.WithNameFilter(validate.Censor))
	}

	svcOpts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithLimiter(limiter),
		app.WithValidator(validate.New(validatorOpts...)),
	}
	apiOpts := []api.Option{
		api.WithLogger(log.Named("http")),
		api.WithCORSOrigin(cfg.CORSOrigin),
		api.WithTrustProxy(cfg.TrustProxy),
	}

	if cfg.FeedEnabled {
		a.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.FeedQueueSize))
		a.hub = live.NewHub(
			live.WithLogger(log.Named("live")),
			live.WithAllowedOrigin(cfg.CORSOrigin),
		)
		a.dispatcher = worker.NewDispatcher(a.queue, a.hub, worker.WithLogger(log.Named("feed-dispatcher")))
		svcOpts = append(svcOpts, app.WithPublisher(a.queue))
		apiOpts = append(apiOpts, api.WithLive(a.hub))
	}

	a.service = app.New(store, svcOpts...)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	apiServer := api.NewServer(a.service, apiOpts...)
	apiServer.Register(ctx, mux)
	a.handler = apiServer.Wrap(mux)

	return a, nil
}

// openStore connects the configured storage driver.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	opts := []repository.Option{
		repository.WithTimeout(cfg.StorageTimeout()),
		repository.WithMaxConns(cfg.DBMaxConns),
	}
	switch cfg.Driver() {
	case config.DriverPostgres:
		return repository.NewPostgresStore(ctx, cfg.DatabaseURL, opts...)
	case config.DriverSQLite:
		return repository.NewSQLiteStore(ctx, cfg.SQLitePath, opts...)
	case config.DriverMemory:
		return repository.NewMemoryStore(opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", config.ErrInvalidConfig, cfg.Driver())
	}
}

// start launches the feed dispatcher when the feed is enabled.
func (a *application) start() {
	if a.dispatcher != nil {
		go a.dispatcher.Run(context.Background())
	}
}

// close stops the feed before the store so no event outlives its source.
func (a *application) close(ctx context.Context, log logger.Logger) {
	if a.queue != nil {
		_ = a.queue.Close()
	}
	if a.dispatcher != nil {
		if err := a.dispatcher.Shutdown(ctx); err != nil {
			log.Warn(ctx, "feed dispatcher shutdown failed", logger.Error(err))
		}
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if err := a.store.Close(); err != nil {
		log.Error(ctx, "store close failed", logger.Error(err))
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

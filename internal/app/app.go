// Package app builds and holds the long-lived application services. It is
// the composition root: Build reads the typed config, constructs the record
// store, snapshot archive, notifiers, progress hub, and cycle runner, and
// hands back an App that can run one-shot cycles or serve the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/api"
	"github.com/jobradar/jobradar/internal/archive"
	archivegcs "github.com/jobradar/jobradar/internal/archive/gcs"
	archivelocal "github.com/jobradar/jobradar/internal/archive/local"
	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/cycle"
	"github.com/jobradar/jobradar/internal/fetch"
	"github.com/jobradar/jobradar/internal/filter"
	"github.com/jobradar/jobradar/internal/logging"
	"github.com/jobradar/jobradar/internal/notify"
	"github.com/jobradar/jobradar/internal/progress"
	progresssinks "github.com/jobradar/jobradar/internal/progress/sinks"
	"github.com/jobradar/jobradar/internal/reconcile"
	"github.com/jobradar/jobradar/internal/source"
	"github.com/jobradar/jobradar/internal/store"
	memorystore "github.com/jobradar/jobradar/internal/store/memory"
	pgstore "github.com/jobradar/jobradar/internal/store/postgres"
	"github.com/jobradar/jobradar/internal/telemetry"
)

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	runner    *cycle.Runner
	apiServer *api.Server

	records        store.RecordStore
	snapshots      archive.Store
	notifier       notify.Notifier
	progressHub    *progress.Hub
	storageClient  *storage.Client
	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies from the configuration.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := &App{cfg: cfg, logger: logger}
	app.logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Provider),
		zap.String("archive", cfg.Archive.Provider),
	)

	tp, err := telemetry.InitTracerProvider(ctx, "jobradar")
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerShutdown = tp.Shutdown

	if err = setupRecords(ctx, app); err != nil {
		return nil, err
	}
	if err = setupArchive(ctx, app); err != nil {
		return nil, err
	}
	if err = setupNotifiers(ctx, app); err != nil {
		return nil, err
	}
	emitter, err := setupProgress(ctx, app)
	if err != nil {
		return nil, err
	}

	app.runner, err = setupRunner(app, emitter)
	if err != nil {
		return nil, err
	}

	app.apiServer = api.NewServer(app.runner, app.records, logger.Named("api"))
	return app, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// RunCycle executes a single synchronous sync cycle.
func (a *App) RunCycle(ctx context.Context) (cycle.Result, error) {
	return a.runner.Run(ctx)
}

// Serve starts the HTTP API and blocks until the context is canceled or a
// termination signal arrives, then drains in-flight requests. Closing the
// App afterwards is the caller's job.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout(),
		// Must outlast a worst-case synchronous cycle: POST /v1/sync holds
		// the connection until the cycle completes.
		WriteTimeout: a.cfg.Server.WriteTimeout(),
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
		return err
	}
	return nil
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.logger.Warn("notifier close failed", zap.Error(err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.records != nil {
		if err := a.records.Close(); err != nil {
			a.logger.Warn("record store close failed", zap.Error(err))
		}
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}

func setupRecords(ctx context.Context, app *App) error {
	switch app.cfg.Database.Provider {
	case config.DBPostgres:
		st, err := pgstore.New(ctx, pgstore.Config{
			DSN:             app.cfg.Database.DSN,
			Table:           app.cfg.Database.Table,
			MaxConns:        int32(app.cfg.Database.MaxConns),
			MinConns:        int32(app.cfg.Database.MinConns),
			MaxConnLifetime: app.cfg.Database.MaxConnLifetime(),
		})
		if err != nil {
			return fmt.Errorf("record store init failed: %w", err)
		}
		if err := st.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("record store schema init failed: %w", err)
		}
		app.records = st
		app.logger.Info("using postgres record store", zap.String("table", app.cfg.Database.Table))
	case config.DBMemory:
		app.records = memorystore.New()
		app.logger.Info("using in-memory record store")
	default:
		return fmt.Errorf("unknown database provider: %s", app.cfg.Database.Provider)
	}
	return nil
}

func setupArchive(ctx context.Context, app *App) error {
	switch app.cfg.Archive.Provider {
	case config.ArchiveGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storageClient = client
		app.snapshots, err = archivegcs.New(client, archivegcs.Config{
			Bucket: app.cfg.Archive.Bucket,
			Prefix: app.cfg.Archive.Prefix,
		})
		if err != nil {
			return fmt.Errorf("gcs snapshot store init failed: %w", err)
		}
		app.logger.Info("using GCS snapshot archive", zap.String("bucket", app.cfg.Archive.Bucket))
	case config.ArchiveLocal:
		st, err := archivelocal.New(archivelocal.Config{BaseDir: app.cfg.Archive.LocalDir})
		if err != nil {
			return fmt.Errorf("local snapshot store init failed: %w", err)
		}
		app.snapshots = st
		app.logger.Info("using local snapshot archive", zap.String("dir", app.cfg.Archive.LocalDir))
	case config.ArchiveNoop:
		app.snapshots = archive.NoOp{}
		app.logger.Info("snapshot archiving disabled")
	default:
		return fmt.Errorf("unknown archive provider: %s", app.cfg.Archive.Provider)
	}
	return nil
}

func setupNotifiers(ctx context.Context, app *App) error {
	notifiers := []notify.Notifier{notify.NewLog(app.logger.Named("notify"))}

	if url := app.cfg.Notify.WebhookURL; url != "" {
		notifiers = append(notifiers, notify.NewWebhook(url, app.cfg.Notify.WebhookTimeout()))
		app.logger.Info("webhook notifications enabled")
	}
	if ps := app.cfg.Notify.PubSub; ps.Enabled() {
		n, err := notify.NewPubSub(ctx, ps.ProjectID, ps.TopicID)
		if err != nil {
			return fmt.Errorf("pubsub notifier init failed: %w", err)
		}
		notifiers = append(notifiers, n)
		app.logger.Info("pubsub notifications enabled",
			zap.String("project", ps.ProjectID),
			zap.String("topic", ps.TopicID),
		)
	}

	app.notifier = notify.NewMulti(notifiers...)
	return nil
}

func setupProgress(ctx context.Context, app *App) (progress.Emitter, error) {
	if !app.cfg.Progress.Enabled {
		app.logger.Info("progress tracking disabled")
		return nil, nil
	}

	promSink, err := progresssinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("progress metrics init failed: %w", err)
	}
	sinkList := []progress.Sink{promSink}
	if app.cfg.Progress.LogEvents {
		sinkList = append(sinkList, progresssinks.NewLogSink(app.logger.Named("progress_log")))
	}

	hubCfg := progress.Config{
		BufferSize:     app.cfg.Progress.BufferSize,
		MaxBatchEvents: app.cfg.Progress.Batch.MaxEvents,
		MaxBatchWait:   app.cfg.Progress.Batch.MaxWait(),
		SinkTimeout:    app.cfg.Progress.SinkTimeout(),
		BaseContext:    ctx,
		Logger:         app.logger.Named("progress_hub"),
	}
	app.progressHub = progress.NewHub(hubCfg, sinkList...)
	app.logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return app.progressHub, nil
}

func setupRunner(app *App, emitter progress.Emitter) (*cycle.Runner, error) {
	fetcher := source.NewPageFetcher(source.FetcherConfig{
		UserAgent:      app.cfg.HTTP.UserAgent,
		RequestTimeout: app.cfg.HTTP.Timeout(),
		PerHostRPS:     app.cfg.HTTP.PerHostRPS,
		PerHostBurst:   app.cfg.HTTP.PerHostBurst,
	}, app.logger.Named("pagefetch"))

	adapters := source.BuildAdapters(app.cfg.Sources, fetcher, app.snapshots, app.logger.Named("source"))
	if len(adapters) == 0 {
		app.logger.Warn("no boards configured, cycles will fetch nothing")
	}

	fl, err := filter.New(filter.Config{
		Mode:    app.cfg.Filter.Mode,
		Role:    app.cfg.Filter.RoleKeywords,
		Include: app.cfg.Filter.IncludeKeywords,
		Exclude: app.cfg.Filter.ExcludeKeywords,
	})
	if err != nil {
		return nil, fmt.Errorf("filter init failed: %w", err)
	}

	orch := fetch.New(fetch.Config{
		Timeout:      app.cfg.Fetch.Timeout(),
		MaxAttempts:  app.cfg.Fetch.MaxAttempts,
		RetryBackoff: app.cfg.Fetch.Backoff(),
	}, app.logger.Named("fetch"))

	runner, err := cycle.New(cycle.Config{
		Adapters:      adapters,
		Orchestrator:  orch,
		Filter:        fl,
		Engine:        reconcile.New(app.records, app.logger.Named("reconcile")),
		Records:       app.records,
		Notifier:      app.notifier,
		Emitter:       emitter,
		Logger:        app.logger.Named("cycle"),
		RetentionDays: app.cfg.Reconcile.RetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("cycle runner init failed: %w", err)
	}
	return runner, nil
}

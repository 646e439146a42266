package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/migrator/internal/application/migrator"
	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/cache"
	"github.com/erp/migrator/internal/infrastructure/config"
	"github.com/erp/migrator/internal/infrastructure/logger"
	"github.com/erp/migrator/internal/infrastructure/persistence"
	"github.com/erp/migrator/internal/infrastructure/shopify"
	"github.com/erp/migrator/internal/infrastructure/storage"
	"github.com/erp/migrator/internal/infrastructure/telemetry"
)

const shutdownTimeout = 10 * time.Second

// runtime owns everything a command opens. Resources are released in
// reverse order of opening.
type runtime struct {
	cfg     *config.Config
	log     *zap.Logger
	tracer  *telemetry.TracerProvider
	closers []func(ctx context.Context) error
}

func newRuntime(ctx context.Context, path string) (*runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	r := &runtime{cfg: cfg, log: log}
	r.onClose(func(context.Context) error {
		_ = logger.Sync(log)
		return nil
	})

	tcfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}
	tp, err := telemetry.NewTracerProvider(ctx, tcfg, log)
	if err != nil {
		// Tracing is optional; a missing collector must not block a migration
		log.Warn("Failed to initialize tracing, continuing without it", zap.Error(err))
	} else {
		r.tracer = tp
		r.onClose(tp.Shutdown)
	}

	if r.tracingEnabled() && cfg.Telemetry.Logs {
		lp, err := telemetry.NewLoggerProvider(ctx, tcfg, log)
		if err != nil {
			log.Warn("Failed to initialize log export, continuing without it", zap.Error(err))
		} else {
			r.onClose(lp.Shutdown)
			r.log = lp.Bridge(log, telemetry.DefaultServiceName, log.Level())
			log = r.log
		}
	}

	log.Debug("Configuration loaded",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("database_driver", cfg.Database.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("media_storage", cfg.Storage.Enabled),
	)
	return r, nil
}

func (r *runtime) tracingEnabled() bool {
	return r.tracer != nil && r.tracer.IsEnabled()
}

func (r *runtime) onClose(fn func(ctx context.Context) error) {
	r.closers = append(r.closers, fn)
}

// Close releases every resource. It is safe to call more than once.
func (r *runtime) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Engine wiring
// ---------------------------------------------------------------------------

// engine opens the entity store and assembles the shared migration engine
func (r *runtime) engine() (*migrator.Engine, error) {
	cfg := r.cfg

	db, err := persistence.NewDatabase(&cfg.Database, r.log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	r.onClose(func(context.Context) error { return db.Close() })

	if err := telemetry.InstrumentDB(db.DB, telemetry.DBTracingConfig{
		Enabled:  r.tracingEnabled() && cfg.Telemetry.DBTracing,
		DBSystem: cfg.Database.Driver,
	}, r.log); err != nil {
		return nil, err
	}

	// Postgres schemas are owned by `migrator db up`
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			return nil, err
		}
	}

	lock, err := cache.NewRunLockFactory(cfg.Redis, cfg.Migration.LockTTL, cache.WithLogger(r.log)).CreateLock()
	if err != nil {
		return nil, fmt.Errorf("failed to create run lock: %w", err)
	}
	r.onClose(func(context.Context) error { return lock.Close() })

	media, err := r.mediaStore()
	if err != nil {
		return nil, err
	}

	return migrator.NewEngine(persistence.NewGormEntityStore(db.DB),
		migrator.WithRunLock(lock),
		migrator.WithLookupCache(cache.NewLookupCache()),
		migrator.WithMediaStore(media),
		migrator.WithRetryPolicy(migrator.RetryPolicy{
			MaxAttempts: cfg.Migration.RetryAttempts,
			Delay:       cfg.Migration.RetryDelay,
			Retryable:   migration.IsRetryable,
		}),
		migrator.WithPageDelay(cfg.Migration.PageDelay),
		migrator.WithCacheResetEvery(cfg.Migration.CacheResetEvery),
		migrator.WithWeightUnit(cfg.Migration.WeightUnit),
		migrator.WithLogger(r.log),
	), nil
}

func (r *runtime) mediaStore() (migration.MediaStore, error) {
	if !r.cfg.Storage.Enabled {
		return storage.NewPassthroughMediaStore(), nil
	}
	s3, err := storage.NewS3MediaStore(&r.cfg.Storage, storage.WithLogger(r.log))
	if err != nil {
		return nil, fmt.Errorf("failed to create media store: %w", err)
	}
	return s3, nil
}

// shopify builds the Admin API client for the remote commands
func (r *runtime) shopify() (*shopify.Client, error) {
	if err := r.cfg.ValidateRemote(); err != nil {
		return nil, err
	}

	sc := shopify.NewConfig(r.cfg.Shopify.Domain, r.cfg.Shopify.AccessToken)
	if r.cfg.Shopify.APIVersion != "" {
		sc.APIVersion = r.cfg.Shopify.APIVersion
	}
	if r.cfg.Shopify.Timeout > 0 {
		sc.Timeout = r.cfg.Shopify.Timeout
	}
	sc.DetailDelay = r.cfg.Migration.DetailDelay

	client, err := shopify.NewClient(sc, shopify.WithLogger(r.log))
	if err != nil {
		return nil, fmt.Errorf("failed to create shopify client: %w", err)
	}
	return client, nil
}

// ---------------------------------------------------------------------------
// Running importers
// ---------------------------------------------------------------------------

type importer interface {
	Run(ctx context.Context) (*migrator.RunResult, error)
}

// run executes an importer and reports its totals. A run stopped early
// prints the cursor to resume from.
func (r *runtime) run(ctx context.Context, name string, imp importer) error {
	start := time.Now()
	result, err := imp.Run(ctx)
	if r.tracingEnabled() {
		if ferr := r.tracer.ForceFlush(context.WithoutCancel(ctx)); ferr != nil {
			r.log.Warn("Failed to export run spans", zap.Error(ferr))
		}
	}
	if result != nil {
		fields := []zap.Field{
			zap.String("command", name),
			zap.Int("processed", result.Processed),
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
			zap.Int("pages", result.Pages),
			zap.Duration("elapsed", time.Since(start)),
		}
		if result.NextCursor != "" {
			fields = append(fields, zap.String("next", result.NextCursor))
		}
		r.log.Info("Migration finished", fields...)
		if result.NextCursor != "" {
			fmt.Printf("To continue, run: migrator %s --next '%s'\n", name, result.NextCursor)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

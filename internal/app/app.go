// Package app wires configuration, storage and services into a running
// HTTP server.
package app

import (
	"context"
	"fmt"

	"pipeline-hub/internal/auth"
	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/common/logging"
	"pipeline-hub/internal/common/utils"
	"pipeline-hub/internal/config"
	"pipeline-hub/internal/locks"
	"pipeline-hub/internal/pipelines"
	"pipeline-hub/internal/push"
	"pipeline-hub/internal/redis"
	"pipeline-hub/internal/storage"
	"pipeline-hub/internal/triggers"
	"pipeline-hub/internal/webhooks"

	// Storage adapters register themselves with the storage registry.
	_ "pipeline-hub/internal/storage/memory"
	_ "pipeline-hub/internal/storage/sqlstore"
)

// App holds all the application dependencies.
type App struct {
	Config      *config.Config
	Storage     storage.Storage
	RedisClient *redis.Client
	Auth        *auth.Auth
	Push        *push.Service
	Transport   *push.BreakerTransport
	Pipelines   *pipelines.Service
	Webhooks    *webhooks.Service
	Dispatcher  *triggers.Dispatcher
	Scheduler   *triggers.Scheduler
	Logger      logging.Logger
}

// New creates the application with every dependency initialised. Redis is
// optional; without it rate limits and schedule claims stay in process.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	if err := app.initializeStorage(ctx); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(); err != nil {
		app.Logger.Warn("Redis initialization failed, continuing without Redis",
			logging.Field{Key: "error", Value: err.Error()})
	}

	if err := app.initializePush(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.Auth = auth.New(app.Storage, cfg)
	app.Pipelines = pipelines.NewService(app.Storage, nil)
	app.Webhooks = webhooks.NewService(app.Storage, app.Pipelines, cfg.PublicBaseURL)
	app.Dispatcher = triggers.NewDispatcher(app.Storage, app.Pipelines, app.Push)

	app.Scheduler = triggers.NewScheduler(app.Storage, app.Push, app.claimer())
	app.Pipelines.SetScheduler(app.Scheduler)
	if err := app.Scheduler.Start(ctx); err != nil {
		app.Cleanup()
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	return app, nil
}

func (app *App) initializeStorage(ctx context.Context) error {
	switch app.Config.DatabaseType {
	case "postgres", "postgresql":
		app.Logger.Info("Database: PostgreSQL",
			logging.Field{Key: "host", Value: app.Config.PostgresHost},
			logging.Field{Key: "port", Value: app.Config.PostgresPort},
			logging.Field{Key: "database", Value: app.Config.PostgresDB},
		)
	case "memory":
		app.Logger.Warn("Database: in-memory, data is lost on restart")
	default:
		app.Logger.Info("Database: SQLite", logging.Field{Key: "path", Value: app.Config.DatabasePath})
	}

	// Databases started alongside the app may not accept connections yet.
	retry := utils.DefaultRetryConfig()
	retry.Retryable = func(err error) bool { return !errors.IsType(err, errors.ErrTypeConfig) }

	err := utils.RetryWithBackoff(ctx, retry, func() error {
		store, err := storage.NewStorage(app.Config)
		if err != nil {
			app.Logger.Warn("Storage not ready", logging.Field{Key: "error", Value: err.Error()})
			return err
		}
		app.Storage = store
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	return nil
}

// claimer picks the lock backend for scheduled firings.
func (app *App) claimer() locks.Claimer {
	if app.RedisClient == nil {
		return locks.NewLocalClaimer()
	}
	claimer, err := locks.NewRedsyncClaimer(app.RedisClient)
	if err != nil {
		app.Logger.Warn("Distributed locks unavailable, using local claims", logging.Field{Key: "error", Value: err.Error()})
		return locks.NewLocalClaimer()
	}
	return claimer
}

// Cleanup releases all resources.
func (app *App) Cleanup() {
	if app.Scheduler != nil {
		app.Scheduler.Stop()
	}
	if app.Dispatcher != nil {
		app.Dispatcher.Wait()
	}
	if app.Storage != nil {
		app.Storage.Close()
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}

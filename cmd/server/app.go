package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/graphgen-api/internal/api"
	"github.com/phrazzld/graphgen-api/internal/catalog"
	"github.com/phrazzld/graphgen-api/internal/config"
	"github.com/phrazzld/graphgen-api/internal/credential"
	"github.com/phrazzld/graphgen-api/internal/events"
	"github.com/phrazzld/graphgen-api/internal/job"
	"github.com/phrazzld/graphgen-api/internal/pipeline"
	"github.com/phrazzld/graphgen-api/internal/platform/llm"
	applog "github.com/phrazzld/graphgen-api/internal/platform/logger"
	"github.com/phrazzld/graphgen-api/internal/platform/postgres"
	"github.com/phrazzld/graphgen-api/internal/redact"
	"github.com/phrazzld/graphgen-api/internal/service/auth"
	"github.com/phrazzld/graphgen-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil unless database.url is set.
	db         *sql.DB
	eventStore *postgres.JobEventStore

	credentials credential.Store
	catalog     catalog.Catalog
	jwtService  auth.JWTService

	emitter *events.InMemoryEventEmitter
	queue   *task.TaskQueue
	pool    *task.WorkerPool
	jobs    *job.Manager
}

// appOptions adjusts how newApplication builds its collaborators.
type appOptions struct {
	// runner replaces the GraphGen pipeline, mainly for tests.
	runner pipeline.Runner
	// credentials replaces the process environment.
	credentials credential.Store
}

// newApplication wires the job manager, its worker pool and the optional audit
// store. The worker pool is started; callers must call shutdown.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*application, error) {
	app := &application{
		config:      cfg,
		logger:      logger,
		credentials: opts.credentials,
		catalog: catalog.Catalog{
			ConfigRoot:    cfg.Paths.ConfigRoot,
			ResourcesRoot: cfg.Paths.ResourcesRoot,
		},
	}
	if app.credentials == nil {
		app.credentials = credential.ProcessEnv{}
	}

	if cfg.Auth.AuthEnabled() {
		var err error
		app.jwtService, err = auth.NewJWTService(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		logger.Info("JWT authentication enabled",
			"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)
	} else {
		logger.Warn("auth.jwt_secret is not set, API requests are not authenticated")
	}

	app.emitter = events.NewInMemoryEventEmitter(logger)
	if cfg.Database.AuditEnabled() {
		db, err := postgres.Open(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		app.db = db
		app.eventStore = postgres.NewJobEventStore(db, logger)
		app.emitter.RegisterHandler(app.eventStore)
		logger.Info("job event audit store enabled")
	}

	runner := opts.runner
	if runner == nil {
		models := llm.NewFactory(app.credentials, llm.DefaultRetryConfig(), logger)
		runner = pipeline.NewGraphGen(models, logger, applog.ParseLevel(cfg.Server.LogLevel))
	}

	app.queue = task.NewTaskQueue(cfg.Jobs.QueueSize, logger)
	app.pool = task.NewWorkerPool(app.queue, task.WorkerPoolConfig{
		WorkerCount: cfg.Jobs.WorkerCount,
	}, logger)
	app.pool.SetErrorHandler(taskFailureLogger(logger))

	manager, err := job.NewManager(job.ManagerConfig{
		PipelineName: cfg.Jobs.PipelineName,
	}, runner, app.scope(), app.queue, app.emitter, logger)
	if err != nil {
		app.closeDB()
		return nil, fmt.Errorf("failed to create job manager: %w", err)
	}
	app.jobs = manager

	app.pool.Start()
	logger.Info("application initialized",
		"worker_count", cfg.Jobs.WorkerCount,
		"queue_size", cfg.Jobs.QueueSize,
		"credential_mode", cfg.Jobs.CredentialMode)
	return app, nil
}

// taskFailureLogger logs failed pool tasks against the job they ran for.
// Panics are logged with their stack; ordinary pipeline failures are already
// recorded on the job and only warrant a warning.
func taskFailureLogger(logger *slog.Logger) func(task.Task, error) {
	return func(t task.Task, err error) {
		attrs := []any{"task_id", t.ID(), "task_type", t.Type(), "error", redact.Error(err)}
		if owned, ok := t.(task.Owned); ok && owned.Owner() != "" {
			attrs = append(attrs, "job_id", owned.Owner())
		}

		var panicErr *task.PanicError
		if errors.As(err, &panicErr) {
			logger.Error("pipeline task panicked", append(attrs, "stack", string(panicErr.Stack))...)
			return
		}
		logger.Warn("pipeline task failed", attrs...)
	}
}

// scope picks how per-job credentials reach the pipeline.
func (app *application) scope() credential.Scope {
	if app.config.Jobs.CredentialMode == "context" {
		return credential.ContextScope{}
	}
	return credential.NewEnvGuard(app.credentials)
}

// eventLister returns the audit store as an api.EventLister, or nil when
// auditing is disabled.
func (app *application) eventLister() api.EventLister {
	if app.eventStore == nil {
		return nil
	}
	return app.eventStore
}

// shutdown waits for running jobs to finish, drains the worker pool and closes
// the database. Jobs still running when ctx is done are abandoned.
func (app *application) shutdown(ctx context.Context) error {
	var errs []error

	if err := app.jobs.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("jobs still running: %w", err))
	}
	app.queue.Close()
	if err := app.pool.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	app.closeDB()

	app.logger.Info("application shutdown completed")
	return errors.Join(errs...)
}

func (app *application) closeDB() {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database connection", "error", err)
	}
}

package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/graphgen-api/internal/artifact"
	"github.com/phrazzld/graphgen-api/internal/credential"
	"github.com/phrazzld/graphgen-api/internal/events"
	"github.com/phrazzld/graphgen-api/internal/pipeline"
	"github.com/phrazzld/graphgen-api/internal/redact"
	"github.com/phrazzld/graphgen-api/internal/task"
)

// TaskTypePipelineRun is the task type of pipeline executions.
const TaskTypePipelineRun = "pipeline_run"

// CreateRequest is a job submission.
type CreateRequest struct {
	// ConfigPath names the pipeline YAML configuration. Required.
	ConfigPath string `json:"config_path" validate:"required"`
	// OutputDir is where run directories are created. Defaults to the cache
	// directory next to the config's parent directory.
	OutputDir string `json:"output_dir,omitempty"`
	// Overrides is merged onto the loaded configuration.
	Overrides map[string]any `json:"overrides,omitempty"`
	// LLMSettings overrides credentials for this job only.
	LLMSettings *credential.Settings `json:"llm_settings,omitempty" validate:"omitempty"`
}

// LogView is a job's log file and its content.
type LogView struct {
	JobID   string `json:"job_id"`
	LogFile string `json:"log_file,omitempty"`
	Content string `json:"content"`
}

// ManagerConfig holds the Manager's settings.
type ManagerConfig struct {
	// PipelineName is the directory under <output>/data holding run directories.
	PipelineName string
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Manager is the job orchestrator.
type Manager struct {
	registry     *Registry
	runner       pipeline.Runner
	scope        credential.Scope
	queue        task.TaskQueueWriter
	emitter      events.EventEmitter
	runIDs       *RunIDAllocator
	pipelineName string
	now          func() time.Time
	logger       *slog.Logger

	// executions tracks owning goroutines so shutdown can wait for them.
	executions sync.WaitGroup
}

// NewManager creates a Manager. Executions are handed to queue, which must be
// drained by a running worker pool. emitter may be nil.
func NewManager(
	cfg ManagerConfig,
	runner pipeline.Runner,
	scope credential.Scope,
	queue task.TaskQueueWriter,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (*Manager, error) {
	if runner == nil {
		return nil, errors.New("runner cannot be nil")
	}
	if scope == nil {
		return nil, errors.New("credential scope cannot be nil")
	}
	if queue == nil {
		return nil, errors.New("task queue cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.PipelineName == "" {
		cfg.PipelineName = "graphgen"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{
		registry:     NewRegistry(),
		runner:       runner,
		scope:        scope,
		queue:        queue,
		emitter:      emitter,
		runIDs:       NewRunIDAllocator(cfg.Now),
		pipelineName: cfg.PipelineName,
		now:          func() time.Time { return cfg.Now().UTC() },
		logger:       logger.With("component", "job_manager"),
	}, nil
}

// Submit validates req, records a queued job and starts its execution in the
// background. It returns the job as recorded; by the time the caller looks at
// it again the status may already have advanced.
func (m *Manager) Submit(ctx context.Context, req CreateRequest) (Job, error) {
	configPath, err := resolveConfigPath(req.ConfigPath)
	if err != nil {
		return Job{}, err
	}

	outputDir := filepath.Join(filepath.Dir(filepath.Dir(configPath)), "cache")
	if strings.TrimSpace(req.OutputDir) != "" {
		if outputDir, err = absPath(req.OutputDir); err != nil {
			return Job{}, fmt.Errorf("%w: output_dir: %v", ErrValidation, err)
		}
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Job{}, fmt.Errorf("%w: cannot create output_dir %s: %v", ErrValidation, outputDir, err)
	}

	var settings credential.Settings
	if req.LLMSettings != nil {
		settings = *req.LLMSettings
	}

	now := m.now()
	j := Job{
		ID:         uuid.NewString(),
		Status:     StatusQueued,
		ConfigPath: configPath,
		OutputDir:  outputDir,
		Overrides:  pipeline.CopyMap(req.Overrides),
		LLM:        settings,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.registry.Insert(j); err != nil {
		return Job{}, fmt.Errorf("failed to register job: %w", err)
	}

	m.logger.InfoContext(ctx, "job queued",
		"job_id", j.ID,
		"config_path", configPath,
		"output_dir", outputDir,
		"llm_overrides", len(settings.EnvVars()))
	m.emit(j)

	m.executions.Add(1)
	go func() {
		defer m.executions.Done()
		m.runExecution(j.ID)
	}()

	return m.registry.Get(j.ID)
}

// Wait blocks until every execution started so far has committed its terminal
// state, or ctx is done.
//
// When ctx ends first, the goroutine waiting on the executions stays blocked
// until they finish. Wait is meant for shutdown, where the process exits
// shortly after.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.executions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the job with id.
func (m *Manager) Get(id string) (Job, error) {
	return m.registry.Get(id)
}

// List returns all jobs, most recently created first.
func (m *Manager) List() []Job {
	return m.registry.List()
}

// Responses returns the external view of all jobs, most recently created first.
func (m *Manager) Responses() []Response {
	jobs := m.registry.List()
	out := make([]Response, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Response())
	}
	return out
}

// ReadLog returns the job's log. Content is empty while no log file exists.
func (m *Manager) ReadLog(id string) (LogView, error) {
	j, err := m.registry.Get(id)
	if err != nil {
		return LogView{}, err
	}

	view := LogView{JobID: j.ID, LogFile: j.LogFile}
	if j.LogFile == "" {
		return view, nil
	}
	data, err := os.ReadFile(j.LogFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return view, nil
		}
		return LogView{}, fmt.Errorf("failed to read log for job %s: %w", id, err)
	}
	view.Content = string(data)
	return view, nil
}

// ListArtifacts returns the regular files directly inside the job's run
// directory. A job without a run directory has none.
func (m *Manager) ListArtifacts(id string) ([]artifact.Artifact, error) {
	j, err := m.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if j.RunPath == "" {
		return []artifact.Artifact{}, nil
	}
	return artifact.List(j.RunPath)
}

// ResolveArtifact maps a caller-supplied path to a file inside the job's run
// directory.
func (m *Manager) ResolveArtifact(id, relPath string) (string, error) {
	j, err := m.registry.Get(id)
	if err != nil {
		return "", err
	}
	if j.RunPath == "" {
		return "", fmt.Errorf("%w: job %s has no run directory", ErrNotFound, id)
	}
	path, err := artifact.Resolve(j.RunPath, relPath)
	if err != nil {
		return "", fmt.Errorf("%w: artifact %q", ErrNotFound, relPath)
	}
	return path, nil
}

// execution carries what the owning goroutine learns while running a job.
type execution struct {
	runID   string
	runDir  string
	cfg     pipeline.Config
	logFile string
}

// runExecution is the single writer for the job after Submit.
func (m *Manager) runExecution(id string) {
	ctx := context.Background()
	log := m.logger.With("job_id", id)

	j, err := m.registry.Update(id, func(j *Job) error {
		now := m.now()
		j.Status = StatusRunning
		j.StartedAt = &now
		j.UpdatedAt = now
		return nil
	})
	if err != nil {
		log.Error("failed to mark job running", "error", err)
		return
	}
	m.emit(j)
	log.InfoContext(ctx, "job started")

	exec, runErr := m.execute(ctx, j, log)
	m.commit(j, exec, runErr, log)
}

// execute loads and merges the configuration, creates the run directory and
// runs the pipeline on a worker under the job's credentials.
func (m *Manager) execute(ctx context.Context, j Job, log *slog.Logger) (*execution, error) {
	exec := &execution{}

	base, err := pipeline.LoadConfig(j.ConfigPath)
	if err != nil {
		return exec, pipeline.NewError(pipeline.CauseConfig, err)
	}
	exec.cfg = pipeline.Merge(base, j.Overrides)

	parent := filepath.Join(j.OutputDir, "data", m.pipelineName)
	exec.runID, exec.runDir, err = m.runIDs.CreateRunDir(parent)
	if err != nil {
		return exec, pipeline.NewError(pipeline.CauseFilesystem, err)
	}
	exec.logFile = pipeline.LogFilePath(exec.runDir, exec.cfg)
	log = log.With("run_id", exec.runID)
	log.InfoContext(ctx, "run directory created", "run_path", exec.runDir, "mode", exec.cfg.Mode())

	var result pipeline.Result
	t := task.NewFuncTask(TaskTypePipelineRun, func(taskCtx context.Context) error {
		return m.scope.Run(taskCtx, j.LLM, func(scopedCtx context.Context) error {
			var runErr error
			result, runErr = m.runner.Run(scopedCtx, exec.cfg, exec.runDir)
			return runErr
		})
	}).WithOwner(j.ID)
	if err := m.queue.Enqueue(ctx, t); err != nil {
		return exec, pipeline.NewError(pipeline.CauseQueue, err)
	}

	if err := <-t.Done(); err != nil {
		var panicErr *task.PanicError
		if errors.As(err, &panicErr) {
			log.Error("pipeline panicked", "panic", fmt.Sprint(panicErr.Value), "stack", string(panicErr.Stack))
			return exec, pipeline.NewError(pipeline.CausePanic, err)
		}
		return exec, pipeline.AsError(err, pipeline.CausePipeline)
	}

	if result.LogFile != "" {
		exec.logFile = result.LogFile
	}
	return exec, nil
}

// commit writes the configuration snapshot and records the terminal state.
func (m *Manager) commit(j Job, exec *execution, runErr error, log *slog.Logger) {
	if exec.runDir != "" {
		snapshot := filepath.Join(exec.runDir, pipeline.ConfigSnapshotName)
		if err := pipeline.SaveConfig(snapshot, exec.cfg); err != nil {
			if runErr == nil {
				runErr = pipeline.NewError(pipeline.CauseFilesystem, err)
			} else {
				log.Warn("failed to write config snapshot", "error", err)
			}
		}
	}

	// Only a log file the run actually produced is recorded.
	logFile := ""
	if exec.logFile != "" {
		if _, err := os.Stat(exec.logFile); err == nil {
			logFile = exec.logFile
		}
	}

	var failure *Failure
	if runErr != nil {
		pe := pipeline.AsError(runErr, pipeline.CausePipeline)
		failure = &Failure{
			Cause:   pe.Cause,
			Message: redact.Values(redact.String(pe.Message), j.LLM.Secrets()...),
		}
	}

	final, err := m.registry.Update(j.ID, func(rec *Job) error {
		now := m.now()
		rec.UpdatedAt = now
		rec.CompletedAt = &now
		rec.RunID = exec.runID
		rec.RunPath = exec.runDir

		rec.LogFile = logFile

		if failure == nil {
			rec.Status = StatusSucceeded
			return nil
		}

		rec.Status = StatusFailed
		rec.Failure = failure
		rec.Error = failure.Message
		return nil
	})
	if err != nil {
		log.Error("failed to commit job result", "error", err)
		return
	}
	m.emit(final)

	if failure != nil {
		log.Error("job failed",
			"run_id", final.RunID,
			"cause", failure.Cause,
			"error", failure.Message)
		return
	}
	log.Info("job succeeded",
		"run_id", final.RunID,
		"run_path", final.RunPath,
		"duration_ms", final.CompletedAt.Sub(*final.StartedAt).Milliseconds())
}

func (m *Manager) emit(j Job) {
	if m.emitter == nil {
		return
	}
	event := events.NewJobEvent(j.ID, string(j.Status), j.UpdatedAt)
	event.RunID = j.RunID
	if j.Failure != nil {
		event.Cause = string(j.Failure.Cause)
		event.Message = j.Failure.Message
	}
	if err := m.emitter.EmitEvent(context.Background(), event); err != nil {
		m.logger.Warn("job event delivery failed", "job_id", j.ID, "status", j.Status, "error", err)
	}
}

// resolveConfigPath expands, absolutizes and canonicalizes path and checks it
// names a regular file.
func resolveConfigPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: config_path is required", ErrValidation)
	}
	abs, err := absPath(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrConfigNotFound, abs)
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrConfigNotFound, abs)
	}
	return resolved, nil
}

// absPath expands a leading ~ and returns the absolute, cleaned path.
func absPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

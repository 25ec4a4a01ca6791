package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phrazzld/graphgen-api/internal/credential"
	"github.com/phrazzld/graphgen-api/internal/platform/llm"
	"github.com/phrazzld/graphgen-api/internal/platform/logger"
)

// Artifact file names written by the GraphGen runner.
const (
	ChunksFileName     = "chunks.jsonl"
	JudgementsFileName = "judgements.jsonl"
	QAFileName         = "qa.json"
)

// ModelSource hands out chat models for pipeline roles.
type ModelSource interface {
	ForRole(ctx context.Context, role credential.Role) (llm.ChatModel, error)
}

// GraphGen is the Runner executing the GraphGen steps: insert, search,
// quiz_and_judge, partition and generate.
type GraphGen struct {
	models   ModelSource
	logger   *slog.Logger
	logLevel slog.Level
}

// NewGraphGen creates a GraphGen runner. Run logs go to a file in the run
// directory and are also forwarded to logger.
func NewGraphGen(models ModelSource, logger *slog.Logger, logLevel slog.Level) *GraphGen {
	return &GraphGen{models: models, logger: logger, logLevel: logLevel}
}

// Run implements Runner.
func (g *GraphGen) Run(ctx context.Context, cfg Config, workDir string) (Result, error) {
	if err := cfg.Require(
		[2]string{"read", "input_file"},
		[2]string{"generate", "mode"},
	); err != nil {
		return Result{}, NewError(CauseConfig, err)
	}
	if _, ok := modeInstructions[cfg.Mode()]; !ok {
		return Result{}, Errorf(CauseConfig, "unsupported generate.mode %q", cfg.Mode())
	}

	logPath := LogFilePath(workDir, cfg)
	runLog, closeLog, err := logger.NewRunLogger(logPath, g.logLevel, g.logger.Handler())
	if err != nil {
		return Result{}, NewError(CauseFilesystem, err)
	}
	defer func() {
		if cerr := closeLog(); cerr != nil {
			g.logger.Warn("failed to close run log", "path", logPath, "error", cerr)
		}
	}()

	runLog = runLog.With("run_id", RunID(workDir))
	ctx = logger.WithLogger(ctx, runLog)
	runLog.InfoContext(ctx, "graphgen run started", "mode", cfg.Mode(), "work_dir", workDir)

	result := Result{LogFile: logPath}

	chunks, err := g.insert(ctx, cfg, workDir)
	if err != nil {
		runLog.ErrorContext(ctx, "insert step failed", "error", err)
		return Result{}, err
	}
	result.Artifacts = append(result.Artifacts, ChunksFileName)

	g.search(ctx, cfg.Section("search"))

	var judgements []Judgement
	if cfg.Section("quiz_and_judge").Bool("enabled") {
		judgements, err = g.quizAndJudge(ctx, cfg.Section("quiz_and_judge"), chunks, workDir)
		if err != nil {
			runLog.ErrorContext(ctx, "quiz_and_judge step failed", "error", err)
			return Result{}, err
		}
		result.Artifacts = append(result.Artifacts, JudgementsFileName)
	}

	communities := partition(chunks, judgements, cfg.Section("partition"))
	runLog.InfoContext(ctx, "partition step finished", "communities", len(communities))

	if err := g.generate(ctx, cfg.Section("generate"), communities, workDir); err != nil {
		runLog.ErrorContext(ctx, "generate step failed", "error", err)
		return Result{}, err
	}
	result.Artifacts = append(result.Artifacts, QAFileName)

	runLog.InfoContext(ctx, "graphgen run finished", "artifacts", result.Artifacts)
	return result, nil
}

func (g *GraphGen) search(ctx context.Context, cfg Config) {
	if !cfg.Bool("enabled") {
		return
	}
	logger.FromContext(ctx).WarnContext(ctx, "search is enabled but no search backend is available, skipping",
		"search_types", cfg["search_types"])
}

// writeJSONLines writes one JSON document per line.
func writeJSONLines[T any](path string, items []T) error {
	f, err := os.Create(path)
	if err != nil {
		return NewError(CauseFilesystem, err)
	}
	enc := json.NewEncoder(f)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			_ = f.Close()
			return NewError(CauseFilesystem, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err))
		}
	}
	if err := f.Close(); err != nil {
		return NewError(CauseFilesystem, err)
	}
	return nil
}

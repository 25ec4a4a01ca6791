package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
)

// Runner executes one pipeline run.
type Runner interface {
	// Run blocks until the run finishes. workDir exists and is unique to the
	// run; its base name is the run id.
	Run(ctx context.Context, cfg Config, workDir string) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cfg Config, workDir string) (Result, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, cfg Config, workDir string) (Result, error) {
	return f(ctx, cfg, workDir)
}

// Result describes a successful run.
type Result struct {
	// LogFile is the absolute path of the run's log file.
	LogFile string
	// Artifacts lists the files written, relative to the working directory.
	Artifacts []string
}

// ConfigSnapshotName is the file the merged configuration is saved under in
// each run directory.
const ConfigSnapshotName = "config.yaml"

// LogFileName returns the log file name for a run.
func LogFileName(runID, mode string) string {
	return fmt.Sprintf("%s_%s.log", runID, mode)
}

// LogFilePath returns where the run in workDir writes its log for cfg.
func LogFilePath(workDir string, cfg Config) string {
	return filepath.Join(workDir, LogFileName(RunID(workDir), cfg.Mode()))
}

// RunID returns the run id encoded in a working directory path.
func RunID(workDir string) string {
	return filepath.Base(workDir)
}

// FormatRunID renders a numeric run id as used in directory and file names.
func FormatRunID(id int64) string {
	return strconv.FormatInt(id, 10)
}

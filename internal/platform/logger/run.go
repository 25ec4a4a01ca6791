package logger

import (
	"fmt"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// NewRunLogger creates a logger that writes human-readable text to the file at
// path and forwards every record to parent as well, so a pipeline run has its
// own log file while still appearing in the process log.
// The returned cleanup function closes the file.
func NewRunLogger(path string, level slog.Level, parent slog.Handler) (*slog.Logger, func() error, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run log %s: %w", path, err)
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: level})

	var handler slog.Handler = fileHandler
	if parent != nil {
		handler = slogmulti.Fanout(fileHandler, parent)
	}

	return slog.New(handler), file.Close, nil
}

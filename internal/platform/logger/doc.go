// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, carries request- and job-scoped loggers through
// context.Context, and fans out per-run pipeline logs to a dedicated file.
package logger

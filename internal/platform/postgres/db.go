package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	// registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DBTX is implemented by both *sql.DB and *sql.Tx, so stores work with either
// a connection pool or a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const pingTimeout = 5 * time.Second

// Open connects to databaseURL, configures the pool and verifies the
// connection with a ping.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, classifyPingError(err)
	}

	logger.Info("database connection established",
		"duration_ms", time.Since(start).Milliseconds())
	return db, nil
}

func classifyPingError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("database ping timed out after %s: %w", pingTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("network error connecting to database: %w", err)
	}
	return fmt.Errorf("failed to connect to database: %w", err)
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/graphgen-api/internal/events"
)

// JobEventStore records job lifecycle events in the job_events table. It is an
// audit trail: nothing reads it back to restore job state.
type JobEventStore struct {
	db     DBTX
	logger *slog.Logger
}

var _ events.EventHandler = (*JobEventStore)(nil)

// NewJobEventStore creates a JobEventStore.
func NewJobEventStore(db DBTX, logger *slog.Logger) *JobEventStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobEventStore{db: db, logger: logger.With("component", "job_event_store")}
}

// WithTx returns a store that runs its queries in tx.
func (s *JobEventStore) WithTx(tx *sql.Tx) *JobEventStore {
	return &JobEventStore{db: tx, logger: s.logger}
}

// HandleEvent implements events.EventHandler by recording the event.
func (s *JobEventStore) HandleEvent(ctx context.Context, event *events.JobEvent) error {
	return s.Record(ctx, event)
}

// Record inserts event. Recording the same event twice returns ErrDuplicate.
func (s *JobEventStore) Record(ctx context.Context, event *events.JobEvent) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidRecord)
	}

	query := `
		INSERT INTO job_events (id, job_id, status, run_id, cause, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.JobID,
		event.Status,
		nullString(event.RunID),
		nullString(event.Cause),
		nullString(event.Message),
		event.OccurredAt.UTC(),
	)
	if IsUniqueViolation(err) {
		// redelivery of an event already on record
		s.logger.WarnContext(ctx, "job event already recorded",
			"event_id", event.ID,
			"job_id", event.JobID)
		return fmt.Errorf("failed to record job event: %w", MapError(err))
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record job event",
			"job_id", event.JobID,
			"status", event.Status,
			"error", err)
		return fmt.Errorf("failed to record job event: %w", MapError(err))
	}
	return nil
}

// ListByJob returns the events recorded for jobID, oldest first.
func (s *JobEventStore) ListByJob(ctx context.Context, jobID string) ([]events.JobEvent, error) {
	query := `
		SELECT id, job_id, status, run_id, cause, message, occurred_at
		FROM job_events
		WHERE job_id = $1
		ORDER BY occurred_at ASC, recorded_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job events: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	out := []events.JobEvent{}
	for rows.Next() {
		var (
			id                    uuid.UUID
			e                     events.JobEvent
			runID, cause, message sql.NullString
			occurredAt            time.Time
		)
		if err := rows.Scan(&id, &e.JobID, &e.Status, &runID, &cause, &message, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan job event: %w", err)
		}
		e.ID = id
		e.RunID = runID.String
		e.Cause = cause.String
		e.Message = message.String
		e.OccurredAt = occurredAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job events: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

// PostgresJobStore mirrors queue jobs into durable records so operators
// can inspect status after the queue message is gone.
type PostgresJobStore struct {
	db *sql.DB
}

var _ ports.JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore wires a sql.DB implementation.
func NewPostgresJobStore(db *sql.DB) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

// Create inserts the durable record and returns its ID.
func (s *PostgresJobStore) Create(ctx context.Context, job domain.Job) (string, error) {
	id := uuid.NewString()

	payload, err := domain.EncodeJob(job)
	if err != nil {
		return "", fmt.Errorf("encode job record: %w", err)
	}

	query, args, err := psql.Insert("jobs").
		Columns("id", "queue_job_id", "type", "status", "attempts", "run_at", "payload", "last_error", "created_at", "updated_at").
		Values(id, job.ID, job.Type, domain.JobPending, job.Attempts, job.RunAt, payload, "", time.Now().UTC(), time.Now().UTC()).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build create job: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	return id, nil
}

// UpdateStatus advances the durable record as the worker moves the job
// through its lifecycle.
func (s *PostgresJobStore) UpdateStatus(ctx context.Context, dbJobID string, status domain.JobStatus, attempts int, lastError string) error {
	query, args, err := psql.Update("jobs").
		Set("status", status).
		Set("attempts", attempts).
		Set("last_error", lastError).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": dbJobID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update job: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

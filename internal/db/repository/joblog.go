// Package repository implements persistence over the SQLite job log.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
)

// JobLogRepo implements domain.JobLogRepository over database/sql.
type JobLogRepo struct {
	db *sql.DB
}

// NewJobLogRepo creates a new JobLogRepo.
func NewJobLogRepo(db *sql.DB) *JobLogRepo {
	return &JobLogRepo{db: db}
}

// Insert records one stage transition.
func (r *JobLogRepo) Insert(ctx context.Context, ev *domain.JobEvent) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO job_events (job_id, stage, status, detail) VALUES (?, ?, ?, ?)`,
		ev.JobID, ev.Stage, ev.Status, ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		ev.ID = id
	}
	return nil
}

// ListRecent returns the newest events across all jobs, newest first.
func (r *JobLogRepo) ListRecent(ctx context.Context, limit int) ([]domain.JobEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, job_id, stage, status, detail, created_at
		 FROM job_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent job events: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	return scanEvents(rows)
}

// ListForJob returns every event of one job in insertion order.
func (r *JobLogRepo) ListForJob(ctx context.Context, jobID string) ([]domain.JobEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, job_id, stage, status, detail, created_at
		 FROM job_events WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list job events for %s: %w", jobID, err)
	}
	defer rows.Close() //nolint:errcheck
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]domain.JobEvent, error) {
	var events []domain.JobEvent
	for rows.Next() {
		var ev domain.JobEvent
		if err := rows.Scan(&ev.ID, &ev.JobID, &ev.Stage, &ev.Status, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job events: %w", err)
	}
	return events, nil
}

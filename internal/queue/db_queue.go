package queue

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/checkfox/go_reachout/internal/logger"
)

// DBQueue keeps reach-out evaluation jobs in PostgreSQL. Each job targets one
// lead, and a lead has at most one pending job per type: repeated requests
// collapse into the earliest scheduled run.
type DBQueue struct {
	db *sql.DB
}

// NewDBQueue creates the queue over an existing connection and bootstraps its table
func NewDBQueue(ctx context.Context, db *sql.DB) (*DBQueue, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	queue := &DBQueue{db: db}

	if err := queue.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure reachout_jobs table: %w", err)
	}

	return queue, nil
}

func (q *DBQueue) ensureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS reachout_jobs (
			id BIGSERIAL PRIMARY KEY,
			job_type VARCHAR(50) NOT NULL,
			lead_id VARCHAR(64) NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			next_run_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			attempts INT NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			last_error TEXT,
			settled_at TIMESTAMPTZ
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_reachout_jobs_pending_lead
		ON reachout_jobs(job_type, lead_id)
		WHERE status = 'pending';

		CREATE INDEX IF NOT EXISTS idx_reachout_jobs_due
		ON reachout_jobs(next_run_at, id)
		WHERE status = 'pending';
	`

	_, err := q.db.ExecContext(ctx, query)
	return err
}

// Enqueue asks for the lead in payload to be evaluated now
func (q *DBQueue) Enqueue(ctx context.Context, jobType string, payload map[string]interface{}) error {
	return q.EnqueueWithDelay(ctx, jobType, payload, 0)
}

// EnqueueWithDelay asks for the lead in payload to be evaluated after delay.
// If the lead already waits for the same job type, only its run time moves,
// and only earlier.
func (q *DBQueue) EnqueueWithDelay(ctx context.Context, jobType string, payload map[string]interface{}, delay time.Duration) error {
	leadID, ok := GetLeadID(payload)
	if !ok {
		return fmt.Errorf("%w: missing lead_id", ErrInvalidPayload)
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	runAt := time.Now().Add(delay)

	query := `
		INSERT INTO reachout_jobs (job_type, lead_id, payload, next_run_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_type, lead_id) WHERE status = 'pending'
		DO UPDATE SET next_run_at = LEAST(reachout_jobs.next_run_at, EXCLUDED.next_run_at)
	`

	if _, err := q.db.ExecContext(ctx, query, jobType, leadID, payloadJSON, runAt); err != nil {
		if isDatabaseUnavailable(err) {
			return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		return fmt.Errorf("failed to queue %s for lead %s: %w", jobType, leadID, err)
	}

	logger.Debug(logger.WithLeadID(ctx, leadID), "Lead evaluation queued", "job_type", jobType, "delay", delay.String())
	return nil
}

// Dequeue claims the lead job that has been due longest, or returns nil when
// none is due. A claimed job leaves the pending set, so a new request for the
// same lead can be queued while this one runs.
func (q *DBQueue) Dequeue(ctx context.Context) (*Job, error) {
	// SKIP LOCKED keeps two workers from evaluating the same lead at once
	query := `
		UPDATE reachout_jobs
		SET status = 'processing', attempts = attempts + 1
		WHERE id = (
			SELECT id FROM reachout_jobs
			WHERE status = 'pending' AND next_run_at <= NOW()
			ORDER BY next_run_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, job_type, lead_id, payload, created_at, next_run_at, attempts
	`

	var job Job
	var payloadJSON []byte

	err := q.db.QueryRowContext(ctx, query).Scan(
		&job.ID,
		&job.Type,
		&job.LeadID,
		&payloadJSON,
		&job.CreatedAt,
		&job.NextRunAt,
		&job.Attempts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if isDatabaseUnavailable(err) {
			return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		return nil, fmt.Errorf("failed to claim lead job: %w", err)
	}

	if err := json.Unmarshal(payloadJSON, &job.Payload); err != nil {
		return nil, fmt.Errorf("%w: job %d for lead %s: %v", ErrInvalidPayload, job.ID, job.LeadID, err)
	}

	return &job, nil
}

// Complete records that the lead was evaluated
func (q *DBQueue) Complete(ctx context.Context, jobID int64) error {
	return q.settle(ctx, jobID, "complete", `
		UPDATE reachout_jobs
		SET status = 'completed', settled_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, jobID)
}

// Retry returns a claimed job to the pending set after delay. If the lead was
// queued again meanwhile, the newer request already covers it and this one is
// dropped.
func (q *DBQueue) Retry(ctx context.Context, jobID int64, delay time.Duration) error {
	return q.settle(ctx, jobID, "retry", `
		UPDATE reachout_jobs AS j
		SET status = CASE WHEN EXISTS (
				SELECT 1 FROM reachout_jobs p
				WHERE p.job_type = j.job_type AND p.lead_id = j.lead_id AND p.status = 'pending'
			) THEN 'superseded' ELSE 'pending' END,
			next_run_at = $2
		WHERE j.id = $1 AND j.status = 'processing'
	`, jobID, time.Now().Add(delay))
}

// Fail gives up on a lead job and keeps the reason for inspection
func (q *DBQueue) Fail(ctx context.Context, jobID int64, reason string) error {
	return q.settle(ctx, jobID, "fail", `
		UPDATE reachout_jobs
		SET status = 'failed', last_error = $2, settled_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, jobID, reason)
}

// settle moves a claimed job out of processing; a job nobody holds is ErrJobNotFound
func (q *DBQueue) settle(ctx context.Context, jobID int64, action, query string, args ...interface{}) error {
	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isDatabaseUnavailable(err) {
			return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		return fmt.Errorf("failed to %s lead job %d: %w", action, jobID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d is not being processed", ErrJobNotFound, jobID)
	}
	return nil
}

// HealthCheck verifies the queue is operational
func (q *DBQueue) HealthCheck(ctx context.Context) error {
	var result int
	if err := q.db.QueryRowContext(ctx, `SELECT 1`).Scan(&result); err != nil {
		if isDatabaseUnavailable(err) {
			return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		return fmt.Errorf("queue health check failed: %w", err)
	}

	return nil
}

// Close is a no-op; the connection belongs to the caller
func (q *DBQueue) Close() error {
	return nil
}

// isDatabaseUnavailable checks if an error indicates database unavailability
func isDatabaseUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	errStr := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"timeout",
		"too many connections",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

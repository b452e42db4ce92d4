package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/checkfox/go_reachout/internal/models"
)

// ReachOutEventRepository persists the audit trail of server-side lead evaluations
type ReachOutEventRepository interface {
	// CreateEvent records an evaluation that changed a lead
	CreateEvent(ctx context.Context, event *models.ReachOutEvent) error

	// CreateEventTx records an event within a transaction
	CreateEventTx(ctx context.Context, tx *sql.Tx, event *models.ReachOutEvent) error

	// GetEventsByLeadID retrieves a lead's events, oldest first
	GetEventsByLeadID(ctx context.Context, leadID string) ([]*models.ReachOutEvent, error)

	// GetLatestEvent retrieves the most recent event for a lead
	GetLatestEvent(ctx context.Context, leadID string) (*models.ReachOutEvent, error)

	// CountEvents returns the number of events recorded for a lead
	CountEvents(ctx context.Context, leadID string) (int, error)
}

const insertEventQuery = `
	INSERT INTO reachout_event (lead_id, stage, status, reason, snapshot, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id
`

// reachOutEventRepository is the concrete implementation of ReachOutEventRepository
type reachOutEventRepository struct {
	db *sql.DB
}

// NewReachOutEventRepository creates a new ReachOutEventRepository instance
func NewReachOutEventRepository(db *sql.DB) ReachOutEventRepository {
	return &reachOutEventRepository{
		db: db,
	}
}

// CreateEvent records an evaluation that changed a lead
func (r *reachOutEventRepository) CreateEvent(ctx context.Context, event *models.ReachOutEvent) error {
	if err := r.insert(ctx, r.db, event); err != nil {
		return fmt.Errorf("failed to create reach-out event: %w", err)
	}
	return nil
}

// CreateEventTx records an event within a transaction
func (r *reachOutEventRepository) CreateEventTx(ctx context.Context, tx *sql.Tx, event *models.ReachOutEvent) error {
	if err := r.insert(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to create reach-out event in transaction: %w", err)
	}
	return nil
}

func (r *reachOutEventRepository) insert(ctx context.Context, q execer, event *models.ReachOutEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	return q.QueryRowContext(
		ctx,
		insertEventQuery,
		event.LeadID,
		event.Stage,
		event.Status,
		event.Reason,
		event.Snapshot,
		event.CreatedAt,
	).Scan(&event.ID)
}

// GetEventsByLeadID retrieves a lead's events, oldest first
func (r *reachOutEventRepository) GetEventsByLeadID(ctx context.Context, leadID string) ([]*models.ReachOutEvent, error) {
	query := `
		SELECT id, lead_id, stage, status, reason, snapshot, created_at
		FROM reachout_event
		WHERE lead_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reach-out events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.ReachOutEvent, 0)
	for rows.Next() {
		event := &models.ReachOutEvent{}
		err := rows.Scan(
			&event.ID,
			&event.LeadID,
			&event.Stage,
			&event.Status,
			&event.Reason,
			&event.Snapshot,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reach-out event: %w", err)
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reach-out events: %w", err)
	}

	return events, nil
}

// GetLatestEvent retrieves the most recent event for a lead
func (r *reachOutEventRepository) GetLatestEvent(ctx context.Context, leadID string) (*models.ReachOutEvent, error) {
	query := `
		SELECT id, lead_id, stage, status, reason, snapshot, created_at
		FROM reachout_event
		WHERE lead_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	event := &models.ReachOutEvent{}
	err := r.db.QueryRowContext(ctx, query, leadID).Scan(
		&event.ID,
		&event.LeadID,
		&event.Stage,
		&event.Status,
		&event.Reason,
		&event.Snapshot,
		&event.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no reach-out events found for lead: %s", leadID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reach-out event: %w", err)
	}

	return event, nil
}

// CountEvents returns the number of events recorded for a lead
func (r *reachOutEventRepository) CountEvents(ctx context.Context, leadID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reachout_event WHERE lead_id = $1`, leadID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reach-out events: %w", err)
	}

	return count, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/checkfox/go_reachout/internal/models"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code for a duplicate primary key
const uniqueViolation = "23505"

// LeadRepository defines the interface for lead data persistence operations
type LeadRepository interface {
	// CreateLead inserts a new lead at version 1
	CreateLead(ctx context.Context, lead *models.Lead) error

	// GetLead retrieves a lead by its ID
	GetLead(ctx context.Context, id string) (*models.Lead, error)

	// ListLeads returns leads with the given status, or all leads when status is empty
	ListLeads(ctx context.Context, status models.LeadStatus) ([]*models.Lead, error)

	// ListLeadIDs returns the ids of leads with the given status
	ListLeadIDs(ctx context.Context, status models.LeadStatus) ([]string, error)

	// UpdateLead writes the lead if its stored version still equals expectedVersion
	UpdateLead(ctx context.Context, lead *models.Lead, expectedVersion int64) error

	// DeleteLead removes a lead and its audit trail
	DeleteLead(ctx context.Context, id string) error

	// BeginTx starts a new database transaction
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// UpdateLeadTx is UpdateLead within a transaction
	UpdateLeadTx(ctx context.Context, tx *sql.Tx, lead *models.Lead, expectedVersion int64) error

	// GetLeadCountsByStage returns counts of active leads grouped by stage
	GetLeadCountsByStage(ctx context.Context) (map[string]int, error)
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const leadColumns = `id, stage, priority, status, reach_out, highlight_duration, details,
			version, archived_at, archived_by, created_at, updated_at`

// leadRepository is the concrete implementation of LeadRepository
type leadRepository struct {
	db *sql.DB
}

// NewLeadRepository creates a new LeadRepository instance
func NewLeadRepository(db *sql.DB) LeadRepository {
	return &leadRepository{
		db: db,
	}
}

// CreateLead inserts a new lead at version 1
func (r *leadRepository) CreateLead(ctx context.Context, lead *models.Lead) error {
	query := `
		INSERT INTO leads (
			id, stage, priority, status, reach_out, highlight_duration, details,
			version, archived_at, archived_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9, $10, $11)
	`

	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	if lead.UpdatedAt.IsZero() {
		lead.UpdatedAt = now
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusActive
	}

	reachOut, err := marshalLedger(lead.ReachOut)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(
		ctx,
		query,
		lead.ID,
		lead.Stage,
		nullString(string(lead.Priority)),
		lead.Status,
		reachOut,
		lead.HighlightDuration,
		lead.Details,
		lead.ArchivedAt,
		lead.ArchivedBy,
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.NewVersionConflictError(lead.ID, 0, 1)
		}
		return fmt.Errorf("failed to create lead: %w", err)
	}

	lead.Version = 1
	return nil
}

// GetLead retrieves a lead by its ID
func (r *leadRepository) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	lead, err := scanLead(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.NewLeadNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	return lead, nil
}

// ListLeads returns leads with the given status, or all leads when status is empty
func (r *leadRepository) ListLeads(ctx context.Context, status models.LeadStatus) ([]*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	leads := make([]*models.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return leads, nil
}

// ListLeadIDs returns the ids of leads with the given status
func (r *leadRepository) ListLeadIDs(ctx context.Context, status models.LeadStatus) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM leads WHERE status = $1 ORDER BY id`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query lead ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}

// UpdateLead writes the lead if its stored version still equals expectedVersion
func (r *leadRepository) UpdateLead(ctx context.Context, lead *models.Lead, expectedVersion int64) error {
	return r.update(ctx, r.db, lead, expectedVersion)
}

// UpdateLeadTx is UpdateLead within a transaction
func (r *leadRepository) UpdateLeadTx(ctx context.Context, tx *sql.Tx, lead *models.Lead, expectedVersion int64) error {
	return r.update(ctx, tx, lead, expectedVersion)
}

func (r *leadRepository) update(ctx context.Context, q execer, lead *models.Lead, expectedVersion int64) error {
	query := `
		UPDATE leads
		SET stage = $3, priority = $4, status = $5, reach_out = $6, highlight_duration = $7,
			details = $8, archived_at = $9, archived_by = $10, updated_at = $11,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version
	`

	lead.UpdatedAt = time.Now().UTC()
	reachOut, err := marshalLedger(lead.ReachOut)
	if err != nil {
		return err
	}

	var version int64
	err = q.QueryRowContext(
		ctx,
		query,
		lead.ID,
		expectedVersion,
		lead.Stage,
		nullString(string(lead.Priority)),
		lead.Status,
		reachOut,
		lead.HighlightDuration,
		lead.Details,
		lead.ArchivedAt,
		lead.ArchivedBy,
		lead.UpdatedAt,
	).Scan(&version)

	if err == sql.ErrNoRows {
		return r.explainMiss(ctx, q, lead.ID, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}

	lead.Version = version
	return nil
}

// explainMiss tells a missing lead apart from a stale version after an update matched no row
func (r *leadRepository) explainMiss(ctx context.Context, q execer, id string, expectedVersion int64) error {
	var actual int64
	err := q.QueryRowContext(ctx, `SELECT version FROM leads WHERE id = $1`, id).Scan(&actual)
	if err == sql.ErrNoRows {
		return models.NewLeadNotFoundError(id)
	}
	if err != nil {
		return fmt.Errorf("failed to read lead version: %w", err)
	}
	return models.NewVersionConflictError(id, expectedVersion, actual)
}

// DeleteLead removes a lead and its audit trail
func (r *leadRepository) DeleteLead(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.NewLeadNotFoundError(id)
	}

	return nil
}

// BeginTx starts a new database transaction
func (r *leadRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// GetLeadCountsByStage returns counts of active leads grouped by stage
func (r *leadRepository) GetLeadCountsByStage(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT stage, COUNT(*) as count
		FROM leads
		WHERE status = 'active'
		GROUP BY stage
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query lead counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[stage] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return counts, nil
}

func scanLead(row rowScanner) (*models.Lead, error) {
	lead := &models.Lead{}
	var priority, archivedBy sql.NullString
	var highlight sql.NullFloat64
	var archivedAt sql.NullTime
	var reachOut []byte

	err := row.Scan(
		&lead.ID,
		&lead.Stage,
		&priority,
		&lead.Status,
		&reachOut,
		&highlight,
		&lead.Details,
		&lead.Version,
		&archivedAt,
		&archivedBy,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.Priority = models.Priority(priority.String)
	if highlight.Valid {
		h := highlight.Float64
		lead.HighlightDuration = &h
	}
	if archivedAt.Valid {
		t := archivedAt.Time
		lead.ArchivedAt = &t
	}
	if archivedBy.Valid {
		s := archivedBy.String
		lead.ArchivedBy = &s
	}
	if len(reachOut) > 0 {
		lead.ReachOut = &models.ReachOutLedger{}
		if err := json.Unmarshal(reachOut, lead.ReachOut); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reach-out ledger for lead %s: %w", lead.ID, err)
		}
	}

	return lead, nil
}

func marshalLedger(l *models.ReachOutLedger) ([]byte, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reach-out ledger: %w", err)
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

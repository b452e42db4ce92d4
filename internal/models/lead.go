package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}

	*j = result
	return nil
}

// Lead is a commercial-insurance prospect record
type Lead struct {
	ID       string          `json:"id"`
	Stage    Stage           `json:"stage"`
	Priority Priority        `json:"priority,omitempty"`
	Status   LeadStatus      `json:"status"`
	ReachOut *ReachOutLedger `json:"reachOut,omitempty"`

	// HighlightDuration is the lead-level highlight length in hours, kept for older records
	HighlightDuration *float64 `json:"highlightDuration,omitempty"`

	// Details carries descriptive fields (name, contact info, vehicles, drivers) untouched
	Details JSONB `json:"details,omitempty"`

	Version    int64      `json:"version"`

	// SyncPending marks a locally changed lead the backend has not yet acknowledged
	SyncPending bool `json:"syncPending,omitempty"`

	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
	ArchivedBy *string    `json:"archivedBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// NewLead creates an active lead in the given stage
func NewLead(id string, stage Stage) *Lead {
	now := time.Now().UTC()
	return &Lead{
		ID:        id,
		Stage:     stage,
		Status:    LeadStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsArchived returns true if the lead has been moved out of the working collection
func (l *Lead) IsArchived() bool {
	return l.Status == LeadStatusArchived
}

// Archive moves the lead to the archived status
func (l *Lead) Archive(by string, now time.Time) error {
	if l.IsArchived() {
		return fmt.Errorf("lead %s is already archived", l.ID)
	}
	l.Status = LeadStatusArchived
	l.ArchivedAt = &now
	if by != "" {
		l.ArchivedBy = &by
	}
	l.UpdatedAt = now
	return nil
}

// Restore returns an archived lead to the working collection
func (l *Lead) Restore(now time.Time) error {
	if !l.IsArchived() {
		return fmt.Errorf("lead %s is not archived", l.ID)
	}
	l.Status = LeadStatusActive
	l.ArchivedAt = nil
	l.ArchivedBy = nil
	l.UpdatedAt = now
	return nil
}

// Clone returns a deep copy of the lead
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	out := *l
	out.ReachOut = l.ReachOut.Clone()
	if l.HighlightDuration != nil {
		h := *l.HighlightDuration
		out.HighlightDuration = &h
	}
	if l.Details != nil {
		out.Details = make(JSONB, len(l.Details))
		for k, v := range l.Details {
			out.Details[k] = v
		}
	}
	return &out
}

// LeadPatch is a partial update. Nil fields are left untouched.
type LeadPatch struct {
	Stage             *Stage          `json:"stage,omitempty"`
	Priority          *Priority       `json:"priority,omitempty"`
	ReachOut          *ReachOutLedger `json:"reachOut,omitempty"`
	HighlightDuration *float64        `json:"highlightDuration,omitempty"`
	Details           JSONB           `json:"details,omitempty"`

	// Version is the stamp the writer last saw; a mismatch is a conflict
	Version *int64 `json:"version,omitempty"`
}

// IsEmpty returns true when the patch carries no field changes
func (p *LeadPatch) IsEmpty() bool {
	return p.Stage == nil && p.Priority == nil && p.ReachOut == nil &&
		p.HighlightDuration == nil && len(p.Details) == 0
}

// Apply shallow-merges the patch into the lead. Details keys are merged one level deep.
func (p *LeadPatch) Apply(l *Lead) {
	if p.Stage != nil {
		l.Stage = *p.Stage
	}
	if p.Priority != nil {
		l.Priority = *p.Priority
	}
	if p.ReachOut != nil {
		l.ReachOut = p.ReachOut.Clone()
	}
	if p.HighlightDuration != nil {
		h := *p.HighlightDuration
		l.HighlightDuration = &h
	}
	if len(p.Details) > 0 {
		if l.Details == nil {
			l.Details = make(JSONB, len(p.Details))
		}
		for k, v := range p.Details {
			l.Details[k] = v
		}
	}
}

// ReachOutEvent is an audit record of a server-side evaluation that changed a lead
type ReachOutEvent struct {
	ID        int64     `json:"id" db:"id"`
	LeadID    string    `json:"lead_id" db:"lead_id"`
	Stage     Stage     `json:"stage" db:"stage"`
	Status    string    `json:"status" db:"status"`
	Reason    string    `json:"reason" db:"reason"`
	Snapshot  JSONB     `json:"snapshot,omitempty" db:"snapshot"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewReachOutEvent creates an audit record for a lead evaluation
func NewReachOutEvent(leadID string, stage Stage, status, reason string) *ReachOutEvent {
	return &ReachOutEvent{
		LeadID:    leadID,
		Stage:     stage,
		Status:    status,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

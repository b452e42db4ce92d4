package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CompletionChannel names the action that satisfied a reach-out cycle
type CompletionChannel string

const (
	ChannelCall              CompletionChannel = "call"
	ChannelText              CompletionChannel = "text"
	ChannelEmailConfirmation CompletionChannel = "email_confirmation"
	ChannelScheduledCall     CompletionChannel = "scheduled_call"
)

// CallLog is one call event. Entries are appended in chronological order.
type CallLog struct {
	Timestamp     time.Time `json:"timestamp"`
	Connected     bool      `json:"connected"`
	Duration      *string   `json:"duration"`
	LeftVoicemail bool      `json:"leftVoicemail"`
	Notes         string    `json:"notes"`

	// Pending marks a connected call still waiting for its duration
	Pending bool `json:"pending,omitempty"`
}

// EmailConfirmation records whether the prospect confirmed receiving an email
type EmailConfirmation struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Confirmed bool      `json:"confirmed"`
	Notes     string    `json:"notes,omitempty"`
}

// ReachOutLedger tracks outreach activity and completion/highlight state for one lead
type ReachOutLedger struct {
	CallAttempts   int `json:"callAttempts"`
	CallsConnected int `json:"callsConnected"`
	EmailCount     int `json:"emailCount"`
	TextCount      int `json:"textCount"`
	VoicemailCount int `json:"voicemailCount"`

	CallLogs           []CallLog           `json:"callLogs"`
	EmailConfirmations []EmailConfirmation `json:"emailConfirmations,omitempty"`

	CompletedAt         *time.Time        `json:"completedAt,omitempty"`
	ReachOutCompletedAt *time.Time        `json:"reachOutCompletedAt,omitempty"`
	CompletedVia        CompletionChannel `json:"completedVia,omitempty"`
	GreenHighlightUntil *time.Time        `json:"greenHighlightUntil,omitempty"`

	HighlightDurationHours *float64 `json:"highlightDurationHours,omitempty"`

	// Older records carry one of these instead of HighlightDurationHours
	GreenHighlightDays    *float64 `json:"greenHighlightDays,omitempty"`
	HighlightDuration     *float64 `json:"highlightDuration,omitempty"`
	HighlightDurationDays *float64 `json:"highlightDurationDays,omitempty"`

	ScheduledCallDate string `json:"scheduledCallDate,omitempty"`
	ScheduledCallTime string `json:"scheduledCallTime,omitempty"`

	CallMade         bool       `json:"callMade"`
	EmailSent        bool       `json:"emailSent"`
	TextSent         bool       `json:"textSent"`
	EmailConfirmed   bool       `json:"emailConfirmed"`
	HighlightExpired bool       `json:"highlightExpired"`
	ExpiredAt        *time.Time `json:"expiredAt,omitempty"`
}

// CompletionTime returns the completion timestamp of the current cycle, preferring reachOutCompletedAt
func (r *ReachOutLedger) CompletionTime() *time.Time {
	if r == nil {
		return nil
	}
	if r.ReachOutCompletedAt != nil {
		return r.ReachOutCompletedAt
	}
	return r.CompletedAt
}

// HasActivity reports whether anything was done that can back a completion timestamp
func (r *ReachOutLedger) HasActivity() bool {
	if r == nil {
		return false
	}
	if r.CallAttempts > 0 || r.TextCount > 0 {
		return true
	}
	return r.CompletedVia == ChannelEmailConfirmation || r.CompletedVia == ChannelScheduledCall
}

// PendingCallIndex returns the index of the call log entry awaiting a duration, or -1
func (r *ReachOutLedger) PendingCallIndex() int {
	if r == nil {
		return -1
	}
	for i := len(r.CallLogs) - 1; i >= 0; i-- {
		if r.CallLogs[i].Pending {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the ledger. Clone of nil is nil.
func (r *ReachOutLedger) Clone() *ReachOutLedger {
	if r == nil {
		return nil
	}
	out := *r
	if r.CallLogs != nil {
		out.CallLogs = make([]CallLog, len(r.CallLogs))
		for i, entry := range r.CallLogs {
			out.CallLogs[i] = entry
			out.CallLogs[i].Duration = copyString(entry.Duration)
		}
	}
	if r.EmailConfirmations != nil {
		out.EmailConfirmations = append([]EmailConfirmation(nil), r.EmailConfirmations...)
	}
	out.CompletedAt = copyTime(r.CompletedAt)
	out.ReachOutCompletedAt = copyTime(r.ReachOutCompletedAt)
	out.GreenHighlightUntil = copyTime(r.GreenHighlightUntil)
	out.ExpiredAt = copyTime(r.ExpiredAt)
	out.HighlightDurationHours = copyFloat(r.HighlightDurationHours)
	out.GreenHighlightDays = copyFloat(r.GreenHighlightDays)
	out.HighlightDuration = copyFloat(r.HighlightDuration)
	out.HighlightDurationDays = copyFloat(r.HighlightDurationDays)
	return &out
}

// Value implements the driver.Valuer interface so the ledger can be stored as JSONB
func (r *ReachOutLedger) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for the JSONB reach_out column
func (r *ReachOutLedger) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal reach-out ledger: %v", value)
	}

	return json.Unmarshal(bytes, r)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

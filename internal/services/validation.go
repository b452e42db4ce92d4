package services

import (
	"context"
	"fmt"

	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/models"
)

// ValidationResult represents the outcome of validating a lead write
type ValidationResult struct {
	Valid  bool
	Errors []*models.ValidationError
}

// Err returns the first violation, or nil when the lead is valid
func (r *ValidationResult) Err() error {
	if r.Valid || len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

func (r *ValidationResult) fail(field, detail string) {
	r.Valid = false
	r.Errors = append(r.Errors, models.NewValidationError(field, detail))
}

// Validator checks lead writes against the data-model rules
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLead validates a full lead record. All violations are collected.
func (v *Validator) ValidateLead(ctx context.Context, lead *models.Lead) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if lead == nil {
		result.fail("lead", "lead is required")
		return result
	}
	if lead.ID == "" {
		result.fail("id", "id is required")
	}
	if !lead.Stage.IsValid() {
		result.fail("stage", fmt.Sprintf("unknown stage %q", lead.Stage))
	}
	if !lead.Priority.IsValid() {
		result.fail("priority", fmt.Sprintf("unknown priority %q", lead.Priority))
	}
	if lead.Status != "" && !lead.Status.IsValid() {
		result.fail("status", fmt.Sprintf("unknown status %q", lead.Status))
	}
	if lead.HighlightDuration != nil && *lead.HighlightDuration < 0 {
		result.fail("highlightDuration", "must not be negative")
	}
	v.validateLedger(result, lead.ReachOut)

	if !result.Valid {
		logger.Debug(ctx, "Lead failed validation", "lead_id", lead.ID, "violations", len(result.Errors))
	}
	return result
}

// ValidatePatch validates only the fields a partial update carries
func (v *Validator) ValidatePatch(ctx context.Context, patch *models.LeadPatch) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if patch == nil {
		result.fail("patch", "patch is required")
		return result
	}
	if patch.Stage != nil && !patch.Stage.IsValid() {
		result.fail("stage", fmt.Sprintf("unknown stage %q", *patch.Stage))
	}
	if patch.Priority != nil && !patch.Priority.IsValid() {
		result.fail("priority", fmt.Sprintf("unknown priority %q", *patch.Priority))
	}
	if patch.HighlightDuration != nil && *patch.HighlightDuration < 0 {
		result.fail("highlightDuration", "must not be negative")
	}
	if patch.Version != nil && *patch.Version < 0 {
		result.fail("version", "must not be negative")
	}
	v.validateLedger(result, patch.ReachOut)

	if !result.Valid {
		logger.Debug(ctx, "Patch failed validation", "violations", len(result.Errors))
	}
	return result
}

// validateLedger enforces non-negative counters and callAttempts >= callsConnected
func (v *Validator) validateLedger(result *ValidationResult, l *models.ReachOutLedger) {
	if l == nil {
		return
	}

	counters := []struct {
		field string
		value int
	}{
		{"reachOut.callAttempts", l.CallAttempts},
		{"reachOut.callsConnected", l.CallsConnected},
		{"reachOut.emailCount", l.EmailCount},
		{"reachOut.textCount", l.TextCount},
		{"reachOut.voicemailCount", l.VoicemailCount},
	}
	for _, c := range counters {
		if c.value < 0 {
			result.fail(c.field, "must not be negative")
		}
	}

	if l.CallsConnected > l.CallAttempts {
		result.fail("reachOut.callsConnected", fmt.Sprintf("%d connected calls exceed %d attempts", l.CallsConnected, l.CallAttempts))
	}
	if l.HighlightDurationHours != nil && *l.HighlightDurationHours < 0 {
		result.fail("reachOut.highlightDurationHours", "must not be negative")
	}
}

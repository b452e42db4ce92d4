package services

import (
	"testing"

	"github.com/checkfox/go_reachout/internal/models"
)

func TestNormalizeEmail(t *testing.T) {
	normalizer := NewNormalizer()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase already", "agent@example.com", "agent@example.com"},
		{"uppercase to lowercase", "AGENT@EXAMPLE.COM", "agent@example.com"},
		{"with both spaces", "  agent@example.com  ", "agent@example.com"},
		{"with tabs", "\tagent@example.com\t", "agent@example.com"},
		{"empty string", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := normalizer.NormalizeEmail(tc.input)
			if result != tc.expected {
				t.Errorf("NormalizeEmail(%q) = %q, expected %q", tc.input, result, tc.expected)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	normalizer := NewNormalizer()

	testCases := []struct {
		input    string
		expected string
	}{
		{"(555) 123-4567", "5551234567"},
		{"+1 555.123.4567", "15551234567"},
		{"5551234567", "5551234567"},
		{"no digits", ""},
	}

	for _, tc := range testCases {
		result := normalizer.NormalizePhone(tc.input)
		if result != tc.expected {
			t.Errorf("NormalizePhone(%q) = %q, expected %q", tc.input, result, tc.expected)
		}
	}
}

func TestNormalizeStage(t *testing.T) {
	normalizer := NewNormalizer()

	testCases := []struct {
		input    string
		expected models.Stage
	}{
		{"quoted", models.StageQuoted},
		{"  Quoted ", models.StageQuoted},
		{"New", models.StageNew},
		{"Closed", models.StageClosed},
		{"sale", models.StageClosed},
		{"closed_won", models.StageClosed},
		{"quote_sent_unaware", models.StageQuoteSentUnaware},
		{"not_interested", models.StageNotInterested},
		{"mystery", models.Stage("mystery")},
	}

	for _, tc := range testCases {
		result := normalizer.NormalizeStage(tc.input)
		if result != tc.expected {
			t.Errorf("NormalizeStage(%q) = %q, expected %q", tc.input, result, tc.expected)
		}
	}
}

func TestNormalizePriority(t *testing.T) {
	normalizer := NewNormalizer()

	if got := normalizer.NormalizePriority("high"); got != models.PriorityHigh {
		t.Errorf("Expected High, got %q", got)
	}
	if got := normalizer.NormalizePriority(" LOWER "); got != models.PriorityLower {
		t.Errorf("Expected Lower, got %q", got)
	}
	if got := normalizer.NormalizePriority(""); got != "" {
		t.Errorf("Expected empty priority to stay empty, got %q", got)
	}
}

func TestNormalizeLedger_MigratesLegacyDuration(t *testing.T) {
	normalizer := NewNormalizer()

	days := 2.0
	ledger := &models.ReachOutLedger{GreenHighlightDays: &days, CallAttempts: 1}

	if !normalizer.NormalizeLedger(ledger, nil) {
		t.Fatal("Expected ledger to change")
	}
	if ledger.HighlightDurationHours == nil || *ledger.HighlightDurationHours != 48 {
		t.Errorf("Expected highlightDurationHours=48, got %v", ledger.HighlightDurationHours)
	}
	if ledger.GreenHighlightDays != nil {
		t.Error("Expected legacy greenHighlightDays to be cleared")
	}
	if normalizer.NormalizeLedger(ledger, nil) {
		t.Error("Expected second normalization to be a no-op")
	}
}

func TestNormalizeLedger_RepairsCounters(t *testing.T) {
	normalizer := NewNormalizer()

	ledger := &models.ReachOutLedger{CallAttempts: 1, CallsConnected: 3, TextCount: -2}

	if !normalizer.NormalizeLedger(ledger, nil) {
		t.Fatal("Expected ledger to change")
	}
	if ledger.TextCount != 0 {
		t.Errorf("Expected textCount=0, got %d", ledger.TextCount)
	}
	if ledger.CallAttempts != 3 {
		t.Errorf("Expected callAttempts raised to 3, got %d", ledger.CallAttempts)
	}
}

func TestNormalizeLead(t *testing.T) {
	normalizer := NewNormalizer()

	hours := 36.0
	lead := &models.Lead{
		ID:                "lead-1",
		Stage:             "Quoted",
		Priority:          "mid",
		HighlightDuration: &hours,
		ReachOut:          &models.ReachOutLedger{CallAttempts: 1},
		Details: models.JSONB{
			"email":   "  Owner@Fleet.COM ",
			"phone":   "(555) 010-2000",
			"company": "  Acme   Trucking  ",
		},
	}

	if !normalizer.NormalizeLead(lead) {
		t.Fatal("Expected lead to change")
	}
	if lead.Stage != models.StageQuoted {
		t.Errorf("Expected stage quoted, got %q", lead.Stage)
	}
	if lead.Priority != models.PriorityMid {
		t.Errorf("Expected priority Mid, got %q", lead.Priority)
	}
	if lead.Status != models.LeadStatusActive {
		t.Errorf("Expected status active, got %q", lead.Status)
	}
	if lead.ReachOut.HighlightDurationHours == nil || *lead.ReachOut.HighlightDurationHours != 36 {
		t.Errorf("Expected lead-level hours folded into ledger, got %v", lead.ReachOut.HighlightDurationHours)
	}
	if lead.Details["email"] != "owner@fleet.com" {
		t.Errorf("Expected normalized email, got %v", lead.Details["email"])
	}
	if lead.Details["phone"] != "5550102000" {
		t.Errorf("Expected normalized phone, got %v", lead.Details["phone"])
	}
	if lead.Details["company"] != "Acme Trucking" {
		t.Errorf("Expected collapsed whitespace, got %v", lead.Details["company"])
	}

	if normalizer.NormalizeLead(lead) {
		t.Error("Expected second normalization to report no change")
	}
}

func TestNormalizeLead_Nil(t *testing.T) {
	if NewNormalizer().NormalizeLead(nil) {
		t.Error("Expected nil lead to be a no-op")
	}
}

package services

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/checkfox/go_reachout/internal/models"
	"github.com/checkfox/go_reachout/internal/reachout"
)

// stageAliases maps spellings found in older records to the canonical stage
var stageAliases = map[string]models.Stage{
	"sale":               models.StageClosed,
	"closed_won":         models.StageClosed,
	"quote_sent_unaware": models.StageQuoteSentUnaware,
	"quote_sent_aware":   models.StageQuoteSentAware,
	"not_interested":     models.StageNotInterested,
	"quote-sent":         models.StageQuoteSent,
}

// Normalizer brings stored leads to the canonical shape. Every rule is idempotent.
type Normalizer struct {
	phonePattern      *regexp.Regexp
	whitespacePattern *regexp.Regexp
}

// NewNormalizer creates a new Normalizer instance
func NewNormalizer() *Normalizer {
	return &Normalizer{
		phonePattern:      regexp.MustCompile(`\d+`),
		whitespacePattern: regexp.MustCompile(`\s+`),
	}
}

// NormalizeLead canonicalises stage, priority, status, the reach-out ledger and
// descriptive details in place. It reports whether anything changed.
func (n *Normalizer) NormalizeLead(lead *models.Lead) bool {
	if lead == nil {
		return false
	}
	changed := false

	if s := n.NormalizeStage(string(lead.Stage)); s != lead.Stage {
		lead.Stage = s
		changed = true
	}
	if p := n.NormalizePriority(string(lead.Priority)); p != lead.Priority {
		lead.Priority = p
		changed = true
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusActive
		changed = true
	}
	if n.NormalizeLedger(lead.ReachOut, lead.HighlightDuration) {
		changed = true
	}
	if lead.Details != nil {
		details := n.NormalizeDetails(lead.Details)
		if !reflect.DeepEqual(details, lead.Details) {
			lead.Details = details
			changed = true
		}
	}
	return changed
}

// NormalizeStage lower-cases and trims a stage and resolves legacy spellings.
// Unknown stages are returned trimmed; validation rejects them.
func (n *Normalizer) NormalizeStage(raw string) models.Stage {
	s := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := stageAliases[s]; ok {
		return alias
	}
	return models.Stage(s)
}

// NormalizePriority fixes the casing of a known priority tier
func (n *Normalizer) NormalizePriority(raw string) models.Priority {
	s := strings.TrimSpace(raw)
	for _, p := range []models.Priority{models.PriorityHigh, models.PriorityMid, models.PriorityLower, models.PriorityLow} {
		if strings.EqualFold(s, string(p)) {
			return p
		}
	}
	return models.Priority(s)
}

// NormalizeLedger collapses legacy highlight durations and repairs counters
func (n *Normalizer) NormalizeLedger(l *models.ReachOutLedger, leadHours *float64) bool {
	if l == nil {
		return false
	}
	changed := reachout.MigrateHighlightDuration(l, leadHours)

	for _, c := range []*int{&l.CallAttempts, &l.CallsConnected, &l.EmailCount, &l.TextCount, &l.VoicemailCount} {
		if *c < 0 {
			*c = 0
			changed = true
		}
	}
	if l.CallsConnected > l.CallAttempts {
		l.CallAttempts = l.CallsConnected
		changed = true
	}
	return changed
}

// NormalizeDetails normalizes descriptive fields, with special handling for email and phone keys
func (n *Normalizer) NormalizeDetails(details models.JSONB) models.JSONB {
	normalized := make(models.JSONB, len(details))

	for key, value := range details {
		switch key {
		case "email":
			if email, ok := value.(string); ok {
				normalized[key] = n.NormalizeEmail(email)
			} else {
				normalized[key] = value
			}

		case "phone", "phone_number", "telephone":
			if phone, ok := value.(string); ok {
				normalized[key] = n.NormalizePhone(phone)
			} else {
				normalized[key] = value
			}

		default:
			normalized[key] = n.normalizeValue(value)
		}
	}

	return normalized
}

// normalizeValue normalizes a single value based on its type
func (n *Normalizer) normalizeValue(value interface{}) interface{} {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case string:
		return n.normalizeString(v)
	case map[string]interface{}:
		normalized := make(map[string]interface{}, len(v))
		for key, val := range v {
			normalized[key] = n.normalizeValue(val)
		}
		return normalized
	case []interface{}:
		normalized := make([]interface{}, len(v))
		for i, val := range v {
			normalized[i] = n.normalizeValue(val)
		}
		return normalized
	default:
		// Numbers, booleans, etc.
		return value
	}
}

// normalizeString trims and collapses internal whitespace
func (n *Normalizer) normalizeString(s string) string {
	s = strings.TrimSpace(s)
	return n.whitespacePattern.ReplaceAllString(s, " ")
}

// NormalizeEmail converts to lowercase and trims whitespace
func (n *Normalizer) NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone keeps only the digits of a phone number
func (n *Normalizer) NormalizePhone(phone string) string {
	return strings.Join(n.phonePattern.FindAllString(phone, -1), "")
}

package reachout

import (
	"time"

	"github.com/checkfox/go_reachout/internal/models"
)

// ResolveHighlightDuration picks the highlight length for a completed cycle.
// First non-nil wins: the canonical hours field, then the legacy fields in
// order greenHighlightDays, highlightDuration (hours), highlightDurationDays,
// then the lead-level hours, then the policy default.
func ResolveHighlightDuration(l *models.ReachOutLedger, leadHours *float64, policy Policy) time.Duration {
	policy = policy.withDefaults()
	if l != nil {
		if d, ok := positiveHours(l.HighlightDurationHours, 1); ok {
			return d
		}
		if d, ok := positiveHours(l.GreenHighlightDays, 24); ok {
			return d
		}
		if d, ok := positiveHours(l.HighlightDuration, 1); ok {
			return d
		}
		if d, ok := positiveHours(l.HighlightDurationDays, 24); ok {
			return d
		}
	}
	if d, ok := positiveHours(leadHours, 1); ok {
		return d
	}
	return policy.DefaultHighlight
}

func positiveHours(v *float64, multiplier float64) (time.Duration, bool) {
	if v == nil || *v <= 0 {
		return 0, false
	}
	return time.Duration(*v * multiplier * float64(time.Hour)), true
}

// ComputeExpiry returns completedAt + d
func ComputeExpiry(completedAt time.Time, d time.Duration) time.Time {
	return completedAt.Add(d)
}

// IsHighlighted reports whether now is strictly before the expiry
func IsHighlighted(expiry, now time.Time) bool {
	return now.Before(expiry)
}

// EnsureHighlight sets greenHighlightUntil from completedAt and d unless the
// current cycle already has one. It reports whether the ledger changed.
func EnsureHighlight(l *models.ReachOutLedger, completedAt time.Time, d time.Duration) bool {
	if l == nil || l.GreenHighlightUntil != nil {
		return false
	}
	until := ComputeExpiry(completedAt, d)
	l.GreenHighlightUntil = &until
	return true
}

// extendHighlight moves greenHighlightUntil to until if that is later
func extendHighlight(l *models.ReachOutLedger, until time.Time) {
	if l.GreenHighlightUntil == nil || until.After(*l.GreenHighlightUntil) {
		l.GreenHighlightUntil = &until
	}
}

// MigrateHighlightDuration collapses the legacy duration fields of a ledger
// into highlightDurationHours without changing the resolved duration. The
// lead-level hours are folded in when nothing else is set. It reports whether
// the ledger changed.
func MigrateHighlightDuration(l *models.ReachOutLedger, leadHours *float64) bool {
	if l == nil {
		return false
	}

	changed := false
	if l.HighlightDurationHours == nil {
		var d time.Duration
		var ok bool
		if d, ok = positiveHours(l.GreenHighlightDays, 24); !ok {
			if d, ok = positiveHours(l.HighlightDuration, 1); !ok {
				if d, ok = positiveHours(l.HighlightDurationDays, 24); !ok {
					d, ok = positiveHours(leadHours, 1)
				}
			}
		}
		if ok {
			h := d.Hours()
			l.HighlightDurationHours = &h
			changed = true
		}
	}

	if l.GreenHighlightDays != nil || l.HighlightDuration != nil || l.HighlightDurationDays != nil {
		l.GreenHighlightDays = nil
		l.HighlightDuration = nil
		l.HighlightDurationDays = nil
		changed = true
	}
	return changed
}

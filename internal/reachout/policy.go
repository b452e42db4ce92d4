// Package reachout holds the reach-out state machine: the completion evaluator,
// highlight expiry, ledger mutations and the response-rate classifier.
// Every function here is pure; time and policy are passed in.
package reachout

import "time"

// Policy holds the tunable windows and thresholds of the reach-out cycle
type Policy struct {
	// CycleExpiry is how long a completed cycle lasts before the obligation reopens
	CycleExpiry time.Duration

	// DefaultHighlight applies when no duration is recorded on the ledger or the lead
	DefaultHighlight time.Duration

	EmailConfirmedHighlight time.Duration
	EmailDeclinedHighlight  time.Duration

	// HighValueMinutes is the cumulative connected-call time that marks a high-value lead
	HighValueMinutes float64
}

// DefaultPolicy returns the production windows
func DefaultPolicy() Policy {
	return Policy{
		CycleExpiry:             48 * time.Hour,
		DefaultHighlight:        24 * time.Hour,
		EmailConfirmedHighlight: 7 * 24 * time.Hour,
		EmailDeclinedHighlight:  2 * 24 * time.Hour,
		HighValueMinutes:        60,
	}
}

// withDefaults fills zero fields from DefaultPolicy
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.CycleExpiry <= 0 {
		p.CycleExpiry = d.CycleExpiry
	}
	if p.DefaultHighlight <= 0 {
		p.DefaultHighlight = d.DefaultHighlight
	}
	if p.EmailConfirmedHighlight <= 0 {
		p.EmailConfirmedHighlight = d.EmailConfirmedHighlight
	}
	if p.EmailDeclinedHighlight <= 0 {
		p.EmailDeclinedHighlight = d.EmailDeclinedHighlight
	}
	if p.HighValueMinutes <= 0 {
		p.HighValueMinutes = d.HighValueMinutes
	}
	return p
}

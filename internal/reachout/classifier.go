package reachout

import "github.com/checkfox/go_reachout/internal/models"

// closureRatio is the attempts-per-connect ratio at which closing the lead is suggested.
// zeroConnectClosureAttempts is the same signal for leads that never picked up.
const (
	closureRatio               = 6.0
	zeroConnectClosureAttempts = 6
)

// Classification is the response-rate tier of a lead
type Classification struct {
	Tier models.Priority `json:"tier"`

	// SuggestClosure asks the UI to offer moving the lead to closed; nothing is changed here
	SuggestClosure bool `json:"suggestClosure"`

	// Ratio is attempts per connected call, zero when nothing connected
	Ratio float64 `json:"ratio"`
}

// Classify maps call attempts and connects to a priority tier. ok is false
// when there were no attempts, in which case the existing tier stands.
func Classify(attempts, connected int) (c Classification, ok bool) {
	if attempts <= 0 {
		return Classification{}, false
	}
	if connected < 0 {
		connected = 0
	}
	if connected > attempts {
		connected = attempts
	}

	if connected == 0 {
		return Classification{
			Tier:           models.PriorityLow,
			SuggestClosure: attempts >= zeroConnectClosureAttempts,
		}, true
	}

	ratio := float64(attempts) / float64(connected)
	c = Classification{Ratio: ratio}
	switch {
	case ratio <= 2:
		c.Tier = models.PriorityHigh
	case ratio <= 3:
		c.Tier = models.PriorityMid
	case ratio <= 4:
		c.Tier = models.PriorityLower
	default:
		c.Tier = models.PriorityLow
		c.SuggestClosure = ratio >= closureRatio
	}
	return c, true
}

// ClassifyLedger applies Classify to a ledger's counters
func ClassifyLedger(l *models.ReachOutLedger) (Classification, bool) {
	if l == nil {
		return Classification{}, false
	}
	return Classify(l.CallAttempts, l.CallsConnected)
}

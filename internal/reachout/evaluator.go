package reachout

import (
	"time"

	"github.com/checkfox/go_reachout/internal/models"
)

// Status is the evaluated reach-out state of a lead
type Status string

const (
	// StatusNotApplicable means the stage does not require reach-out; nothing is displayed
	StatusNotApplicable Status = "not_applicable"
	StatusOutstanding   Status = "outstanding"
	StatusCompleted     Status = "completed"
)

// Reason explains how the evaluator arrived at a status
type Reason string

const (
	ReasonStageNotTracked    Reason = "stage_not_tracked"
	ReasonNoActivity         Reason = "no_activity"
	ReasonAwaitingCompletion Reason = "awaiting_completion"
	ReasonOrphanCleared      Reason = "orphan_cleared"
	ReasonCycleExpired       Reason = "cycle_expired"
	ReasonHighlightExpired   Reason = "highlight_expired"
	ReasonCompleted          Reason = "completed"
)

// Evaluation is the result of Evaluate
type Evaluation struct {
	Status         Status     `json:"status"`
	Reason         Reason     `json:"reason"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	HighlightUntil *time.Time `json:"highlightUntil,omitempty"`

	// Highlighted is the display state; it is never true while a TO-DO is outstanding
	Highlighted bool   `json:"highlighted"`
	NextAction  string `json:"nextAction,omitempty"`

	// Ledger is the evaluated copy, repaired when Changed is set
	Ledger  *models.ReachOutLedger `json:"reachOut,omitempty"`
	Changed bool                   `json:"changed"`
}

// Reopened reports whether the evaluation started a fresh cycle
func (e Evaluation) Reopened() bool {
	return e.Reason == ReasonCycleExpired || e.Reason == ReasonHighlightExpired
}

// Evaluate classifies the reach-out state of a lead at now. The input ledger is
// never modified; repairs (orphan cleanup, cycle reopening) are applied to the
// returned copy and flagged with Changed so callers can persist them.
func Evaluate(stage models.Stage, ledger *models.ReachOutLedger, now time.Time, policy Policy) Evaluation {
	policy = policy.withDefaults()

	if !stage.RequiresReachOut() {
		return Evaluation{
			Status:     StatusNotApplicable,
			Reason:     ReasonStageNotTracked,
			NextAction: NextActionForStage(stage),
			// app_sent leads stay highlighted while the application is out
			Highlighted: stage == models.StageAppSent,
			Ledger:      ledger.Clone(),
		}
	}

	eval := Evaluation{Ledger: ledger.Clone()}
	if eval.Ledger == nil {
		eval.Ledger = &models.ReachOutLedger{CallLogs: []models.CallLog{}}
		eval.Changed = true
	}
	l := eval.Ledger

	reason := repairStale(l, now, policy)
	if reason != "" {
		eval.Changed = true
	}

	if completion := l.CompletionTime(); completion != nil {
		completedAt := *completion
		eval.Status = StatusCompleted
		eval.Reason = ReasonCompleted
		eval.CompletedAt = &completedAt
		if l.GreenHighlightUntil != nil {
			until := *l.GreenHighlightUntil
			eval.HighlightUntil = &until
			eval.Highlighted = IsHighlighted(until, now)
		}
		return eval
	}

	switch {
	case reason != "":
		eval.Reason = reason
	case l.HasActivity():
		eval.Reason = ReasonAwaitingCompletion
	default:
		eval.Reason = ReasonNoActivity
	}

	eval.Status = StatusOutstanding
	eval.Highlighted = false
	eval.NextAction = outstandingHint(l)
	return eval
}

// repairStale clears an orphaned completion or reopens a lapsed cycle in place
// and names what it did. It returns "" when the completion still stands.
func repairStale(l *models.ReachOutLedger, now time.Time, policy Policy) Reason {
	completion := l.CompletionTime()
	switch {
	case completion == nil:
		return ""
	case !l.HasActivity():
		clearCompletion(l)
		return ReasonOrphanCleared
	case now.Sub(*completion) > policy.CycleExpiry:
		reopenCycle(l, now)
		return ReasonCycleExpired
	case l.GreenHighlightUntil != nil && !IsHighlighted(*l.GreenHighlightUntil, now):
		reopenCycle(l, now)
		return ReasonHighlightExpired
	}
	return ""
}

// clearCompletion removes completion markers that no activity backs
func clearCompletion(l *models.ReachOutLedger) {
	l.CompletedAt = nil
	l.ReachOutCompletedAt = nil
	l.CompletedVia = ""
	l.GreenHighlightUntil = nil
}

// reopenCycle lapses a completed cycle so a new one begins. Call history is kept.
func reopenCycle(l *models.ReachOutLedger, now time.Time) {
	clearCompletion(l)
	l.CallsConnected = 0
	l.TextCount = 0
	l.CallMade = false
	l.EmailSent = false
	l.TextSent = false
	l.EmailConfirmed = false
	l.ScheduledCallDate = ""
	l.ScheduledCallTime = ""
	l.HighlightExpired = true
	expiredAt := now
	l.ExpiredAt = &expiredAt
}

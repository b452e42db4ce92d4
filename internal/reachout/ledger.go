package reachout

import (
	"strconv"
	"time"

	"github.com/checkfox/go_reachout/internal/models"
	"github.com/google/uuid"
)

// WarningCode identifies a non-fatal problem found while applying a mutation
type WarningCode string

const (
	WarnMalformedDuration  WarningCode = "malformed_duration"
	WarnNoPendingCall      WarningCode = "no_pending_call"
	WarnPendingCallDropped WarningCode = "pending_call_dropped"
	WarnScheduledInPast    WarningCode = "scheduled_in_past"
	WarnCountersRepaired   WarningCode = "counters_repaired"
	WarnStaleCompletion    WarningCode = "stale_completion"
)

// Warning is returned alongside the ledger; mutations never fail
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// EventType names a signal for the analytics collaborator
type EventType string

const (
	EventCallCompleted EventType = "call_completed"
	EventHighValueLead EventType = "high_value_lead"
	EventCycleReset    EventType = "cycle_reset"
)

// Event is emitted by a mutation; the core keeps no aggregate state
type Event struct {
	Type         EventType `json:"type"`
	Minutes      float64   `json:"minutes,omitempty"`
	TotalMinutes float64   `json:"totalMinutes,omitempty"`
}

// Result is what every mutation returns: the updated ledger plus anything worth surfacing
type Result struct {
	Ledger   *models.ReachOutLedger `json:"reachOut"`
	Warnings []Warning              `json:"warnings,omitempty"`
	Events   []Event                `json:"events,omitempty"`

	// AwaitingDuration is set after a connected attempt until the duration is recorded
	AwaitingDuration bool `json:"awaitingDuration,omitempty"`
}

func (r *Result) warn(code WarningCode, msg string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: msg})
}

func (r *Result) emit(e Event) {
	r.Events = append(r.Events, e)
}

// Env is the input every mutation shares
type Env struct {
	Now    time.Time
	Policy Policy

	// LeadHighlightHours is the lead-level highlight duration, if any
	LeadHighlightHours *float64
}

// CallAttempt describes one dial
type CallAttempt struct {
	Connected     bool   `json:"connected"`
	LeftVoicemail bool   `json:"leftVoicemail"`
	Notes         string `json:"notes"`
}

// begin copies the ledger, creating an empty one when absent, and repairs
// counters that break callAttempts >= callsConnected >= 0. A completion that
// has lapsed by env.Now is retired first so the operation lands in a new cycle.
func begin(l *models.ReachOutLedger, env Env) (*models.ReachOutLedger, Result) {
	out := l.Clone()
	if out == nil {
		out = &models.ReachOutLedger{CallLogs: []models.CallLog{}}
	}
	res := Result{Ledger: out}

	repaired := false
	for _, c := range []*int{&out.CallAttempts, &out.CallsConnected, &out.EmailCount, &out.TextCount, &out.VoicemailCount} {
		if *c < 0 {
			*c = 0
			repaired = true
		}
	}
	if out.CallsConnected > out.CallAttempts {
		out.CallAttempts = out.CallsConnected
		repaired = true
	}
	if repaired {
		res.warn(WarnCountersRepaired, "negative or inconsistent counters were repaired")
	}

	if reason := repairStale(out, env.Now, env.Policy.withDefaults()); reason != "" {
		res.warn(WarnStaleCompletion, "previous completion was retired ("+string(reason)+")")
	}
	return out, res
}

// markCompleted stamps the cycle as satisfied if it is not already
func markCompleted(l *models.ReachOutLedger, now time.Time, via models.CompletionChannel) time.Time {
	if existing := l.CompletionTime(); existing != nil {
		if l.CompletedAt == nil {
			t := *existing
			l.CompletedAt = &t
		}
		if l.ReachOutCompletedAt == nil {
			t := *existing
			l.ReachOutCompletedAt = &t
		}
		return *existing
	}
	completedAt, reachOutAt := now, now
	l.CompletedAt = &completedAt
	l.ReachOutCompletedAt = &reachOutAt
	l.CompletedVia = via
	l.HighlightExpired = false
	l.ExpiredAt = nil
	return now
}

// completeWithDuration marks the cycle complete and derives the highlight from the resolved duration
func completeWithDuration(l *models.ReachOutLedger, env Env, via models.CompletionChannel) {
	completedAt := markCompleted(l, env.Now, via)
	EnsureHighlight(l, completedAt, ResolveHighlightDuration(l, env.LeadHighlightHours, env.Policy))
}

// RecordCallAttempt counts a dial. A connected call is logged as pending until
// RecordCallDuration finalises it; an unanswered one is logged immediately.
func RecordCallAttempt(l *models.ReachOutLedger, env Env, attempt CallAttempt) Result {
	out, res := begin(l, env)

	if idx := out.PendingCallIndex(); idx >= 0 {
		out.CallLogs[idx].Pending = false
		res.warn(WarnPendingCallDropped, "previous connected call was never given a duration")
	}

	out.CallAttempts++
	out.CallMade = true

	entry := models.CallLog{
		Timestamp: env.Now,
		Connected: attempt.Connected,
		Notes:     attempt.Notes,
	}
	if attempt.Connected {
		out.CallsConnected++
		entry.Pending = true
		res.AwaitingDuration = true
	} else if attempt.LeftVoicemail {
		out.VoicemailCount++
		entry.LeftVoicemail = true
	}
	out.CallLogs = append(out.CallLogs, entry)
	return res
}

// RecordCallDuration finalises the pending connected call, completes the cycle
// and signals when cumulative connected time crosses the high-value threshold.
func RecordCallDuration(l *models.ReachOutLedger, env Env, raw string) Result {
	out, res := begin(l, env)
	policy := env.Policy.withDefaults()

	idx := out.PendingCallIndex()
	if idx < 0 {
		res.warn(WarnNoPendingCall, "no connected call is waiting for a duration")
		return res
	}

	minutes, ok := ParseCallDuration(raw)
	if !ok {
		res.warn(WarnMalformedDuration, "call duration "+strconv.Quote(raw)+" was not understood, recorded as 0")
	}

	before := TotalConnectedMinutes(out)
	label := FormatCallDuration(minutes)
	out.CallLogs[idx].Duration = &label
	out.CallLogs[idx].Pending = false
	after := TotalConnectedMinutes(out)

	completeWithDuration(out, env, models.ChannelCall)

	res.emit(Event{Type: EventCallCompleted, Minutes: minutes, TotalMinutes: after})
	if before < policy.HighValueMinutes && after >= policy.HighValueMinutes {
		res.emit(Event{Type: EventHighValueLead, Minutes: minutes, TotalMinutes: after})
	}
	return res
}

// RecordEmailSent counts an outbound email
func RecordEmailSent(l *models.ReachOutLedger, env Env) Result {
	out, res := begin(l, env)
	out.EmailCount++
	out.EmailSent = true
	return res
}

// RecordTextSent counts an outbound text. Text is the last step of the
// channel sequence, so it completes the cycle.
func RecordTextSent(l *models.ReachOutLedger, env Env) Result {
	out, res := begin(l, env)
	out.TextCount++
	out.TextSent = true
	completeWithDuration(out, env, models.ChannelText)
	return res
}

// CancelPendingCall rolls back a connected attempt that never got a duration
func CancelPendingCall(l *models.ReachOutLedger, env Env) Result {
	out, res := begin(l, env)

	idx := out.PendingCallIndex()
	if idx < 0 {
		res.warn(WarnNoPendingCall, "no connected call is waiting for a duration")
		return res
	}

	out.CallLogs = append(out.CallLogs[:idx], out.CallLogs[idx+1:]...)
	if out.CallAttempts > 0 {
		out.CallAttempts--
	}
	if out.CallsConnected > 0 {
		out.CallsConnected--
	}
	out.CallMade = out.CallAttempts > 0
	return res
}

// ResetForStageChange starts a fresh cycle when the lead moves into a stage
// that mandates one. Any other move keeps the ledger and its history.
func ResetForStageChange(l *models.ReachOutLedger, env Env, from, to models.Stage) Result {
	out, res := begin(l, env)
	if from == to || !to.RequiresFreshReachOut() {
		return res
	}

	out.CallAttempts = 0
	out.CallsConnected = 0
	out.EmailCount = 0
	out.TextCount = 0
	out.VoicemailCount = 0
	clearCompletion(out)
	out.ScheduledCallDate = ""
	out.ScheduledCallTime = ""
	out.CallMade = false
	out.EmailSent = false
	out.TextSent = false
	out.EmailConfirmed = false
	out.HighlightExpired = false
	out.ExpiredAt = nil
	for i := range out.CallLogs {
		out.CallLogs[i].Pending = false
	}

	res.emit(Event{Type: EventCycleReset})
	return res
}

// ScheduleCall records a callback commitment. The highlight runs exactly until
// the callback and the current cycle counts as done.
func ScheduleCall(l *models.ReachOutLedger, env Env, at time.Time) Result {
	out, res := begin(l, env)
	if !at.After(env.Now) {
		res.warn(WarnScheduledInPast, "scheduled call time "+at.Format(time.RFC3339)+" is not in the future")
		return res
	}

	at = at.UTC()
	out.ScheduledCallDate = at.Format("2006-01-02")
	out.ScheduledCallTime = at.Format("15:04")
	until := at
	out.GreenHighlightUntil = &until
	markCompleted(out, env.Now, models.ChannelScheduledCall)
	return res
}

// ConfirmEmail records whether the prospect confirmed an email. It completes
// the cycle without touching the call log.
func ConfirmEmail(l *models.ReachOutLedger, env Env, confirmed bool, notes string) Result {
	out, res := begin(l, env)
	policy := env.Policy.withDefaults()

	out.EmailConfirmations = append(out.EmailConfirmations, models.EmailConfirmation{
		ID:        uuid.NewString(),
		Timestamp: env.Now,
		Confirmed: confirmed,
		Notes:     notes,
	})
	out.EmailConfirmed = confirmed

	markCompleted(out, env.Now, models.ChannelEmailConfirmation)
	d := policy.EmailDeclinedHighlight
	if confirmed {
		d = policy.EmailConfirmedHighlight
	}
	extendHighlight(out, ComputeExpiry(env.Now, d))
	return res
}

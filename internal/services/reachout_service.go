package services

import (
	"context"
	"fmt"
	"time"

	"github.com/checkfox/go_reachout/internal/analytics"
	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/models"
	"github.com/checkfox/go_reachout/internal/notify"
	"github.com/checkfox/go_reachout/internal/reachout"
)

// SyncQueue accepts lead ids to mirror to the backend
type SyncQueue interface {
	Enqueue(ctx context.Context, leadID string) bool
}

// LeadView is a lead with its current reach-out evaluation
type LeadView struct {
	Lead           *models.Lead              `json:"lead"`
	Evaluation     reachout.Evaluation       `json:"evaluation"`
	Classification *reachout.Classification `json:"classification,omitempty"`
}

// MutationResult is what the desk returns after a ledger operation
type MutationResult struct {
	LeadView
	Warnings         []reachout.Warning `json:"warnings,omitempty"`
	Events           []reachout.Event   `json:"events,omitempty"`
	AwaitingDuration bool               `json:"awaitingDuration,omitempty"`
	SuggestClosure   bool               `json:"suggestClosure,omitempty"`
	Synced           bool               `json:"syncQueued"`
}

// ReachOutService applies reach-out operations to the local cache and mirrors them to the backend
type ReachOutService struct {
	store      LeadStore
	backend    Backend
	sync       SyncQueue
	notifier   notify.Notifier
	recorder   analytics.Recorder
	normalizer *Normalizer
	policy     reachout.Policy
	now        func() time.Time
}

// NewReachOutService wires the desk service
func NewReachOutService(store LeadStore, backend Backend, sync SyncQueue, notifier notify.Notifier, recorder analytics.Recorder, policy reachout.Policy) *ReachOutService {
	if recorder == nil {
		recorder = analytics.Nop{}
	}
	return &ReachOutService{
		store:      store,
		backend:    backend,
		sync:       sync,
		notifier:   notifier,
		recorder:   recorder,
		normalizer: NewNormalizer(),
		policy:     policy,
		now:        time.Now,
	}
}

// SetClock overrides the time source
func (s *ReachOutService) SetClock(now func() time.Time) {
	s.now = now
}

// Get evaluates a lead. Repairs found by the evaluator (orphans, expired cycles)
// are written back to the cache and synced.
func (s *ReachOutService) Get(ctx context.Context, id string) (*LeadView, error) {
	ctx = logger.WithLeadID(ctx, id)

	lead, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.missing(ctx, err)
	}

	eval := reachout.Evaluate(lead.Stage, lead.ReachOut, s.now(), s.policy)
	if eval.Changed {
		lead, err = s.store.Update(ctx, id, func(l *models.Lead) error {
			e := reachout.Evaluate(l.Stage, l.ReachOut, s.now(), s.policy)
			if e.Changed {
				l.ReachOut = e.Ledger
				l.UpdatedAt = s.now().UTC()
				l.SyncPending = true
			}
			return nil
		})
		if err != nil {
			return nil, s.missing(ctx, err)
		}
		s.recordRepair(ctx, id, eval)
		s.enqueue(ctx, id)
	}

	return s.view(lead), nil
}

// RecordCall logs a call attempt
func (s *ReachOutService) RecordCall(ctx context.Context, id string, attempt reachout.CallAttempt) (*MutationResult, error) {
	return s.mutate(ctx, id, "record_call", func(l *models.Lead, env reachout.Env) reachout.Result {
		return reachout.RecordCallAttempt(l.ReachOut, env, attempt)
	})
}

// RecordCallDuration finalises the pending connected call
func (s *ReachOutService) RecordCallDuration(ctx context.Context, id, duration string) (*MutationResult, error) {
	return s.mutate(ctx, id, "record_call_duration", func(l *models.Lead, env reachout.Env) reachout.Result {
		return reachout.RecordCallDuration(l.ReachOut, env, duration)
	})
}

// CancelPendingCall withdraws the connected call still awaiting a duration
func (s *ReachOutService) CancelPendingCall(ctx context.Context, id string) (*MutationResult, error) {
	return s.mutate(ctx, id, "cancel_pending_call", func(l *models.Lead, env reachout.Env) reachout.Result {
		return reachout.CancelPendingCall(l.ReachOut, env)
	})
}

// RecordEmail counts an email sent to the lead
func (s *ReachOutService) RecordEmail(ctx context.Context, id string) (*MutationResult, error) {
	return s.mutate(ctx, id, "record_email", func(l *models.Lead, env reachout.Env) reachout.Result {
		return reachout.RecordEmailSent(l.ReachOut, env)
	})
}

// RecordText counts a text message; a text completes the cycle
func (s *ReachOutService) RecordText(ctx context.Context, id string) (*MutationResult, error) {
	return s.mutate(ctx, id, "record_text", func(l *models.Lead, env reachout.Env) reachout.Result {
		return reachout.RecordTextSent(l.ReachOut, env)
	})
}

// ScheduleCall commits to a callback at the given time
func (s *ReachOutService) ScheduleCall(ctx context.Context, id string, at time.Time) (*MutationResult, error) {
	return s.mutate(ctx, id, "schedule_call", func(l *models.Lead, env reachout.Env) reachout.Result {
		return reachout.ScheduleCall(l.ReachOut, env, at)
	})
}

// ConfirmEmail records whether the lead confirmed receipt of an email
func (s *ReachOutService) ConfirmEmail(ctx context.Context, id string, confirmed bool, notes string) (*MutationResult, error) {
	return s.mutate(ctx, id, "confirm_email", func(l *models.Lead, env reachout.Env) reachout.Result {
		return reachout.ConfirmEmail(l.ReachOut, env, confirmed, notes)
	})
}

// ChangeStage moves the lead to a new stage, resetting the ledger when the new
// stage demands a fresh reach-out
func (s *ReachOutService) ChangeStage(ctx context.Context, id string, to models.Stage) (*MutationResult, error) {
	to = s.normalizer.NormalizeStage(string(to))
	if !to.IsValid() {
		return nil, models.NewValidationError("stage", fmt.Sprintf("unknown stage %q", to))
	}

	var from models.Stage
	res, err := s.mutate(ctx, id, "change_stage", func(l *models.Lead, env reachout.Env) reachout.Result {
		from = l.Stage
		r := reachout.ResetForStageChange(l.ReachOut, env, from, to)
		l.Stage = to
		return r
	})
	if err == nil && from != to {
		logger.LogStageTransition(ctx, id, string(from), string(to))
	}
	return res, err
}

// Refresh merges the backend's active leads into the cache. Cached leads with
// changes the backend has not acknowledged are kept and queued for sync again.
func (s *ReachOutService) Refresh(ctx context.Context) (int, error) {
	if s.backend == nil {
		return 0, fmt.Errorf("no backend configured")
	}
	leads, err := s.backend.ListLeads(ctx, models.LeadStatusActive)
	if err != nil {
		s.notify(ctx, "Could not refresh leads from the server; showing local data.", notify.LevelWarning)
		return 0, fmt.Errorf("failed to list leads from backend: %w", err)
	}
	for _, l := range leads {
		s.normalizer.NormalizeLead(l)
		l.SyncPending = false
	}

	pending, err := s.store.Merge(ctx, leads)
	if err != nil {
		return 0, fmt.Errorf("failed to merge cached leads: %w", err)
	}
	for _, id := range pending {
		logger.Info(logger.WithLeadID(ctx, id), "Kept unsynced local changes over backend copy")
		s.enqueue(ctx, id)
	}
	if len(pending) > 0 {
		s.notify(ctx, fmt.Sprintf("%d lead(s) have local changes not yet saved to the server; retrying.", len(pending)), notify.LevelInfo)
	}

	logger.Info(ctx, "Refreshed lead cache from backend", "count", len(leads), "kept_local", len(pending))
	return len(leads), nil
}

// LiveStats summarises call activity over the cached leads
func (s *ReachOutService) LiveStats(ctx context.Context) (LiveStats, error) {
	leads, err := s.store.List(ctx)
	if err != nil {
		return LiveStats{}, err
	}
	return ComputeLiveStats(leads, s.now(), s.policy), nil
}

// mutate runs one ledger operation against the cache, then hands the lead to the syncer
func (s *ReachOutService) mutate(ctx context.Context, id, op string, fn func(*models.Lead, reachout.Env) reachout.Result) (*MutationResult, error) {
	ctx = logger.WithLeadID(ctx, id)
	now := s.now()

	var res reachout.Result
	var repair reachout.Evaluation
	var class reachout.Classification
	var classified bool

	lead, err := s.store.Update(ctx, id, func(l *models.Lead) error {
		s.normalizer.NormalizeLead(l)

		// retire a lapsed or orphaned completion so the operation starts a new cycle
		repair = reachout.Evaluate(l.Stage, l.ReachOut, now, s.policy)
		if repair.Changed {
			l.ReachOut = repair.Ledger
		}

		env := reachout.Env{Now: now, Policy: s.policy, LeadHighlightHours: l.HighlightDuration}
		res = fn(l, env)
		l.ReachOut = res.Ledger

		if class, classified = reachout.ClassifyLedger(l.ReachOut); classified {
			l.Priority = class.Tier
		}
		l.UpdatedAt = now.UTC()
		l.SyncPending = true
		return nil
	})
	if err != nil {
		return nil, s.missing(ctx, err)
	}
	s.recordRepair(ctx, id, repair)

	for _, w := range res.Warnings {
		logger.Warn(ctx, "Reach-out operation warning", "operation", op, "code", string(w.Code), "detail", w.Message)
	}
	s.forwardEvents(ctx, id, res.Events)

	suggest := classified && class.SuggestClosure && !lead.Stage.IsTerminal()
	if suggest {
		s.recorder.ClosureSuggested(id)
	}

	out := &MutationResult{
		LeadView:         *s.view(lead),
		Warnings:         res.Warnings,
		Events:           res.Events,
		AwaitingDuration: res.AwaitingDuration,
		SuggestClosure:   suggest,
	}
	out.Synced = s.enqueue(ctx, id)

	logger.Info(ctx, "Applied reach-out operation", "operation", op, "status", string(out.Evaluation.Status))
	return out, nil
}

func (s *ReachOutService) forwardEvents(ctx context.Context, id string, events []reachout.Event) {
	for _, e := range events {
		switch e.Type {
		case reachout.EventCallCompleted:
			s.recorder.CallCompleted(id, e.Minutes)
		case reachout.EventHighValueLead:
			s.recorder.HighValueLead(id, e.TotalMinutes)
			s.notify(ctx, fmt.Sprintf("Lead %s is now high value (%s on the phone)", id, reachout.FormatCallDuration(e.TotalMinutes)), notify.LevelSuccess)
		case reachout.EventCycleReset:
			s.recorder.CycleReopened(id, string(e.Type))
		}
	}
}

func (s *ReachOutService) recordRepair(ctx context.Context, id string, eval reachout.Evaluation) {
	switch eval.Reason {
	case reachout.ReasonOrphanCleared:
		s.recorder.OrphanRepaired(id)
		logger.Info(ctx, "Cleared orphaned completion")
	case reachout.ReasonCycleExpired, reachout.ReasonHighlightExpired:
		s.recorder.CycleReopened(id, string(eval.Reason))
		logger.Info(ctx, "Reopened expired reach-out cycle", "reason", string(eval.Reason))
	}
}

func (s *ReachOutService) view(lead *models.Lead) *LeadView {
	v := &LeadView{
		Lead:       lead,
		Evaluation: reachout.Evaluate(lead.Stage, lead.ReachOut, s.now(), s.policy),
	}
	if c, ok := reachout.ClassifyLedger(lead.ReachOut); ok {
		v.Classification = &c
	}
	// Evaluation carries its own ledger copy; the lead already has it
	v.Evaluation.Ledger = nil
	return v
}

func (s *ReachOutService) enqueue(ctx context.Context, id string) bool {
	if s.sync == nil {
		return false
	}
	return s.sync.Enqueue(ctx, id)
}

// missing logs lookups of unknown leads at error level and passes the error through
func (s *ReachOutService) missing(ctx context.Context, err error) error {
	if models.IsNotFound(err) {
		logger.LogError(ctx, "Reach-out operation on unknown lead", err)
	}
	return err
}

func (s *ReachOutService) notify(ctx context.Context, msg string, level notify.Level) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, msg, level)
	}
}

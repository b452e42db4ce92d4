package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/checkfox/go_reachout/internal/analytics"
	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/models"
	"github.com/checkfox/go_reachout/internal/queue"
	"github.com/checkfox/go_reachout/internal/reachout"
	"github.com/checkfox/go_reachout/internal/repository"
	"github.com/checkfox/go_reachout/internal/services"
)

// Processor evaluates leads server-side: it clears orphaned completions,
// reopens expired cycles and records each repair in the audit trail
type Processor struct {
	queue        queue.Queue
	leadRepo     repository.LeadRepository
	eventRepo    repository.ReachOutEventRepository
	normalizer   *services.Normalizer
	recorder     analytics.Recorder
	policy       reachout.Policy
	pollInterval time.Duration
	maxAttempts  int
	retryBackoff time.Duration
	now          func() time.Time
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// ProcessorConfig holds configuration for the worker processor
type ProcessorConfig struct {
	Queue        queue.Queue
	LeadRepo     repository.LeadRepository
	EventRepo    repository.ReachOutEventRepository
	Normalizer   *services.Normalizer
	Recorder     analytics.Recorder
	Policy       reachout.Policy
	PollInterval time.Duration

	// MaxAttempts bounds retries of a job that hit a conflict or an outage
	MaxAttempts int

	// RetryBackoff is the first retry delay; it doubles per attempt
	RetryBackoff time.Duration

	// Now overrides the clock in tests
	Now func() time.Time
}

// Outcome describes one lead evaluation
type Outcome struct {
	LeadID  string
	Status  reachout.Status
	Reason  reachout.Reason
	Changed bool
}

// NewProcessor creates a new worker processor
func NewProcessor(config ProcessorConfig) *Processor {
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 5
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = 30 * time.Second
	}
	if config.Normalizer == nil {
		config.Normalizer = services.NewNormalizer()
	}
	if config.Recorder == nil {
		config.Recorder = analytics.Nop{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Processor{
		queue:        config.Queue,
		leadRepo:     config.LeadRepo,
		eventRepo:    config.EventRepo,
		normalizer:   config.Normalizer,
		recorder:     config.Recorder,
		policy:       config.Policy,
		pollInterval: config.PollInterval,
		maxAttempts:  config.MaxAttempts,
		retryBackoff: config.RetryBackoff,
		now:          config.Now,
		shutdownChan: make(chan struct{}),
	}
}

// Start runs the polling loop until ctx is cancelled or Shutdown is called
func (p *Processor) Start(ctx context.Context) error {
	logger.Info(ctx, "Starting worker processor", "poll_interval", p.pollInterval.String())

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context cancelled, shutting down gracefully")
			return ctx.Err()

		case <-p.shutdownChan:
			logger.Info(ctx, "Shutdown requested, shutting down gracefully")
			return nil

		case <-ticker.C:
			// Drain whatever is due before waiting for the next tick
			for {
				processed, err := p.pollAndProcess(ctx)
				if err != nil {
					logger.LogError(ctx, "Error polling and processing jobs", err)
				}
				if !processed || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// Shutdown signals the worker to stop gracefully
func (p *Processor) Shutdown() {
	p.shutdownOnce.Do(func() { close(p.shutdownChan) })
}

// pollAndProcess handles at most one job and reports whether one was found
func (p *Processor) pollAndProcess(ctx context.Context) (bool, error) {
	job, err := p.queue.Dequeue(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to dequeue job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	logger.Info(ctx, "Processing job", "job_id", job.ID, "job_type", job.Type, "lead_id", job.LeadID, "attempt", job.Attempts)

	var processErr error
	switch job.Type {
	case queue.JobTypeEvaluateLead:
		processErr = p.processJob(ctx, job)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if processErr != nil {
		return true, p.settleFailure(ctx, job, processErr)
	}

	if err := p.queue.Complete(ctx, job.ID); err != nil {
		logger.LogError(ctx, "Failed to mark job as completed", err, "job_id", job.ID)
		return true, err
	}

	logger.Info(ctx, "Job completed successfully", "job_id", job.ID)
	return true, nil
}

// settleFailure retries transient failures with exponential backoff and fails the rest
func (p *Processor) settleFailure(ctx context.Context, job *queue.Job, processErr error) error {
	if isTransient(processErr) && job.Attempts < p.maxAttempts {
		delay := p.retryBackoff * time.Duration(1<<uint(max(job.Attempts-1, 0)))
		logger.Warn(ctx, "Job hit a transient failure, retrying",
			"job_id", job.ID, "attempt", job.Attempts, "delay", delay.String(), "error", processErr.Error())
		if err := p.queue.Retry(ctx, job.ID, delay); err != nil {
			logger.LogError(ctx, "Failed to reschedule job", err, "job_id", job.ID)
			return err
		}
		return processErr
	}

	logger.LogError(ctx, "Job failed", processErr, "job_id", job.ID)
	if err := p.queue.Fail(ctx, job.ID, processErr.Error()); err != nil {
		logger.LogError(ctx, "Failed to mark job as failed", err, "job_id", job.ID)
	}
	return processErr
}

// isTransient reports failures worth retrying: a concurrent write or an outage
func isTransient(err error) bool {
	return models.IsVersionConflict(err) || queue.IsUnavailableError(err)
}

// processJob evaluates the lead named in the job payload
func (p *Processor) processJob(ctx context.Context, job *queue.Job) error {
	leadID, ok := queue.GetLeadID(job.Payload)
	if !ok {
		return fmt.Errorf("%w: missing lead_id", queue.ErrInvalidPayload)
	}

	_, err := p.EvaluateLead(ctx, leadID)
	if models.IsNotFound(err) {
		// Deleted between enqueue and pickup
		logger.Warn(logger.WithLeadID(ctx, leadID), "Lead no longer exists, dropping job", "job_id", job.ID)
		return nil
	}
	return err
}

// EvaluateLead normalizes and evaluates one lead, persisting any repair together with an audit event
func (p *Processor) EvaluateLead(ctx context.Context, leadID string) (*Outcome, error) {
	startTime := time.Now()
	ctx = logger.WithLeadID(ctx, leadID)
	defer func() { logger.LogSlowOperation(ctx, "evaluate_lead", time.Since(startTime)) }()

	lead, err := p.leadRepo.GetLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lead %s: %w", leadID, err)
	}

	outcome := &Outcome{LeadID: leadID}
	if lead.IsArchived() {
		outcome.Status = reachout.StatusNotApplicable
		logger.Debug(ctx, "Skipping archived lead")
		return outcome, nil
	}

	expectedVersion := lead.Version
	oldStage := lead.Stage
	normalized := p.normalizer.NormalizeLead(lead)

	eval := reachout.Evaluate(lead.Stage, lead.ReachOut, p.now(), p.policy)
	outcome.Status = eval.Status
	outcome.Reason = eval.Reason
	if eval.Changed {
		lead.ReachOut = eval.Ledger
	}

	if !normalized && !eval.Changed {
		logger.Debug(ctx, "Lead reach-out state unchanged", "status", string(eval.Status))
		return outcome, nil
	}
	outcome.Changed = true

	if err := p.persist(ctx, lead, expectedVersion, eval, normalized); err != nil {
		return nil, err
	}

	if oldStage != lead.Stage {
		logger.LogStageTransition(ctx, leadID, string(oldStage), string(lead.Stage))
	}
	switch {
	case eval.Reason == reachout.ReasonOrphanCleared:
		p.recorder.OrphanRepaired(leadID)
	case eval.Reopened():
		p.recorder.CycleReopened(leadID, string(eval.Reason))
	}

	logger.Info(ctx, "Lead reach-out state repaired",
		"status", string(eval.Status),
		"reason", string(eval.Reason),
		"normalized", normalized,
		"version", lead.Version)
	return outcome, nil
}

// persist writes the lead and its audit event atomically
func (p *Processor) persist(ctx context.Context, lead *models.Lead, expectedVersion int64, eval reachout.Evaluation, normalized bool) error {
	tx, err := p.leadRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := p.leadRepo.UpdateLeadTx(ctx, tx, lead, expectedVersion); err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}

	event := models.NewReachOutEvent(lead.ID, lead.Stage, string(eval.Status), string(eval.Reason))
	event.CreatedAt = p.now().UTC()
	event.Snapshot = snapshot(lead.ReachOut, normalized)
	if err := p.eventRepo.CreateEventTx(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to create reach-out event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// snapshot captures the ledger fields an auditor needs to follow a repair
func snapshot(l *models.ReachOutLedger, normalized bool) models.JSONB {
	s := models.JSONB{"normalized": normalized}
	if l == nil {
		return s
	}
	s["callAttempts"] = l.CallAttempts
	s["callsConnected"] = l.CallsConnected
	s["textCount"] = l.TextCount
	s["highlightExpired"] = l.HighlightExpired
	if l.ExpiredAt != nil {
		s["expiredAt"] = l.ExpiredAt.UTC().Format(time.RFC3339)
	}
	if via := l.CompletedVia; via != "" {
		s["completedVia"] = string(via)
	}
	return s
}

package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/models"
	"github.com/checkfox/go_reachout/internal/repository"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// LeadEvaluator is the part of Processor the sweeper drives
type LeadEvaluator interface {
	EvaluateLead(ctx context.Context, leadID string) (*Outcome, error)
}

// SweepReport summarises one pass over the active leads
type SweepReport struct {
	Scanned   int64
	Changed   int64
	Conflicts int64
	Failed    int64
	Duration  time.Duration
}

// Sweeper periodically evaluates every active lead so expired cycles reopen
// even when nobody opens the lead
type Sweeper struct {
	leadRepo    repository.LeadRepository
	evaluator   LeadEvaluator
	interval    time.Duration
	concurrency int
	limiter     *rate.Limiter
}

// NewSweeper creates a sweeper. ratePerSecond <= 0 disables pacing.
func NewSweeper(leadRepo repository.LeadRepository, evaluator LeadEvaluator, interval time.Duration, concurrency int, ratePerSecond float64) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if concurrency < 1 {
		concurrency = 1
	}
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &Sweeper{
		leadRepo:    leadRepo,
		evaluator:   evaluator,
		interval:    interval,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(limit, concurrency),
	}
}

// Run sweeps once immediately and then on every interval until ctx is done
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			logger.LogError(ctx, "Reach-out sweep failed", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep evaluates all active leads with bounded concurrency. A failing lead
// is counted and logged; it does not stop the pass.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	var report SweepReport

	ids, err := s.leadRepo.ListLeadIDs(ctx, models.LeadStatusActive)
	if err != nil {
		return report, fmt.Errorf("failed to list active leads: %w", err)
	}

	var changed, conflicts, failed atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, id := range ids {
		if err := s.limiter.Wait(gCtx); err != nil {
			break
		}
		g.Go(func() error {
			outcome, err := s.evaluator.EvaluateLead(gCtx, id)
			switch {
			case models.IsVersionConflict(err):
				// Written concurrently; the write enqueued its own evaluation
				conflicts.Add(1)
			case models.IsNotFound(err):
			case err != nil:
				failed.Add(1)
				logger.LogError(logger.WithLeadID(gCtx, id), "Sweep evaluation failed", err)
			case outcome != nil && outcome.Changed:
				changed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report = SweepReport{
		Scanned:   int64(len(ids)),
		Changed:   changed.Load(),
		Conflicts: conflicts.Load(),
		Failed:    failed.Load(),
		Duration:  time.Since(start),
	}

	logger.Info(ctx, "Reach-out sweep finished",
		"scanned", report.Scanned,
		"changed", report.Changed,
		"conflicts", report.Conflicts,
		"failed", report.Failed,
		"duration_ms", report.Duration.Milliseconds())
	return report, ctx.Err()
}

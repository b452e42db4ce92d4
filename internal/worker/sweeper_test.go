package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/checkfox/go_reachout/internal/models"
)

// stubEvaluator returns canned outcomes and tracks peak concurrency
type stubEvaluator struct {
	mu       sync.Mutex
	results  map[string]error
	changed  map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	seen     []string
}

func (e *stubEvaluator) EvaluateLead(ctx context.Context, leadID string) (*Outcome, error) {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)

	e.mu.Lock()
	e.seen = append(e.seen, leadID)
	err := e.results[leadID]
	changed := e.changed[leadID]
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &Outcome{LeadID: leadID, Changed: changed}, nil
}

func TestSweep_Report(t *testing.T) {
	var leads []*models.Lead
	for i := 0; i < 6; i++ {
		leads = append(leads, models.NewLead(fmt.Sprintf("lead-%d", i), models.StageQuoted))
	}
	archived := models.NewLead("archived", models.StageQuoted)
	archived.Status = models.LeadStatusArchived
	leads = append(leads, archived)

	eval := &stubEvaluator{
		results: map[string]error{
			"lead-1": models.NewVersionConflictError("lead-1", 1, 2),
			"lead-2": errors.New("database went away"),
			"lead-3": models.NewLeadNotFoundError("lead-3"),
		},
		changed: map[string]bool{"lead-4": true, "lead-5": true},
	}

	s := NewSweeper(newMemLeadRepo(t, leads...), eval, time.Minute, 2, 0)
	report, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if report.Scanned != 6 {
		t.Errorf("Expected 6 active leads scanned, got %d", report.Scanned)
	}
	if report.Changed != 2 {
		t.Errorf("Expected 2 changed, got %d", report.Changed)
	}
	if report.Conflicts != 1 {
		t.Errorf("Expected 1 conflict, got %d", report.Conflicts)
	}
	if report.Failed != 1 {
		t.Errorf("Expected 1 failure, got %d", report.Failed)
	}
	if peak := eval.peak.Load(); peak > 2 {
		t.Errorf("Expected at most 2 concurrent evaluations, got %d", peak)
	}
	for _, id := range eval.seen {
		if id == "archived" {
			t.Error("Expected archived lead to be skipped")
		}
	}
}

func TestSweep_RateLimited(t *testing.T) {
	var leads []*models.Lead
	for i := 0; i < 5; i++ {
		leads = append(leads, models.NewLead(fmt.Sprintf("lead-%d", i), models.StageQuoted))
	}

	// Burst of 1 at 50/s: four waits of 20ms
	s := NewSweeper(newMemLeadRepo(t, leads...), &stubEvaluator{}, time.Minute, 1, 50)

	start := time.Now()
	if _, err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("Expected pacing to slow the sweep, took %v", elapsed)
	}
}

func TestSweep_WithProcessor(t *testing.T) {
	orphan := models.NewLead("orphan", models.StageQuoted)
	orphan.ReachOut = &models.ReachOutLedger{CompletedAt: timePtr(testNow.Add(-time.Hour))}
	clean := models.NewLead("clean", models.StageNew)

	f := newProcessorFixture(t, nil, orphan, clean)
	s := NewSweeper(f.leads, f.processor, time.Minute, 4, 0)

	report, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if report.Changed != 1 {
		t.Errorf("Expected 1 repaired lead, got %d", report.Changed)
	}
	if f.leads.stored("orphan").ReachOut.CompletedAt != nil {
		t.Error("Expected orphan to be cleared by the sweep")
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	eval := &stubEvaluator{}
	s := NewSweeper(newMemLeadRepo(t, models.NewLead("lead-1", models.StageQuoted)), eval, 10*time.Millisecond, 1, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}

	eval.mu.Lock()
	defer eval.mu.Unlock()
	if len(eval.seen) < 2 {
		t.Errorf("Expected repeated sweeps, got %d evaluations", len(eval.seen))
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/checkfox/go_reachout/internal/analytics"
	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/models"
	"github.com/checkfox/go_reachout/internal/notify"
)

// Backend is the desk's view of the lead persistence backend
type Backend interface {
	UpdateLead(ctx context.Context, id string, patch *models.LeadPatch) (*models.Lead, error)
	ListLeads(ctx context.Context, status models.LeadStatus) ([]*models.Lead, error)
}

// LeadStore is the local lead cache
type LeadStore interface {
	Get(ctx context.Context, id string) (*models.Lead, error)
	List(ctx context.Context) ([]*models.Lead, error)
	Update(ctx context.Context, id string, fn func(*models.Lead) error) (*models.Lead, error)
	Merge(ctx context.Context, remote []*models.Lead) ([]string, error)
}

// Syncer mirrors cached leads to the backend from a single ordered dispatcher.
// Enqueue never blocks; failures become warning notifications and are not retried.
type Syncer struct {
	backend  Backend
	store    LeadStore
	notifier notify.Notifier
	recorder analytics.Recorder
	timeout  time.Duration

	mu      sync.RWMutex
	queue   chan string
	closed  bool
	done    chan struct{}
	started bool
}

// NewSyncer creates a syncer with a bounded queue of the given size
func NewSyncer(backend Backend, store LeadStore, notifier notify.Notifier, recorder analytics.Recorder, buffer int, timeout time.Duration) *Syncer {
	if buffer < 1 {
		buffer = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if recorder == nil {
		recorder = analytics.Nop{}
	}
	return &Syncer{
		backend:  backend,
		store:    store,
		notifier: notifier,
		recorder: recorder,
		timeout:  timeout,
		queue:    make(chan string, buffer),
		done:     make(chan struct{}),
	}
}

// Start launches the dispatcher goroutine
func (s *Syncer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop closes the queue and waits for queued syncs to drain
func (s *Syncer) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	started := s.started
	s.mu.Unlock()

	if started {
		<-s.done
	}
}

// Enqueue schedules a sync of the lead's current cached state.
// It reports false when the syncer is stopped or the queue is full.
func (s *Syncer) Enqueue(ctx context.Context, leadID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	select {
	case s.queue <- leadID:
		return true
	default:
		s.recorder.SyncResult(analytics.SyncDropped)
		s.warn(ctx, fmt.Sprintf("Backend sync queue full; lead %s saved locally only", leadID))
		return false
	}
}

func (s *Syncer) run(ctx context.Context) {
	defer close(s.done)
	logger.Info(ctx, "Backend syncer started")

	for leadID := range s.queue {
		s.SyncLead(ctx, leadID)
	}

	logger.Info(ctx, "Backend syncer stopped")
}

// SyncLead pushes one lead to the backend. The latest cached state is read at
// dispatch time, so a burst of mutations collapses into whatever is current.
func (s *Syncer) SyncLead(ctx context.Context, leadID string) {
	ctx = logger.WithLeadID(ctx, leadID)
	start := time.Now()

	lead, err := s.store.Get(ctx, leadID)
	if err != nil {
		logger.LogError(ctx, "Failed to read lead for backend sync", err)
		return
	}

	stage, priority := lead.Stage, lead.Priority
	patch := &models.LeadPatch{
		Stage:    &stage,
		Priority: &priority,
		ReachOut: lead.ReachOut,
	}
	if lead.Version > 0 {
		v := lead.Version
		patch.Version = &v
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	updated, err := s.backend.UpdateLead(reqCtx, leadID, patch)
	logger.LogSlowOperation(ctx, "backend_sync", time.Since(start))
	if err != nil {
		var syncErr *models.SyncError
		if errors.As(err, &syncErr) && syncErr.IsConflict() {
			s.recorder.SyncResult(analytics.SyncConflict)
			logger.Warn(ctx, "Backend rejected stale lead version", "version", lead.Version)
			s.warn(ctx, fmt.Sprintf("Lead %s was changed elsewhere; your changes are kept locally. Refresh to reconcile.", leadID))
			return
		}
		s.recorder.SyncResult(analytics.SyncFailed)
		logger.LogError(ctx, "Backend sync failed", err)
		s.warn(ctx, fmt.Sprintf("Could not save lead %s to the server; changes are kept locally.", leadID))
		return
	}

	s.recorder.SyncResult(analytics.SyncOK)
	if updated == nil {
		updated = &models.Lead{}
	}
	if _, err := s.store.Update(ctx, leadID, func(l *models.Lead) error {
		if updated.Version > l.Version {
			l.Version = updated.Version
		}
		// a mutation that landed during the request keeps the lead pending for its own sync
		if l.Stage == stage && l.Priority == priority && reflect.DeepEqual(l.ReachOut, lead.ReachOut) {
			l.SyncPending = false
		}
		return nil
	}); err != nil {
		logger.LogError(ctx, "Failed to record backend version locally", err)
	}
	logger.Debug(ctx, "Lead synced to backend", "version", updated.Version)
}

func (s *Syncer) warn(ctx context.Context, msg string) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, msg, notify.LevelWarning)
	}
}

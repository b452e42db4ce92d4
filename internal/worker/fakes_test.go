package worker

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/checkfox/go_reachout/internal/models"
	"github.com/checkfox/go_reachout/internal/queue"
	_ "modernc.org/sqlite"
)

var testNow = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

// openTxDB returns an in-memory database used only to hand out transactions
func openTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// memLeadRepo is an in-memory LeadRepository with version checks
type memLeadRepo struct {
	mu       sync.Mutex
	db       *sql.DB
	leads    map[string]*models.Lead
	conflict bool
	updates  int
}

func newMemLeadRepo(t *testing.T, leads ...*models.Lead) *memLeadRepo {
	r := &memLeadRepo{db: openTxDB(t), leads: make(map[string]*models.Lead)}
	for _, l := range leads {
		if l.Version == 0 {
			l.Version = 1
		}
		r.leads[l.ID] = l.Clone()
	}
	return r
}

func (r *memLeadRepo) CreateLead(ctx context.Context, lead *models.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[lead.ID]; ok {
		return models.NewVersionConflictError(lead.ID, 0, 1)
	}
	lead.Version = 1
	r.leads[lead.ID] = lead.Clone()
	return nil
}

func (r *memLeadRepo) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, models.NewLeadNotFoundError(id)
	}
	return l.Clone(), nil
}

func (r *memLeadRepo) ListLeads(ctx context.Context, status models.LeadStatus) ([]*models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Lead
	for _, l := range r.leads {
		if status == "" || l.Status == status {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (r *memLeadRepo) ListLeadIDs(ctx context.Context, status models.LeadStatus) ([]string, error) {
	leads, _ := r.ListLeads(ctx, status)
	ids := make([]string, 0, len(leads))
	for _, l := range leads {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

func (r *memLeadRepo) UpdateLead(ctx context.Context, lead *models.Lead, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.leads[lead.ID]
	if !ok {
		return models.NewLeadNotFoundError(lead.ID)
	}
	if r.conflict || current.Version != expectedVersion {
		return models.NewVersionConflictError(lead.ID, expectedVersion, current.Version+1)
	}
	lead.Version = current.Version + 1
	r.leads[lead.ID] = lead.Clone()
	r.updates++
	return nil
}

func (r *memLeadRepo) DeleteLead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[id]; !ok {
		return models.NewLeadNotFoundError(id)
	}
	delete(r.leads, id)
	return nil
}

func (r *memLeadRepo) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

func (r *memLeadRepo) UpdateLeadTx(ctx context.Context, tx *sql.Tx, lead *models.Lead, expectedVersion int64) error {
	return r.UpdateLead(ctx, lead, expectedVersion)
}

func (r *memLeadRepo) GetLeadCountsByStage(ctx context.Context) (map[string]int, error) {
	leads, _ := r.ListLeads(ctx, models.LeadStatusActive)
	counts := make(map[string]int)
	for _, l := range leads {
		counts[string(l.Stage)]++
	}
	return counts, nil
}

func (r *memLeadRepo) stored(id string) *models.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leads[id].Clone()
}

// memEventRepo collects audit events
type memEventRepo struct {
	mu     sync.Mutex
	events []*models.ReachOutEvent
	err    error
}

func (r *memEventRepo) CreateEvent(ctx context.Context, event *models.ReachOutEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	event.ID = int64(len(r.events) + 1)
	r.events = append(r.events, event)
	return nil
}

func (r *memEventRepo) CreateEventTx(ctx context.Context, tx *sql.Tx, event *models.ReachOutEvent) error {
	return r.CreateEvent(ctx, event)
}

func (r *memEventRepo) GetEventsByLeadID(ctx context.Context, leadID string) ([]*models.ReachOutEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ReachOutEvent
	for _, e := range r.events {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEventRepo) GetLatestEvent(ctx context.Context, leadID string) (*models.ReachOutEvent, error) {
	events, _ := r.GetEventsByLeadID(ctx, leadID)
	if len(events) == 0 {
		return nil, models.NewLeadNotFoundError(leadID)
	}
	return events[len(events)-1], nil
}

func (r *memEventRepo) CountEvents(ctx context.Context, leadID string) (int, error) {
	events, _ := r.GetEventsByLeadID(ctx, leadID)
	return len(events), nil
}

// fakeQueue serves prepared jobs and records how each one was settled
type fakeQueue struct {
	mu        sync.Mutex
	jobs      []*queue.Job
	completed []int64
	failed    map[int64]string
	retried   map[int64]time.Duration
	enqueued  []string
}

func newFakeQueue(jobs ...*queue.Job) *fakeQueue {
	return &fakeQueue{jobs: jobs, failed: map[int64]string{}, retried: map[int64]time.Duration{}}
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobType string, payload map[string]interface{}) error {
	return q.EnqueueWithDelay(ctx, jobType, payload, 0)
}

func (q *fakeQueue) EnqueueWithDelay(ctx context.Context, jobType string, payload map[string]interface{}, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	id, _ := queue.GetLeadID(payload)
	q.enqueued = append(q.enqueued, id)
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *fakeQueue) Complete(ctx context.Context, jobID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, jobID)
	return nil
}

func (q *fakeQueue) Retry(ctx context.Context, jobID int64, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retried[jobID] = delay
	return nil
}

func (q *fakeQueue) Fail(ctx context.Context, jobID int64, errorMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[jobID] = errorMsg
	return nil
}

func (q *fakeQueue) HealthCheck(ctx context.Context) error { return nil }
func (q *fakeQueue) Close() error                          { return nil }

// countingRecorder counts repairs reported to analytics
type countingRecorder struct {
	mu       sync.Mutex
	orphans  int
	reopened map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{reopened: map[string]int{}}
}

func (r *countingRecorder) HighValueLead(id string, total float64)   {}
func (r *countingRecorder) CallCompleted(id string, minutes float64) {}
func (r *countingRecorder) ClosureSuggested(id string)               {}
func (r *countingRecorder) SyncResult(result string)                 {}

func (r *countingRecorder) CycleReopened(id, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reopened[reason]++
}

func (r *countingRecorder) OrphanRepaired(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orphans++
}

func timePtr(t time.Time) *time.Time { return &t }

func evaluateJob(id int64, leadID string, attempts int) *queue.Job {
	return &queue.Job{ID: id, Type: queue.JobTypeEvaluateLead, LeadID: leadID, Payload: queue.NewJobPayload(leadID), Attempts: attempts}
}

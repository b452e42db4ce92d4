package services

import (
	"context"
	"sync"
	"time"

	"github.com/checkfox/go_reachout/internal/cache"
	"github.com/checkfox/go_reachout/internal/models"
	"github.com/checkfox/go_reachout/internal/notify"
)

var testNow = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

func newTestCache(leads ...*models.Lead) *cache.LeadCache {
	c := cache.New(cache.NewMemoryStore())
	ctx := context.Background()
	for _, l := range leads {
		if err := c.Put(ctx, l); err != nil {
			panic(err)
		}
	}
	return c
}

// fakeBackend records patches and answers with canned results
type fakeBackend struct {
	mu      sync.Mutex
	patches map[string][]*models.LeadPatch
	version int64
	err     error
	leads   []*models.Lead
	delay   time.Duration
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{patches: make(map[string][]*models.LeadPatch), version: 1}
}

func (b *fakeBackend) UpdateLead(ctx context.Context, id string, patch *models.LeadPatch) (*models.Lead, error) {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, models.NewSyncError(0, "network error", true, ctx.Err())
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.patches[id] = append(b.patches[id], patch)
	if b.err != nil {
		return nil, b.err
	}
	b.version++
	lead := models.NewLead(id, *patch.Stage)
	lead.Version = b.version
	return lead, nil
}

func (b *fakeBackend) ListLeads(ctx context.Context, status models.LeadStatus) ([]*models.Lead, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return b.leads, nil
}

func (b *fakeBackend) patchesFor(id string) []*models.LeadPatch {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*models.LeadPatch(nil), b.patches[id]...)
}

// recordingQueue captures enqueued ids without syncing
type recordingQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *recordingQueue) Enqueue(ctx context.Context, id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return true
}

// fakeRecorder counts analytics events
type fakeRecorder struct {
	mu        sync.Mutex
	highValue []string
	completed int
	minutes   float64
	reopened  map[string]int
	orphans   int
	closures  int
	syncs     map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{reopened: map[string]int{}, syncs: map[string]int{}}
}

func (r *fakeRecorder) HighValueLead(id string, total float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.highValue = append(r.highValue, id)
}

func (r *fakeRecorder) CallCompleted(id string, minutes float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	r.minutes += minutes
}

func (r *fakeRecorder) CycleReopened(id, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reopened[reason]++
}

func (r *fakeRecorder) OrphanRepaired(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orphans++
}

func (r *fakeRecorder) ClosureSuggested(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closures++
}

func (r *fakeRecorder) SyncResult(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncs[result]++
}

func (r *fakeRecorder) syncCount(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncs[result]
}

func feedMessages(f *notify.Feed, level notify.Level) []string {
	var out []string
	for _, n := range f.Recent(0) {
		if n.Level == level {
			out = append(out, n.Message)
		}
	}
	return out
}

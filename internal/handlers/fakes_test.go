package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/models"
	"github.com/gorilla/mux"
)

var testNow = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

func init() {
	// Initialize logger for tests
	logger.Init()
}

// memLeadRepo is a versioned in-memory LeadRepository
type memLeadRepo struct {
	mu      sync.Mutex
	leads   map[string]*models.Lead
	listErr error
}

func newMemLeadRepo(leads ...*models.Lead) *memLeadRepo {
	r := &memLeadRepo{leads: make(map[string]*models.Lead)}
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
	if l, ok := r.leads[id]; ok {
		return l.Clone(), nil
	}
	return nil, models.NewLeadNotFoundError(id)
}

func (r *memLeadRepo) ListLeads(ctx context.Context, status models.LeadStatus) ([]*models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*models.Lead, 0, len(r.leads))
	for _, l := range r.leads {
		if status == "" || l.Status == status {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (r *memLeadRepo) ListLeadIDs(ctx context.Context, status models.LeadStatus) ([]string, error) {
	leads, err := r.ListLeads(ctx, status)
	if err != nil {
		return nil, err
	}
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
	if current.Version != expectedVersion {
		return models.NewVersionConflictError(lead.ID, expectedVersion, current.Version)
	}
	lead.Version = current.Version + 1
	r.leads[lead.ID] = lead.Clone()
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
	return nil, errors.New("transactions not supported")
}

func (r *memLeadRepo) UpdateLeadTx(ctx context.Context, tx *sql.Tx, lead *models.Lead, expectedVersion int64) error {
	return r.UpdateLead(ctx, lead, expectedVersion)
}

func (r *memLeadRepo) GetLeadCountsByStage(ctx context.Context) (map[string]int, error) {
	leads, err := r.ListLeads(ctx, models.LeadStatusActive)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, l := range leads {
		counts[string(l.Stage)]++
	}
	return counts, nil
}

// memEventRepo serves canned audit events
type memEventRepo struct {
	events []*models.ReachOutEvent
}

func (r *memEventRepo) CreateEvent(ctx context.Context, event *models.ReachOutEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *memEventRepo) CreateEventTx(ctx context.Context, tx *sql.Tx, event *models.ReachOutEvent) error {
	return r.CreateEvent(ctx, event)
}

func (r *memEventRepo) GetEventsByLeadID(ctx context.Context, leadID string) ([]*models.ReachOutEvent, error) {
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

// stubBackend is the desk's backend for refresh tests
type stubBackend struct {
	leads []*models.Lead
	err   error
}

func (b *stubBackend) UpdateLead(ctx context.Context, id string, patch *models.LeadPatch) (*models.Lead, error) {
	return nil, b.err
}

func (b *stubBackend) ListLeads(ctx context.Context, status models.LeadStatus) ([]*models.Lead, error) {
	return b.leads, b.err
}

// serve runs one request through router and returns the recorder
func serve(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v; body: %s", err, rr.Body.String())
	}
}

func timePtr(t time.Time) *time.Time { return &t }

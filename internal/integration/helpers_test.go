package integration

import (
	"context"
	"database/sql"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/checkfox/go_reachout/internal/analytics"
	"github.com/checkfox/go_reachout/internal/cache"
	"github.com/checkfox/go_reachout/internal/client"
	"github.com/checkfox/go_reachout/internal/config"
	"github.com/checkfox/go_reachout/internal/database"
	"github.com/checkfox/go_reachout/internal/handlers"
	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/models"
	"github.com/checkfox/go_reachout/internal/notify"
	"github.com/checkfox/go_reachout/internal/queue"
	"github.com/checkfox/go_reachout/internal/reachout"
	"github.com/checkfox/go_reachout/internal/repository"
	"github.com/checkfox/go_reachout/internal/services"
	"github.com/gorilla/mux"
)

func init() {
	logger.Init()
}

// memLeadRepo is a versioned in-memory LeadRepository standing in for Postgres
type memLeadRepo struct {
	mu    sync.Mutex
	leads map[string]*models.Lead
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
	out := make([]*models.Lead, 0, len(r.leads))
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
	leads, _ := r.ListLeads(ctx, models.LeadStatusActive)
	counts := make(map[string]int)
	for _, l := range leads {
		counts[string(l.Stage)]++
	}
	return counts, nil
}

// startBackend serves the lead API the way cmd/backend wires it. An empty secret disables auth.
func startBackend(t *testing.T, repo repository.LeadRepository, q queue.Queue, secret string) *httptest.Server {
	t.Helper()

	cfg := &config.Config{Auth: config.AuthConfig{Enabled: secret != "", SharedSecret: secret}}
	leadsHandler := handlers.NewLeadsHandler(services.NewLeadService(repo, q))
	authMiddleware := handlers.NewAuthMiddleware(cfg)

	router := mux.NewRouter()
	router.Use(handlers.CorrelationMiddleware, handlers.NewRecoveryMiddleware().Recover)
	api := router.NewRoute().Subrouter()
	api.Use(authMiddleware.Authenticate)
	leadsHandler.Register(api)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

// agentDesk is one agent's desk process talking to a backend
type agentDesk struct {
	service *services.ReachOutService
	syncer  *services.Syncer
	feed    *notify.Feed
	cache   *cache.LeadCache
	backend *client.BackendClient
}

func newAgentDesk(t *testing.T, backendURL, token string) *agentDesk {
	t.Helper()

	leadCache := cache.New(cache.NewMemoryStore())
	backend := client.NewBackendClient(backendURL, token, 2*time.Second)
	feed := notify.NewFeed(50)

	syncer := services.NewSyncer(backend, leadCache, feed, analytics.Nop{}, 16, 2*time.Second)
	syncer.Start(context.Background())
	t.Cleanup(syncer.Stop)

	return &agentDesk{
		service: services.NewReachOutService(leadCache, backend, syncer, feed, analytics.Nop{}, reachout.DefaultPolicy()),
		syncer:  syncer,
		feed:    feed,
		cache:   leadCache,
		backend: backend,
	}
}

// warnings returns the warning messages raised on the desk so far
func (d *agentDesk) warnings() []string {
	var out []string
	for _, n := range d.feed.Recent(0) {
		if n.Level == notify.LevelWarning {
			out = append(out, n.Message)
		}
	}
	return out
}

func containsMessage(messages []string, fragment string) bool {
	for _, m := range messages {
		if strings.Contains(m, fragment) {
			return true
		}
	}
	return false
}

// setupTestEnvironment connects to the configured Postgres database or skips the test
func setupTestEnvironment(t *testing.T) (*config.Config, *database.DB, func()) {
	cfg, err := config.Load()
	if err != nil {
		t.Skipf("Skipping test - failed to load config: %v", err)
		return nil, nil, nil
	}

	dbWrapper, err := database.InitFromConfig(cfg)
	if err != nil {
		t.Skipf("Skipping test - failed to connect to database: %v", err)
		return nil, nil, nil
	}

	ctx := context.Background()
	if err := dbWrapper.HealthCheck(ctx); err != nil {
		dbWrapper.Close()
		t.Skipf("Skipping test - database not available: %v", err)
		return nil, nil, nil
	}

	if err := database.RunMigrations(ctx, dbWrapper); err != nil {
		dbWrapper.Close()
		t.Skipf("Skipping test - failed to run migrations: %v", err)
		return nil, nil, nil
	}

	cleanup := func() {
		dbWrapper.DB.ExecContext(ctx, "DELETE FROM reachout_event")
		dbWrapper.DB.ExecContext(ctx, "DELETE FROM leads")
		dbWrapper.DB.ExecContext(ctx, "DELETE FROM reachout_jobs")
		dbWrapper.Close()
	}

	return cfg, dbWrapper, cleanup
}

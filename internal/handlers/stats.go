package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/models"
	"github.com/checkfox/go_reachout/internal/reachout"
	"github.com/checkfox/go_reachout/internal/repository"
	"github.com/gorilla/mux"
)

// StatsHandler handles statistics and observability endpoints
type StatsHandler struct {
	leadRepo  repository.LeadRepository
	eventRepo repository.ReachOutEventRepository
	policy    reachout.Policy
	now       func() time.Time
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(leadRepo repository.LeadRepository, eventRepo repository.ReachOutEventRepository, policy reachout.Policy) *StatsHandler {
	return &StatsHandler{
		leadRepo:  leadRepo,
		eventRepo: eventRepo,
		policy:    policy,
		now:       time.Now,
	}
}

// ReachOutCounts summarises the evaluated reach-out state of active leads
type ReachOutCounts struct {
	Outstanding   int            `json:"outstanding"`
	Completed     int            `json:"completed"`
	NotApplicable int            `json:"not_applicable"`
	Highlighted   int            `json:"highlighted"`
	Total         int            `json:"total"`
	ByStage       map[string]int `json:"by_stage"`
}

// LeadEventsResponse is the audit trail of one lead
type LeadEventsResponse struct {
	LeadID string                  `json:"lead_id"`
	Stage  models.Stage            `json:"stage"`
	Events []*models.ReachOutEvent `json:"events"`
}

// Register mounts the stats routes on r
func (h *StatsHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/stats/reachout", h.HandleReachOutCounts).Methods(http.MethodGet)
	r.HandleFunc("/api/leads/{id}/events", h.HandleLeadEvents).Methods(http.MethodGet)
}

// HandleReachOutCounts handles GET /api/stats/reachout
func (h *StatsHandler) HandleReachOutCounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger.Info(ctx, "Fetching reach-out counts")

	leads, err := h.leadRepo.ListLeads(ctx, models.LeadStatusActive)
	if err != nil {
		logger.LogError(ctx, "Failed to list leads", err)
		respondError(w, ctx, http.StatusInternalServerError, "internal server error")
		return
	}

	byStage, err := h.leadRepo.GetLeadCountsByStage(ctx)
	if err != nil {
		logger.LogError(ctx, "Failed to get lead counts", err)
		respondError(w, ctx, http.StatusInternalServerError, "internal server error")
		return
	}

	now := h.now()
	response := ReachOutCounts{ByStage: byStage}
	for _, lead := range leads {
		eval := reachout.Evaluate(lead.Stage, lead.ReachOut, now, h.policy)
		switch eval.Status {
		case reachout.StatusOutstanding:
			response.Outstanding++
		case reachout.StatusCompleted:
			response.Completed++
		default:
			response.NotApplicable++
		}
		if eval.Highlighted {
			response.Highlighted++
		}
		response.Total++
	}

	respondJSON(w, ctx, http.StatusOK, response)
}

// HandleLeadEvents handles GET /api/leads/{id}/events
func (h *StatsHandler) HandleLeadEvents(w http.ResponseWriter, r *http.Request) {
	leadID := mux.Vars(r)["id"]
	ctx := logger.WithLeadID(r.Context(), leadID)
	logger.Info(ctx, "Fetching reach-out events")

	lead, err := h.leadRepo.GetLead(ctx, leadID)
	if err != nil {
		respondDomainError(w, ctx, "Failed to get lead", err)
		return
	}

	events, err := h.eventRepo.GetEventsByLeadID(ctx, leadID)
	if err != nil {
		logger.LogError(ctx, "Failed to get reach-out events", err)
		respondError(w, ctx, http.StatusInternalServerError, "internal server error")
		return
	}
	if events == nil {
		events = []*models.ReachOutEvent{}
	}

	respondJSON(w, ctx, http.StatusOK, LeadEventsResponse{
		LeadID: lead.ID,
		Stage:  lead.Stage,
		Events: events,
	})
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker func(ctx context.Context) error

// HealthHandler answers /health with 200 when every check passes
func HealthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn(ctx, "Health check failed", "check", name, "error", err.Error())
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		respondJSON(w, ctx, status, map[string]interface{}{
			"status": http.StatusText(status),
			"checks": results,
		})
	}
}

package handlers

import (
	"net/http"

	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/models"
	"github.com/checkfox/go_reachout/internal/services"
	"github.com/gorilla/mux"
)

// LeadResponse is the backend's response envelope
type LeadResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Lead    *models.Lead   `json:"lead,omitempty"`
	Leads   []*models.Lead `json:"leads,omitempty"`
}

// ArchiveRequest is the body of POST /api/leads/{id}/archive
type ArchiveRequest struct {
	ArchivedBy string `json:"archivedBy"`
}

// LeadsHandler serves the lead persistence API
type LeadsHandler struct {
	service *services.LeadService
}

// NewLeadsHandler creates a new LeadsHandler
func NewLeadsHandler(service *services.LeadService) *LeadsHandler {
	return &LeadsHandler{
		service: service,
	}
}

// Register mounts the lead routes on r
func (h *LeadsHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/leads", h.HandleListLeads).Methods(http.MethodGet)
	r.HandleFunc("/api/leads/{id}", h.HandleGetLead).Methods(http.MethodGet)
	r.HandleFunc("/api/leads/{id}", h.HandlePutLead).Methods(http.MethodPut)
	r.HandleFunc("/api/leads/{id}", h.HandleDeleteLead).Methods(http.MethodDelete)
	r.HandleFunc("/api/leads/{id}/archive", h.HandleArchiveLead).Methods(http.MethodPost)
	r.HandleFunc("/api/leads/{id}/restore", h.HandleRestoreLead).Methods(http.MethodPost)
}

// HandleListLeads handles GET /api/leads?status=
func (h *LeadsHandler) HandleListLeads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := models.LeadStatus(r.URL.Query().Get("status"))

	leads, err := h.service.List(ctx, status)
	if err != nil {
		respondDomainError(w, ctx, "Failed to list leads", err)
		return
	}

	respondJSON(w, ctx, http.StatusOK, LeadResponse{Success: true, Leads: leads})
}

// HandleGetLead handles GET /api/leads/{id}
func (h *LeadsHandler) HandleGetLead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := logger.WithLeadID(r.Context(), id)

	lead, err := h.service.Get(ctx, id)
	if err != nil {
		respondDomainError(w, ctx, "Failed to get lead", err)
		return
	}

	respondJSON(w, ctx, http.StatusOK, LeadResponse{Success: true, Lead: lead})
}

// HandlePutLead handles PUT /api/leads/{id}. A stale version answers 409 with the stored lead.
func (h *LeadsHandler) HandlePutLead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := logger.WithLeadID(r.Context(), id)

	var patch models.LeadPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		logger.Warn(ctx, "Malformed lead patch", "error", err.Error())
		respondError(w, ctx, http.StatusBadRequest, "malformed JSON payload")
		return
	}

	lead, err := h.service.Upsert(ctx, id, &patch)
	if models.IsVersionConflict(err) {
		current, _ := h.service.Get(ctx, id)
		respondJSON(w, ctx, http.StatusConflict, LeadResponse{Error: err.Error(), Lead: current})
		return
	}
	if err != nil {
		respondDomainError(w, ctx, "Failed to update lead", err)
		return
	}

	respondJSON(w, ctx, http.StatusOK, LeadResponse{Success: true, Lead: lead})
}

// HandleDeleteLead handles DELETE /api/leads/{id}
func (h *LeadsHandler) HandleDeleteLead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := logger.WithLeadID(r.Context(), id)

	if err := h.service.Delete(ctx, id); err != nil {
		respondDomainError(w, ctx, "Failed to delete lead", err)
		return
	}

	respondJSON(w, ctx, http.StatusOK, LeadResponse{Success: true})
}

// HandleArchiveLead handles POST /api/leads/{id}/archive
func (h *LeadsHandler) HandleArchiveLead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := logger.WithLeadID(r.Context(), id)

	var req ArchiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, ctx, http.StatusBadRequest, "malformed JSON payload")
		return
	}

	lead, err := h.service.Archive(ctx, id, req.ArchivedBy)
	if err != nil {
		respondDomainError(w, ctx, "Failed to archive lead", err)
		return
	}

	respondJSON(w, ctx, http.StatusOK, LeadResponse{Success: true, Lead: lead})
}

// HandleRestoreLead handles POST /api/leads/{id}/restore
func (h *LeadsHandler) HandleRestoreLead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := logger.WithLeadID(r.Context(), id)

	lead, err := h.service.Restore(ctx, id)
	if err != nil {
		respondDomainError(w, ctx, "Failed to restore lead", err)
		return
	}

	respondJSON(w, ctx, http.StatusOK, LeadResponse{Success: true, Lead: lead})
}

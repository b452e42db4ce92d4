package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/models"
	"github.com/checkfox/go_reachout/internal/notify"
	"github.com/checkfox/go_reachout/internal/reachout"
	"github.com/checkfox/go_reachout/internal/services"
	"github.com/gorilla/mux"
)

// DurationRequest is the body of POST /api/reachout/{id}/calls/duration
type DurationRequest struct {
	Duration string `json:"duration"`
}

// ScheduleRequest is the body of POST /api/reachout/{id}/schedule.
// Either At or Date plus Time must be set.
type ScheduleRequest struct {
	At   *time.Time `json:"at,omitempty"`
	Date string     `json:"date,omitempty"` // 2006-01-02
	Time string     `json:"time,omitempty"` // 15:04
}

// EmailConfirmationRequest is the body of POST /api/reachout/{id}/email-confirmations
type EmailConfirmationRequest struct {
	Confirmed bool   `json:"confirmed"`
	Notes     string `json:"notes"`
}

// StageRequest is the body of PUT /api/reachout/{id}/stage
type StageRequest struct {
	Stage models.Stage `json:"stage"`
}

// RefreshResponse reports how many leads were loaded from the backend
type RefreshResponse struct {
	Loaded int `json:"loaded"`
}

// NotificationsResponse carries notifications newer than the requested id
type NotificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
}

// ReachOutHandler serves the agent desk API
type ReachOutHandler struct {
	service  *services.ReachOutService
	feed     *notify.Feed
	location *time.Location
}

// NewReachOutHandler creates a new ReachOutHandler. Schedule dates without a zone are read in loc.
func NewReachOutHandler(service *services.ReachOutService, feed *notify.Feed, loc *time.Location) *ReachOutHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ReachOutHandler{
		service:  service,
		feed:     feed,
		location: loc,
	}
}

// Register mounts the desk routes on r
func (h *ReachOutHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/reachout/refresh", h.HandleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/reachout/{id}", h.HandleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/reachout/{id}/calls", h.HandleRecordCall).Methods(http.MethodPost)
	r.HandleFunc("/api/reachout/{id}/calls/duration", h.HandleCallDuration).Methods(http.MethodPost)
	r.HandleFunc("/api/reachout/{id}/calls/cancel", h.HandleCancelCall).Methods(http.MethodPost)
	r.HandleFunc("/api/reachout/{id}/emails", h.HandleRecordEmail).Methods(http.MethodPost)
	r.HandleFunc("/api/reachout/{id}/texts", h.HandleRecordText).Methods(http.MethodPost)
	r.HandleFunc("/api/reachout/{id}/schedule", h.HandleSchedule).Methods(http.MethodPost)
	r.HandleFunc("/api/reachout/{id}/email-confirmations", h.HandleEmailConfirmation).Methods(http.MethodPost)
	r.HandleFunc("/api/reachout/{id}/stage", h.HandleChangeStage).Methods(http.MethodPut)
	r.HandleFunc("/api/stats/live", h.HandleLiveStats).Methods(http.MethodGet)
	r.HandleFunc("/api/notifications", h.HandleNotifications).Methods(http.MethodGet)
}

// HandleGet handles GET /api/reachout/{id}
func (h *ReachOutHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := logger.WithLeadID(r.Context(), id)

	view, err := h.service.Get(ctx, id)
	if err != nil {
		respondDomainError(w, ctx, "Failed to evaluate lead", err)
		return
	}
	respondJSON(w, ctx, http.StatusOK, view)
}

// HandleRecordCall handles POST /api/reachout/{id}/calls
func (h *ReachOutHandler) HandleRecordCall(w http.ResponseWriter, r *http.Request) {
	var req reachout.CallAttempt
	if !h.decode(w, r, &req) {
		return
	}
	h.respondMutation(w, r, func(id string) (*services.MutationResult, error) {
		return h.service.RecordCall(r.Context(), id, req)
	})
}

// HandleCallDuration handles POST /api/reachout/{id}/calls/duration
func (h *ReachOutHandler) HandleCallDuration(w http.ResponseWriter, r *http.Request) {
	var req DurationRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondMutation(w, r, func(id string) (*services.MutationResult, error) {
		return h.service.RecordCallDuration(r.Context(), id, req.Duration)
	})
}

// HandleCancelCall handles POST /api/reachout/{id}/calls/cancel
func (h *ReachOutHandler) HandleCancelCall(w http.ResponseWriter, r *http.Request) {
	h.respondMutation(w, r, func(id string) (*services.MutationResult, error) {
		return h.service.CancelPendingCall(r.Context(), id)
	})
}

// HandleRecordEmail handles POST /api/reachout/{id}/emails
func (h *ReachOutHandler) HandleRecordEmail(w http.ResponseWriter, r *http.Request) {
	h.respondMutation(w, r, func(id string) (*services.MutationResult, error) {
		return h.service.RecordEmail(r.Context(), id)
	})
}

// HandleRecordText handles POST /api/reachout/{id}/texts
func (h *ReachOutHandler) HandleRecordText(w http.ResponseWriter, r *http.Request) {
	h.respondMutation(w, r, func(id string) (*services.MutationResult, error) {
		return h.service.RecordText(r.Context(), id)
	})
}

// HandleSchedule handles POST /api/reachout/{id}/schedule
func (h *ReachOutHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	at, ok := h.scheduleTime(req)
	if !ok {
		respondError(w, r.Context(), http.StatusBadRequest, "schedule needs either at or date and time")
		return
	}
	h.respondMutation(w, r, func(id string) (*services.MutationResult, error) {
		return h.service.ScheduleCall(r.Context(), id, at)
	})
}

// HandleEmailConfirmation handles POST /api/reachout/{id}/email-confirmations
func (h *ReachOutHandler) HandleEmailConfirmation(w http.ResponseWriter, r *http.Request) {
	var req EmailConfirmationRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondMutation(w, r, func(id string) (*services.MutationResult, error) {
		return h.service.ConfirmEmail(r.Context(), id, req.Confirmed, req.Notes)
	})
}

// HandleChangeStage handles PUT /api/reachout/{id}/stage
func (h *ReachOutHandler) HandleChangeStage(w http.ResponseWriter, r *http.Request) {
	var req StageRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondMutation(w, r, func(id string) (*services.MutationResult, error) {
		return h.service.ChangeStage(r.Context(), id, req.Stage)
	})
}

// HandleRefresh handles POST /api/reachout/refresh
func (h *ReachOutHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.service.Refresh(ctx)
	if err != nil {
		logger.LogError(ctx, "Failed to refresh lead cache", err)
		respondError(w, ctx, http.StatusBadGateway, "could not refresh leads from the server")
		return
	}
	respondJSON(w, ctx, http.StatusOK, RefreshResponse{Loaded: n})
}

// HandleLiveStats handles GET /api/stats/live
func (h *ReachOutHandler) HandleLiveStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.LiveStats(ctx)
	if err != nil {
		logger.LogError(ctx, "Failed to compute live stats", err)
		respondError(w, ctx, http.StatusInternalServerError, "internal server error")
		return
	}
	respondJSON(w, ctx, http.StatusOK, stats)
}

// HandleNotifications handles GET /api/notifications?since=
func (h *ReachOutHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			respondError(w, ctx, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = v
	}

	respondJSON(w, ctx, http.StatusOK, NotificationsResponse{Notifications: h.feed.Recent(since)})
}

func (h *ReachOutHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := decodeJSON(w, r, v); err != nil {
		logger.Warn(r.Context(), "Malformed request body", "path", r.URL.Path, "error", err.Error())
		respondError(w, r.Context(), http.StatusBadRequest, "malformed JSON payload")
		return false
	}
	return true
}

func (h *ReachOutHandler) respondMutation(w http.ResponseWriter, r *http.Request, fn func(id string) (*services.MutationResult, error)) {
	id := mux.Vars(r)["id"]
	ctx := logger.WithLeadID(r.Context(), id)

	res, err := fn(id)
	if err != nil {
		respondDomainError(w, ctx, "Reach-out operation failed", err)
		return
	}
	respondJSON(w, ctx, http.StatusOK, res)
}

func (h *ReachOutHandler) scheduleTime(req ScheduleRequest) (time.Time, bool) {
	if req.At != nil {
		return *req.At, true
	}
	date, clock := strings.TrimSpace(req.Date), strings.TrimSpace(req.Time)
	if date == "" || clock == "" {
		return time.Time{}, false
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, h.location)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

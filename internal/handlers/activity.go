package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tracklog/apiserver/internal/services"
	"github.com/tracklog/apiserver/types"
)

const resourceActivity = "activity"

// DashboardHandler serves the caller's activity log and statistics.
type DashboardHandler struct {
	activityService *services.ActivityService
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(activityService *services.ActivityService) *DashboardHandler {
	return &DashboardHandler{activityService: activityService}
}

// DashboardRouter registers dashboard routes. Every route sits behind the
// given middlewares, the first of which must authenticate the caller.
func DashboardRouter(r chi.Router, activityService *services.ActivityService, middlewares ...func(http.Handler) http.Handler) {
	handler := NewDashboardHandler(activityService)

	r.Use(middlewares...)
	r.Post("/activities", handler.CreateActivity)
	r.Get("/activities", handler.ListActivities)
	r.Get("/activities/{activityID}", handler.GetActivity)
	r.Delete("/activities/{activityID}", handler.DeleteActivity)
	r.Get("/stats", handler.Stats)
}

// CreateActivity records an activity for the caller.
func (h *DashboardHandler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "not authenticated")
		return
	}

	var req ActivityCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	payload, err := types.ParsePayload(req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	activity, err := h.activityService.Create(r.Context(), user.ID, services.CreateActivityInput{
		Category:    req.Category,
		Description: req.Description,
		Payload:     payload,
	})
	if err != nil {
		writeServiceError(w, r, err, resourceActivity)
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

// ListActivities returns a page of the caller's activities, newest first.
func (h *DashboardHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "not authenticated")
		return
	}

	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := parseOptionalInt(query.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	page, err := h.activityService.List(r.Context(), user.ID, services.ListActivitiesInput{
		Limit:    limit,
		Offset:   offset,
		Category: query.Get("category"),
	})
	if err != nil {
		writeServiceError(w, r, err, resourceActivity)
		return
	}

	writeJSON(w, http.StatusOK, ActivityListResponse{
		Items:  page.Items,
		Limit:  page.Limit,
		Offset: page.Offset,
		Total:  page.Total,
	})
}

// GetActivity returns one of the caller's activities.
func (h *DashboardHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "not authenticated")
		return
	}
	activityID, err := parseID(r, "activityID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid activity id")
		return
	}

	activity, err := h.activityService.Get(r.Context(), user.ID, activityID)
	if err != nil {
		writeServiceError(w, r, err, resourceActivity)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

// DeleteActivity removes one of the caller's activities.
func (h *DashboardHandler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "not authenticated")
		return
	}
	activityID, err := parseID(r, "activityID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid activity id")
		return
	}

	if err := h.activityService.Delete(r.Context(), user.ID, activityID); err != nil {
		writeServiceError(w, r, err, resourceActivity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats summarizes the caller's activities within an optional date range.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "not authenticated")
		return
	}

	query := r.URL.Query()
	start, err := parseTimeBound(query.Get("start_date"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date")
		return
	}
	end, err := parseTimeBound(query.Get("end_date"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date")
		return
	}

	stats, err := h.activityService.Stats(r.Context(), user.ID, start, end)
	if err != nil {
		writeServiceError(w, r, err, resourceActivity)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type ActivityCreateRequest struct {
	Category    string          `json:"category"`
	Description *string         `json:"description"`
	Payload     json.RawMessage `json:"payload"`
}

type ActivityListResponse struct {
	Items  []types.Activity `json:"items"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Total  int              `json:"total"`
}

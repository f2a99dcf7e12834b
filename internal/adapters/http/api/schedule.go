package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

type enabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// ScheduleHandler handles the schedule endpoints.
type ScheduleHandler struct {
	deps     ScheduleService
	validate *validator.Validate
}

// NewScheduleHandler creates a new schedule handler.
func NewScheduleHandler(deps ScheduleService, v *validator.Validate) *ScheduleHandler {
	if v == nil {
		v = validator.New()
	}
	return &ScheduleHandler{deps: deps, validate: v}
}

// HandleGet handles GET /schedule requests.
func (h *ScheduleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sched, err := h.deps.Schedule(r.Context())
	if err != nil {
		writeFailure(w, Wrap("api.schedule_get", err))
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// HandlePut handles PUT /schedule requests.
func (h *ScheduleHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.schedule_put"
	var req model.SyncSchedule
	if err := decode(r, h.validate, op, &req); err != nil {
		writeFailure(w, err)
		return
	}
	sched, err := h.deps.UpdateSchedule(r.Context(), req)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// HandleEnabled handles POST /schedule/enabled requests.
func (h *ScheduleHandler) HandleEnabled(w http.ResponseWriter, r *http.Request) {
	const op = "api.schedule_enabled"
	var req enabledRequest
	if err := decode(r, h.validate, op, &req); err != nil {
		writeFailure(w, err)
		return
	}
	sched, err := h.deps.SetScheduleEnabled(r.Context(), *req.Enabled)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// HandleToggle handles POST /schedule/entries/{id}/toggle requests.
func (h *ScheduleHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	const op = "api.schedule_toggle"
	var req enabledRequest
	if err := decode(r, h.validate, op, &req); err != nil {
		writeFailure(w, err)
		return
	}
	sched, err := h.deps.ToggleSchedule(r.Context(), r.PathValue("id"), *req.Enabled)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/widjis/attend-now-report-view-sub001/internal/adapters/repository"
	service "github.com/widjis/attend-now-report-view-sub001/internal/app"
	"github.com/widjis/attend-now-report-view-sub001/internal/app/scheduler"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/reconcile"
)

// SyncService runs, previews and audits sync runs.
type SyncService interface {
	Location() *time.Location
	Preview(ctx context.Context, w model.Window, opts model.RunOptions) (*model.PreviewResult, error)
	Validate(ctx context.Context, w model.Window, opts model.RunOptions) (*model.ValidationResult, error)
	Run(ctx context.Context, w model.Window, opts model.RunOptions) (*model.SyncResult, error)
	Cancel(ctx context.Context, runID string) error
	Runs(ctx context.Context, limit int) ([]model.SyncRun, error)
}

// ScheduleService reads and edits the sync schedule.
type ScheduleService interface {
	Schedule(ctx context.Context) (model.SyncSchedule, error)
	UpdateSchedule(ctx context.Context, sched model.SyncSchedule) (model.SyncSchedule, error)
	SetScheduleEnabled(ctx context.Context, enabled bool) (model.SyncSchedule, error)
	ToggleSchedule(ctx context.Context, entryID string, enabled bool) (model.SyncSchedule, error)
}

// HealthService reports reachability.
type HealthService interface {
	Health(ctx context.Context) (model.Health, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SyncService
	ScheduleService
	HealthService
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	syncHandler     *SyncHandler
	scheduleHandler *ScheduleHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	v := validator.New()
	return &Server{
		healthHandler:   NewHealthHandler(deps),
		statsHandler:    NewStatsHandler(deps),
		syncHandler:     NewSyncHandler(deps, v),
		scheduleHandler: NewScheduleHandler(deps, v),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /sync/preview", MetricsMiddleware(s.syncHandler.HandlePreview, "sync_preview"))
	mux.HandleFunc("POST /sync/validate", MetricsMiddleware(s.syncHandler.HandleValidate, "sync_validate"))
	mux.HandleFunc("POST /sync/run", MetricsMiddleware(s.syncHandler.HandleRun, "sync_run"))
	mux.HandleFunc("GET /sync/runs", MetricsMiddleware(s.syncHandler.HandleListRuns, "sync_runs"))
	mux.HandleFunc("POST /sync/runs/{id}/cancel", MetricsMiddleware(s.syncHandler.HandleCancel, "sync_cancel"))

	mux.HandleFunc("GET /schedule", MetricsMiddleware(s.scheduleHandler.HandleGet, "schedule"))
	mux.HandleFunc("PUT /schedule", MetricsMiddleware(s.scheduleHandler.HandlePut, "schedule"))
	mux.HandleFunc("POST /schedule/enabled", MetricsMiddleware(s.scheduleHandler.HandleEnabled, "schedule_enabled"))
	mux.HandleFunc("POST /schedule/entries/{id}/toggle", MetricsMiddleware(s.scheduleHandler.HandleToggle, "schedule_toggle"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps domain errors to a status and code.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, reconcile.ErrInvalidWindow),
		errors.Is(err, reconcile.ErrInvalidOptions),
		errors.Is(err, scheduler.ErrInvalidSchedule),
		errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, reconcile.ErrConcurrentRun):
		writeError(w, http.StatusConflict, "run_active", err)
	case errors.Is(err, reconcile.ErrRunNotFound),
		errors.Is(err, scheduler.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, service.ErrNotStarted),
		errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, v *validator.Validate, op string, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	if err := v.Struct(dst); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

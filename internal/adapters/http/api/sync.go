package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

const (
	dateLayout       = "2006-01-02"
	defaultRunsLimit = 20
	maxRunsLimit     = 500
	apiInitiator     = "api"
)

// syncRequest is the body of POST /sync/{preview,validate,run}. The window is
// either from/to (dates are whole local days, "to" inclusive; RFC3339 values
// are taken as is) or the last `days` days ending at today's midnight.
type syncRequest struct {
	From                 string `json:"from" validate:"required_without=Days"`
	To                   string `json:"to" validate:"required_with=From"`
	Days                 int    `json:"days" validate:"gte=0,lte=31"`
	BatchSize            int    `json:"batch_size" validate:"gte=0,lte=10000"`
	DryRun               bool   `json:"dry_run"`
	Mirror               *bool  `json:"mirror"`
	ManualIn             string `json:"manual_in" validate:"omitempty,max=8"`
	ManualOut            string `json:"manual_out" validate:"omitempty,max=8"`
	ToleranceSeconds     *int   `json:"tolerance_seconds" validate:"omitempty,gte=0,lte=86400"`
	Mode                 string `json:"mode" validate:"omitempty,oneof=filo nearest"`
	DedupeEpsilonSeconds *int   `json:"dedupe_epsilon_seconds" validate:"omitempty,gte=0,lte=3600"`
	OutsideRangeFallback bool   `json:"outside_range_fallback"`
	Notify               bool   `json:"notify"`
	Initiator            string `json:"initiator" validate:"max=100"`
}

func (r syncRequest) options() model.RunOptions {
	initiator := r.Initiator
	if initiator == "" {
		initiator = apiInitiator
	}
	return model.RunOptions{
		BatchSize:            r.BatchSize,
		DryRun:               r.DryRun,
		Mirror:               r.Mirror,
		ManualIn:             r.ManualIn,
		ManualOut:            r.ManualOut,
		ToleranceSeconds:     r.ToleranceSeconds,
		Mode:                 model.MatchMode(r.Mode),
		DedupeEpsilonSeconds: r.DedupeEpsilonSeconds,
		OutsideRangeFallback: r.OutsideRangeFallback,
		Notify:               r.Notify,
		Initiator:            initiator,
	}
}

func (r syncRequest) window(now time.Time, loc *time.Location) (model.Window, error) {
	if r.From == "" {
		return model.DayWindow(now, r.Days, loc), nil
	}
	start, _, err := parseBound(r.From, loc)
	if err != nil {
		return model.Window{}, err
	}
	end, isDate, err := parseBound(r.To, loc)
	if err != nil {
		return model.Window{}, err
	}
	if isDate {
		end = end.AddDate(0, 0, 1)
	}
	return model.Window{Start: start, End: end}, nil
}

func parseBound(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, errors.New("invalid date " + strconv.Quote(s) + "; want YYYY-MM-DD or RFC3339")
	}
	return t, false, nil
}

// SyncHandler handles the sync endpoints.
type SyncHandler struct {
	deps     SyncService
	validate *validator.Validate
	now      func() time.Time
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps SyncService, v *validator.Validate) *SyncHandler {
	if v == nil {
		v = validator.New()
	}
	return &SyncHandler{deps: deps, validate: v, now: time.Now}
}

func (h *SyncHandler) request(r *http.Request, op string) (model.Window, model.RunOptions, error) {
	var req syncRequest
	if err := decode(r, h.validate, op, &req); err != nil {
		return model.Window{}, model.RunOptions{}, err
	}
	w, err := req.window(h.now(), h.deps.Location())
	if err != nil {
		return model.Window{}, model.RunOptions{}, WrapKind(op, ErrBadRequest, err)
	}
	return w, req.options(), nil
}

// HandlePreview handles POST /sync/preview requests.
func (h *SyncHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync_preview"
	win, opts, err := h.request(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	res, err := h.deps.Preview(r.Context(), win, opts)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleValidate handles POST /sync/validate requests.
func (h *SyncHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync_validate"
	win, opts, err := h.request(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	res, err := h.deps.Validate(r.Context(), win, opts)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleRun handles POST /sync/run requests. The run outlives a client that
// disconnects; it can still be cancelled through /sync/runs/{id}/cancel.
func (h *SyncHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync_run"
	win, opts, err := h.request(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	res, err := h.deps.Run(context.WithoutCancel(r.Context()), win, opts)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleListRuns handles GET /sync/runs?limit=N requests.
func (h *SyncHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync_runs"
	limit := defaultRunsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxRunsLimit {
			writeFailure(w, WrapKind(op, ErrBadRequest, errors.New("limit must be between 1 and 500")))
			return
		}
		limit = n
	}
	runs, err := h.deps.Runs(r.Context(), limit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if runs == nil {
		runs = []model.SyncRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

type cancelResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// HandleCancel handles POST /sync/runs/{id}/cancel requests.
func (h *SyncHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync_cancel"
	id := r.PathValue("id")
	if err := h.deps.Cancel(r.Context(), id); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, cancelResponse{Status: "cancelling", RunID: id})
}

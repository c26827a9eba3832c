package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	apperrors "optpricer/internal/errors"
	"optpricer/internal/operations"
)

// RunTracker exposes the latest pipeline run
type RunTracker interface {
	Current() *operations.OperationState
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string               `json:"status"`
	Version string               `json:"version"`
	Uptime  string               `json:"uptime"`
	Run     *operations.Progress `json:"run,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	tracker RunTracker
	version string
	started time.Time
	errors  *apperrors.ErrorHandler
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler. tracker may be nil.
func NewHealthHandler(tracker RunTracker, version string, logger *slog.Logger) *HealthHandler {
	logger = logger.With(slog.String("handler", "health"))
	return &HealthHandler{
		tracker: tracker,
		version: version,
		started: time.Now(),
		errors:  apperrors.NewErrorHandler(logger),
		logger:  logger,
	}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	}
	if p, ok := h.progress(); ok {
		resp.Run = &p
	}
	render.JSON(w, r, resp)
}

// RunStatus handles GET /health/run
func (h *HealthHandler) RunStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.progress()
	if !ok {
		h.errors.HandleError(w, r, apperrors.NewNotFoundError("pipeline run"))
		return
	}
	render.JSON(w, r, p)
}

func (h *HealthHandler) progress() (operations.Progress, bool) {
	if h.tracker == nil {
		return operations.Progress{}, false
	}
	state := h.tracker.Current()
	if state == nil {
		return operations.Progress{}, false
	}
	return state.Progress(), true
}

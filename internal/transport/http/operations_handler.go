package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/minleu94/technical-analysis-sub001/internal/errors"
	"github.com/minleu94/technical-analysis-sub001/internal/operations"
)

var validate = validator.New()

// RunService manages orchestrator runs. Satisfied by *operations.Service.
type RunService interface {
	Start(opts operations.RunOptions) (string, error)
	Get(runID string) (operations.RunState, error)
	List() []operations.RunState
}

// OperationsHandler exposes run management over HTTP.
type OperationsHandler struct {
	service RunService
	logger  *slog.Logger
}

// NewOperationsHandler creates the operations handler.
func NewOperationsHandler(service RunService, logger *slog.Logger) *OperationsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationsHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "operations")),
	}
}

// RunRequest starts a broker-flows scrape run.
type RunRequest struct {
	From         string   `json:"from" validate:"required,datetime=2006-01-02"`
	To           string   `json:"to" validate:"required,datetime=2006-01-02"`
	Branches     []string `json:"branches,omitempty"`
	DelaySeconds int      `json:"delay_seconds,omitempty" validate:"omitempty,min=1,max=300"`
	Force        bool     `json:"force,omitempty"`
}

// Bind implements render.Binder.
func (r *RunRequest) Bind(req *http.Request) error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	from, _ := time.Parse("2006-01-02", r.From)
	to, _ := time.Parse("2006-01-02", r.To)
	if to.Before(from) {
		return fmt.Errorf("to %s precedes from %s", r.To, r.From)
	}
	return nil
}

// StartResponse acknowledges an accepted run.
type StartResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// Start handles POST /api/operations/broker-flows.
func (h *OperationsHandler) Start(w http.ResponseWriter, r *http.Request) {
	req := &RunRequest{}
	if err := render.Bind(r, req); err != nil {
		h.logger.Warn("invalid run request", "error", err)
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	from, _ := time.Parse("2006-01-02", req.From)
	to, _ := time.Parse("2006-01-02", req.To)
	opts := operations.RunOptions{
		From:       from,
		To:         to,
		BranchKeys: req.Branches,
		ForceAll:   req.Force,
	}
	if req.DelaySeconds > 0 {
		opts.Delay = time.Duration(req.DelaySeconds) * time.Second
	}

	runID, err := h.service.Start(opts)
	if err != nil {
		if errors.Is(err, operations.ErrRunActive) {
			render.Render(w, r, apierrors.ErrRunInProgress)
			return
		}
		h.logger.Error("failed to start run", "error", err)
		render.Render(w, r, apierrors.ErrRunExecution(err))
		return
	}

	h.logger.Info("run accepted",
		"run_id", runID,
		"from", req.From,
		"to", req.To,
		"branches", len(req.Branches))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, StartResponse{RunID: runID, Status: string(operations.RunStatusRunning)})
}

// Get handles GET /api/operations/{runID}.
func (h *OperationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	state, err := h.service.Get(runID)
	if err != nil {
		render.Render(w, r, apierrors.NotFoundError("run"))
		return
	}
	render.JSON(w, r, state)
}

// List handles GET /api/operations.
func (h *OperationsHandler) List(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.List())
}

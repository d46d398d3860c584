package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "github.com/minleu94/technical-analysis-sub001/internal/errors"
	"github.com/minleu94/technical-analysis-sub001/internal/registry"
	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

// BranchSource loads registry entries. Satisfied by *registry.Registry.
type BranchSource interface {
	LoadAll() ([]domain.BranchEntry, error)
}

// BranchesHandler serves the branch registry.
type BranchesHandler struct {
	source BranchSource
	logger *slog.Logger
}

// NewBranchesHandler creates the branches handler.
func NewBranchesHandler(source BranchSource, logger *slog.Logger) *BranchesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BranchesHandler{
		source: source,
		logger: logger.With(slog.String("handler", "branches")),
	}
}

// List handles GET /api/branches.
func (h *BranchesHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.source.LoadAll()
	if err != nil {
		if errors.Is(err, registry.ErrRegistryMissing) {
			render.JSON(w, r, []domain.BranchEntry{})
			return
		}
		h.logger.Error("failed to load registry", "error", err)
		render.Render(w, r, apierrors.FileSystemError("registry load", err))
		return
	}
	render.JSON(w, r, entries)
}

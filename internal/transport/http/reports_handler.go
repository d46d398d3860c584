package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/minleu94/technical-analysis-sub001/internal/errors"
	"github.com/minleu94/technical-analysis-sub001/internal/exporter"
)

// SummarySource aggregates a branch's flow history per counterparty.
// Satisfied by *exporter.FlowExporter.
type SummarySource interface {
	SummarizeCounterparties(systemKey string) ([]exporter.CounterpartySummary, error)
}

// ReportsHandler serves derived reports over merged history.
type ReportsHandler struct {
	source SummarySource
	logger *slog.Logger
}

// NewReportsHandler creates the reports handler.
func NewReportsHandler(source SummarySource, logger *slog.Logger) *ReportsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportsHandler{
		source: source,
		logger: logger.With(slog.String("handler", "reports")),
	}
}

// CounterpartySummary handles GET /api/branches/{systemKey}/summary.
func (h *ReportsHandler) CounterpartySummary(w http.ResponseWriter, r *http.Request) {
	systemKey := chi.URLParam(r, "systemKey")
	summaries, err := h.source.SummarizeCounterparties(systemKey)
	if err != nil {
		h.logger.Error("failed to summarize branch",
			"system_key", systemKey, "error", err)
		render.Render(w, r, apierrors.FileSystemError("summary", err))
		return
	}
	render.JSON(w, r, summaries)
}

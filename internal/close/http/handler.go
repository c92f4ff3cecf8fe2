package closehttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	accountinghttp "github.com/odyssey-erp/ledger/internal/accounting/http"
	"github.com/odyssey-erp/ledger/internal/close"
	"github.com/odyssey-erp/ledger/internal/platform/httpx"
)

type closeService interface {
	CloseFiscalYear(ctx context.Context, in close.CloseInput) (close.CloseResult, error)
}

// Handler wires HTTP endpoints for fiscal year closing.
type Handler struct {
	logger  *slog.Logger
	service closeService
}

// NewHandler constructs the close handler.
func NewHandler(logger *slog.Logger, service closeService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers close routes on a router scoped to /orgs/{orgID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/close-year", h.closeOldest)
	r.Post("/periods/{periodID}/close-year", h.closePeriod)
}

func (h *Handler) closeOldest(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, 0)
}

func (h *Handler) closePeriod(w http.ResponseWriter, r *http.Request) {
	periodID, err := accountinghttp.IDParam(r, "periodID")
	if err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return
	}
	h.close(w, r, periodID)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request, periodID int64) {
	orgID, err := accountinghttp.IDParam(r, "orgID")
	if err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return
	}
	actor, err := accountinghttp.RequireActor(r)
	if err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return
	}
	result, err := h.service.CloseFiscalYear(r.Context(), close.CloseInput{OrgID: orgID, PeriodID: periodID, Actor: actor})
	if err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return
	}
	h.logger.Info("fiscal year closed via api",
		slog.Int64("org_id", orgID),
		slog.Int64("period_id", result.Period.ID),
		slog.String("actor", actor.Label()),
	)
	httpx.JSON(w, http.StatusOK, result)
}

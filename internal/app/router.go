package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	accountinghttp "github.com/odyssey-erp/ledger/internal/accounting/http"
	closehttp "github.com/odyssey-erp/ledger/internal/close/http"
	integrationhttp "github.com/odyssey-erp/ledger/internal/integration/http"
	"github.com/odyssey-erp/ledger/internal/observability"
	"github.com/odyssey-erp/ledger/internal/platform/httpx"
	"github.com/odyssey-erp/ledger/jobs"
)

// APIHandlers groups the organisation scoped API handlers.
type APIHandlers struct {
	Ledger      *accountinghttp.Handler
	Close       *closehttp.Handler
	Integration *integrationhttp.Handler
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Ledger     *Ledger
	API        APIHandlers
	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router with ledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ledger != nil {
			if err := params.Ledger.Ready(r.Context()); err != nil {
				if params.Logger != nil {
					params.Logger.Warn("readiness", slog.Any("error", err))
				}
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api/v1/orgs/{orgID}", func(r chi.Router) {
		r.Use(accountinghttp.ActorFromHeaders)
		if params.API.Ledger != nil {
			params.API.Ledger.MountRoutes(r)
		}
		if params.API.Close != nil {
			params.API.Close.MountRoutes(r)
		}
		if params.API.Integration != nil {
			params.API.Integration.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}

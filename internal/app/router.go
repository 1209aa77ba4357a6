package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/journals"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/mappings"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/periods"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/audit"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/ledger"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/observability"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/posting"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	LedgerHandler   *ledger.Handler
	PostingHandler  *posting.Handler
	PeriodsHandler  *periods.Handler
	JournalsHandler *journals.Handler
	MappingsHandler *mappings.Handler
	AuditHandler    *audit.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.LedgerHandler != nil {
			r.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.PostingHandler != nil {
			r.Route("/posting", params.PostingHandler.MountRoutes)
		}
		if params.PeriodsHandler != nil {
			r.Route("/periods", params.PeriodsHandler.MountRoutes)
		}
		if params.JournalsHandler != nil {
			r.Route("/journals", params.JournalsHandler.MountRoutes)
		}
		if params.MappingsHandler != nil {
			r.Route("/mappings", params.MappingsHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}

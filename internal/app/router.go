package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mise-erp/mise-erp/internal/catalog"
	"github.com/mise-erp/mise-erp/internal/finance"
	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/procurement"
	"github.com/mise-erp/mise-erp/internal/production"
	"github.com/mise-erp/mise-erp/internal/sales"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	LedgerHandler      *ledger.Handler
	CatalogHandler     *catalog.Handler
	ProcurementHandler *procurement.Handler
	SalesHandler       *sales.Handler
	ProductionHandler  *production.Handler
	FinanceHandler     *finance.Handler
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if params.LedgerHandler != nil {
			r.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.CatalogHandler != nil {
			r.Route("/catalog", params.CatalogHandler.MountRoutes)
		}
		if params.ProcurementHandler != nil {
			r.Route("/imports", params.ProcurementHandler.MountRoutes)
		}
		if params.SalesHandler != nil {
			r.Route("/orders", params.SalesHandler.MountRoutes)
		}
		if params.ProductionHandler != nil {
			r.Route("/production-runs", params.ProductionHandler.MountRoutes)
		}
		if params.FinanceHandler != nil {
			r.Route("/finance", params.FinanceHandler.MountRoutes)
		}
	})

	return r
}

package http

import (
	"net/http"
	"time"

	"backoffice/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	Logger         *logger.Logger
	RequestTimeout time.Duration
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestID(log))
	r.Use(Logging(log))
	r.Use(Recoverer(log))
	r.Use(CORS)

	r.Get("/healthz", handler.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(opts.RequestTimeout))

		r.Get("/units", handler.ListUnits)
		r.Patch("/units/{id}", handler.PatchUnit)
		r.Get("/units/{serial}/trace", handler.TraceUnit)
		r.Get("/units/{serial}/timeline", handler.Timeline)
		r.Get("/units/{serial}/timeline/events", handler.TimelineEvents)
		r.Get("/units/{serial}/timeline/state", handler.TimelineState)
		r.Get("/units/{serial}/timeline/compare", handler.TimelineCompare)
		r.Get("/units/{serial}/timeline/export", handler.TimelineExport)

		r.Get("/transactions", handler.ListTransactions)
		r.Post("/transactions", handler.CreateTransaction)
		r.Post("/transactions/import-excel", handler.ImportTransactionExcel)
		r.Post("/search/cache/clear", handler.ClearSearchCache)

		r.Post("/sales", handler.CreateSale)

		r.Get("/barcodes/{code}/validate", handler.ValidateBarcode)
		r.Post("/barcodes/generate", handler.GenerateBarcodes)
	})

	return r
}

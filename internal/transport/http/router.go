package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/transport/http/handlers"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Auth    middleware.AuthConfig
	// Ready — readiness для /healthz; nil означает "готов всегда".
	Ready func() bool
	// Gatherer — источник метрик для /metrics; nil -> prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Defaults handlers.RunDefaults
}

// NewRouter собирает http.Handler admin API.
func NewRouter(svc handlers.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования
		middleware.Logging(opts.Logger),
		middleware.Timeout(opts.Timeout),
	)

	registerProbes(root, opts)

	h := handlers.New(svc, opts.Defaults)

	root.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(opts.Auth))
		registerRoutes(r, h)
	})

	return root
}

func registerProbes(r chi.Router, opts Options) {
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready != nil && !opts.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// records
	r.Get("/records", h.ListRecords)
	r.Get("/records/{id}", h.GetRecord)
	r.Get("/records/{id}/preview", h.PreviewRecord)
	r.Post("/records/{id}/media/presign", h.MediaPresign)
	r.Post("/records/{id}/media", h.AttachMedia)
	r.Post("/records/{id}/publish", h.Publish)
	r.Post("/records/{id}/reject", h.Reject)
	r.Post("/records/{id}/unpublish", h.Unpublish)
	r.Post("/records/{id}/reclassify", h.Reclassify)
	r.Patch("/records/{id}/insight", h.EditInsight)

	// runs
	r.Post("/runs", h.StartRun)
	r.Get("/runs/last", h.LastRun)
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"identity-certifier/internal/infra"
	"identity-certifier/internal/middleware"
)

// RouterOptions はルーターの構成要素。
type RouterOptions struct {
	CallerHeader string
	Limiter      *middleware.RateLimiter
	Metrics      *infra.Metrics
	Gatherer     prometheus.Gatherer
	ServiceName  string
}

// NewRouter はルーターを生成する。
func NewRouter(h *IdentityHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(middleware.HTTPMetrics(opts.Metrics.HTTPRequests, opts.Metrics.HTTPDuration))
	}

	r.Get("/healthz", h.Health)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// ルート定義
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Caller(opts.CallerHeader))

		r.Post("/keys/init", h.InitializeKey)
		r.Get("/keys/public", h.GetPublicKey)
		r.With(opts.Limiter.Middleware).Post("/identity/certify", h.CertifyIdentity)
	})

	if opts.ServiceName == "" {
		return r
	}
	return otelhttp.NewHandler(r, opts.ServiceName)
}

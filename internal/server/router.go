package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/seovimalraj/locations/internal/analytics"
	"github.com/seovimalraj/locations/internal/ratelimit"
	"github.com/seovimalraj/locations/pkg/health"
	"github.com/seovimalraj/locations/pkg/metrics"
	pkgmw "github.com/seovimalraj/locations/pkg/middleware"
)

// Deps are the collaborators of the HTTP surface. Analytics, Health,
// Gatherer, Metrics, Limiter and ClientKeys are optional.
type Deps struct {
	Handler        *Handler
	Analytics      *analytics.Handler
	Health         *health.Checker
	Gatherer       prometheus.Gatherer
	Metrics        *metrics.Metrics
	Limiter        *ratelimit.Keyed
	ClientKeys     *ClientKeys
	RequestTimeout time.Duration
}

// New builds the HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST   /api/v1/tools               → tool dispatcher ({tool, input})
//	POST   /api/v1/research            → research_keywords
//	POST   /api/v1/wordpress/extract   → extract_wordpress_content
//	POST   /api/v1/content/generate    → generate_optimized_content
//	GET    /api/v1/research            → recent runs
//	GET    /api/v1/research/{id}       → stored run
//	GET    /api/v1/analytics           → aggregated stats
//	GET    /api/v1/analytics/snapshots → persisted stats snapshots
//	GET    /health/live, /health/ready
//	GET    /metrics
//
// Middleware chain (outermost first):
//
//	Recover → RequestID → CORS → Metrics → RateLimit → Timeout → mux
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	h := d.Handler

	mux.HandleFunc("POST /api/v1/tools", h.Dispatch)
	mux.HandleFunc("POST /api/v1/research", h.Direct(ToolResearch))
	mux.HandleFunc("POST /api/v1/wordpress/extract", h.Direct(ToolExtract))
	mux.HandleFunc("POST /api/v1/content/generate", h.Direct(ToolGenerate))
	mux.HandleFunc("GET /api/v1/research", h.ListRuns)
	mux.HandleFunc("GET /api/v1/research/{id}", h.GetRun)

	if d.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", d.Analytics.Stats)
		mux.HandleFunc("GET /api/v1/analytics/snapshots", d.Analytics.Snapshots)
	}
	if d.Health != nil {
		mux.HandleFunc("GET /health/live", d.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", d.Health.ReadyHandler())
	}
	if d.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(d.Gatherer))
	}

	var chain http.Handler = mux
	chain = pkgmw.Timeout(d.RequestTimeout)(chain)
	chain = RateLimit(d.Limiter, d.ClientKeys, d.Metrics)(chain)
	chain = pkgmw.Metrics(d.Metrics)(chain)
	chain = pkgmw.CORS(pkgmw.DefaultCORSConfig())(chain)
	chain = pkgmw.RequestID(chain)
	chain = pkgmw.Recover(chain)
	return chain
}

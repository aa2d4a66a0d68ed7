// Package router arma el árbol de rutas del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	branchesctrl "github.com/dropDatabas3/ramify/internal/http/controllers/branches"
	healthctrl "github.com/dropDatabas3/ramify/internal/http/controllers/health"
	recordsctrl "github.com/dropDatabas3/ramify/internal/http/controllers/records"
	httperrors "github.com/dropDatabas3/ramify/internal/http/errors"
	mw "github.com/dropDatabas3/ramify/internal/http/middlewares"
)

// Deps contiene todo lo que el router necesita ya construido.
type Deps struct {
	Records  *recordsctrl.Controller
	Branches *branchesctrl.Controller
	Health   *healthctrl.Controller

	Session     mw.Middleware
	RateLimit   mw.Middleware
	CORSOrigins []string
}

// New construye el handler raíz con la cadena de middlewares global.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// ops: sin sesión ni rate limit
	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(func(next http.Handler) http.Handler { return deps.RateLimit(next) })
		}
		r.Use(func(next http.Handler) http.Handler { return deps.Session(next) })

		r.Route("/records", func(r chi.Router) {
			r.Post("/", deps.Records.Create)
			r.Get("/", deps.Records.List)
			r.Get("/{id}", deps.Records.Get)
			r.Get("/{id}/meta", deps.Records.Meta)
			r.Put("/{id}", deps.Records.Update)
			r.Post("/{id}/branch", deps.Records.CreateBranch)
			r.Put("/{id}/subtree", deps.Records.ReplaceSubtree)
		})

		r.Route("/branches", func(r chi.Router) {
			r.Get("/", deps.Branches.List)
			r.Delete("/{branchID}", deps.Branches.Delete)
		})
	})

	return mw.Chain(r,
		mw.WithRequestID(),
		mw.WithRecover(),
		mw.WithLogging(),
		mw.WithSecurityHeaders(),
		mw.WithCORS(deps.CORSOrigins),
	)
}

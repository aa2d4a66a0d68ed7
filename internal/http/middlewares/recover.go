package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/ramify/internal/http/errors"
	"github.com/dropDatabas3/ramify/internal/observability/logger"
)

// WithRecover convierte un panic del handler en un 500 con envelope.
// Loguea método y path porque el stack del panic solo no alcanza para
// reproducir el request que lo disparó.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log := logger.From(r.Context())
					log.Error("panic recovered",
						logger.Op("recover"),
						logger.Method(r.Method),
						logger.Path(r.URL.Path),
						logger.Any("panic", rec),
					)
					errors.WriteError(w, errors.ErrInternalServerError.WithDetail("panic recovered"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

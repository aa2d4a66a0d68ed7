package middlewares

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dropDatabas3/ramify/internal/observability/logger"
)

// WithRequestID asegura un X-Request-ID por request (respeta el del
// cliente si vino) y deja en el contexto un logger scoped con ese ID.
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", reqID)

			ctx := setRequestID(r.Context(), reqID)
			ctx = logger.ToContext(ctx, logger.With(logger.RequestID(reqID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

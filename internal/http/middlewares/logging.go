package middlewares

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/ramify/internal/observability/logger"
)

// statusWriter captura el status y los bytes escritos.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// WithLogging emite un access log estructurado por request.
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			if sw.status == 0 {
				sw.status = http.StatusOK
			}
			log := logger.From(r.Context())
			log.Info("http request",
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.Status(sw.status),
				logger.DurationMs(time.Since(start).Milliseconds()),
				logger.Bytes(sw.bytes),
				logger.ClientIP(clientIP(r)),
			)
		})
	}
}

package middlewares

import (
	"net/http"
	"strings"
)

// Headers que el frontend de ramify necesita leer: el request id para
// reportar errores, el token de sesión que el server acuña, y los
// headers de rate limit para backoff del lado del cliente.
const corsExposeHeaders = "X-Request-ID, X-Session-Token, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After"

// WithCORS habilita CORS para los orígenes listados; "*" permite todos
// (sólo dev, el Validate de config lo rechaza en prod).
func WithCORS(allowed []string) Middleware {
	norm := func(s string) string { return strings.TrimRight(strings.TrimSpace(s), "/") }

	allowAll := false
	origins := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		o := norm(v)
		if o == "*" {
			allowAll = true
			continue
		}
		origins[strings.ToLower(o)] = struct{}{}
	}

	originAllowed := func(origin string) bool {
		if origin == "" {
			return false
		}
		if allowAll {
			return true
		}
		_, ok := origins[strings.ToLower(origin)]
		return ok
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Vary siempre, también en responses sin CORS, para que los
			// proxies no sirvan una respuesta cacheada al origen equivocado.
			w.Header().Add("Vary", "Origin")
			w.Header().Add("Vary", "Access-Control-Request-Method")
			w.Header().Add("Vary", "Access-Control-Request-Headers")

			if origin := norm(r.Header.Get("Origin")); originAllowed(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,HEAD,OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Session-Token")
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
				h.Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

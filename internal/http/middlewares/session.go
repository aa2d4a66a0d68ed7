package middlewares

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/ramify/internal/http/errors"
	"github.com/dropDatabas3/ramify/internal/observability/logger"
)

// SessionConfig configura las sesiones anónimas.
type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

// WithSession resuelve la sesión anónima del request. No hay login: el
// primer request sin token (o con token vencido) recibe una sesión
// nueva en X-Session-Token y el cliente la persiste. El session ID es
// el dueño de los records que cree.
func WithSession(cfg SessionConfig) Middleware {
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		// sólo dev; Validate() lo prohíbe en prod
		secret = []byte("ramify-dev-insecure")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""

			if raw := bearerToken(r); raw != "" {
				claims := jwt.RegisteredClaims{}
				tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return secret, nil
				})
				if err == nil && tok.Valid && claims.Subject != "" {
					sessionID = claims.Subject
				} else if err != nil {
					logger.From(r.Context()).Debug("session token rejected", logger.Err(err))
				}
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
				signed, err := mintSessionToken(secret, sessionID, ttl)
				if err != nil {
					errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
					return
				}
				w.Header().Set("X-Session-Token", signed)
			}

			ctx := WithSessionID(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func mintSessionToken(secret []byte, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "ramify",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

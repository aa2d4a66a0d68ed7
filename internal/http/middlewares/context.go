package middlewares

import "context"

type ctxKey string

const (
	// ctxSessionIDKey guarda el session ID anónimo del dueño
	ctxSessionIDKey ctxKey = "session_id"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// WithSessionID inyecta el session ID en el contexto.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ctxSessionIDKey, sessionID)
}

// GetSessionID obtiene el session ID del contexto.
// Retorna cadena vacía si el middleware de sesión no se aplicó.
func GetSessionID(ctx context.Context) string {
	if v := ctx.Value(ctxSessionIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Package cache guarda lookups de branch endpoints ya convergidos para
// no pagar un round-trip Digest al control plane en cada lectura. Los
// valores son JSON chico y efímero: la interfaz se queda en
// get/set/delete más el ping que usa el readiness check.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client backend de cache para refs de branch.
type Client interface {
	// Get obtiene un valor. ErrNotFound si la key no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor. ttl 0 significa sin expiración.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key. Idempotente.
	Delete(ctx context.Context, key string) error

	// Ping verifica que el backend responda.
	Ping(ctx context.Context) error

	Close() error
}

// Config para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string // prefijo para todas las keys
}

// ErrNotFound la key no está en el cache. Miss, no falla.
var ErrNotFound = errors.New("cache: key not found")

// New crea un cliente según el driver. Desconocido o vacío cae a memory:
// el cache es una optimización, no un requisito de arranque.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}

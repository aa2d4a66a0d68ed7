package rate

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/ramify/internal/metrics"
)

// MemoryLimiter: fixed window en memoria para despliegues de un solo
// proceso. Las entradas llevan expiración explícita y el sweep es lazy:
// cada acceso barre las entradas vencidas, así el mapa no crece sin
// cota aunque nunca haya un limpiador de fondo.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu      sync.Mutex
	entries map[string]*windowEntry
	// now inyectable para tests
	now func() time.Time
}

type windowEntry struct {
	hits      int64
	expiresAt time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:     int64(max),
		Window:  window,
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	// sweep lazy de vencidas
	for k, e := range l.entries {
		if !now.Before(e.expiresAt) {
			delete(l.entries, k)
		}
	}

	winStart := now.Truncate(l.Window)
	e, ok := l.entries[key]
	if !ok {
		e = &windowEntry{expiresAt: winStart.Add(l.Window)}
		l.entries[key] = e
	}
	e.hits++

	allowed := e.hits <= l.Max
	remaining := l.Max - e.hits
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		CurrentHits: e.hits,
		WindowTTL:   e.expiresAt.Sub(now),
	}
	if !allowed {
		res.RetryAfter = e.expiresAt.Sub(now)
		metrics.RateLimitRejections.Inc()
	}
	return res, nil
}

// Len expone el tamaño del mapa interno (tests de sweep).
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

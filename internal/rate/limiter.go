// Package rate protege el API de records (y por transición el primario
// y el control plane) de clientes abusivos. Fixed window: la sesión es
// anónima y renovable, así que la clave es IP+path y la precisión de
// una sliding window no compra nada.
package rate

import (
	"context"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/ramify/internal/metrics"
)

// Result es la decisión de una ventana para una clave.
type Result struct {
	Allowed bool
	// Remaining hits disponibles en la ventana vigente.
	Remaining int64
	// RetryAfter cuánto falta para que la ventana se renueve; sólo
	// cuando Allowed es false.
	RetryAfter time.Duration
	// WindowTTL vida restante de la ventana vigente.
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter decide si una clave puede seguir pegándole al API.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

const defaultRedisPrefix = "ramify:rl:"

// RedisLimiter es la variante para despliegues con más de una réplica:
// la ventana vive en redis (INCR + expiración) y todas las réplicas la
// comparten.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
	max    int64
	window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		max:    int64(max),
		window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, key, winStart.Unix())

	// INCR + ExpireNX en una transacción: la expiración queda fijada por
	// el primer hit de la ventana y los siguientes no la tocan.
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate: redis window: %w", err)
	}

	hits := incr.Val()
	remaining := l.max - hits
	if remaining < 0 {
		remaining = 0
	}
	windowTTL := ttl.Val()
	if windowTTL <= 0 {
		windowTTL = winStart.Add(l.window).Sub(now)
	}

	res := Result{
		Allowed:     hits <= l.max,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   windowTTL,
	}
	if !res.Allowed {
		res.RetryAfter = windowTTL
		metrics.RateLimitRejections.Inc()
	}
	return res, nil
}

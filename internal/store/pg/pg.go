// Package pg implementa el repositorio primario de records sobre
// PostgreSQL (pgxpool). El pool es compartido y seguro para uso
// concurrente; el primario es la garantía de durabilidad del sistema.
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/ramify/internal/observability/logger"
)

// PoolConfig parámetros de tuning del pool primario.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type DB struct{ pool *pgxpool.Pool }

// New abre el pool contra el DSN primario. El ping de arranque es
// non-blocking: la app levanta aunque la DB esté momentáneamente caída.
func New(ctx context.Context, dsn string, cfg PoolConfig) (*DB, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	// MaxIdleConns mapea a MinConns en pgxpool
	if cfg.MaxIdleConns > 0 {
		pcfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 8
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	log := logger.Named("pg")
	if err := pool.Ping(ctx); err != nil {
		log.Warn("primary pool startup ping failed", logger.Err(err))
	} else {
		log.Info("primary pool ready", logger.Int("max_conns", int(pcfg.MaxConns)))
	}

	return &DB{pool: pool}, nil
}

// Pool expone el pool interno (metrics/migraciones).
func (d *DB) Pool() *pgxpool.Pool {
	if d == nil {
		return nil
	}
	return d.pool
}

// PoolStats snapshot del estado del pool; nil si no está inicializado.
func (d *DB) PoolStats() *pgxpool.Stat {
	if d == nil || d.pool == nil {
		return nil
	}
	return d.pool.Stat()
}

func (d *DB) Ping(ctx context.Context) error { return d.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (d *DB) Close() {
	if d != nil && d.pool != nil {
		d.pool.Close()
	}
}

// Package branchdial abre conexiones de datos directas a endpoints de
// branch. Los pools se cachean corto por endpoint (la corrección no
// depende del cache: es sólo para no pagar el handshake TLS por
// operación) y la creación concurrente se colapsa con singleflight.
package branchdial

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/ramify/internal/metrics"
	"github.com/dropDatabas3/ramify/internal/observability/logger"
	"github.com/dropDatabas3/ramify/internal/record"
)

// Config credenciales y parámetros comunes a todas las branches del
// cluster. El endpoint (host) llega por operación desde la referencia
// del record.
type Config struct {
	User     string
	Password string
	Database string
	Port     int
	// SSLMode para los endpoints serverless; verify-full por defecto.
	SSLMode string
	// PoolTTL cuánto vive un pool cacheado sin renovarse.
	PoolTTL time.Duration
	// DialTimeout cota dura del handshake inicial.
	DialTimeout time.Duration
}

const (
	defaultPort        = 4000
	defaultSSLMode     = "verify-full"
	defaultPoolTTL     = 5 * time.Minute
	defaultDialTimeout = 3 * time.Second
)

// Dialer implementa record.BranchDialer sobre pools pgx por endpoint.
// go-cache y singleflight ya sincronizan el acceso a los pools; no hace
// falta lock propio.
type Dialer struct {
	cfg   Config
	pools *gocache.Cache
	sf    singleflight.Group
	log   *zap.Logger
}

func New(cfg Config) *Dialer {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = defaultSSLMode
	}
	if cfg.PoolTTL <= 0 {
		cfg.PoolTTL = defaultPoolTTL
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}

	pools := gocache.New(cfg.PoolTTL, time.Minute)
	pools.OnEvicted(func(endpoint string, v any) {
		if pool, ok := v.(*pgxpool.Pool); ok && pool != nil {
			pool.Close()
		}
	})

	return &Dialer{
		cfg:   cfg,
		pools: pools,
		log:   logger.Named("branchdial"),
	}
}

// dsn arma el DSN de la branch a partir del endpoint. Credenciales y
// database son las del cluster: la branch es una copia con el mismo
// esquema y los mismos usuarios.
func (d *Dialer) dsn(endpoint string) string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.cfg.User), url.QueryEscape(d.cfg.Password),
		endpoint, d.cfg.Port, d.cfg.Database, d.cfg.SSLMode)
}

// Dial devuelve una conexión de datos al endpoint. Cualquier falla de
// conexión o handshake se clasifica como record.ErrBranchUnavailable:
// el caller decide la degradación, acá nunca es fatal.
func (d *Dialer) Dial(ctx context.Context, endpoint string) (record.BranchStore, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: empty endpoint", record.ErrBranchUnavailable)
	}

	if v, ok := d.pools.Get(endpoint); ok {
		if pool, ok := v.(*pgxpool.Pool); ok {
			return &branchConn{pool: pool}, nil
		}
	}

	v, err, _ := d.sf.Do(endpoint, func() (any, error) {
		// double-check: otro vuelo pudo haberlo creado
		if cached, ok := d.pools.Get(endpoint); ok {
			return cached, nil
		}
		pool, err := d.open(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		d.pools.SetDefault(endpoint, pool)
		return pool, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", record.ErrBranchUnavailable, err)
	}
	return &branchConn{pool: v.(*pgxpool.Pool)}, nil
}

func (d *Dialer) open(ctx context.Context, endpoint string) (*pgxpool.Pool, error) {
	start := time.Now()

	pcfg, err := pgxpool.ParseConfig(d.dsn(endpoint))
	if err != nil {
		return nil, err
	}
	// pools de branch chicos: una branch sirve a una sola exploración
	pcfg.MaxConns = 2
	pcfg.MaxConnLifetime = d.cfg.PoolTTL

	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.DialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, pcfg)
	if err != nil {
		metrics.BranchDialSeconds.Observe(time.Since(start).Seconds())
		return nil, err
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		metrics.BranchDialSeconds.Observe(time.Since(start).Seconds())
		return nil, err
	}

	metrics.BranchDialSeconds.Observe(time.Since(start).Seconds())
	d.log.Debug("branch pool opened", logger.Endpoint(endpoint), logger.Duration(time.Since(start)))
	return pool, nil
}

// Close cierra todos los pools cacheados. Sólo para el shutdown, con el
// server ya drenado; no coordina con Dials en vuelo.
func (d *Dialer) Close() {
	for endpoint, item := range d.pools.Items() {
		if pool, ok := item.Object.(*pgxpool.Pool); ok && pool != nil {
			pool.Close()
		}
		d.pools.Delete(endpoint)
	}
}

// branchConn es la vista de datos de una branch. El pool subyacente es
// compartido y lo administra el cache del Dialer, por eso Close acá no
// cierra nada.
type branchConn struct{ pool *pgxpool.Pool }

// UpsertPayload inserta o, si la key existe, pisa SOLO la columna
// payload. La branch nace como copia copy-on-write del primario, así
// que el row normalmente ya existe; el arm de insert cubre branches
// truncadas fuera de banda.
func (c *branchConn) UpsertPayload(ctx context.Context, recordID string, payload []byte) error {
	const q = `
INSERT INTO record (id, owner_session_id, payload, created_at)
VALUES ($1, '', $2, now())
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`
	if _, err := c.pool.Exec(ctx, q, recordID, payload); err != nil {
		return fmt.Errorf("branchdial: upsert payload: %w", err)
	}
	return nil
}

func (c *branchConn) GetPayload(ctx context.Context, recordID string) ([]byte, error) {
	var payload []byte
	err := c.pool.QueryRow(ctx, `SELECT payload FROM record WHERE id = $1`, recordID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, record.ErrNotFound
		}
		return nil, fmt.Errorf("branchdial: get payload: %w", err)
	}
	return payload, nil
}

func (c *branchConn) Close() {}

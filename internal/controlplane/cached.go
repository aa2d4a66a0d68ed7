package controlplane

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dropDatabas3/ramify/internal/cache"
)

// CachedProvisioner decora un Provisioner con un cache corto de
// GetBranch. Las lecturas branch-pending pollean el control plane en
// cada acceso; el cache pone una cota a ese tráfico sin cambiar la
// semántica (una branch que ya convergió no vuelve a pending).
type CachedProvisioner struct {
	inner Provisioner
	cache cache.Client
	ttl   time.Duration
}

const defaultBranchCacheTTL = 10 * time.Second

func NewCachedProvisioner(inner Provisioner, c cache.Client, ttl time.Duration) *CachedProvisioner {
	if ttl <= 0 {
		ttl = defaultBranchCacheTTL
	}
	return &CachedProvisioner{inner: inner, cache: c, ttl: ttl}
}

func (p *CachedProvisioner) CreateBranch(ctx context.Context, in CreateBranchInput) (string, error) {
	return p.inner.CreateBranch(ctx, in)
}

func (p *CachedProvisioner) GetBranch(ctx context.Context, branchID string) (*Branch, error) {
	key := "branch:" + branchID
	if raw, err := p.cache.Get(ctx, key); err == nil {
		var b Branch
		if json.Unmarshal([]byte(raw), &b) == nil {
			return &b, nil
		}
	}

	b, err := p.inner.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	// sólo cacheamos respuestas con endpoint: una branch todavía
	// creándose debe seguir polleándose fresca
	if b.Endpoint != "" {
		if raw, err := json.Marshal(b); err == nil {
			_ = p.cache.Set(ctx, key, string(raw), p.ttl)
		}
	}
	return b, nil
}

func (p *CachedProvisioner) ListBranches(ctx context.Context) ([]Branch, error) {
	return p.inner.ListBranches(ctx)
}

func (p *CachedProvisioner) DeleteBranch(ctx context.Context, branchID string) error {
	_ = p.cache.Delete(ctx, "branch:"+branchID)
	return p.inner.DeleteBranch(ctx, branchID)
}

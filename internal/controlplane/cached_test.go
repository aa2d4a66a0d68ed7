package controlplane

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/ramify/internal/cache"
)

type countingProvisioner struct {
	branch *Branch
	gets   int
}

func (c *countingProvisioner) CreateBranch(ctx context.Context, in CreateBranchInput) (string, error) {
	return c.branch.ID, nil
}

func (c *countingProvisioner) GetBranch(ctx context.Context, branchID string) (*Branch, error) {
	c.gets++
	b := *c.branch
	return &b, nil
}

func (c *countingProvisioner) ListBranches(ctx context.Context) ([]Branch, error) {
	return []Branch{*c.branch}, nil
}

func (c *countingProvisioner) DeleteBranch(ctx context.Context, branchID string) error {
	return nil
}

func TestCachedProvisioner_PendingBranchAlwaysPolls(t *testing.T) {
	inner := &countingProvisioner{branch: &Branch{ID: "br-1", State: "creating"}}
	p := NewCachedProvisioner(inner, cache.NewMemory(""), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b, err := p.GetBranch(ctx, "br-1")
		if err != nil {
			t.Fatal(err)
		}
		if b.Endpoint != "" {
			t.Fatalf("endpoint = %q", b.Endpoint)
		}
	}
	// sin endpoint no se cachea: cada lectura pollea el control plane
	if inner.gets != 3 {
		t.Fatalf("gets = %d, want 3", inner.gets)
	}
}

func TestCachedProvisioner_ConvergedBranchIsCached(t *testing.T) {
	inner := &countingProvisioner{branch: &Branch{ID: "br-1", State: "ready", Endpoint: "ep-1"}}
	p := NewCachedProvisioner(inner, cache.NewMemory(""), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b, err := p.GetBranch(ctx, "br-1")
		if err != nil {
			t.Fatal(err)
		}
		if b.Endpoint != "ep-1" {
			t.Fatalf("endpoint = %q", b.Endpoint)
		}
	}
	if inner.gets != 1 {
		t.Fatalf("gets = %d, want 1 (converged branch served from cache)", inner.gets)
	}
}

func TestCachedProvisioner_DeleteInvalidates(t *testing.T) {
	inner := &countingProvisioner{branch: &Branch{ID: "br-1", State: "ready", Endpoint: "ep-1"}}
	p := NewCachedProvisioner(inner, cache.NewMemory(""), time.Minute)
	ctx := context.Background()

	if _, err := p.GetBranch(ctx, "br-1"); err != nil {
		t.Fatal(err)
	}
	if err := p.DeleteBranch(ctx, "br-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetBranch(ctx, "br-1"); err != nil {
		t.Fatal(err)
	}
	if inner.gets != 2 {
		t.Fatalf("gets = %d, want 2 (delete must invalidate the cache entry)", inner.gets)
	}
}

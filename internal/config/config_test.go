package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_DefaultsAndValidation(t *testing.T) {
	p := writeYAML(t, `
storage:
  dsn: postgres://localhost/ramify
`)
	c, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if c.Server.Addr != ":8080" {
		t.Errorf("addr = %q", c.Server.Addr)
	}
	if c.Cache.Kind != "memory" || c.Rate.Window != "1m" || c.Rate.MaxRequests != 60 {
		t.Errorf("defaults not applied: %+v", c)
	}
	if c.Branching.SSLMode != "verify-full" || c.Branching.DataPort != 4000 {
		t.Errorf("branching defaults not applied: %+v", c.Branching)
	}
}

func TestLoad_MissingDSNFails(t *testing.T) {
	p := writeYAML(t, `server: {addr: ":9000"}`)
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for missing storage.dsn")
	}
}

func TestLoad_BranchingRequiresCredentials(t *testing.T) {
	p := writeYAML(t, `
storage:
  dsn: postgres://localhost/ramify
branching:
  enabled: true
  cluster_id: c-1
`)
	if _, err := Load(p); err == nil {
		t.Fatal("branching without keys must fail at startup")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	p := writeYAML(t, `
storage:
  dsn: postgres://localhost/ramify
`)
	t.Setenv("SERVER_ADDR", ":7777")
	t.Setenv("BRANCHING_ENABLED", "true")
	t.Setenv("BRANCHING_API_BASE_URL", "https://api.example.com/v1beta")
	t.Setenv("BRANCHING_PUBLIC_KEY", "pub")
	t.Setenv("BRANCHING_PRIVATE_KEY", "priv")
	t.Setenv("BRANCHING_CLUSTER_ID", "c-1")
	t.Setenv("BRANCHING_DATA_USER", "root")
	t.Setenv("BRANCHING_DATABASE", "ramify")

	c, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if c.Server.Addr != ":7777" {
		t.Errorf("addr = %q", c.Server.Addr)
	}
	if !c.Branching.Enabled || c.Branching.PrivateKey != "priv" {
		t.Errorf("branching env overrides not applied: %+v", c.Branching)
	}
}

func TestLoad_ProdRejectsWildcardCORS(t *testing.T) {
	p := writeYAML(t, `
app:
  env: prod
storage:
  dsn: postgres://localhost/ramify
session:
  secret: s3cr3t
server:
  cors_allowed_origins: ["*"]
`)
	if _, err := Load(p); err == nil {
		t.Fatal("wildcard origin must be rejected in prod")
	}
}

func TestLoad_BadDurationFails(t *testing.T) {
	p := writeYAML(t, `
storage:
  dsn: postgres://localhost/ramify
rate:
  window: not-a-duration
`)
	if _, err := Load(p); err == nil {
		t.Fatal("expected duration parse error")
	}
}

// Package health contiene el controller para health checks.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/ramify/internal/cache"
	"github.com/dropDatabas3/ramify/internal/http/helpers"
)

// Pinger chequea la conectividad de un componente.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller maneja /healthz y /readyz.
type Controller struct {
	version string
	primary Pinger
	cache   cache.Client
}

func NewController(version string, primary Pinger, c cache.Client) *Controller {
	return &Controller{version: version, primary: primary, cache: c}
}

type componentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readyzResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components"`
}

// Healthz: liveness puro, nunca toca dependencias.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz: chequea el primario (fatal) y el cache (degradado).
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := readyzResponse{
		Status:     "ready",
		Version:    c.version,
		Components: map[string]componentStatus{},
	}

	if err := c.primary.Ping(ctx); err != nil {
		resp.Status = "unavailable"
		resp.Components["primary"] = componentStatus{Status: "down", Error: err.Error()}
	} else {
		resp.Components["primary"] = componentStatus{Status: "up"}
	}

	if c.cache != nil {
		if err := c.cache.Ping(ctx); err != nil {
			if resp.Status == "ready" {
				resp.Status = "degraded"
			}
			resp.Components["cache"] = componentStatus{Status: "down", Error: err.Error()}
		} else {
			resp.Components["cache"] = componentStatus{Status: "up"}
		}
	}

	status := http.StatusOK
	if resp.Status == "unavailable" {
		status = http.StatusServiceUnavailable
	}
	if resp.Version != "" {
		w.Header().Set("X-Service-Version", resp.Version)
	}
	helpers.WriteJSON(w, status, resp)
}

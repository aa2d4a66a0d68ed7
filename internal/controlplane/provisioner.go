package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/dropDatabas3/ramify/internal/metrics"
	"github.com/dropDatabas3/ramify/internal/observability/logger"
)

// maxBodyBytes límite de lectura para respuestas del control plane.
const maxBodyBytes = 1 << 20

// httpDoer lo implementa DigestClient; la interfaz permite fakes en tests.
type httpDoer interface {
	Do(ctx context.Context, method, path string, body []byte) (*http.Response, error)
}

// BranchProvisioner implementa Provisioner contra la API del control
// plane, scoped a un cluster. Cada operación es un wrapper fino sobre
// el cliente Digest.
type BranchProvisioner struct {
	client    httpDoer
	clusterID string
	log       *zap.Logger
}

// NewBranchProvisioner crea el provisioner. El cluster ID es parte de la
// configuración: vacío es fatal.
func NewBranchProvisioner(client httpDoer, clusterID string) (*BranchProvisioner, error) {
	if clusterID == "" {
		return nil, ErrMissingCredentials
	}
	return &BranchProvisioner{
		client:    client,
		clusterID: clusterID,
		log:       logger.Named("controlplane"),
	}, nil
}

func (p *BranchProvisioner) basePath() string {
	return "/clusters/" + p.clusterID + "/branches"
}

// CreateBranch emite la creación y retorna el identificador asignado.
// Algunas APIs responden branchId, otras sólo name: se acepta cualquiera
// de los dos, prefiriendo branchId. No bloquea esperando readiness.
func (p *BranchProvisioner) CreateBranch(ctx context.Context, in CreateBranchInput) (string, error) {
	payload := map[string]string{"displayName": in.DisplayName}
	if in.ParentTimestamp != "" {
		payload["parentTimestamp"] = in.ParentTimestamp
	}
	body, _ := json.Marshal(payload)

	raw, err := p.call(ctx, http.MethodPost, p.basePath(), body, "create_branch")
	if err != nil {
		return "", err
	}

	var out struct {
		BranchID string `json:"branchId"`
		Name     string `json:"name"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("controlplane: decode create response: %w", err)
	}
	id := out.BranchID
	if id == "" {
		id = out.Name
	}
	if id == "" {
		return "", &ProvisioningError{Op: "create_branch", StatusCode: http.StatusOK, Body: "response carries neither branchId nor name"}
	}
	p.log.Info("branch created", zap.String("branch_id", id), zap.String("display_name", in.DisplayName))
	return id, nil
}

// GetBranch retorna los detalles actuales de la branch. Endpoint vacío
// significa provisioning todavía no convergió: camino esperado, el
// caller hace polling o degrada.
func (p *BranchProvisioner) GetBranch(ctx context.Context, branchID string) (*Branch, error) {
	raw, err := p.call(ctx, http.MethodGet, p.basePath()+"/"+branchID, nil, "get_branch")
	if err != nil {
		return nil, err
	}

	var out struct {
		BranchID    string `json:"branchId"`
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
		State       string `json:"state"`
		Endpoints   []struct {
			Host string `json:"host"`
		} `json:"endpoints"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("controlplane: decode branch: %w", err)
	}

	b := &Branch{ID: out.BranchID, DisplayName: out.DisplayName, State: out.State}
	if b.ID == "" {
		b.ID = out.Name
	}
	if b.ID == "" {
		b.ID = branchID
	}
	if len(out.Endpoints) > 0 {
		b.Endpoint = out.Endpoints[0].Host
	}
	return b, nil
}

// ListBranches lista las branches del cluster.
func (p *BranchProvisioner) ListBranches(ctx context.Context) ([]Branch, error) {
	raw, err := p.call(ctx, http.MethodGet, p.basePath(), nil, "list_branches")
	if err != nil {
		return nil, err
	}

	var out struct {
		Branches []struct {
			BranchID    string `json:"branchId"`
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
			State       string `json:"state"`
			Endpoints   []struct {
				Host string `json:"host"`
			} `json:"endpoints"`
		} `json:"branches"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("controlplane: decode branches: %w", err)
	}

	branches := make([]Branch, 0, len(out.Branches))
	for _, it := range out.Branches {
		b := Branch{ID: it.BranchID, DisplayName: it.DisplayName, State: it.State}
		if b.ID == "" {
			b.ID = it.Name
		}
		if len(it.Endpoints) > 0 {
			b.Endpoint = it.Endpoints[0].Host
		}
		branches = append(branches, b)
	}
	return branches, nil
}

// DeleteBranch borra la branch. Borrar una branch NO borra el Record que
// la referenciaba: ese record degrada a primary-only en su próximo
// read/write.
func (p *BranchProvisioner) DeleteBranch(ctx context.Context, branchID string) error {
	_, err := p.call(ctx, http.MethodDelete, p.basePath()+"/"+branchID, nil, "delete_branch")
	return err
}

// call ejecuta la operación y aplica la política de fallas: cualquier
// status no-2xx se convierte en ProvisioningError con status y body.
func (p *BranchProvisioner) call(ctx context.Context, method, path string, body []byte, op string) ([]byte, error) {
	resp, err := p.client.Do(ctx, method, path, body)
	if err != nil {
		metrics.ControlPlaneRequests.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("controlplane: %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.ControlPlaneRequests.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("controlplane: %s: read body: %w", op, err)
	}

	if resp.StatusCode/100 != 2 {
		metrics.ControlPlaneRequests.WithLabelValues(op, fmt.Sprintf("%d", resp.StatusCode)).Inc()
		p.log.Warn("control plane call failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &ProvisioningError{Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	metrics.ControlPlaneRequests.WithLabelValues(op, "ok").Inc()
	return raw, nil
}

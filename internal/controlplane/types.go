// Package controlplane implementa el cliente del control plane remoto
// que administra branches (copias copy-on-write del dataset primario).
// El control plane es una API HTTP con autenticación Digest; acá NO van
// las conexiones de datos (eso vive en internal/store).
package controlplane

import "context"

// Branch representa una branch administrada por el control plane.
// El control plane es la fuente de verdad del estado; esta capa no
// cachea transiciones.
type Branch struct {
	ID          string `json:"branchId"`
	DisplayName string `json:"displayName"`
	// ParentTimestamp ancestro point-in-time opcional (RFC3339).
	ParentTimestamp string `json:"parentTimestamp,omitempty"`
	// Endpoint host para conexiones de datos directas. Vacío hasta que
	// el provisioning converge: ausente NO es excepcional.
	Endpoint string `json:"endpoint,omitempty"`
	State    string `json:"state,omitempty"`
}

// CreateBranchInput parámetros de creación.
type CreateBranchInput struct {
	DisplayName     string
	ParentTimestamp string // opcional
}

// Provisioner define el contrato de ciclo de vida de branches.
// Ninguna operación reintenta automáticamente: crear una branch tiene
// side effects y la política de retry es del caller.
type Provisioner interface {
	// CreateBranch dispara la creación y retorna el ID asignado.
	// No espera readiness.
	CreateBranch(ctx context.Context, in CreateBranchInput) (string, error)

	// GetBranch retorna los detalles actuales. Endpoint vacío después
	// de crear es el camino esperado: el caller hace polling o degrada.
	GetBranch(ctx context.Context, branchID string) (*Branch, error)

	ListBranches(ctx context.Context) ([]Branch, error)

	DeleteBranch(ctx context.Context, branchID string) error
}

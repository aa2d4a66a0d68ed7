// Package records contiene los DTOs del recurso record.
package records

import (
	"encoding/json"
	"time"

	"github.com/dropDatabas3/ramify/internal/tree"
)

// CreateRecordRequest request de creación. La variante es explícita:
// el campo kind decide qué combinación de campos es válida, nunca se
// infiere por presencia.
type CreateRecordRequest struct {
	// explore | predict | fork
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	// Sólo para kind=fork:
	ParentRecordID     string `json:"parentRecordId,omitempty"`
	BranchOriginNodeID string `json:"branchOriginNodeId,omitempty"`
}

// RecordResponse metadata del record (sin payload).
type RecordResponse struct {
	ID                 string     `json:"id"`
	ParentRecordID     *string    `json:"parentRecordId,omitempty"`
	BranchOriginNodeID *string    `json:"branchOriginNodeId,omitempty"`
	Branch             *BranchRef `json:"branch,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// ListRecordsResponse los records de la sesión, sin payloads.
type ListRecordsResponse struct {
	Records []RecordResponse `json:"records"`
}

// ReadRecordResponse payload + procedencia real de la lectura.
type ReadRecordResponse struct {
	ID         string          `json:"id"`
	Payload    json.RawMessage `json:"payload"`
	Provenance string          `json:"provenance"`
}

// UpdateRecordRequest reemplaza el payload completo.
type UpdateRecordRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// UpdateRecordResponse reporta a qué stores llegó la escritura.
type UpdateRecordResponse struct {
	ID          string `json:"id"`
	WriteStatus string `json:"writeStatus"`
}

// CreateBranchRequest pide aislamiento para el record.
type CreateBranchRequest struct {
	DisplayName string `json:"displayName"`
}

// BranchRef referencia de branch del record.
type BranchRef struct {
	BranchID string `json:"branchId"`
	// Endpoint vacío mientras el provisioning no convergió.
	Endpoint string `json:"endpoint,omitempty"`
}

// ReplaceSubtreeRequest reemplaza los hijos de un nodo del árbol.
type ReplaceSubtreeRequest struct {
	NodeID   string      `json:"nodeId"`
	Children []tree.Node `json:"children"`
}

// ReplaceSubtreeResponse el árbol resultante + status de escritura +
// el set acumulado de nodos que alguna vez tuvieron un reemplazo.
type ReplaceSubtreeResponse struct {
	ID           string          `json:"id"`
	Payload      json.RawMessage `json:"payload"`
	WriteStatus  string          `json:"writeStatus"`
	BranchPoints []string        `json:"branchPoints,omitempty"`
}

// BranchInfo es la vista admin de una branch del control plane.
type BranchInfo struct {
	BranchID    string `json:"branchId"`
	DisplayName string `json:"displayName,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	State       string `json:"state,omitempty"`
}

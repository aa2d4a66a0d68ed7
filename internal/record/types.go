// Package record implementa el store replicado de records lógicos:
// un record vive siempre en el store primario y, opcionalmente, en el
// store de una branch alcanzada por conexión directa. El primario es la
// garantía de durabilidad; la branch es best-effort.
package record

import (
	"time"
)

// WriteStatus indica a qué stores llegó efectivamente una escritura.
// Es parte del contrato público: los tests lo assertan directamente,
// no es un side-channel de logs.
type WriteStatus string

const (
	// WriteMain la escritura de branch no se intentó (sin branch o sin endpoint).
	WriteMain WriteStatus = "main"
	// WriteBoth primario y branch recibieron la escritura.
	WriteBoth WriteStatus = "both"
	// WriteMainOnly la escritura de branch se intentó y falló (soft).
	WriteMainOnly WriteStatus = "main-only"
)

// Provenance indica de qué store salió realmente una lectura.
type Provenance string

const (
	ProvenanceMain   Provenance = "main"
	ProvenanceBranch Provenance = "branch"
)

// Record es la unidad de replicación. El payload (el árbol) es un blob
// opaco para esta capa.
type Record struct {
	ID             string
	OwnerSessionID string
	Payload        []byte
	// ParentRecordID para records derivados de otro (fork).
	ParentRecordID *string
	// BranchID + BranchEndpoint: referencia de branch. Un BranchID con
	// endpoint nil es el estado branch-pending.
	BranchID       *string
	BranchEndpoint *string
	// BranchOriginNodeID sólo cuando el record nació forkeando un árbol
	// existente en un nodo puntual; nunca en records top-level.
	BranchOriginNodeID *string
	CreatedAt          time.Time
}

// Branched indica si el record tiene endpoint vivo conocido.
func (r *Record) Branched() bool {
	return r.BranchEndpoint != nil && *r.BranchEndpoint != ""
}

// BranchPending indica branch pedida pero sin endpoint todavía.
func (r *Record) BranchPending() bool {
	return r.BranchID != nil && !r.Branched()
}

// CreateKind es el set cerrado de variantes de creación. Se resuelve
// una sola vez en el boundary HTTP, nunca se infiere por presencia de
// campos adentro de la lógica.
type CreateKind string

const (
	// KindExplore árbol de exploración top-level.
	KindExplore CreateKind = "explore"
	// KindPredict árbol de predicción top-level.
	KindPredict CreateKind = "predict"
	// KindFork deriva de un record existente en un nodo puntual.
	KindFork CreateKind = "fork"
)

// CreateInput parámetros de creación de un record.
type CreateInput struct {
	Kind           CreateKind
	OwnerSessionID string
	Payload        []byte
	// Sólo para KindFork:
	ParentRecordID     string
	BranchOriginNodeID string
}

// Validate chequea la coherencia de la variante.
func (in CreateInput) Validate() error {
	switch in.Kind {
	case KindExplore, KindPredict:
		if in.ParentRecordID != "" || in.BranchOriginNodeID != "" {
			return ErrInvalidInput
		}
	case KindFork:
		if in.ParentRecordID == "" || in.BranchOriginNodeID == "" {
			return ErrInvalidInput
		}
	default:
		return ErrInvalidInput
	}
	if in.OwnerSessionID == "" || len(in.Payload) == 0 {
		return ErrInvalidInput
	}
	return nil
}

// ReadResult payload + procedencia real de la lectura.
type ReadResult struct {
	Payload    []byte
	Provenance Provenance
}

// BranchRef lo que el caller necesita tras pedir aislamiento.
type BranchRef struct {
	BranchID string
	// Endpoint vacío si el provisioning no convergió todavía.
	Endpoint string
}

// Package records contiene el controller del recurso record.
package records

import (
	"context"
	stderrors "errors"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/ramify/internal/controlplane"
	"github.com/dropDatabas3/ramify/internal/http/dto/records"
	httperrors "github.com/dropDatabas3/ramify/internal/http/errors"
	"github.com/dropDatabas3/ramify/internal/http/helpers"
	"github.com/dropDatabas3/ramify/internal/http/middlewares"
	"github.com/dropDatabas3/ramify/internal/observability/logger"
	"github.com/dropDatabas3/ramify/internal/record"
	"github.com/dropDatabas3/ramify/internal/tree"
)

// Store es lo que el controller necesita del store replicado.
type Store interface {
	Create(ctx context.Context, in record.CreateInput) (*record.Record, error)
	GetMeta(ctx context.Context, id string) (*record.Record, error)
	Read(ctx context.Context, id string) (*record.ReadResult, error)
	Update(ctx context.Context, id string, payload []byte) (record.WriteStatus, error)
	CreateBranchFor(ctx context.Context, id, name string) (*record.BranchRef, error)
	ListForSession(ctx context.Context, sessionID string) ([]record.Record, error)
}

// Controller maneja las rutas /v1/records.
type Controller struct {
	store Store

	// puntos de branching por record: qué nodos tuvieron alguna vez un
	// reemplazo de subárbol. Aditivo, scope de proceso.
	mu           sync.Mutex
	branchPoints map[string]*tree.BranchPoints
}

func NewController(store Store) *Controller {
	return &Controller{
		store:        store,
		branchPoints: make(map[string]*tree.BranchPoints),
	}
}

// markBranchPoint registra el nodo como punto de branching del record y
// devuelve el set completo ordenado.
func (c *Controller) markBranchPoint(recordID, nodeID string) []string {
	c.mu.Lock()
	bp, ok := c.branchPoints[recordID]
	if !ok {
		bp = tree.NewBranchPoints()
		c.branchPoints[recordID] = bp
	}
	c.mu.Unlock()

	bp.Mark(nodeID)
	out := bp.List()
	sort.Strings(out)
	return out
}

// writeStoreError traduce errores del store al envelope HTTP.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, record.ErrNotFound):
		httperrors.WriteError(w, httperrors.ErrNotFound)
	case stderrors.Is(err, record.ErrInvalidInput):
		httperrors.WriteError(w, httperrors.ErrInvalidVariant)
	case stderrors.Is(err, record.ErrBranchingDisabled):
		httperrors.WriteError(w, httperrors.ErrBranchingDisabled)
	case controlplane.IsProvisioningFailed(err):
		httperrors.WriteError(w, httperrors.ErrProvisioningFailed.WithDetail(err.Error()))
	default:
		httperrors.WriteError(w, err)
	}
}

// owned carga la metadata y chequea ownership contra la sesión.
func (c *Controller) owned(w http.ResponseWriter, r *http.Request) (*record.Record, bool) {
	id := chi.URLParam(r, "id")
	meta, err := c.store.GetMeta(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	if meta.OwnerSessionID != middlewares.GetSessionID(r.Context()) {
		// no distinguimos "ajeno" de "inexistente"
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return nil, false
	}
	return meta, true
}

// Create maneja POST /v1/records.
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	var req records.CreateRecordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	rec, err := c.store.Create(r.Context(), record.CreateInput{
		Kind:               record.CreateKind(req.Kind),
		OwnerSessionID:     middlewares.GetSessionID(r.Context()),
		Payload:            req.Payload,
		ParentRecordID:     req.ParentRecordID,
		BranchOriginNodeID: req.BranchOriginNodeID,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, toRecordResponse(rec))
}

// List maneja GET /v1/records: los records de la sesión, sin payload.
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	recs, err := c.store.ListForSession(r.Context(), middlewares.GetSessionID(r.Context()))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := records.ListRecordsResponse{Records: make([]records.RecordResponse, 0, len(recs))}
	for i := range recs {
		out.Records = append(out.Records, toRecordResponse(&recs[i]))
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Get maneja GET /v1/records/{id}: payload + procedencia.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	meta, ok := c.owned(w, r)
	if !ok {
		return
	}

	res, err := c.store.Read(r.Context(), meta.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, records.ReadRecordResponse{
		ID:         meta.ID,
		Payload:    res.Payload,
		Provenance: string(res.Provenance),
	})
}

// Meta maneja GET /v1/records/{id}/meta: atributos sin payload.
func (c *Controller) Meta(w http.ResponseWriter, r *http.Request) {
	meta, ok := c.owned(w, r)
	if !ok {
		return
	}
	helpers.WriteJSON(w, http.StatusOK, toRecordResponse(meta))
}

// Update maneja PUT /v1/records/{id}: reemplaza el payload y reporta
// el write status en el body. main-only es 200, no error: la
// durabilidad primaria ya está garantizada.
func (c *Controller) Update(w http.ResponseWriter, r *http.Request) {
	meta, ok := c.owned(w, r)
	if !ok {
		return
	}

	var req records.UpdateRecordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if len(req.Payload) == 0 {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("payload is required"))
		return
	}

	status, err := c.store.Update(r.Context(), meta.ID, req.Payload)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, records.UpdateRecordResponse{
		ID:          meta.ID,
		WriteStatus: string(status),
	})
}

// CreateBranch maneja POST /v1/records/{id}/branch.
func (c *Controller) CreateBranch(w http.ResponseWriter, r *http.Request) {
	meta, ok := c.owned(w, r)
	if !ok {
		return
	}

	var req records.CreateBranchRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = "ramify-" + meta.ID[:8]
	}

	ref, err := c.store.CreateBranchFor(r.Context(), meta.ID, req.DisplayName)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	// 202: el endpoint puede no estar todavía, el provisioning sigue
	status := http.StatusAccepted
	if ref.Endpoint != "" {
		status = http.StatusCreated
	}
	helpers.WriteJSON(w, status, records.BranchRef{
		BranchID: ref.BranchID,
		Endpoint: ref.Endpoint,
	})
}

// ReplaceSubtree maneja PUT /v1/records/{id}/subtree: decodifica el
// árbol vigente, reemplaza los hijos del nodo indicado y escribe el
// resultado con el protocolo primario-primero.
func (c *Controller) ReplaceSubtree(w http.ResponseWriter, r *http.Request) {
	meta, ok := c.owned(w, r)
	if !ok {
		return
	}

	var req records.ReplaceSubtreeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.NodeID == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("nodeId is required"))
		return
	}

	res, err := c.store.Read(r.Context(), meta.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	root, err := tree.Decode(res.Payload)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
		return
	}

	next := tree.ReplaceSubtree(*root, req.NodeID, req.Children)
	payload, err := tree.Encode(&next)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
		return
	}

	status, err := c.store.Update(r.Context(), meta.ID, payload)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	points := c.markBranchPoint(meta.ID, req.NodeID)

	logger.From(r.Context()).Debug("subtree replaced",
		logger.RecordID(meta.ID),
		logger.String("node_id", req.NodeID),
	)
	helpers.WriteJSON(w, http.StatusOK, records.ReplaceSubtreeResponse{
		ID:           meta.ID,
		Payload:      payload,
		WriteStatus:  string(status),
		BranchPoints: points,
	})
}

func toRecordResponse(rec *record.Record) records.RecordResponse {
	out := records.RecordResponse{
		ID:                 rec.ID,
		ParentRecordID:     rec.ParentRecordID,
		BranchOriginNodeID: rec.BranchOriginNodeID,
		CreatedAt:          rec.CreatedAt,
	}
	if rec.BranchID != nil {
		ref := &records.BranchRef{BranchID: *rec.BranchID}
		if rec.BranchEndpoint != nil {
			ref.Endpoint = *rec.BranchEndpoint
		}
		out.Branch = ref
	}
	return out
}

package records

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/ramify/internal/http/middlewares"
	"github.com/dropDatabas3/ramify/internal/record"
)

// fakeStore implementa Store en memoria, con hooks para forzar
// comportamientos puntuales por test.
type fakeStore struct {
	records map[string]*record.Record

	updateStatus record.WriteStatus
	branchRef    *record.BranchRef
	branchErr    error

	lastUpdatePayload []byte
	lastBranchName    string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:      map[string]*record.Record{},
		updateStatus: record.WriteMain,
	}
}

func (f *fakeStore) Create(_ context.Context, in record.CreateInput) (*record.Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	rec := &record.Record{
		ID:             "11111111-2222-3333-4444-555555555555",
		OwnerSessionID: in.OwnerSessionID,
		Payload:        in.Payload,
		CreatedAt:      time.Now(),
	}
	if in.Kind == record.KindFork {
		parent, origin := in.ParentRecordID, in.BranchOriginNodeID
		rec.ParentRecordID = &parent
		rec.BranchOriginNodeID = &origin
	}
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeStore) GetMeta(_ context.Context, id string) (*record.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, record.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) Read(_ context.Context, id string) (*record.ReadResult, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, record.ErrNotFound
	}
	return &record.ReadResult{Payload: rec.Payload, Provenance: record.ProvenanceMain}, nil
}

func (f *fakeStore) Update(_ context.Context, id string, payload []byte) (record.WriteStatus, error) {
	rec, ok := f.records[id]
	if !ok {
		return "", record.ErrNotFound
	}
	rec.Payload = payload
	f.lastUpdatePayload = payload
	return f.updateStatus, nil
}

func (f *fakeStore) ListForSession(_ context.Context, sessionID string) ([]record.Record, error) {
	var out []record.Record
	for _, rec := range f.records {
		if rec.OwnerSessionID == sessionID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateBranchFor(_ context.Context, id, name string) (*record.BranchRef, error) {
	f.lastBranchName = name
	if f.branchErr != nil {
		return nil, f.branchErr
	}
	if f.branchRef != nil {
		return f.branchRef, nil
	}
	return &record.BranchRef{BranchID: "br-" + id[:4]}, nil
}

const testSession = "sess-abc"

// newTestRouter monta el controller con una sesión fija en contexto,
// como lo haría el middleware de sesión.
func newTestRouter(store Store, session string) http.Handler {
	c := NewController(store)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middlewares.WithSessionID(req.Context(), session)))
		})
	})
	r.Post("/v1/records", c.Create)
	r.Get("/v1/records", c.List)
	r.Get("/v1/records/{id}", c.Get)
	r.Get("/v1/records/{id}/meta", c.Meta)
	r.Put("/v1/records/{id}", c.Update)
	r.Post("/v1/records/{id}/branch", c.CreateBranch)
	r.Put("/v1/records/{id}/subtree", c.ReplaceSubtree)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func seedRecord(store *fakeStore, owner string, payload string) *record.Record {
	rec := &record.Record{
		ID:             "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		OwnerSessionID: owner,
		Payload:        []byte(payload),
		CreatedAt:      time.Now(),
	}
	store.records[rec.ID] = rec
	return rec
}

func TestCreate_Explore(t *testing.T) {
	store := newFakeStore()
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodPost, "/v1/records", map[string]any{
		"kind":    "explore",
		"payload": map[string]any{"id": "root", "title": "¿Cambio de carrera?"},
	})

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp struct {
		ID     string `json:"id"`
		Branch *struct {
			BranchID string `json:"branchId"`
		} `json:"branch"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	require.Nil(t, resp.Branch)

	rec := store.records[resp.ID]
	require.Equal(t, testSession, rec.OwnerSessionID)
}

func TestCreate_ForkRequiresOrigin(t *testing.T) {
	store := newFakeStore()
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodPost, "/v1/records", map[string]any{
		"kind":    "fork",
		"payload": map[string]any{"id": "root", "title": "x"},
		// falta parentRecordId y branchOriginNodeId
	})

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "INVALID_VARIANT", resp.Code)
}

func TestCreate_UnknownKind(t *testing.T) {
	store := newFakeStore()
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodPost, "/v1/records", map[string]any{
		"kind":    "experiment",
		"payload": map[string]any{"id": "root"},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestList_OnlyOwnRecords(t *testing.T) {
	store := newFakeStore()
	mine := seedRecord(store, testSession, `{"id":"root"}`)
	foreign := &record.Record{
		ID:             "ffffffff-0000-0000-0000-000000000000",
		OwnerSessionID: "otra-sesion",
		Payload:        []byte(`{"id":"root"}`),
	}
	store.records[foreign.ID] = foreign
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodGet, "/v1/records", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Records []struct {
			ID string `json:"id"`
		} `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	require.Equal(t, mine.ID, resp.Records[0].ID)
}

func TestGet_ReturnsPayloadAndProvenance(t *testing.T) {
	store := newFakeStore()
	rec := seedRecord(store, testSession, `{"id":"root","title":"raíz"}`)
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodGet, "/v1/records/"+rec.ID, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		ID         string          `json:"id"`
		Payload    json.RawMessage `json:"payload"`
		Provenance string          `json:"provenance"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, rec.ID, resp.ID)
	require.JSONEq(t, string(rec.Payload), string(resp.Payload))
	require.Equal(t, "main", resp.Provenance)
}

func TestGet_ForeignRecordIs404(t *testing.T) {
	store := newFakeStore()
	rec := seedRecord(store, "otra-sesion", `{"id":"root"}`)
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodGet, "/v1/records/"+rec.ID, nil)

	// ajeno e inexistente responden igual
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGet_MissingRecordIs404(t *testing.T) {
	store := newFakeStore()
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodGet, "/v1/records/00000000-0000-0000-0000-000000000000", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdate_ReportsWriteStatus(t *testing.T) {
	store := newFakeStore()
	store.updateStatus = record.WriteMainOnly
	rec := seedRecord(store, testSession, `{"id":"root"}`)
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodPut, "/v1/records/"+rec.ID, map[string]any{
		"payload": map[string]any{"id": "root", "title": "editado"},
	})

	// main-only no es error: el primario ya tiene la escritura
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		WriteStatus string `json:"writeStatus"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "main-only", resp.WriteStatus)
}

func TestUpdate_RequiresPayload(t *testing.T) {
	store := newFakeStore()
	rec := seedRecord(store, testSession, `{"id":"root"}`)
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodPut, "/v1/records/"+rec.ID, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateBranch_PendingIs202(t *testing.T) {
	store := newFakeStore()
	store.branchRef = &record.BranchRef{BranchID: "br-123"}
	rec := seedRecord(store, testSession, `{"id":"root"}`)
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodPost, "/v1/records/"+rec.ID+"/branch", map[string]any{})

	require.Equal(t, http.StatusAccepted, rr.Code)
	var resp struct {
		BranchID string `json:"branchId"`
		Endpoint string `json:"endpoint"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "br-123", resp.BranchID)
	require.Empty(t, resp.Endpoint)

	// sin displayName el controller genera uno a partir del ID
	require.Equal(t, "ramify-"+rec.ID[:8], store.lastBranchName)
}

func TestCreateBranch_ReadyIs201(t *testing.T) {
	store := newFakeStore()
	store.branchRef = &record.BranchRef{BranchID: "br-123", Endpoint: "br-123.db.example.com"}
	rec := seedRecord(store, testSession, `{"id":"root"}`)
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodPost, "/v1/records/"+rec.ID+"/branch", map[string]any{
		"displayName": "mi-branch",
	})

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "mi-branch", store.lastBranchName)
}

func TestCreateBranch_DisabledIs409(t *testing.T) {
	store := newFakeStore()
	store.branchErr = record.ErrBranchingDisabled
	rec := seedRecord(store, testSession, `{"id":"root"}`)
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodPost, "/v1/records/"+rec.ID+"/branch", map[string]any{})
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestReplaceSubtree(t *testing.T) {
	store := newFakeStore()
	store.updateStatus = record.WriteBoth
	rec := seedRecord(store, testSession, `{
		"id": "root",
		"title": "raíz",
		"children": [
			{"id": "a", "title": "opción A"},
			{"id": "b", "title": "opción B"}
		]
	}`)
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodPut, "/v1/records/"+rec.ID+"/subtree", map[string]any{
		"nodeId": "a",
		"children": []map[string]any{
			{"id": "a1", "title": "consecuencia", "sentiment": "positive", "probability": 60},
		},
	})

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Payload      json.RawMessage `json:"payload"`
		WriteStatus  string          `json:"writeStatus"`
		BranchPoints []string        `json:"branchPoints"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "both", resp.WriteStatus)
	require.Equal(t, []string{"a"}, resp.BranchPoints)

	// el payload persistido tiene el subárbol nuevo bajo "a" y "b" intacto
	var root struct {
		Children []struct {
			ID       string `json:"id"`
			Children []struct {
				ID string `json:"id"`
			} `json:"children"`
		} `json:"children"`
	}
	require.NoError(t, json.Unmarshal(store.lastUpdatePayload, &root))
	require.Len(t, root.Children, 2)
	require.Equal(t, "a", root.Children[0].ID)
	require.Len(t, root.Children[0].Children, 1)
	require.Equal(t, "a1", root.Children[0].Children[0].ID)
	require.Empty(t, root.Children[1].Children)
}

func TestReplaceSubtree_RequiresNodeID(t *testing.T) {
	store := newFakeStore()
	rec := seedRecord(store, testSession, `{"id":"root"}`)
	h := newTestRouter(store, testSession)

	rr := doJSON(t, h, http.MethodPut, "/v1/records/"+rec.ID+"/subtree", map[string]any{
		"children": []map[string]any{},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return body
}

func TestReadJSON_WrongContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()

	var v map[string]any
	if ReadJSON(rec, req, &v) {
		t.Fatal("ReadJSON must reject non-JSON content type")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body["code"] != "BAD_REQUEST" {
		t.Errorf("code = %q", body["code"])
	}
}

func TestReadJSON_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	var v map[string]any
	if ReadJSON(rec, req, &v) {
		t.Fatal("ReadJSON must reject malformed JSON")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body["code"] != "INVALID_JSON" {
		t.Errorf("code = %q", body["code"])
	}
}

func TestReadJSON_TolerantDecode(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","unknown_field":1}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()

	var v struct {
		Name string `json:"name"`
	}
	if !ReadJSON(rec, req, &v) {
		t.Fatal("unknown fields must not fail the decode")
	}
	if v.Name != "x" {
		t.Errorf("name = %q", v.Name)
	}
}

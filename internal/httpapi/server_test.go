package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phunks/voicemail/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewServer(st, nil)
}

func TestHandleAllAndDelRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	if err := srv.store.Allocate(ctx, 20260730100000001, "+15551234567", store.DefaultCapacity); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := srv.store.Allocate(ctx, 20260730100000002, "+15559876543", store.DefaultCapacity); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/all", nil)
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/all status = %d", rec.Code)
	}
	var body struct {
		Data []store.Entry `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Data) != 2 {
		t.Fatalf("got %d entries, want 2", len(body.Data))
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/del/20260730100000001", nil)
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/del status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Data) != 1 {
		t.Fatalf("got %d entries after delete, want 1", len(body.Data))
	}
	if body.Data[0].ID != 20260730100000002 {
		t.Fatalf("remaining entry id = %d, want 20260730100000002", body.Data[0].ID)
	}
}

func TestHandleModUpsertAndDelete(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	if err := srv.store.Allocate(ctx, 20260730110000001, "+15551112222", store.DefaultCapacity); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/mod", strings.NewReader(`{"tel":"+15551112222","name":"Alice"}`))
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /api/mod status = %d, body = %s", rec.Code, rec.Body.String())
	}

	entries, err := srv.store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if entries[0].ContactName != "Alice" {
		t.Fatalf("contact name = %q, want Alice", entries[0].ContactName)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/mod", strings.NewReader(`{"tel":"+15551112222","name":""}`))
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /api/mod (delete) status = %d", rec.Code)
	}

	entries, err = srv.store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if entries[0].ContactName != "" {
		t.Fatalf("contact name = %q, want empty after delete", entries[0].ContactName)
	}
}

func TestHandleVoiceNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/voice/999", nil)
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

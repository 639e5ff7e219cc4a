package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"testing/fstest"
)

type healthPayload struct {
	Ready      bool   `json:"ready"`
	Status     string `json:"status"`
	Overall    string `json:"overall"`
	Components []struct {
		Name    string `json:"name"`
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"components"`
}

func decodeHealth(t *testing.T, body []byte) healthPayload {
	t.Helper()
	var p healthPayload
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("decode: %v (%s)", err, body)
	}
	return p
}

func TestReadinessFollowsListenerAndAssets(t *testing.T) {
	srv := createGinTestServer(t, WithAssetFS(fstest.MapFS{"index.html": {Data: []byte("x")}}))

	w := doRequest(srv.Handler(), http.MethodGet, "/api/v1/health/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before listening, got %d", w.Code)
	}
	if decodeHealth(t, w.Body.Bytes()).Ready {
		t.Fatal("should not be ready before listening")
	}

	ln, err := srv.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	w = doRequest(srv.Handler(), http.MethodGet, "/api/v1/health/ready")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after listening, got %d", w.Code)
	}
	p := decodeHealth(t, w.Body.Bytes())
	if !p.Ready || p.Status != "ok" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestReadinessWithoutIndex(t *testing.T) {
	srv := createGinTestServer(t, WithAssetFS(fstest.MapFS{"app.js": {Data: []byte("x")}}))
	ln, err := srv.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	w := doRequest(srv.Handler(), http.MethodGet, "/api/v1/health/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without index.html, got %d", w.Code)
	}
}

func TestHealthDetailListsComponents(t *testing.T) {
	srv := createGinTestServer(t, WithAssetFS(fstest.MapFS{"index.html": {Data: []byte("x")}}))

	w := doRequest(srv.Handler(), http.MethodGet, "/api/v1/health/detail")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	p := decodeHealth(t, w.Body.Bytes())
	if p.Overall != "warn" {
		t.Fatalf("http is not listening yet, expected warn, got %q", p.Overall)
	}
	want := []string{"assets", "http", "mdns"}
	if len(p.Components) != len(want) {
		t.Fatalf("expected %d components, got %+v", len(want), p.Components)
	}
	for i, name := range want {
		if p.Components[i].Name != name {
			t.Fatalf("component %d = %q, want %q", i, p.Components[i].Name, name)
		}
	}
}

func TestHealthLive(t *testing.T) {
	srv := createGinTestServer(t, WithAssetFS(fstest.MapFS{"index.html": {Data: []byte("x")}}))

	w := doRequest(srv.Handler(), http.MethodGet, "/api/v1/health/live")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if decodeHealth(t, w.Body.Bytes()).Status != "warn" {
		t.Fatalf("unexpected live status %s", w.Body.String())
	}
}

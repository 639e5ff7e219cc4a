package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
)

const testLANAddress = "192.168.1.23"

// writeAssetRoot creates a temporary asset root holding files.
func writeAssetRoot(t *testing.T, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "public")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir asset root: %v", err)
	}
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}

// createGinTestServer builds a server bound to loopback with mDNS off and
// the banner discarded.
func createGinTestServer(t *testing.T, opts ...GinServerOption) *GinServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv(gin.EnvGinMode, gin.TestMode)

	base := []GinServerOption{
		WithBindAddress("127.0.0.1"),
		WithPort(0),
		WithMDNS(false, ""),
		WithBannerOutput(io.Discard),
		WithLANResolver(func() string { return testLANAddress }),
		WithGinVersion("test"),
	}
	srv, err := NewGinServer(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewGinServer: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func doRequest(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

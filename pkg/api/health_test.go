package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/pkgrun/pkg/config"
)

func newTestHealthServer(t *testing.T, dataDir string) *HealthServer {
	t.Helper()
	srv, err := NewServer(config.Config{DataDir: dataDir}, nil, nil)
	assert.NoError(t, err)
	return NewHealthServer(srv)
}

func TestHealthHandler(t *testing.T) {
	hs := newTestHealthServer(t, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	hs.mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyHandler_DataDirMissing(t *testing.T) {
	hs := newTestHealthServer(t, "/nonexistent/pkgrun-data-dir")
	hs.checkReadiness()

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	hs.mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyHandler_DataDirPresent(t *testing.T) {
	hs := newTestHealthServer(t, t.TempDir())
	hs.checkReadiness()

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	hs.mux.ServeHTTP(w, req)

	// rpc is nil in this test, so the daemon is still not ready even
	// though the data directory checks out.
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLiveHandler(t *testing.T) {
	hs := newTestHealthServer(t, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	w := httptest.NewRecorder()
	hs.mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsHandler(t *testing.T) {
	hs := newTestHealthServer(t, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	hs.mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthServerConcurrency(t *testing.T) {
	hs := newTestHealthServer(t, t.TempDir())
	done := make(chan bool, 20)

	for i := 0; i < 10; i++ {
		go func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			hs.mux.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		go func() {
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			hs.mux.ServeHTTP(w, req)
			assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, w.Code)
			done <- true
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
}

package api

import (
	"net/http"
	"os"
	"time"

	"github.com/cuemby/pkgrun/pkg/metrics"
)

// HealthServer serves /health, /ready, /live and /metrics over plain HTTP,
// separate from the mTLS gRPC listener: operators and orchestrators probe
// these without a client certificate.
type HealthServer struct {
	srv    *Server
	mux    *http.ServeMux
	stopCh chan struct{}
}

// NewHealthServer wires the HTTP endpoints to srv's own readiness checks.
func NewHealthServer(srv *Server) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{srv: srv, mux: mux, stopCh: make(chan struct{})}

	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start runs the readiness checker and serves addr until the process exits
// or ListenAndServe fails.
func (hs *HealthServer) Start(addr string) error {
	hs.checkReadiness()
	go hs.pollReadiness()

	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// Stop ends the readiness poller. It does not close the HTTP listener;
// callers typically exit the process instead.
func (hs *HealthServer) Stop() {
	close(hs.stopCh)
}

func (hs *HealthServer) pollReadiness() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			hs.checkReadiness()
		case <-hs.stopCh:
			return
		}
	}
}

// checkReadiness registers the two components /ready requires: the data
// directory pkgrun reads packages from, and the container RPC socket a
// procedure call needs to reach a running process inside the container.
func (hs *HealthServer) checkReadiness() {
	if info, err := os.Stat(hs.srv.cfg.DataDir); err != nil {
		metrics.RegisterComponent("data_dir", false, err.Error())
	} else if !info.IsDir() {
		metrics.RegisterComponent("data_dir", false, "not a directory")
	} else {
		metrics.RegisterComponent("data_dir", true, "")
	}

	if hs.srv.rpc == nil {
		metrics.RegisterComponent("container_rpc", false, "no rpc client configured")
	} else {
		metrics.RegisterComponent("container_rpc", true, "")
	}
}

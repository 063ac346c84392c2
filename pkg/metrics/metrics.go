package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkgrun_api_requests_total",
			Help: "Total number of gRPC API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pkgrun_api_request_duration_seconds",
			Help:    "gRPC API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Procedure execution metrics
	ProcedureCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkgrun_procedure_calls_total",
			Help: "Total number of procedure calls by procedure name and outcome",
		},
		[]string{"procedure", "outcome"},
	)

	ProcedureDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pkgrun_procedure_duration_seconds",
			Help:    "Procedure execution duration in seconds by procedure name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"procedure"},
	)

	ProcedureTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkgrun_procedure_timeouts_total",
			Help: "Total number of procedure calls that hit the call timeout",
		},
		[]string{"procedure"},
	)

	RunningProcesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pkgrun_running_processes",
			Help: "Number of process groups currently executing inside the container",
		},
	)

	// Mount metrics
	MountsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pkgrun_mounts_active",
			Help: "Number of volumes currently bind-mounted into the container",
		},
	)

	MountOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkgrun_mount_operations_total",
			Help: "Total number of mount/unmount operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Journal metrics (pkg/containerinit's bbolt-backed state)
	JournalOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkgrun_journal_operations_total",
			Help: "Total number of container-init journal operations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// RPC (guest<->host socket) metrics
	RPCCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkgrun_rpc_calls_total",
			Help: "Total number of container RPC calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	RPCCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pkgrun_rpc_call_duration_seconds",
			Help:    "Container RPC call duration in seconds by method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(ProcedureCallsTotal)
	prometheus.MustRegister(ProcedureDuration)
	prometheus.MustRegister(ProcedureTimeoutsTotal)
	prometheus.MustRegister(RunningProcesses)
	prometheus.MustRegister(MountsActive)
	prometheus.MustRegister(MountOperationsTotal)
	prometheus.MustRegister(JournalOperationsTotal)
	prometheus.MustRegister(RPCCallsTotal)
	prometheus.MustRegister(RPCCallDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

/*
Package metrics provides Prometheus metrics and HTTP health/readiness
checks for pkgrun.

# Metrics Catalog

API:

	pkgrun_api_requests_total{method, status}    Counter
	pkgrun_api_request_duration_seconds{method}  Histogram

Procedure execution (the gRPC handler's own instrumentation):

	pkgrun_procedure_calls_total{procedure, outcome}   Counter, outcome is ok/error/timeout
	pkgrun_procedure_duration_seconds{procedure}       Histogram
	pkgrun_procedure_timeouts_total{procedure}         Counter
	pkgrun_running_processes                          Gauge

Mounts and the container-init journal:

	pkgrun_mounts_active                         Gauge
	pkgrun_mount_operations_total{operation, outcome}  Counter
	pkgrun_journal_operations_total{kind, outcome}     Counter

Container RPC (the guest<->host socket):

	pkgrun_rpc_calls_total{method, outcome}      Counter
	pkgrun_rpc_call_duration_seconds{method}     Histogram

# Usage

	timer := metrics.NewTimer()
	result, err := procedure.Run[json.RawMessage](cfg, env, name, input, args, gid)
	timer.ObserveDurationVec(metrics.ProcedureDuration, string(name))
	metrics.ProcedureCallsTotal.WithLabelValues(string(name), outcomeOf(result, err)).Inc()

	http.Handle("/metrics", metrics.Handler())

# Health and readiness

This package also tracks named component health independent of Prometheus,
used by pkg/api's HTTP health server:

	metrics.RegisterComponent("data_dir", true, "")
	metrics.RegisterComponent("container_rpc", false, "dial unix: no such file")

	http.HandleFunc("/health", metrics.HealthHandler())
	http.HandleFunc("/ready", metrics.ReadyHandler())
	http.HandleFunc("/live", metrics.LivenessHandler())

/health reports "unhealthy" if any registered component is unhealthy. /ready
additionally requires "data_dir" and "container_rpc" to be registered at all
— an unregistered component means the daemon hasn't finished starting.
*/
package metrics

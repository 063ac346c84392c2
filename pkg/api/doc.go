/*
Package api implements pkgrun's gRPC front-end over the Procedure Driver:
two RPCs, RunProcedure and StreamLogs, plus an HTTP health/metrics side
channel.

# Architecture

	┌──────────────────── CLIENT (pkg/client, CLI) ──────────────┐
	│                                                              │
	│  ┌──────────────────────────────────────────────┐          │
	│  │         gRPC Client (mTLS optional)            │          │
	│  └──────────────────┬───────────────────────────┘          │
	└─────────────────────┼────────────────────────────────────┘
	                      │ gRPC (cfg.ListenAddr)
	                      │
	┌─────────────────────▼──── PKGRUN DAEMON ───────────────────┐
	│                                                              │
	│  ┌──────────────────────────────────────────────┐          │
	│  │              api.Server                       │          │
	│  │  - RunProcedure: load package, run procedure  │          │
	│  │  - StreamLogs: tail a call's log_* output     │          │
	│  │  - MetricsInterceptor: count + time every RPC │          │
	│  └──────────────────┬───────────────────────────┘          │
	│                     │                                        │
	│  ┌──────────────────▼───────────────────────────┐          │
	│  │          pkg/jsengine + pkg/procedure          │          │
	│  │  - Loads the named package's compiled script   │          │
	│  │  - Runs it against the shared Volume Map and   │          │
	│  │    Container RPC Client                        │          │
	│  └────────────────────────────────────────────────┘         │
	└──────────────────────────────────────────────────────────┘

Unlike a cluster control plane there is no leader to forward writes to:
every call is handled by the process that accepted it, against the one
package/container this daemon was started for.

# RunProcedure

Decodes RunProcedureRequest.Input and VariableArgs from JSON, loads the
package via jsengine.LoadFromPackage, and runs the named procedure through
procedure.Run or (when Sandboxed is set) procedure.Sandboxed, both
instantiated with O = json.RawMessage so the handler never needs to know
the procedure's output shape. A procedure.HostError maps to
codes.Internal; everything else the handler rejects up front maps to
codes.InvalidArgument or codes.NotFound.

# StreamLogs

Each RunProcedure call gets its own call_id and its own zerolog.Logger
writing to a logHub-backed writer, not the daemon's own operational log —
StreamLogs callers want exactly the script's log_* output, not it
interleaved with driver/transport lines. StreamLogs replays the backlog
buffered since the call started, then streams live lines until the client
cancels; the stream does not end on its own when the call returns.

# Transport security

serverOptions wires TLS 1.3 when cfg.TLSCertFile is set, and requires and
verifies a client certificate when cfg.TLSCAFile is also set (see
pkg/security for the CA that issues these certificates); with no
certificate configured the server serves in the
clear, which is only sound over a loopback address or an already
permission-restricted Unix socket.

# Health and metrics

HealthServer exposes /health, /ready, /live and /metrics over plain HTTP,
separate from the gRPC listener, backed by pkg/metrics's component health
tracker and Prometheus registry.
*/
package api

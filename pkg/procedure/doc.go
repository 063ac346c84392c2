/*
Package procedure wraps pkg/jsengine with the two concerns a caller actually
needs: a wall-clock timeout and guaranteed cleanup of whatever the script
started in its container.

# Two entry points

Run is the full driver: it races the Execution Environment against
cfg.Timeout and, on every exit path, fires a group-kill guard that SIGKILLs
the script's entire process group through the Container RPC Client. Sandboxed
skips the guard entirely and forces read-only effects — there is no RPC
client on that path and nothing running to kill.

# Result shape

A call's outcome is (Result[O], error): Result carries the script's own
outcome (success or a reported (code, message) pair, including the fixed
timeout code 143), while the returned error is reserved for HostError —
genuine host-side faults such as an engine panic or final-output decode
failure. A lost timeout race is deliberately folded into Result rather than
HostError, since a caller retries it exactly like any other script failure.

See Also

  - pkg/jsengine for the Execution Environment this package drives.
  - pkg/rpcclient for the Container RPC Client the group-kill guard calls.
*/
package procedure

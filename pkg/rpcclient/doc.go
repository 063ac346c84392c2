/*
Package rpcclient implements the Container RPC Client component: the
channel a procedure call uses to ask the package's container-init process
to spawn processes, signal them, and collect their output.

# Wire Format

One JSON object per line, newline-delimited, in both directions.

	request:  {"id": "...", "method": "RunCommand", "params": {...}}
	response: {"id": "...", "result": {...}}
	       or {"id": "...", "error": {"code": 1, "message": "...", "data": ...}}

The connection is single-writer (callers serialize through Client's
internal mutex) and single-reader (one goroutine owns the socket and
dispatches each response to the pending call matching its id). This mirrors
spec.md §4.3's "single-writer, single-reader channel" exactly: nothing about
a line-framed JSON duplex invites layering a heavier RPC framework on top.

# Absence of a Client

A package running in the sandboxed or script-only path has no Client.
pkg/ops's process-related ops check for this and fail each call with
"No RpcClient for command operations" rather than panicking — see
pkg/ops's start_command/wait_command/send_signal/signal_group.
*/
package rpcclient

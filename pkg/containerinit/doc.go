/*
Package containerinit implements the reference Container RPC server: the
companion process cmd/containerinitd runs inside (or alongside) a package's
container, answering the line-framed JSON RunCommand/SendSignal/SignalGroup/
Output/Log requests pkg/rpcclient sends on behalf of pkg/ops's start_command/
wait_command/send_signal/signal_group/log_* ops.

spec.md treats the container-init process as an external collaborator
reached only through the wire contract; this package still owns a concrete
implementation of that collaborator so the end-to-end scenarios of spec.md
§8 have something to run against. A Supervisor spawns and tracks processes
inside one containerd task (one package container, matching pkg/api.Server's
own one-container-per-daemon model); a Journal persists each spawned
process's exit code and captured output so Output can still answer for it
after containerinitd itself restarts. SignalGroup reaches only processes
started by the running instance.
*/
package containerinit

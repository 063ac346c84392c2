/*
Package jsengine is the Execution Environment. It loads one package's
embassy.js into memory once (LoadFromPackage), then runs that script
against a fresh goja runtime and a fresh [ops.Context] on every call to
RunAction — nothing from one call is visible to the next.

# Host surface

Ops are exposed under a single frozen global, "__host", instead of as bare
globals: the script never sees a privileged builtin namespace by any
well-known name, only the curated surface this package installs. embassy.js
itself never receives a require or import binding, so any attempt by the
package script to pull in another module fails on its own — there is
nothing to resolve.

# Entry points

A package script is expected to populate module.exports with one function
per procedure name (getConfig, setConfig, or an action name). RunAction
invokes that function with the procedure's input and variable arguments; a
script may either call __host.set_value itself or simply return (or
resolve a promise to) its answer, whichever convention it uses.

# Event loop

Ops that would otherwise block — file I/O, fetch, rsync, process control —
run on a worker goroutine and resolve a promise back onto the engine's
single thread via goja_nodejs's eventloop.RunOnLoop, preserving the
single-engine-per-call isolation requirement while still letting a script
fire off concurrent ops (e.g. two outstanding fetches) without waiting on
each one serially.

# Errors

Failures are reported as *Error, a fixed taxonomy of Kind values plus the
fixed TimeoutCode the Procedure Driver uses when its wall-clock race is
lost. This is distinct from types.ErrorValue/ResultType, which carry a
script's own (code, message) result — those are never translated into a
jsengine.Error.

See Also

  - pkg/ops for the op implementations this package binds.
  - pkg/procedure for the timeout race and group-kill guard built on top of
    RunAction.
*/
package jsengine

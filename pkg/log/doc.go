/*
Package log provides structured logging for pkgrun using zerolog.

It wraps zerolog with a global logger, a small Config for level/format/
output, and context-logger helpers for the identifiers that recur across a
procedure call: package id, procedure name, call id.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("pkgrun starting")

	callLog := log.WithPackage("hello-world").
		With().Str("procedure", "backup").Logger()
	callLog.Info().Str("call_id", callID).Msg("procedure started")

# Context Loggers

  - WithComponent: generic component name (engine, ops, rpcclient, ...)
  - WithPackage: the package id the current call belongs to
  - WithProcedure: the procedure name (getConfig/setConfig/action name)
  - WithCallID: the unique id of one procedure invocation, for correlating
    every log line a single call produces

# Log Levels

Debug is for engine/ops tracing during development; Info is the default
production level (one line per procedure call: start, outcome, duration);
Warn covers non-fatal cleanup failures (a group-kill after a failed call, a
timed-out process that could not be killed); Error covers a
procedure call failing outright; Fatal is reserved for startup failures
pkgrun cannot run without (e.g. the data directory is not writable).

# Security

Never log op arguments verbatim — write_file/set_value payloads may carry
package secrets. Log paths and sizes, not contents.

# See Also

  - https://github.com/rs/zerolog
*/
package log

package ops

import (
	"context"

	"github.com/cuemby/pkgrun/pkg/rpcclient"
)

// logLevel is one of the five levels a script can emit through log_trace,
// log_debug, log_info, log_warn, log_error.
type logLevel int

const (
	logTrace logLevel = iota
	logDebug
	logInfo
	logWarn
	logError
)

// Log implements the log_trace/log_debug/log_info/log_warn/log_error ops:
// forwards to the Container RPC Client's Log method when one is present,
// otherwise falls back to a package-id/procedure-tagged local log line.
func (c *Context) Log(ctx context.Context, level logLevel, message string) error {
	if c.RPC != nil {
		return c.RPC.Log(ctx, rpcclient.LogParams{Level: level.String(), Message: message})
	}

	logger := c.Logger.With().
		Str("package_id", string(c.PackageID)).
		Str("run_function", c.RunFunction).
		Logger()

	switch level {
	case logTrace:
		logger.Trace().Msg(message)
	case logDebug:
		logger.Debug().Msg(message)
	case logInfo:
		logger.Info().Msg(message)
	case logWarn:
		logger.Warn().Msg(message)
	case logError:
		logger.Error().Msg(message)
	}
	return nil
}

// LogTrace implements the log_trace op.
func (c *Context) LogTrace(ctx context.Context, message string) error { return c.Log(ctx, logTrace, message) }

// LogDebug implements the log_debug op.
func (c *Context) LogDebug(ctx context.Context, message string) error { return c.Log(ctx, logDebug, message) }

// LogInfo implements the log_info op.
func (c *Context) LogInfo(ctx context.Context, message string) error { return c.Log(ctx, logInfo, message) }

// LogWarn implements the log_warn op.
func (c *Context) LogWarn(ctx context.Context, message string) error { return c.Log(ctx, logWarn, message) }

// LogError implements the log_error op.
func (c *Context) LogError(ctx context.Context, message string) error { return c.Log(ctx, logError, message) }

func (l logLevel) String() string {
	switch l {
	case logTrace:
		return "trace"
	case logDebug:
		return "debug"
	case logInfo:
		return "info"
	case logWarn:
		return "warn"
	case logError:
		return "error"
	default:
		return "info"
	}
}

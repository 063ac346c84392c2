// Package procedure is the Procedure Driver: the caller-facing entry point
// that wraps the Execution Environment with a wall-clock timeout, a
// group-kill guard, and the host/script error split spec.md §4.7 describes.
package procedure

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/pkgrun/pkg/jsengine"
	"github.com/cuemby/pkgrun/pkg/rpcclient"
	"github.com/cuemby/pkgrun/pkg/types"
)

// Config is the per-driver state that doesn't change between calls: the
// Container RPC Client (nil for the sandboxed path), a logger for cleanup
// failures that get swallowed rather than surfaced, and the wall-clock
// timeout every call races against.
type Config struct {
	RPC     *rpcclient.Client
	Logger  zerolog.Logger
	Timeout time.Duration
}

// Result is the inner Result<Output, (int, string)> of spec.md §4.7: either
// a successful decoded Output or a script-reported (code, message) pair.
// HostError, not Result, carries genuine host-side faults.
type Result[O any] struct {
	Value   O
	IsError bool
	Code    int
	Message string
}

func ok[O any](value O) Result[O] { return Result[O]{Value: value} }

func errResult[O any](code int, message string) Result[O] {
	return Result[O]{IsError: true, Code: code, Message: message}
}

// HostError is the outer fault a call can fail with: an engine panic or a
// decode failure the inner Result has no room to express. Timeouts are
// deliberately NOT a HostError — they become the inner (143, "Timed out.
// Retrying soon...") so a caller treats them exactly like any other
// script-reported failure.
type HostError struct{ Message string }

func (e *HostError) Error() string { return e.Message }

type execOutcome[O any] struct {
	value O
	err   error
}

// Run is the full driver: it applies cfg.Timeout, runs env/name through the
// Execution Environment on its own goroutine, and unconditionally fires the
// group-kill guard against gid before returning — matching spec.md's
// "scoped resource that, on drop (all exit paths), spawns a task that asks
// the container RPC to SIGKILL the entire container_process_gid."
func Run[O any](cfg Config, env *jsengine.Environment, name types.ProcedureName, input interface{}, variableArgs []interface{}, gid types.ProcessGroupId) (Result[O], error) {
	resultCh := make(chan execOutcome[O], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- execOutcome[O]{err: fmt.Errorf("engine panic: %v", r)}
			}
		}()
		v, err := jsengine.RunAction[O](env, name, input, variableArgs)
		resultCh <- execOutcome[O]{value: v, err: err}
	}()

	var primary Result[O]
	var hostErr error
	primaryFailed := false

	select {
	case o := <-resultCh:
		switch {
		case o.err == nil:
			primary = ok(o.value)
		default:
			if jsErr, isJsErr := o.err.(*jsengine.Error); isJsErr && jsErr.Kind != jsengine.KindBoundaryLayerSerde {
				primary = errResult[O](jsErr.CodeNum(), jsErr.Message)
			} else {
				hostErr = &HostError{Message: o.err.Error()}
			}
			primaryFailed = true
		}
	case <-time.After(cfg.Timeout):
		primary = errResult[O](jsengine.TimeoutCode, "Timed out. Retrying soon...")
		primaryFailed = true
	}

	if cleanupErr := groupKill(cfg.RPC, gid); cleanupErr != nil {
		if primaryFailed {
			cfg.Logger.Warn().Err(cleanupErr).Uint32("gid", uint32(gid)).
				Msg("group-kill cleanup failed after a failed call; original error prevails")
		} else {
			return Result[O]{}, &HostError{Message: fmt.Sprintf("group-kill cleanup failed: %v", cleanupErr)}
		}
	}

	if hostErr != nil {
		return Result[O]{}, hostErr
	}
	return primary, nil
}

// Sandboxed is the restricted entry point: it forces env into read-only
// effects mode and never installs a group-kill guard (there is no RPC
// client and nothing to kill on the sandboxed path).
func Sandboxed[O any](cfg Config, env *jsengine.Environment, name types.ProcedureName, input interface{}, variableArgs []interface{}) (Result[O], error) {
	cfg.RPC = nil
	return Run[O](cfg, env.ReadOnlyEffects(), name, input, variableArgs, 0)
}

// groupKill asks the Container RPC Client to SIGKILL the entire process
// group. A no-op when rpc is nil, matching the original guard's behavior
// when no client was provided.
func groupKill(rpc *rpcclient.Client, gid types.ProcessGroupId) error {
	if rpc == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rpc.SignalGroup(ctx, rpcclient.SignalGroupParams{Gid: gid, Signal: 9})
}

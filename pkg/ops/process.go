package ops

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/pkgrun/pkg/rpcclient"
	"github.com/cuemby/pkgrun/pkg/types"
)

var errNoRPCClient = errors.New("No RpcClient for command operations")

// StartCommand implements the start_command op: forwards to the Container
// RPC Client and, if timeoutMs is set, schedules an independent goroutine
// that SIGKILLs the returned pid after the deadline (fire-and-forget,
// matching the original's tokio::spawn).
func (c *Context) StartCommand(ctx context.Context, command string, args []string, output types.OutputStrategy, timeoutMs *uint64) (types.ProcessId, error) {
	if c.RPC == nil {
		return 0, errNoRPCClient
	}
	gid := c.ContainerProcessGid
	pid, err := c.RPC.RunCommand(ctx, rpcclient.RunCommandParams{
		Gid:     &gid,
		Command: command,
		Args:    args,
		Output:  output,
	})
	if err != nil {
		return 0, err
	}

	if timeoutMs != nil {
		rpc, deadline := c.RPC, time.Duration(*timeoutMs)*time.Millisecond
		go func() {
			t := time.NewTimer(deadline)
			defer t.Stop()
			<-t.C
			killCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rpc.SendSignal(killCtx, rpcclient.SendSignalParams{Pid: pid, Signal: 9}); err != nil {
				c.Logger.Warn().Uint32("pid", uint32(pid)).Err(err).Msg("could not kill timed-out process")
			}
		}()
	}

	return pid, nil
}

// WaitCommand implements the wait_command op. An RPC-level failure maps to
// a types.ResultType ErrorCode rather than propagating as a Go error: a
// nonzero exit is a normal outcome the script inspects, not a transport
// failure.
func (c *Context) WaitCommand(ctx context.Context, pid types.ProcessId) (types.ResultType, error) {
	if c.RPC == nil {
		return types.ResultType{}, errNoRPCClient
	}
	raw, err := c.RPC.Output(ctx, rpcclient.OutputParams{Pid: pid})
	if err != nil {
		if rpcErr, ok := err.(*rpcclient.Error); ok {
			return types.ResultTypeErrorCode(rpcErr.Code, rpcErr.Message), nil
		}
		return types.ResultType{}, err
	}
	return types.ResultTypeResult(raw), nil
}

// SendSignal implements the send_signal op.
func (c *Context) SendSignal(ctx context.Context, pid types.ProcessId, signal uint32) error {
	if c.RPC == nil {
		return errNoRPCClient
	}
	return c.RPC.SendSignal(ctx, rpcclient.SendSignalParams{Pid: pid, Signal: signal})
}

// SignalGroup implements the signal_group op. The Procedure Driver's
// group-kill guard does not go through this method: it calls the Container
// RPC Client directly, and the sandboxed path skips it.
func (c *Context) SignalGroup(ctx context.Context, gid types.ProcessGroupId, signal uint32) error {
	if c.RPC == nil {
		return errNoRPCClient
	}
	return c.RPC.SignalGroup(ctx, rpcclient.SignalGroupParams{Gid: gid, Signal: signal})
}

// Sleep implements the sleep op.
func (c *Context) Sleep(ctx context.Context, durationMs uint64) error {
	t := time.NewTimer(time.Duration(durationMs) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

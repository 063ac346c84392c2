package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/pkgrun/pkg/rpcclient"
	"github.com/cuemby/pkgrun/pkg/types"
	"github.com/cuemby/pkgrun/pkg/volume"
)

type fakeRPCRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}
type fakeRPCResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
}

// startFakeContainerInit answers RunCommand with a fixed pid and
// acknowledges every other method with an empty object, enough to drive
// StartCommand/SendSignal/SignalGroup/Log without a real container.
func startFakeContainerInit(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "ctl.sock")
	ln, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		w := bufio.NewWriter(conn)
		for scanner.Scan() {
			var req fakeRPCRequest
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
				continue
			}
			var resp fakeRPCResponse
			resp.ID = req.ID
			switch req.Method {
			case rpcclient.MethodRunCommand:
				resp.Result, _ = json.Marshal(7)
			default:
				resp.Result, _ = json.Marshal(map[string]any{})
			}
			line, _ := json.Marshal(resp)
			w.Write(append(line, '\n'))
			w.Flush()
		}
	}()
	return socketPath
}

func TestContext_StartCommand_NoRPCClient(t *testing.T) {
	c := New(t.TempDir(), "p", "1.0.0", volume.NewMap(nil), nil, nil, true, 1, nil, zerolog.Nop())
	_, err := c.StartCommand(context.Background(), "true", nil, types.OutputStrategyCollect, nil)
	assert.ErrorIs(t, err, errNoRPCClient)
}

func TestContext_StartCommand_ForwardsToRPC(t *testing.T) {
	socketPath := startFakeContainerInit(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := rpcclient.Dial(ctx, socketPath)
	require.NoError(t, err)
	defer client.Close()

	c := New(t.TempDir(), "p", "1.0.0", volume.NewMap(nil), nil, nil, false, 1, client, zerolog.Nop())
	pid, err := c.StartCommand(ctx, "true", nil, types.OutputStrategyCollect, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 7, pid)
}

func TestContext_SendSignal_NoRPCClient(t *testing.T) {
	c := New(t.TempDir(), "p", "1.0.0", volume.NewMap(nil), nil, nil, true, 1, nil, zerolog.Nop())
	err := c.SendSignal(context.Background(), 1, 9)
	assert.ErrorIs(t, err, errNoRPCClient)
}

func TestContext_Sleep(t *testing.T) {
	c := New(t.TempDir(), "p", "1.0.0", volume.NewMap(nil), nil, nil, false, 1, nil, zerolog.Nop())
	start := time.Now()
	require.NoError(t, c.Sleep(context.Background(), 20))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestContext_Sleep_CancelledContext(t *testing.T) {
	c := New(t.TempDir(), "p", "1.0.0", volume.NewMap(nil), nil, nil, false, 1, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Sleep(ctx, 10_000)
	assert.ErrorIs(t, err, context.Canceled)
}

package containerinit_test

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/pkgrun/pkg/containerinit"
	"github.com/cuemby/pkgrun/pkg/rpcclient"
	"github.com/cuemby/pkgrun/pkg/types"
)

type fakeRunner struct {
	lastCommand string
	lastArgs    []string
	lastGid     types.ProcessGroupId
	lastSignal  uint32
	lastPid     types.ProcessId
	output      json.RawMessage
	outputErr   error
}

func (f *fakeRunner) RunCommand(ctx context.Context, gid types.ProcessGroupId, command string, args []string, strategy types.OutputStrategy) (types.ProcessId, error) {
	f.lastGid, f.lastCommand, f.lastArgs = gid, command, args
	return 7, nil
}

func (f *fakeRunner) SendSignal(ctx context.Context, pid types.ProcessId, signal uint32) error {
	f.lastPid, f.lastSignal = pid, signal
	return nil
}

func (f *fakeRunner) SignalGroup(ctx context.Context, gid types.ProcessGroupId, signal uint32) error {
	f.lastGid, f.lastSignal = gid, signal
	return nil
}

func (f *fakeRunner) Output(ctx context.Context, pid types.ProcessId) (json.RawMessage, error) {
	return f.output, f.outputErr
}

func startTestServer(t *testing.T, runner *fakeRunner) (*rpcclient.Client, func()) {
	t.Helper()

	sockPath := t.TempDir() + "/ctl.sock"
	lis, err := net.Listen("unix", sockPath)
	require.NoError(t, err)

	srv := containerinit.NewServer(runner, zerolog.New(os.Stderr))
	go func() { _ = srv.Serve(lis) }()

	client, err := rpcclient.Dial(context.Background(), sockPath)
	require.NoError(t, err)

	return client, func() {
		client.Close()
		srv.Stop()
	}
}

func TestServer_RunCommand(t *testing.T) {
	runner := &fakeRunner{}
	client, cleanup := startTestServer(t, runner)
	defer cleanup()

	gid := types.ProcessGroupId(3)
	pid, err := client.RunCommand(context.Background(), rpcclient.RunCommandParams{
		Gid: &gid, Command: "true", Args: []string{"-x"}, Output: types.OutputStrategyIgnore,
	})
	require.NoError(t, err)
	assert.Equal(t, types.ProcessId(7), pid)
	assert.Equal(t, "true", runner.lastCommand)
	assert.Equal(t, []string{"-x"}, runner.lastArgs)
	assert.Equal(t, gid, runner.lastGid)
}

func TestServer_SendSignal(t *testing.T) {
	runner := &fakeRunner{}
	client, cleanup := startTestServer(t, runner)
	defer cleanup()

	err := client.SendSignal(context.Background(), rpcclient.SendSignalParams{Pid: 42, Signal: 9})
	require.NoError(t, err)
	assert.Equal(t, types.ProcessId(42), runner.lastPid)
	assert.Equal(t, uint32(9), runner.lastSignal)
}

func TestServer_Output_PropagatesRunnerError(t *testing.T) {
	runner := &fakeRunner{outputErr: assertErr("process still running")}
	client, cleanup := startTestServer(t, runner)
	defer cleanup()

	_, err := client.Output(context.Background(), rpcclient.OutputParams{Pid: 1})
	require.Error(t, err)
}

func TestServer_Output_ReturnsResult(t *testing.T) {
	runner := &fakeRunner{output: json.RawMessage(`{"exitCode":0}`)}
	client, cleanup := startTestServer(t, runner)
	defer cleanup()

	raw, err := client.Output(context.Background(), rpcclient.OutputParams{Pid: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"exitCode":0}`, string(raw))
}

func TestServer_Log_DoesNotErrorOrCallRunner(t *testing.T) {
	runner := &fakeRunner{}
	client, cleanup := startTestServer(t, runner)
	defer cleanup()

	err := client.Log(context.Background(), rpcclient.LogParams{Level: "info", Message: "hello"})
	require.NoError(t, err)
	assert.Empty(t, runner.lastCommand)
	assert.Zero(t, runner.lastSignal)
}

type testError string

func (e testError) Error() string { return string(e) }

func assertErr(msg string) error { return testError(msg) }

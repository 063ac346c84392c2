// Package test drives complete package-procedure scenarios end to end:
// an embassy.js bundle on disk, a jsengine.Environment loaded from it, and
// a fake Container RPC server standing in for containerinitd, exercising
// the same path a real "pkgrun run" invocation takes.
package test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/pkgrun/pkg/jsengine"
	"github.com/cuemby/pkgrun/pkg/procedure"
	"github.com/cuemby/pkgrun/pkg/rpcclient"
	"github.com/cuemby/pkgrun/pkg/types"
	"github.com/cuemby/pkgrun/pkg/volume"

	"github.com/cuemby/pkgrun/test/framework"
)

func TestE2E_ProcessLifecycle(t *testing.T) {
	a := framework.NewAssertions(t)

	fake := &framework.FakeContainerInit{}
	sockPath := fake.Listen(t, t.TempDir())

	rpc, err := rpcclient.Dial(t.Context(), sockPath)
	require.NoError(t, err)
	defer rpc.Close()

	dataDir := t.TempDir()
	framework.WritePackage(t, dataDir, framework.PackageFixture{
		ID:      "web-server",
		Version: "1.0.0",
		Source: `
module.exports.action = async function() {
	const pid = await __host.start_command("nginx", [], "collect", null);
	const waited = await __host.wait_command(pid);
	return { pid: pid, waited: waited };
};`,
	})

	env, err := jsengine.LoadFromPackage(dataDir, "web-server", "1.0.0", volume.NewMap(nil), 1, rpc, zerolog.Nop())
	require.NoError(t, err)

	name, err := types.ParseProcedureName("action:action")
	require.NoError(t, err)

	cfg := procedure.Config{RPC: rpc, Logger: zerolog.Nop(), Timeout: 5 * time.Second}
	result, err := procedure.Run[map[string]interface{}](cfg, env, name, nil, nil, 1)
	require.NoError(t, err)
	a.False(result.IsError, "action should succeed")
	a.Equal(float64(fake.RunCommandPid), result.Value["pid"], "start_command should surface the fake's pid")

	calls := fake.Calls()
	a.True(len(calls) >= 2, "expected RunCommand and Output calls")
	a.Equal(rpcclient.MethodRunCommand, calls[0].Method, "first call should be RunCommand")
}

func TestE2E_SandboxedProcedureCannotUseProcessControl(t *testing.T) {
	dataDir := t.TempDir()
	framework.WritePackage(t, dataDir, framework.PackageFixture{
		ID:      "read-only-pkg",
		Version: "1.0.0",
		Source: `
module.exports.getConfig = async function() {
	await __host.start_command("true", [], "ignore", null);
	return { ok: true };
};`,
	})

	env, err := jsengine.LoadFromPackage(dataDir, "read-only-pkg", "1.0.0", volume.NewMap(nil), 1, nil, zerolog.Nop())
	require.NoError(t, err)
	sandboxed := env.ReadOnlyEffects()

	cfg := procedure.Config{Logger: zerolog.Nop(), Timeout: 2 * time.Second}
	result, err := procedure.Sandboxed[map[string]interface{}](cfg, sandboxed, types.GetConfig(), nil, nil)
	require.NoError(t, err)
	assert.True(t, result.IsError, "process control must fail in a sandboxed call")
	assert.Contains(t, result.Message, "No RpcClient for command operations")
}

package procedure_test

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
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
)

func loadEnv(t *testing.T, source string) *jsengine.Environment {
	t.Helper()
	dataDir := t.TempDir()
	scriptDir := filepath.Join(dataDir, "hello-world", "1.0.0")
	require.NoError(t, os.MkdirAll(scriptDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scriptDir, "embassy.js"), []byte(source), 0o644))

	env, err := jsengine.LoadFromPackage(dataDir, "hello-world", "1.0.0", volume.NewMap(nil), 1, nil, zerolog.Nop())
	require.NoError(t, err)
	return env
}

func TestRun_Success(t *testing.T) {
	env := loadEnv(t, `module.exports.getConfig = function() { return { ok: true }; };`)
	cfg := procedure.Config{Logger: zerolog.Nop(), Timeout: time.Second}

	result, err := procedure.Run[map[string]interface{}](cfg, env, types.GetConfig(), nil, nil, 1)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, true, result.Value["ok"])
}

func TestRun_ScriptThrowsBecomesInnerError(t *testing.T) {
	env := loadEnv(t, `module.exports.getConfig = function() { throw new Error("bad manifest"); };`)
	cfg := procedure.Config{Logger: zerolog.Nop(), Timeout: time.Second}

	result, err := procedure.Run[map[string]interface{}](cfg, env, types.GetConfig(), nil, nil, 1)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, int(jsengine.KindJavascript), result.Code)
	assert.Contains(t, result.Message, "bad manifest")
}

// TestRun_ErrorCodeAnswerBecomesInnerResult mirrors spec.md's named scenario
// 2: setConfig(null) returns (2, "Not setup") via the answer slot's
// error-code wire shape, not a thrown exception.
func TestRun_ErrorCodeAnswerBecomesInnerResult(t *testing.T) {
	env := loadEnv(t, `
module.exports.setConfig = function(input) {
	if (input === null) {
		return { "error-code": [2, "Not setup"] };
	}
	return { result: { ok: true } };
};`)
	cfg := procedure.Config{Logger: zerolog.Nop(), Timeout: time.Second}

	result, err := procedure.Run[map[string]interface{}](cfg, env, types.SetConfig(), nil, nil, 1)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, 2, result.Code)
	assert.Equal(t, "Not setup", result.Message)
}

// TestRun_ErrorAnswerBecomesJavascriptKind covers the Error(string) variant:
// the script reports a failure string itself, rather than throwing, and
// that still becomes an inner error with the fixed JsError::Javascript code.
func TestRun_ErrorAnswerBecomesJavascriptKind(t *testing.T) {
	env := loadEnv(t, `module.exports.getConfig = function() { return { "error": "bad config" }; };`)
	cfg := procedure.Config{Logger: zerolog.Nop(), Timeout: time.Second}

	result, err := procedure.Run[map[string]interface{}](cfg, env, types.GetConfig(), nil, nil, 1)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, int(jsengine.KindJavascript), result.Code)
	assert.Equal(t, "bad config", result.Message)
}

// TestRun_ExplicitResultAnswerUnwraps covers the Result(json) variant given
// explicitly: only the "result" field's payload decodes into O.
func TestRun_ExplicitResultAnswerUnwraps(t *testing.T) {
	env := loadEnv(t, `module.exports.getConfig = function() { return { result: { spec: "wrapped" } }; };`)
	cfg := procedure.Config{Logger: zerolog.Nop(), Timeout: time.Second}

	result, err := procedure.Run[map[string]interface{}](cfg, env, types.GetConfig(), nil, nil, 1)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "wrapped", result.Value["spec"])
}

func TestRun_TimeoutBecomesInnerTimeoutCode(t *testing.T) {
	env := loadEnv(t, `
module.exports.action = async function() {
	await __host.sleep(200);
	return { done: true };
};`)
	cfg := procedure.Config{Logger: zerolog.Nop(), Timeout: 5 * time.Millisecond}

	result, err := procedure.Run[map[string]interface{}](cfg, env, types.Action("action"), nil, nil, 1)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, jsengine.TimeoutCode, result.Code)
	assert.Equal(t, "Timed out. Retrying soon...", result.Message)
}

func TestSandboxed_ForcesReadOnlyEffects(t *testing.T) {
	env := loadEnv(t, `module.exports.action = function() { return { sandboxed: __host.is_sandboxed() }; };`)
	cfg := procedure.Config{Logger: zerolog.Nop(), Timeout: time.Second}

	result, err := procedure.Sandboxed[map[string]interface{}](cfg, env, types.Action("action"), nil, nil)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, true, result.Value["sandboxed"])
}

type fakeRPCRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}
type fakeRPCResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
}

// startFakeContainerInit records every method invoked against it, enough to
// confirm the group-kill guard actually calls SignalGroup.
func startFakeContainerInit(t *testing.T) (socketPath string, methods chan string) {
	t.Helper()
	socketPath = filepath.Join(t.TempDir(), "ctl.sock")
	methods = make(chan string, 8)
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
			methods <- req.Method
			resp := fakeRPCResponse{ID: req.ID}
			resp.Result, _ = json.Marshal(map[string]any{})
			line, _ := json.Marshal(resp)
			w.Write(append(line, '\n'))
			w.Flush()
		}
	}()
	return socketPath, methods
}

func TestRun_GroupKillGuardFiresOnSuccess(t *testing.T) {
	socketPath, methods := startFakeContainerInit(t)
	client, err := rpcclient.Dial(t.Context(), socketPath)
	require.NoError(t, err)
	defer client.Close()

	env := loadEnv(t, `module.exports.getConfig = function() { return { ok: true }; };`)
	cfg := procedure.Config{RPC: client, Logger: zerolog.Nop(), Timeout: time.Second}

	_, err = procedure.Run[map[string]interface{}](cfg, env, types.GetConfig(), nil, nil, 7)
	require.NoError(t, err)

	select {
	case method := <-methods:
		assert.Equal(t, rpcclient.MethodSignalGroup, method)
	case <-time.After(time.Second):
		t.Fatal("group-kill guard never called SignalGroup")
	}
}

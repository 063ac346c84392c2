package jsengine

import (
	"context"
	"encoding/json"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"

	"github.com/cuemby/pkgrun/pkg/ops"
	"github.com/cuemby/pkgrun/pkg/rsync"
	"github.com/cuemby/pkgrun/pkg/types"
)

// async wraps a blocking Go call as a goja Promise: work runs on its own
// goroutine so the loop's single JS thread is never blocked on I/O, and the
// result is handed back via RunOnLoop so every JS-visible mutation still
// happens on that one thread — the engine-isolation requirement in spec.md
// §5 applies per call, not per op.
func async(vm *goja.Runtime, loop *eventloop.EventLoop, work func() (interface{}, error)) goja.Value {
	promise, resolve, reject := vm.NewPromise()
	go func() {
		result, err := work()
		loop.RunOnLoop(func(vm *goja.Runtime) {
			if err != nil {
				reject(vm.ToValue(err.Error()))
				return
			}
			resolve(vm.ToValue(result))
		})
	}()
	return vm.ToValue(promise)
}

func arg(call goja.FunctionCall, i int) interface{} {
	if i >= len(call.Arguments) {
		return nil
	}
	return call.Argument(i).Export()
}

func argString(call goja.FunctionCall, i int) string {
	if i >= len(call.Arguments) {
		return ""
	}
	return call.Argument(i).String()
}

// registerOps installs the curated host surface under a single frozen
// global object rather than as bare globals, standing in for the original's
// Deno-global-hiding shim: the package script only ever sees "__host",
// never the raw op implementations.
func registerOps(vm *goja.Runtime, loop *eventloop.EventLoop, octx *ops.Context) error {
	host := vm.NewObject()

	set := func(name string, fn func(goja.FunctionCall) goja.Value) {
		_ = host.Set(name, fn)
	}

	set("fetch", func(call goja.FunctionCall) goja.Value {
		url := argString(call, 0)
		var opts *ops.FetchOptions
		if raw := arg(call, 1); raw != nil {
			var decoded ops.FetchOptions
			decodeVia(raw, &decoded)
			opts = &decoded
		}
		return async(vm, loop, func() (interface{}, error) {
			return octx.Fetch(context.Background(), url, opts)
		})
	})

	set("read_file", func(call goja.FunctionCall) goja.Value {
		volumeID, pathIn := types.VolumeId(argString(call, 0)), argString(call, 1)
		return async(vm, loop, func() (interface{}, error) { return octx.ReadFile(volumeID, pathIn) })
	})

	set("metadata", func(call goja.FunctionCall) goja.Value {
		volumeID, pathIn := types.VolumeId(argString(call, 0)), argString(call, 1)
		return async(vm, loop, func() (interface{}, error) { return octx.Metadata(volumeID, pathIn) })
	})

	set("write_file", func(call goja.FunctionCall) goja.Value {
		volumeID, pathIn, contents := types.VolumeId(argString(call, 0)), argString(call, 1), argString(call, 2)
		return async(vm, loop, func() (interface{}, error) { return nil, octx.WriteFile(volumeID, pathIn, contents) })
	})

	set("rename", func(call goja.FunctionCall) goja.Value {
		srcVol, srcPath := types.VolumeId(argString(call, 0)), argString(call, 1)
		dstVol, dstPath := types.VolumeId(argString(call, 2)), argString(call, 3)
		return async(vm, loop, func() (interface{}, error) {
			return nil, octx.Rename(srcVol, srcPath, dstVol, dstPath)
		})
	})

	set("remove_file", func(call goja.FunctionCall) goja.Value {
		volumeID, pathIn := types.VolumeId(argString(call, 0)), argString(call, 1)
		return async(vm, loop, func() (interface{}, error) { return nil, octx.RemoveFile(volumeID, pathIn) })
	})

	set("create_dir", func(call goja.FunctionCall) goja.Value {
		volumeID, pathIn := types.VolumeId(argString(call, 0)), argString(call, 1)
		return async(vm, loop, func() (interface{}, error) { return nil, octx.CreateDir(volumeID, pathIn) })
	})

	set("remove_dir", func(call goja.FunctionCall) goja.Value {
		volumeID, pathIn := types.VolumeId(argString(call, 0)), argString(call, 1)
		return async(vm, loop, func() (interface{}, error) { return nil, octx.RemoveDir(volumeID, pathIn) })
	})

	set("read_dir", func(call goja.FunctionCall) goja.Value {
		volumeID, pathIn := types.VolumeId(argString(call, 0)), argString(call, 1)
		return async(vm, loop, func() (interface{}, error) { return octx.ReadDir(volumeID, pathIn) })
	})

	set("current_function", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(octx.CurrentFunction())
	})

	set("log_trace", logSetter(vm, loop, octx.LogTrace))
	set("log_debug", logSetter(vm, loop, octx.LogDebug))
	set("log_info", logSetter(vm, loop, octx.LogInfo))
	set("log_warn", logSetter(vm, loop, octx.LogWarn))
	set("log_error", logSetter(vm, loop, octx.LogError))

	set("get_input", func(call goja.FunctionCall) goja.Value { return vm.ToValue(octx.GetInput()) })
	set("get_variable_args", func(call goja.FunctionCall) goja.Value { return vm.ToValue(octx.GetVariableArgs()) })
	set("set_value", func(call goja.FunctionCall) goja.Value {
		octx.SetAnswer(arg(call, 0))
		return goja.Undefined()
	})
	set("is_sandboxed", func(call goja.FunctionCall) goja.Value { return vm.ToValue(octx.IsSandboxed()) })

	set("start_command", func(call goja.FunctionCall) goja.Value {
		command := argString(call, 0)
		var args []string
		if raw := arg(call, 1); raw != nil {
			decodeVia(raw, &args)
		}
		output := types.OutputStrategy(argString(call, 2))
		var timeoutMs *uint64
		if raw := arg(call, 3); raw != nil {
			if ms, ok := toUint64(raw); ok {
				timeoutMs = &ms
			}
		}
		return async(vm, loop, func() (interface{}, error) {
			return octx.StartCommand(context.Background(), command, args, output, timeoutMs)
		})
	})

	set("wait_command", func(call goja.FunctionCall) goja.Value {
		pid, _ := toUint64(arg(call, 0))
		return async(vm, loop, func() (interface{}, error) {
			return octx.WaitCommand(context.Background(), types.ProcessId(pid))
		})
	})

	set("send_signal", func(call goja.FunctionCall) goja.Value {
		pid, _ := toUint64(arg(call, 0))
		sig, _ := toUint64(arg(call, 1))
		return async(vm, loop, func() (interface{}, error) {
			return nil, octx.SendSignal(context.Background(), types.ProcessId(pid), uint32(sig))
		})
	})

	set("signal_group", func(call goja.FunctionCall) goja.Value {
		gid, _ := toUint64(arg(call, 0))
		sig, _ := toUint64(arg(call, 1))
		return async(vm, loop, func() (interface{}, error) {
			return nil, octx.SignalGroup(context.Background(), types.ProcessGroupId(gid), uint32(sig))
		})
	})

	set("sleep", func(call goja.FunctionCall) goja.Value {
		ms, _ := toUint64(arg(call, 0))
		return async(vm, loop, func() (interface{}, error) {
			return nil, octx.Sleep(context.Background(), ms)
		})
	})

	set("rsync", func(call goja.FunctionCall) goja.Value {
		srcVol, srcPath := types.VolumeId(argString(call, 0)), argString(call, 1)
		dstVol, dstPath := types.VolumeId(argString(call, 2)), argString(call, 3)
		var opts rsync.Options
		if raw := arg(call, 4); raw != nil {
			decodeVia(raw, &opts)
		}
		return async(vm, loop, func() (interface{}, error) {
			return octx.Rsync(context.Background(), srcVol, srcPath, dstVol, dstPath, opts)
		})
	})

	set("rsync_wait", func(call goja.FunctionCall) goja.Value {
		id, _ := toUint64(arg(call, 0))
		return async(vm, loop, func() (interface{}, error) { return nil, octx.RsyncWait(int(id)) })
	})

	set("rsync_progress", func(call goja.FunctionCall) goja.Value {
		id, _ := toUint64(arg(call, 0))
		return async(vm, loop, func() (interface{}, error) { return octx.RsyncProgress(int(id)) })
	})

	if err := vm.Set("__host", host); err != nil {
		return err
	}
	_, err := vm.RunScript("file:///host_shim.js", "Object.freeze(__host);")
	return err
}

func logSetter(vm *goja.Runtime, loop *eventloop.EventLoop, fn func(context.Context, string) error) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		message := argString(call, 0)
		return async(vm, loop, func() (interface{}, error) { return nil, fn(context.Background(), message) })
	}
}

func toUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case int64:
		return uint64(n), true
	case float64:
		return uint64(n), true
	case uint64:
		return n, true
	case int:
		return uint64(n), true
	default:
		return 0, false
	}
}

// decodeVia round-trips a goja-exported value (map[string]interface{},
// []interface{}, ...) through JSON into out. Host op arguments arrive this
// loosely because goja's Export() only ever produces generic JSON-shaped Go
// types, never the op's declared argument struct.
func decodeVia(raw interface{}, out interface{}) {
	data, err := json.Marshal(raw)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, out)
}

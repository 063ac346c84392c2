package jsengine

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"

	"github.com/cuemby/pkgrun/pkg/ops"
	"github.com/cuemby/pkgrun/pkg/types"
)

// commonJSPrelude declares module/exports before embassy.js runs so a
// package script can use `module.exports.getConfig = ...` the same way it
// would under any CommonJS-style host, which goja's lack of a real ES
// module loader makes the natural convention here.
const commonJSPrelude = `var module = { exports: {} }; var exports = module.exports;`

// RunAction implements run_action: builds a fresh *ops.Context and a fresh
// goja runtime for this one call, evaluates embassy.js, invokes the named
// procedure's entry point with input and variableArgs, drives the engine's
// event loop to quiescence, and decodes the answer slot into O.
//
// O is typically a concrete struct for GetConfig/SetConfig, or
// json.RawMessage for an Action whose result shape the caller doesn't
// predeclare.
func RunAction[O any](env *Environment, name types.ProcedureName, input interface{}, variableArgs []interface{}) (O, error) {
	var zero O

	entryPoint := name.EntryPoint()
	if entryPoint == "" {
		return zero, kindError(KindNotValidProcedureName, fmt.Sprintf("not a valid procedure name: %s", name))
	}

	octx := ops.New(env.dataDir, env.packageID, env.version, env.volumes, input, variableArgs, env.sandboxed, env.gid, env.rpc, env.logger)
	octx.RunFunction = entryPoint

	loop := eventloop.NewEventLoop()

	var callErr error
	loop.Run(func(vm *goja.Runtime) {
		if err := registerOps(vm, loop, octx); err != nil {
			callErr = kindError(KindEngine, err.Error())
			return
		}
		if _, err := vm.RunScript("file:///prelude.js", commonJSPrelude); err != nil {
			callErr = kindError(KindEngine, err.Error())
			return
		}
		// embassy.js never sees require/import: this runtime registers
		// neither, so any attempt to import anything fails on its own,
		// matching the original's "Embassy is not allowed to import".
		if _, err := vm.RunScript("file:///embassy.js", env.source); err != nil {
			callErr = kindError(KindJavascript, err.Error())
			return
		}

		fnVal, err := lookupEntryPoint(vm, entryPoint)
		if err != nil {
			callErr = kindError(KindNotValidProcedureName, err.Error())
			return
		}
		callable, ok := goja.AssertFunction(fnVal)
		if !ok {
			callErr = kindError(KindNotValidProcedureName, fmt.Sprintf("%s is not a function", entryPoint))
			return
		}

		args := make([]goja.Value, 0, 1+len(variableArgs))
		args = append(args, vm.ToValue(input))
		for _, a := range variableArgs {
			args = append(args, vm.ToValue(a))
		}

		result, err := callable(goja.Undefined(), args...)
		if err != nil {
			callErr = kindError(KindJavascript, err.Error())
			return
		}

		settleResult(vm, octx, result, &callErr)
	})

	if callErr != nil {
		return zero, callErr
	}
	return decodeAnswer[O](octx.Answer())
}

// settleResult handles both styles of entry point: one that calls
// __host.set_value itself and returns nothing useful, and one whose return
// value (or resolved promise) IS the answer. A thenable is awaited via its
// own "then" rather than goja's internal Promise accessors, so this works
// for any object a script hands back that merely looks like a promise.
func settleResult(vm *goja.Runtime, octx *ops.Context, result goja.Value, callErr *error) {
	obj, ok := result.(*goja.Object)
	if !ok {
		if octx.Answer() == nil {
			octx.SetAnswer(result.Export())
		}
		return
	}

	thenVal := obj.Get("then")
	if thenVal == nil || goja.IsUndefined(thenVal) {
		if octx.Answer() == nil {
			octx.SetAnswer(result.Export())
		}
		return
	}
	thenFn, ok := goja.AssertFunction(thenVal)
	if !ok {
		if octx.Answer() == nil {
			octx.SetAnswer(result.Export())
		}
		return
	}

	onFulfilled := func(call goja.FunctionCall) goja.Value {
		if octx.Answer() == nil {
			octx.SetAnswer(call.Argument(0).Export())
		}
		return goja.Undefined()
	}
	onRejected := func(call goja.FunctionCall) goja.Value {
		*callErr = kindError(KindJavascript, call.Argument(0).String())
		return goja.Undefined()
	}
	if _, err := thenFn(result, vm.ToValue(onFulfilled), vm.ToValue(onRejected)); err != nil {
		*callErr = kindError(KindJavascript, err.Error())
	}
}

func lookupEntryPoint(vm *goja.Runtime, name string) (goja.Value, error) {
	module, ok := vm.Get("module").(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("no module object in scope")
	}
	exportsObj, ok := module.Get("exports").(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("package script did not populate module.exports")
	}
	fnVal := exportsObj.Get(name)
	if fnVal == nil || goja.IsUndefined(fnVal) {
		return nil, fmt.Errorf("package script does not export %s", name)
	}
	return fnVal, nil
}

// errorValueProbe mirrors the original's externally-tagged ErrorValue enum:
// a script's answer is exactly one of {"error": string}, {"error-code":
// [int, string]}, or {"result": json} — with any other shape defaulting to
// the Result variant per spec.md's "Result(arbitrary json) (default when
// omitted)".
type errorValueProbe struct {
	Error     *string             `json:"error"`
	ErrorCode *[2]json.RawMessage `json:"error-code"`
	Result    *json.RawMessage    `json:"result"`
}

// decodeAnswer branches the answer slot's contents through the ErrorValue
// wire contract before decoding a Result payload into O, matching the
// original's unwrap_known_error: a script-reported Error or ErrorCode
// variant becomes a *Error carrying the original's fixed JsError::Javascript
// code or the script's own code, never silently handed to the caller as if
// it were O. A decode failure of the Result payload is the BoundryLayerSerDe
// error.
func decodeAnswer[O any](answer interface{}) (O, error) {
	var out O
	data, err := json.Marshal(answer)
	if err != nil {
		return out, kindError(KindBoundaryLayerSerde, err.Error())
	}

	ev, tagged, perr := parseErrorValue(data)
	if perr != nil {
		return out, kindError(KindBoundaryLayerSerde, perr.Error())
	}
	if tagged {
		switch {
		case ev.IsError():
			return out, kindError(KindJavascript, ev.Message())
		case ev.IsErrorCode():
			return out, codeError(ev.Code(), ev.Message())
		case ev.IsResult():
			data = ev.Result().(json.RawMessage)
		}
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return out, kindError(KindBoundaryLayerSerde, err.Error())
	}
	return out, nil
}

// parseErrorValue reads the tagged shape out of data and builds the
// corresponding types.ErrorValue. tagged is false when data isn't a JSON
// object carrying one of the three tags, in which case the caller decodes
// data itself as the Result variant's default-when-omitted payload.
func parseErrorValue(data []byte) (ev types.ErrorValue, tagged bool, err error) {
	var probe errorValueProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return types.ErrorValue{}, false, nil
	}

	switch {
	case probe.Error != nil:
		return types.ErrorValueError(*probe.Error), true, nil
	case probe.ErrorCode != nil:
		var code int
		var message string
		if err := json.Unmarshal(probe.ErrorCode[0], &code); err != nil {
			return types.ErrorValue{}, false, err
		}
		if err := json.Unmarshal(probe.ErrorCode[1], &message); err != nil {
			return types.ErrorValue{}, false, err
		}
		return types.ErrorValueErrorCode(code, message), true, nil
	case probe.Result != nil:
		return types.ErrorValueResult(*probe.Result), true, nil
	default:
		return types.ErrorValue{}, false, nil
	}
}

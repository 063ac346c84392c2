// Package types defines the core data structures shared across the
// package-procedure execution core: the volume model, the procedure-name
// tagged variant, the script answer contract, and process-wait results.
package types

import "fmt"

// VolumeId is an opaque, package-scoped volume label.
type VolumeId string

// PackageId identifies a package manifest. Opaque, used only to scope paths.
type PackageId string

// Version identifies a package version. Opaque, used only to scope paths.
type Version string

// ProcessGroupId is chosen by the caller and is the unit of mass-kill
// cleanup for every process a procedure call starts via start_command.
type ProcessGroupId uint32

// ProcessId identifies a single process spawned via start_command.
type ProcessId uint32

// ProcedureKind tags the variant held by a ProcedureName.
type ProcedureKind int

const (
	ProcedureGetConfig ProcedureKind = iota
	ProcedureSetConfig
	ProcedureAction
)

// ProcedureName is the tagged variant { GetConfig, SetConfig, Action(name) }.
// Each maps to a named entry point inside the package's script module.
type ProcedureName struct {
	Kind   ProcedureKind
	Action string // only meaningful when Kind == ProcedureAction
}

// GetConfig builds the GetConfig procedure name.
func GetConfig() ProcedureName { return ProcedureName{Kind: ProcedureGetConfig} }

// SetConfig builds the SetConfig procedure name.
func SetConfig() ProcedureName { return ProcedureName{Kind: ProcedureSetConfig} }

// Action builds an Action(name) procedure name.
func Action(name string) ProcedureName { return ProcedureName{Kind: ProcedureAction, Action: name} }

// EntryPoint returns the script-module function name the driver must invoke.
func (p ProcedureName) EntryPoint() string {
	switch p.Kind {
	case ProcedureGetConfig:
		return "getConfig"
	case ProcedureSetConfig:
		return "setConfig"
	case ProcedureAction:
		return p.Action
	default:
		return ""
	}
}

// ParseProcedureName parses the wire form a gRPC caller or the CLI sends:
// "getConfig", "setConfig", or "action:<name>". Anything else is
// ErrNotValidProcedureName.
func ParseProcedureName(s string) (ProcedureName, error) {
	switch s {
	case "getConfig":
		return GetConfig(), nil
	case "setConfig":
		return SetConfig(), nil
	}
	const actionPrefix = "action:"
	if len(s) > len(actionPrefix) && s[:len(actionPrefix)] == actionPrefix {
		return Action(s[len(actionPrefix):]), nil
	}
	return ProcedureName{}, fmt.Errorf("%w: %q", ErrNotValidProcedureName, s)
}

// ErrNotValidProcedureName is returned by ParseProcedureName for any string
// that isn't "getConfig", "setConfig", or "action:<name>".
var ErrNotValidProcedureName = fmt.Errorf("not a valid procedure name")

func (p ProcedureName) String() string {
	switch p.Kind {
	case ProcedureGetConfig:
		return "GetConfig"
	case ProcedureSetConfig:
		return "SetConfig"
	case ProcedureAction:
		return fmt.Sprintf("Action(%s)", p.Action)
	default:
		return "Unknown"
	}
}

// ErrorValue is the canonical shape a script returns: exactly one of the
// three variants is populated at a time.
type ErrorValue struct {
	kind    errorValueKind
	message string
	code    int
	result  any
}

type errorValueKind int

const (
	errorValueError errorValueKind = iota
	errorValueErrorCode
	errorValueResult
)

// ErrorValueError builds the Error(string) variant.
func ErrorValueError(message string) ErrorValue {
	return ErrorValue{kind: errorValueError, message: message}
}

// ErrorValueErrorCode builds the ErrorCode((int,string)) variant.
func ErrorValueErrorCode(code int, message string) ErrorValue {
	return ErrorValue{kind: errorValueErrorCode, code: code, message: message}
}

// ErrorValueResult builds the Result(json) variant.
func ErrorValueResult(result any) ErrorValue {
	return ErrorValue{kind: errorValueResult, result: result}
}

// IsError reports whether this is the Error(string) variant.
func (e ErrorValue) IsError() bool { return e.kind == errorValueError }

// IsErrorCode reports whether this is the ErrorCode variant.
func (e ErrorValue) IsErrorCode() bool { return e.kind == errorValueErrorCode }

// IsResult reports whether this is the Result variant.
func (e ErrorValue) IsResult() bool { return e.kind == errorValueResult }

// Message returns the message carried by either error variant.
func (e ErrorValue) Message() string { return e.message }

// Code returns the code carried by the ErrorCode variant.
func (e ErrorValue) Code() int { return e.code }

// Result returns the json payload carried by the Result variant.
func (e ErrorValue) Result() any { return e.result }

// ResultType is the result of waiting on a container-side process.
type ResultType struct {
	isError bool
	code    int
	message string
	result  any
}

// ResultTypeResult builds the success Result(json) variant.
func ResultTypeResult(result any) ResultType {
	return ResultType{result: result}
}

// ResultTypeErrorCode builds the ErrorCode(int,string) variant.
func ResultTypeErrorCode(code int, message string) ResultType {
	return ResultType{isError: true, code: code, message: message}
}

// IsError reports whether this is the ErrorCode variant.
func (r ResultType) IsError() bool { return r.isError }

// Code returns the code of the ErrorCode variant.
func (r ResultType) Code() int { return r.code }

// Message returns the message of the ErrorCode variant.
func (r ResultType) Message() string { return r.message }

// Result returns the json payload of the Result variant.
func (r ResultType) Result() any { return r.result }

// Metadata mirrors the metadata op's return shape. Times are unix
// milliseconds; nil means unavailable on the host platform.
type Metadata struct {
	FileType  string `json:"file_type"`
	IsDir     bool   `json:"is_dir"`
	IsFile    bool   `json:"is_file"`
	IsSymlink bool   `json:"is_symlink"`
	Len       uint64 `json:"len"`
	Modified  *int64 `json:"modified,omitempty"`
	Accessed  *int64 `json:"accessed,omitempty"`
	Created   *int64 `json:"created,omitempty"`
	ReadOnly  bool   `json:"readonly"`
	Gid       uint32 `json:"gid"`
	Mode      uint32 `json:"mode"`
	Uid       uint32 `json:"uid"`
}

// OutputStrategy selects how a container RPC "Output" call reports the
// completed process's captured streams.
type OutputStrategy string

const (
	OutputStrategyCollect OutputStrategy = "collect"
	OutputStrategyIgnore  OutputStrategy = "ignore"
)

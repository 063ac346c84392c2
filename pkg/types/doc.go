/*
Package types defines the core data structures of the package-procedure
execution core: the volume model, the procedure-name tagged variant, the
script answer contract, and process-wait results.

# Core Types

Volume addressing:
  - VolumeId, PackageId, Version: opaque string identifiers used to scope
    file paths.
  - ProcessGroupId, ProcessId: unsigned integers identifying a process and
    the group used for mass-kill cleanup.

Procedures:
  - ProcedureName: tagged variant { GetConfig, SetConfig, Action(name) }.
    EntryPoint() returns the script function name the driver invokes.

Script answers:
  - ErrorValue: the canonical shape a script's answer slot holds —
    Error(string), ErrorCode(int, string), or Result(json).
  - ResultType: the shape a container-side process wait returns —
    Result(json) or ErrorCode(int, string).
  - Metadata: the metadata op's return shape, unix-ms timestamps.

# Usage

	name := types.Action("backup")
	fmt.Println(name.EntryPoint()) // "backup"

	ev := types.ErrorValueErrorCode(2, "Not setup")
	if ev.IsErrorCode() {
		fmt.Println(ev.Code(), ev.Message())
	}

# See Also

  - pkg/volume for VolumeMap resolution
  - pkg/ops for the host capabilities that produce/consume these types
  - pkg/procedure for how an ErrorValue error becomes an error Result
*/
package types

// Package ops implements the Ops Surface: the fixed set of host
// capabilities a package script can call — HTTP fetch, file/directory I/O,
// metadata, rename, rsync start/wait/progress, process start/wait/signal,
// sleep, logging, and introspection.
//
// Every op is a method on *Context so pkg/jsengine can bind them into a
// fresh script engine per call without any package-level mutable state.
package ops

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/pkgrun/pkg/rpcclient"
	"github.com/cuemby/pkgrun/pkg/rsync"
	"github.com/cuemby/pkgrun/pkg/types"
	"github.com/cuemby/pkgrun/pkg/volume"
)

// Context is the per-call state every op consults: it is born when a
// procedure starts and discarded when it returns. The answer slot and the
// rsync registry are the only fields an op mutates; everything else is set
// once at construction and read-only for the call's lifetime.
type Context struct {
	Sandboxed    bool
	DataDir      string
	RunFunction  string
	PackageID    types.PackageId
	Version      types.Version
	Volumes      *volume.Map
	Input        any
	VariableArgs []any

	ContainerProcessGid types.ProcessGroupId
	RPC                 *rpcclient.Client // nil outside a container context

	Rsyncs *rsync.Registry

	Logger zerolog.Logger

	answerMu sync.Mutex
	answer   any
}

// New builds a fresh per-call Context. RPC may be nil (the sandboxed or
// script-only path); every op that requires it fails with
// "No RpcClient for command operations" when it is absent, matching the
// original's container_rpc_client option type.
func New(dataDir string, packageID types.PackageId, version types.Version, volumes *volume.Map, input any, variableArgs []any, sandboxed bool, gid types.ProcessGroupId, rpc *rpcclient.Client, log zerolog.Logger) *Context {
	return &Context{
		Sandboxed:           sandboxed,
		DataDir:             dataDir,
		PackageID:           packageID,
		Version:             version,
		Volumes:             volumes,
		Input:               input,
		VariableArgs:        variableArgs,
		ContainerProcessGid: gid,
		RPC:                 rpc,
		Rsyncs:              rsync.NewRegistry(),
		Logger:              log,
	}
}

// SetAnswer implements the set_value op: last-writer-wins, matching
// spec.md's "AnswerSlot (mutex-protected cell, last-writer-wins)".
func (c *Context) SetAnswer(value any) {
	c.answerMu.Lock()
	defer c.answerMu.Unlock()
	c.answer = value
}

// Answer returns the current contents of the answer slot, read by the
// Execution Environment once the script module's entry point returns.
func (c *Context) Answer() any {
	c.answerMu.Lock()
	defer c.answerMu.Unlock()
	return c.answer
}

// GetInput implements the get_input op.
func (c *Context) GetInput() any { return c.Input }

// GetVariableArgs implements the get_variable_args op.
func (c *Context) GetVariableArgs() []any { return c.VariableArgs }

// IsSandboxed implements the is_sandboxed op.
func (c *Context) IsSandboxed() bool { return c.Sandboxed }

// CurrentFunction implements the current_function op.
func (c *Context) CurrentFunction() string { return c.RunFunction }

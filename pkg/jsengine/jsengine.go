// Package jsengine is the Execution Environment: it loads a package's
// embassy.js once, then runs a fresh goja runtime per procedure call against
// a curated host surface built from pkg/ops.
//
// Each call gets its own *goja.Runtime and its own *ops.Context; nothing is
// shared across calls except the RPC client and the volume map, both
// supplied by the caller and immutable for the Environment's lifetime.
package jsengine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cuemby/pkgrun/pkg/rpcclient"
	"github.com/cuemby/pkgrun/pkg/types"
	"github.com/cuemby/pkgrun/pkg/volume"
)

// Environment holds a package's script, read into memory once at
// LoadFromPackage time, plus everything a call needs to build a fresh
// *ops.Context: the volume map, the container process group, and the
// Container RPC Client (nil outside a container context).
type Environment struct {
	sandboxed bool

	dataDir   string
	packageID types.PackageId
	version   types.Version

	volumes *volume.Map
	gid     types.ProcessGroupId
	rpc     *rpcclient.Client
	logger  zerolog.Logger

	source string
}

// LoadFromPackage reads <dataDir>/<packageID>/<version>/embassy.js fully
// into memory. The Environment returned is safe for concurrent RunAction
// calls: nothing about it mutates after construction.
func LoadFromPackage(dataDir string, packageID types.PackageId, version types.Version, volumes *volume.Map, gid types.ProcessGroupId, rpc *rpcclient.Client, logger zerolog.Logger) (*Environment, error) {
	scriptPath := filepath.Join(dataDir, string(packageID), string(version), "embassy.js")
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, kindError(KindFileSystem, fmt.Sprintf("reading %s: %v", scriptPath, err))
	}
	return &Environment{
		dataDir:   dataDir,
		packageID: packageID,
		version:   version,
		volumes:   volumes,
		gid:       gid,
		rpc:       rpc,
		logger:    logger,
		source:    string(data),
	}, nil
}

// ReadOnlyEffects returns a copy of the Environment whose calls run
// sandboxed: no process control, no fetch, every op that reaches the
// Container RPC Client fails with "No RpcClient for command operations".
func (e *Environment) ReadOnlyEffects() *Environment {
	clone := *e
	clone.sandboxed = true
	clone.rpc = nil
	return &clone
}

// Sandboxed reports whether calls through this Environment run sandboxed.
func (e *Environment) Sandboxed() bool { return e.sandboxed }

// Package volume implements the Volume Map: the association between a
// volume id and a base directory plus a read-only flag, and the resolver
// every filesystem op in pkg/ops consults before touching a path.
package volume

import (
	"path/filepath"
	"sync"

	"github.com/cuemby/pkgrun/pkg/types"
)

// Entry is one volume's declaration: where it lives relative to a package's
// data directory, and whether mutating ops are forbidden against it.
type Entry struct {
	// Subpath is appended to data_dir/<package_id>/<version>/volumes to
	// build the base path, unless Absolute is set.
	Subpath string
	// Absolute overrides Subpath with a fixed, package/version-independent
	// base path (used for volumes shared across versions).
	Absolute string
	ReadOnly bool
}

// Map implements path_for/readonly against a fixed set of declared volumes.
// It is immutable after construction, matching spec.md §4.2's "immutable for
// the lifetime of a call" requirement — and, since the zero-value map holds
// no mutable state, safe to share across calls and across an entire process.
type Map struct {
	mu      sync.RWMutex
	entries map[types.VolumeId]Entry
}

// NewMap builds a Map from a declared set of volumes. Grounded on the
// teacher's driver-registry pattern (pkg/volume/local.go's VolumeManager),
// narrowed from a pluggable-driver registry to the single resolver shape
// spec.md §4.2 requires.
func NewMap(entries map[types.VolumeId]Entry) *Map {
	m := &Map{entries: make(map[types.VolumeId]Entry, len(entries))}
	for id, e := range entries {
		m.entries[id] = e
	}
	return m
}

// PathFor resolves (data_dir, package_id, version, volume_id) to a base
// path. Returns ok=false for unknown volume ids, matching spec.md's
// "returns none for unknown volume ids (op fails)".
func (m *Map) PathFor(dataDir string, packageID types.PackageId, version types.Version, volumeID types.VolumeId) (string, bool) {
	m.mu.RLock()
	entry, found := m.entries[volumeID]
	m.mu.RUnlock()
	if !found {
		return "", false
	}
	if entry.Absolute != "" {
		return entry.Absolute, true
	}
	return filepath.Join(dataDir, string(packageID), string(version), "volumes", entry.Subpath), true
}

// ReadOnly reports whether volumeID is declared read-only. An unknown id
// reports false — spec.md §4.2: "an unknown id reports not-readonly (the
// subsequent path_for will fail first)".
func (m *Map) ReadOnly(volumeID types.VolumeId) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[volumeID].ReadOnly
}

// TmpDir returns the sibling tmp directory write_file uses for atomic
// writes: <base>/../tmp-<volume_id>, kept alongside rather than inside the
// volume so a crash never leaves a partial file under the volume root.
func TmpDir(basePath string, volumeID types.VolumeId) string {
	return filepath.Join(filepath.Dir(basePath), "tmp-"+string(volumeID))
}

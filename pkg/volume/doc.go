/*
Package volume implements the Volume Map component: it associates a volume
id with a base directory and a read-only flag, and resolves
(data_dir, package_id, version, volume_id) -> base path for every op in
pkg/ops.

# Usage

	m := volume.NewMap(map[types.VolumeId]volume.Entry{
		"main": {Subpath: "main"},
		"ro-config": {Subpath: "config", ReadOnly: true},
	})

	base, ok := m.PathFor(dataDir, "my-package", "1.2.0", "main")
	if !ok {
		// unknown volume id — the caller's op fails
	}

The map is immutable after construction: no operation in this package or in
pkg/ops ever mutates an Entry once NewMap has returned, matching spec.md
§4.2's "immutable for the lifetime of a call" (and, in practice, for the
lifetime of the process, since a Map may be shared across calls belonging to
the same package).

# See Also

  - pkg/pathpolicy for the containment check every op applies against the
    base path this package resolves
  - pkg/ops for the mutating-op / readonly interaction
*/
package volume

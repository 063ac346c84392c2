//go:build linux

package containerinit

// DefaultSocketPath is the containerd socket containerinitd connects to on
// Linux, matching pkg/runtime.DefaultSocketPath: on this platform the
// daemon's containerd (embedded or external) is reachable directly, no VM
// hop required.
const DefaultSocketPath = "/run/containerd/containerd.sock"

// ResolveSocketPath returns the containerd socket containerinitd should
// dial. On Linux this is just the configured path (or DefaultSocketPath),
// since containerd always runs on the same host as containerinitd.
func ResolveSocketPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return DefaultSocketPath, nil
}

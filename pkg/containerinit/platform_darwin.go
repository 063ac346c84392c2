//go:build darwin

package containerinit

import (
	"context"
	"fmt"

	"github.com/cuemby/pkgrun/pkg/embedded"
)

// ResolveSocketPath returns the containerd socket containerinitd should
// dial. On macOS containerd only runs inside the Lima VM pkgrun's host
// daemon manages; containerinitd reuses embedded.EnsureLima to find (or
// start) that VM and forward its socket rather than assuming a local
// containerd, mirroring pkg/embedded.EnsureContainerdMacOS's own use of
// EnsureLima for the same reason.
func ResolveSocketPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	lima, err := embedded.EnsureLima(context.Background(), embedded.DefaultDataDir)
	if err != nil {
		return "", fmt.Errorf("ensuring lima vm: %w", err)
	}
	return lima.GetSocketPath(), nil
}

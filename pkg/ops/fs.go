package ops

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cuemby/pkgrun/pkg/pathpolicy"
	"github.com/cuemby/pkgrun/pkg/types"
	"github.com/cuemby/pkgrun/pkg/volume"
)

// resolvePath resolves volumeID to a base path and joins pathIn onto it,
// returning a volume-escape error via pathpolicy if the result would break
// out of the volume root. The returned path need not exist.
func (c *Context) resolvePath(volumeID types.VolumeId, pathIn string, checkParent bool) (base, target string, err error) {
	base, ok := c.Volumes.PathFor(c.DataDir, c.PackageID, c.Version, volumeID)
	if !ok {
		return "", "", fmt.Errorf("there is no %s in volumes", volumeID)
	}
	target = filepath.Join(base, pathIn)

	checkAgainst := target
	if checkParent {
		checkAgainst = filepath.Dir(target)
	}
	if err := pathpolicy.Check(base, checkAgainst); err != nil {
		return "", "", err
	}
	return base, target, nil
}

// ReadFile implements the read_file op.
func (c *Context) ReadFile(volumeID types.VolumeId, pathIn string) (string, error) {
	_, target, err := c.resolvePath(volumeID, pathIn, false)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Metadata implements the metadata op.
func (c *Context) Metadata(volumeID types.VolumeId, pathIn string) (types.Metadata, error) {
	_, target, err := c.resolvePath(volumeID, pathIn, false)
	if err != nil {
		return types.Metadata{}, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return types.Metadata{}, err
	}
	return metadataFromFileInfo(info), nil
}

// WriteFile implements the write_file op: an atomic write via a temp file
// in a sibling tmp directory, named by the uppercase-hex SHA-256 digest of
// the volume-relative path (carried exactly from the original's
// `format!("{:X}", ...)`).
func (c *Context) WriteFile(volumeID types.VolumeId, pathIn, contents string) error {
	if c.Volumes.ReadOnly(volumeID) {
		return fmt.Errorf("volume %s is readonly", volumeID)
	}
	base, target, err := c.resolvePath(volumeID, pathIn, true)
	if err != nil {
		return err
	}

	tmpDir := volume.TmpDir(base, volumeID)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return err
	}
	sum := sha256.Sum256([]byte(pathIn))
	tmpFile := filepath.Join(tmpDir, strings.ToUpper(fmt.Sprintf("%x", sum)))

	if err := os.WriteFile(tmpFile, []byte(contents), 0o644); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		os.Remove(tmpFile)
		return err
	}
	if err := os.Rename(tmpFile, target); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return nil
}

// Rename implements the rename op, validating both the source and
// destination parent against their respective volume roots and rejecting a
// readonly destination volume.
func (c *Context) Rename(srcVolume types.VolumeId, srcPath string, dstVolume types.VolumeId, dstPath string) error {
	if c.Volumes.ReadOnly(dstVolume) {
		return fmt.Errorf("volume %s is readonly", dstVolume)
	}
	_, oldFile, err := c.resolvePath(srcVolume, srcPath, true)
	if err != nil {
		return err
	}
	_, newFile, err := c.resolvePath(dstVolume, dstPath, true)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newFile), 0o755); err != nil {
		return err
	}
	return os.Rename(oldFile, newFile)
}

// RemoveFile implements the remove_file op.
func (c *Context) RemoveFile(volumeID types.VolumeId, pathIn string) error {
	if c.Volumes.ReadOnly(volumeID) {
		return fmt.Errorf("volume %s is readonly", volumeID)
	}
	_, target, err := c.resolvePath(volumeID, pathIn, false)
	if err != nil {
		return err
	}
	return os.Remove(target)
}

// RemoveDir implements the remove_dir op (recursive, matching the
// original's remove_dir_all).
func (c *Context) RemoveDir(volumeID types.VolumeId, pathIn string) error {
	if c.Volumes.ReadOnly(volumeID) {
		return fmt.Errorf("volume %s is readonly", volumeID)
	}
	_, target, err := c.resolvePath(volumeID, pathIn, false)
	if err != nil {
		return err
	}
	return os.RemoveAll(target)
}

// CreateDir implements the create_dir op (matching the original's
// create_dir_all: intermediate directories are created as needed).
func (c *Context) CreateDir(volumeID types.VolumeId, pathIn string) error {
	if c.Volumes.ReadOnly(volumeID) {
		return fmt.Errorf("volume %s is readonly", volumeID)
	}
	_, target, err := c.resolvePath(volumeID, pathIn, false)
	if err != nil {
		return err
	}
	return os.MkdirAll(target, 0o755)
}

// ReadDir implements the read_dir op: a single-level directory listing,
// entry names returned relative to pathIn and sorted ascending. Not
// recursive — matching the original's single tokio::fs::read_dir pass.
func (c *Context) ReadDir(volumeID types.VolumeId, pathIn string) ([]string, error) {
	_, target, err := c.resolvePath(volumeID, pathIn, false)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

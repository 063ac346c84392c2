package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/pkgrun/pkg/pathpolicy"
	"github.com/cuemby/pkgrun/pkg/rsync"
	"github.com/cuemby/pkgrun/pkg/types"
)

// Rsync implements the rsync op: validates both paths against their
// volume's Path Policy, rejects a readonly destination, requires the
// source to already exist, then starts the sync task and returns its
// registry handle.
func (c *Context) Rsync(ctx context.Context, srcVolume types.VolumeId, srcPath string, dstVolume types.VolumeId, dstPath string, opts rsync.Options) (int, error) {
	if c.Volumes.ReadOnly(dstVolume) {
		return 0, fmt.Errorf("volume %s is readonly", dstVolume)
	}

	srcBase, ok := c.Volumes.PathFor(c.DataDir, c.PackageID, c.Version, srcVolume)
	if !ok {
		return 0, fmt.Errorf("there is no %s in volumes", srcVolume)
	}
	dstBase, ok := c.Volumes.PathFor(c.DataDir, c.PackageID, c.Version, dstVolume)
	if !ok {
		return 0, fmt.Errorf("there is no %s in volumes", dstVolume)
	}

	src := filepath.Join(srcBase, srcPath)
	if err := pathpolicy.Check(srcBase, src); err != nil {
		return 0, err
	}
	if _, err := os.Stat(src); err != nil {
		return 0, fmt.Errorf("source at %s does not exist", src)
	}

	dst := filepath.Join(dstBase, dstPath)
	if err := pathpolicy.Check(dstBase, dst); err != nil {
		return 0, err
	}

	task, err := rsync.Start(ctx, src, dst, opts)
	if err != nil {
		return 0, err
	}
	return c.Rsyncs.Insert(task), nil
}

// RsyncWait implements the rsync_wait op: removes the handle and blocks on
// completion.
func (c *Context) RsyncWait(id int) error {
	task, ok := c.Rsyncs.Take(id)
	if !ok {
		return fmt.Errorf("couldn't find rsync at id %d", id)
	}
	return task.Wait()
}

// RsyncProgress implements the rsync_progress op: removes the handle,
// polls once, and reinserts it so the registry lock is never held across
// the poll.
func (c *Context) RsyncProgress(id int) (float64, error) {
	task, ok := c.Rsyncs.Take(id)
	if !ok {
		return 0, fmt.Errorf("couldn't find rsync at id %d", id)
	}
	progress := task.Progress()
	c.Rsyncs.Reinsert(id, task)
	return progress, nil
}

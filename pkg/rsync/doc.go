/*
Package rsync implements the Rsync Registry component: the call-scoped
table of in-progress directory-sync tasks that back the rsync/rsync_wait/
rsync_progress ops.

# Handle Lifecycle

	id := registry.Insert(task)          // rsync op
	task, ok := registry.Take(id)         // rsync_wait op
	task.Wait()

	task, ok := registry.Take(id)         // rsync_progress op
	p := task.Progress()
	registry.Reinsert(id, task)

rsync_progress removes before polling and reinserts after specifically so
the registry's mutex is never held across an await — a second goroutine
calling Take concurrently (a racing rsync_progress / rsync_wait pair on
the same handle, which the script should not do but which the registry
must not corrupt state over) sees a clean miss rather than a half-updated
entry.

# Process Model

Each Task shells out to the system `rsync` binary with `--info=progress2`,
parsing its single running-percentage output line. This is the standard
Go-ecosystem approach to driving rsync (invoke the real binary rather than
reimplement the wire protocol).
*/
package rsync

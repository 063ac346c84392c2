package containerinit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/pkgrun/pkg/containerinit"
	"github.com/cuemby/pkgrun/pkg/types"
)

func openTestJournal(t *testing.T) *containerinit.Journal {
	t.Helper()
	j, err := containerinit.OpenJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_PutGet(t *testing.T) {
	j := openTestJournal(t)

	rec := containerinit.ProcessRecord{Pid: 1, Gid: 2, Command: "true"}
	require.NoError(t, j.Put(rec))

	got, found, err := j.Get(1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "true", got.Command)
	assert.Equal(t, types.ProcessGroupId(2), got.Gid)
}

func TestJournal_GetMissing(t *testing.T) {
	j := openTestJournal(t)

	_, found, err := j.Get(99)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestJournal_ListByGroup(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Put(containerinit.ProcessRecord{Pid: 1, Gid: 5, Command: "a"}))
	require.NoError(t, j.Put(containerinit.ProcessRecord{Pid: 2, Gid: 5, Command: "b"}))
	require.NoError(t, j.Put(containerinit.ProcessRecord{Pid: 3, Gid: 6, Command: "c"}))

	recs, err := j.ListByGroup(5)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestJournal_Delete(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Put(containerinit.ProcessRecord{Pid: 1, Command: "true"}))
	require.NoError(t, j.Delete(1))

	_, found, err := j.Get(1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestJournal_PutUpdatesExitCode(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Put(containerinit.ProcessRecord{Pid: 1, Command: "true"}))
	code := 0
	require.NoError(t, j.Put(containerinit.ProcessRecord{Pid: 1, Command: "true", ExitCode: &code, Stdout: "ok"}))

	got, found, err := j.Get(1)
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, got.ExitCode)
	assert.Equal(t, 0, *got.ExitCode)
	assert.Equal(t, "ok", got.Stdout)
}

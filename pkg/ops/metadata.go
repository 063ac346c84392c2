package ops

import (
	"os"
	"syscall"

	"github.com/cuemby/pkgrun/pkg/types"
)

// metadataFromFileInfo fills the types.Metadata the metadata op returns.
// Timestamps are millisecond-unix; gid/uid/mode come from the Unix-specific
// Stat_t (pkgrun targets Linux containers, matching the teacher's embedded
// containerd runtime which is Linux-only in production).
func metadataFromFileInfo(info os.FileInfo) types.Metadata {
	m := types.Metadata{
		FileType:  fileTypeString(info),
		IsDir:     info.IsDir(),
		IsFile:    info.Mode().IsRegular(),
		IsSymlink: info.Mode()&os.ModeSymlink != 0,
		Len:       uint64(info.Size()),
		ReadOnly:  info.Mode().Perm()&0o200 == 0,
		Mode:      uint32(info.Mode().Perm()),
	}
	modMs := info.ModTime().UnixMilli()
	m.Modified = &modMs

	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		m.Gid = st.Gid
		m.Uid = st.Uid
		accMs := st.Atim.Sec*1000 + st.Atim.Nsec/1_000_000
		m.Accessed = &accMs
	}
	return m
}

func fileTypeString(info os.FileInfo) string {
	switch {
	case info.IsDir():
		return "directory"
	case info.Mode()&os.ModeSymlink != 0:
		return "symlink"
	default:
		return "file"
	}
}

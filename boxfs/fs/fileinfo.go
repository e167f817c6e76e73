package fs

import (
	iofs "io/fs"
	"time"

	"github.com/parasource/boxfs/boxfs/meta"
)

// FileInfo describes a file or directory, implementing io/fs.FileInfo.
type FileInfo struct {
	name       string
	size       uint64
	isDir      bool
	createdAt  time.Time
	modifiedAt time.Time
	accessedAt time.Time
}

func newFileInfo(name string, ino *meta.Inode) FileInfo {
	return FileInfo{
		name:       name,
		size:       ino.Size,
		isDir:      ino.IsDirectory(),
		createdAt:  time.UnixMilli(ino.CreatedAt),
		modifiedAt: time.UnixMilli(ino.ModifiedAt),
		accessedAt: time.UnixMilli(ino.AccessedAt),
	}
}

func (fi FileInfo) Name() string { return fi.name }

func (fi FileInfo) Size() int64 { return int64(fi.size) }

func (fi FileInfo) Mode() iofs.FileMode {
	if fi.isDir {
		return iofs.ModeDir | 0755
	}
	return 0644
}

func (fi FileInfo) ModTime() time.Time { return fi.modifiedAt }

func (fi FileInfo) CreatedAt() time.Time { return fi.createdAt }

func (fi FileInfo) AccessedAt() time.Time { return fi.accessedAt }

func (fi FileInfo) IsDir() bool { return fi.isDir }

func (fi FileInfo) Sys() interface{} { return nil }

package meta

import (
	"time"

	"github.com/parasource/boxfs/boxfs/container"
)

type InodeType uint8

const (
	TypeFile InodeType = iota
	TypeDirectory
)

func (t InodeType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Inode describes a single file or directory. Size is the logical byte
// size for files and zero for directories. Extents hold the data blocks
// in order, files only.
type Inode struct {
	ID         uint64
	Type       InodeType
	Size       uint64
	CreatedAt  int64 // epoch millis
	ModifiedAt int64
	AccessedAt int64
	Extents    []container.Extent
}

func nowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

func NewInode(id uint64, t InodeType) *Inode {
	now := nowMillis()
	return &Inode{
		ID:         id,
		Type:       t,
		CreatedAt:  now,
		ModifiedAt: now,
		AccessedAt: now,
	}
}

func (ino *Inode) IsDirectory() bool {
	return ino.Type == TypeDirectory
}

func (ino *Inode) TouchModified() {
	now := nowMillis()
	ino.ModifiedAt = now
	ino.AccessedAt = now
}

func (ino *Inode) TouchAccessed() {
	ino.AccessedAt = nowMillis()
}

// AllocatedBlocks is the total block count across all extents.
func (ino *Inode) AllocatedBlocks() uint64 {
	var total uint64
	for _, ext := range ino.Extents {
		total += uint64(ext.BlockCount)
	}
	return total
}

// Clone returns a deep copy of the inode.
func (ino *Inode) Clone() *Inode {
	cp := *ino
	cp.Extents = make([]container.Extent, len(ino.Extents))
	copy(cp.Extents, ino.Extents)
	return &cp
}

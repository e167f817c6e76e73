package meta

import (
	"errors"
	"sort"
)

const RootInodeID uint64 = 0

var (
	ErrInodeNotFound = errors.New("inode not found")
	ErrInodeExists   = errors.New("inode id already registered")
)

// InodeTable is the in-memory inode index. IDs are never reused within
// the lifetime of a filesystem image, nextID only grows.
type InodeTable struct {
	inodes map[uint64]*Inode
	nextID uint64
}

// NewInodeTable creates a table holding only the root directory inode.
func NewInodeTable() *InodeTable {
	t := &InodeTable{
		inodes: make(map[uint64]*Inode),
		nextID: RootInodeID + 1,
	}
	t.inodes[RootInodeID] = NewInode(RootInodeID, TypeDirectory)
	return t
}

// Create allocates the next id and registers a fresh inode under it.
func (t *InodeTable) Create(typ InodeType) *Inode {
	ino := NewInode(t.nextID, typ)
	t.inodes[ino.ID] = ino
	t.nextID++
	return ino
}

// Register inserts an inode with an explicit id, used when loading
// persisted metadata. nextID is bumped past the id so it is never
// handed out again.
func (t *InodeTable) Register(ino *Inode) error {
	if _, ok := t.inodes[ino.ID]; ok {
		return ErrInodeExists
	}
	t.inodes[ino.ID] = ino
	if ino.ID >= t.nextID {
		t.nextID = ino.ID + 1
	}
	return nil
}

func (t *InodeTable) Get(id uint64) (*Inode, error) {
	ino, ok := t.inodes[id]
	if !ok {
		return nil, ErrInodeNotFound
	}
	return ino, nil
}

func (t *InodeTable) Remove(id uint64) error {
	if _, ok := t.inodes[id]; !ok {
		return ErrInodeNotFound
	}
	delete(t.inodes, id)
	return nil
}

func (t *InodeTable) Len() int {
	return len(t.inodes)
}

// All returns every inode ordered by id.
func (t *InodeTable) All() []*Inode {
	out := make([]*Inode, 0, len(t.inodes))
	for _, ino := range t.inodes {
		out = append(out, ino)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clear drops every inode and resets id allocation. Used right before
// deserializing a metadata image, which carries its own root.
func (t *InodeTable) Clear() {
	t.inodes = make(map[uint64]*Inode)
	t.nextID = RootInodeID + 1
}

package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInodeTableHasRoot(t *testing.T) {
	table := NewInodeTable()

	root, err := table.Get(RootInodeID)
	require.Nil(t, err)
	assert.True(t, root.IsDirectory())
	assert.Equal(t, 1, table.Len())
}

func TestCreateAssignsMonotonicIDs(t *testing.T) {
	table := NewInodeTable()

	a := table.Create(TypeFile)
	b := table.Create(TypeDirectory)
	assert.Equal(t, uint64(1), a.ID)
	assert.Equal(t, uint64(2), b.ID)

	// Removing an inode must not recycle its id.
	require.Nil(t, table.Remove(b.ID))
	c := table.Create(TypeFile)
	assert.Equal(t, uint64(3), c.ID)
}

func TestRegisterBumpsNextID(t *testing.T) {
	table := NewInodeTable()

	err := table.Register(NewInode(10, TypeFile))
	require.Nil(t, err)

	next := table.Create(TypeFile)
	assert.Equal(t, uint64(11), next.ID)

	err = table.Register(NewInode(10, TypeFile))
	assert.ErrorIs(t, err, ErrInodeExists)
}

func TestGetAndRemove(t *testing.T) {
	table := NewInodeTable()

	_, err := table.Get(42)
	assert.ErrorIs(t, err, ErrInodeNotFound)
	assert.ErrorIs(t, table.Remove(42), ErrInodeNotFound)

	ino := table.Create(TypeFile)
	got, err := table.Get(ino.ID)
	assert.Nil(t, err)
	assert.Equal(t, ino, got)
}

func TestAllSortedByID(t *testing.T) {
	table := NewInodeTable()
	table.Register(NewInode(7, TypeFile))
	table.Register(NewInode(3, TypeFile))
	table.Create(TypeFile) // id 8

	all := table.All()
	require.Equal(t, 4, len(all))
	assert.Equal(t, uint64(0), all[0].ID)
	assert.Equal(t, uint64(3), all[1].ID)
	assert.Equal(t, uint64(7), all[2].ID)
	assert.Equal(t, uint64(8), all[3].ID)
}

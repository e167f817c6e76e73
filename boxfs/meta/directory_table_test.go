package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectoryTable(t *testing.T) *DirectoryTable {
	t.Helper()
	table, err := NewDirectoryTable()
	require.Nil(t, err)
	return table
}

func TestInsertAndLookup(t *testing.T) {
	table := newTestDirectoryTable(t)

	require.Nil(t, table.Insert(RootInodeID, "etc", 1))
	require.Nil(t, table.Insert(RootInodeID, "var", 2))
	require.Nil(t, table.Insert(1, "hosts", 3))

	child, err := table.LookupChild(RootInodeID, "etc")
	assert.Nil(t, err)
	assert.Equal(t, uint64(1), child)

	_, err = table.LookupChild(RootInodeID, "missing")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	entry, err := table.LookupParent(3)
	assert.Nil(t, err)
	assert.Equal(t, DirEntry{ParentID: 1, Name: "hosts", ChildID: 3}, entry)
}

func TestInsertDuplicates(t *testing.T) {
	table := newTestDirectoryTable(t)

	require.Nil(t, table.Insert(RootInodeID, "a", 1))

	// Same name in the same directory.
	assert.ErrorIs(t, table.Insert(RootInodeID, "a", 2), ErrEntryExists)
	// Same child under a second name.
	assert.ErrorIs(t, table.Insert(RootInodeID, "b", 1), ErrEntryExists)
	// Same name in a different directory is fine.
	assert.Nil(t, table.Insert(5, "a", 2))
}

func TestListChildrenSorted(t *testing.T) {
	table := newTestDirectoryTable(t)

	require.Nil(t, table.Insert(RootInodeID, "zoo", 1))
	require.Nil(t, table.Insert(RootInodeID, "abc", 2))
	require.Nil(t, table.Insert(RootInodeID, "mid", 3))

	children, err := table.ListChildren(RootInodeID)
	require.Nil(t, err)
	require.Equal(t, 3, len(children))
	assert.Equal(t, "abc", children[0].Name)
	assert.Equal(t, "mid", children[1].Name)
	assert.Equal(t, "zoo", children[2].Name)

	empty, err := table.ListChildren(99)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(empty))
}

func TestHasChildren(t *testing.T) {
	table := newTestDirectoryTable(t)

	has, err := table.HasChildren(RootInodeID)
	assert.Nil(t, err)
	assert.False(t, has)

	require.Nil(t, table.Insert(RootInodeID, "a", 1))
	has, err = table.HasChildren(RootInodeID)
	assert.Nil(t, err)
	assert.True(t, has)
}

func TestRemoveEntry(t *testing.T) {
	table := newTestDirectoryTable(t)

	require.Nil(t, table.Insert(RootInodeID, "a", 1))
	require.Nil(t, table.Remove(1))

	_, err := table.LookupChild(RootInodeID, "a")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.ErrorIs(t, table.Remove(1), ErrEntryNotFound)
}

func TestMoveEntry(t *testing.T) {
	table := newTestDirectoryTable(t)

	require.Nil(t, table.Insert(RootInodeID, "dir", 1))
	require.Nil(t, table.Insert(RootInodeID, "file", 2))

	require.Nil(t, table.Move(2, 1, "renamed"))

	_, err := table.LookupChild(RootInodeID, "file")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	child, err := table.LookupChild(1, "renamed")
	assert.Nil(t, err)
	assert.Equal(t, uint64(2), child)

	// Moving onto a taken name is rejected.
	require.Nil(t, table.Insert(1, "taken", 3))
	assert.ErrorIs(t, table.Move(2, 1, "taken"), ErrEntryExists)

	assert.ErrorIs(t, table.Move(99, 1, "x"), ErrEntryNotFound)
}

func TestAllAndClear(t *testing.T) {
	table := newTestDirectoryTable(t)

	require.Nil(t, table.Insert(RootInodeID, "b", 1))
	require.Nil(t, table.Insert(RootInodeID, "a", 2))
	require.Nil(t, table.Insert(1, "c", 3))

	all, err := table.All()
	require.Nil(t, err)
	assert.Equal(t, 3, len(all))

	n, err := table.Len()
	assert.Nil(t, err)
	assert.Equal(t, 3, n)

	require.Nil(t, table.Clear())
	n, err = table.Len()
	assert.Nil(t, err)
	assert.Equal(t, 0, n)
}

package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parasource/boxfs/boxfs/container"
)

func buildTestMetadata(t *testing.T) (*InodeTable, *DirectoryTable, []container.Extent) {
	t.Helper()

	inodes := NewInodeTable()
	dirs, err := NewDirectoryTable()
	require.Nil(t, err)

	dir := inodes.Create(TypeDirectory)
	file := inodes.Create(TypeFile)
	file.Size = 5000
	file.Extents = []container.Extent{
		{StartBlock: 10, BlockCount: 1},
		{StartBlock: 30, BlockCount: 1},
	}

	require.Nil(t, dirs.Insert(RootInodeID, "docs", dir.ID))
	require.Nil(t, dirs.Insert(dir.ID, "readme.txt", file.ID))

	free := []container.Extent{
		{StartBlock: 11, BlockCount: 19},
		{StartBlock: 31, BlockCount: 69},
	}
	return inodes, dirs, free
}

func TestMetadataRoundTrip(t *testing.T) {
	inodes, dirs, free := buildTestMetadata(t)

	image, err := Serialize(inodes, dirs, free)
	require.Nil(t, err)

	loadedInodes := NewInodeTable()
	loadedDirs, err := NewDirectoryTable()
	require.Nil(t, err)

	loadedFree, err := Deserialize(image, loadedInodes, loadedDirs)
	require.Nil(t, err)

	assert.Equal(t, free, loadedFree)
	assert.Equal(t, inodes.Len(), loadedInodes.Len())
	for _, want := range inodes.All() {
		got, err := loadedInodes.Get(want.ID)
		require.Nil(t, err)
		assert.Equal(t, want, got)
	}

	wantEntries, err := dirs.All()
	require.Nil(t, err)
	gotEntries, err := loadedDirs.All()
	require.Nil(t, err)
	assert.Equal(t, wantEntries, gotEntries)

	// nextId must be past every loaded inode.
	fresh := loadedInodes.Create(TypeFile)
	assert.Equal(t, uint64(3), fresh.ID)
}

func TestDeserializeIgnoresPadding(t *testing.T) {
	inodes, dirs, free := buildTestMetadata(t)

	image, err := Serialize(inodes, dirs, free)
	require.Nil(t, err)

	// Metadata is read back block aligned, so the image carries
	// trailing zeros.
	padded := make([]byte, len(image)+512)
	copy(padded, image)

	loadedInodes := NewInodeTable()
	loadedDirs, err := NewDirectoryTable()
	require.Nil(t, err)
	loadedFree, err := Deserialize(padded, loadedInodes, loadedDirs)
	assert.Nil(t, err)
	assert.Equal(t, free, loadedFree)
}

func TestDeserializeTruncated(t *testing.T) {
	inodes, dirs, free := buildTestMetadata(t)

	image, err := Serialize(inodes, dirs, free)
	require.Nil(t, err)

	loadedInodes := NewInodeTable()
	loadedDirs, err := NewDirectoryTable()
	require.Nil(t, err)

	for _, cut := range []int{3, 10, len(image) / 2} {
		_, err := Deserialize(image[:cut], loadedInodes, loadedDirs)
		assert.ErrorIs(t, err, ErrInvalidFormat)
	}
}

func TestDeserializeBadInodeType(t *testing.T) {
	inodes := NewInodeTable()
	dirs, err := NewDirectoryTable()
	require.Nil(t, err)

	image, err := Serialize(inodes, dirs, nil)
	require.Nil(t, err)

	// The type byte of the first inode sits after the count and id.
	image[4+8] = 0xFF

	_, err = Deserialize(image, inodes, dirs)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestSerializeDeterministic(t *testing.T) {
	inodes, dirs, free := buildTestMetadata(t)

	a, err := Serialize(inodes, dirs, free)
	require.Nil(t, err)
	b, err := Serialize(inodes, dirs, free)
	require.Nil(t, err)
	assert.Equal(t, a, b)
}

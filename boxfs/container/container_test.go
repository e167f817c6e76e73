package container

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContainer(t *testing.T) *Container {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.box")
	c, err := Create(path, 512, 64)
	require.Nil(t, err)
	t.Cleanup(func() {
		c.Close()
	})
	return c
}

func TestCreateAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.box")

	c, err := Create(path, 512, 64)
	require.Nil(t, err)

	// The file must not already exist.
	_, err = Create(path, 512, 64)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	err = c.Close()
	assert.Nil(t, err)

	reopened, err := Open(path, false)
	require.Nil(t, err)
	defer reopened.Close()

	assert.Equal(t, uint32(512), reopened.Superblock().BlockSize())
	assert.Equal(t, uint64(64), reopened.Superblock().TotalBlocks())
}

func TestReadWriteBlocks(t *testing.T) {
	c := newTestContainer(t)

	data := bytes.Repeat([]byte{0xAB}, 512*2)
	err := c.WriteBlocks(3, data)
	assert.Nil(t, err)

	read, err := c.ReadBlocks(3, 2)
	assert.Nil(t, err)
	assert.Equal(t, data, read)

	// Short writes are padded to a whole block.
	err = c.WriteBlocks(10, []byte("hello"))
	assert.Nil(t, err)
	read, err = c.ReadBlocks(10, 1)
	assert.Nil(t, err)
	assert.Equal(t, []byte("hello"), read[:5])
	assert.Equal(t, make([]byte, 507), read[5:])
}

func TestBlockRangeChecks(t *testing.T) {
	c := newTestContainer(t)

	err := c.WriteBlocks(64, []byte("x"))
	assert.ErrorIs(t, err, ErrBlockRange)

	_, err = c.ReadBlocks(60, 5)
	assert.ErrorIs(t, err, ErrBlockRange)

	err = c.WriteBlocks(63, []byte("x"))
	assert.Nil(t, err)
}

func TestExtentIO(t *testing.T) {
	c := newTestContainer(t)
	ext := Extent{StartBlock: 5, BlockCount: 2}

	n, err := c.WriteToExtent(ext, 100, []byte("boxfs"))
	assert.Nil(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = c.ReadFromExtent(ext, 100, buf)
	assert.Nil(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("boxfs"), buf)
}

func TestExtentIOClamping(t *testing.T) {
	c := newTestContainer(t)
	ext := Extent{StartBlock: 0, BlockCount: 1}

	// A write crossing the extent end is clamped.
	data := bytes.Repeat([]byte{0x01}, 100)
	n, err := c.WriteToExtent(ext, 500, data)
	assert.Nil(t, err)
	assert.Equal(t, 12, n)

	// A read starting past the end returns -1.
	buf := make([]byte, 10)
	n, err = c.ReadFromExtent(ext, 512, buf)
	assert.Nil(t, err)
	assert.Equal(t, -1, n)

	// A write starting past the end is an error.
	_, err = c.WriteToExtent(ext, 512, []byte("x"))
	assert.ErrorIs(t, err, ErrOffsetOutside)
}

func TestContainerClosed(t *testing.T) {
	c := newTestContainer(t)
	require.Nil(t, c.Close())

	err := c.WriteBlocks(0, []byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.ReadBlocks(0, 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Sync(), ErrClosed)

	// Closing twice is fine.
	assert.Nil(t, c.Close())
}

func TestSuperblockPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.box")
	c, err := Create(path, 512, 64)
	require.Nil(t, err)

	err = c.Superblock().SetMetadataExtents([]Extent{{StartBlock: 1, BlockCount: 3}})
	require.Nil(t, err)
	require.Nil(t, c.WriteSuperblock())
	require.Nil(t, c.Close())

	reopened, err := Open(path, true)
	require.Nil(t, err)
	defer reopened.Close()

	extents := reopened.Superblock().MetadataExtents()
	assert.Equal(t, []Extent{{StartBlock: 1, BlockCount: 3}}, extents)
}

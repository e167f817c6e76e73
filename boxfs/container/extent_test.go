package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewExtent(t *testing.T) {
	ext, err := NewExtent(10, 5)
	assert.Nil(t, err)
	assert.Equal(t, uint64(10), ext.StartBlock)
	assert.Equal(t, uint64(15), ext.EndBlock())

	_, err = NewExtent(10, 0)
	assert.ErrorIs(t, err, ErrZeroLengthExtent)
}

func TestExtentAdjacency(t *testing.T) {
	a := Extent{StartBlock: 0, BlockCount: 4}
	b := Extent{StartBlock: 4, BlockCount: 2}
	c := Extent{StartBlock: 7, BlockCount: 1}

	assert.True(t, a.IsAdjacentTo(b))
	assert.True(t, b.IsAdjacentTo(a))
	assert.False(t, a.IsAdjacentTo(c))

	merged, err := a.Merge(b)
	assert.Nil(t, err)
	assert.Equal(t, uint64(0), merged.StartBlock)
	assert.Equal(t, uint32(6), merged.BlockCount)

	merged, err = b.Merge(a)
	assert.Nil(t, err)
	assert.Equal(t, uint64(0), merged.StartBlock)
	assert.Equal(t, uint32(6), merged.BlockCount)

	_, err = a.Merge(c)
	assert.ErrorIs(t, err, ErrNotAdjacent)
}

func TestExtentSizeInBytes(t *testing.T) {
	ext := Extent{StartBlock: 3, BlockCount: 4}
	assert.Equal(t, uint64(16384), ext.SizeInBytes(4096))
	assert.True(t, ext.Contains(3))
	assert.True(t, ext.Contains(6))
	assert.False(t, ext.Contains(7))
}

package container

import (
	"errors"
	"fmt"
)

var (
	ErrZeroLengthExtent = errors.New("extent block count must be greater than zero")
	ErrNotAdjacent      = errors.New("extents are not adjacent")
)

// Extent is a contiguous run of blocks inside the container.
type Extent struct {
	StartBlock uint64
	BlockCount uint32
}

func NewExtent(startBlock uint64, blockCount uint32) (Extent, error) {
	if blockCount == 0 {
		return Extent{}, ErrZeroLengthExtent
	}
	return Extent{StartBlock: startBlock, BlockCount: blockCount}, nil
}

// EndBlock returns the first block after the extent.
func (e Extent) EndBlock() uint64 {
	return e.StartBlock + uint64(e.BlockCount)
}

func (e Extent) Contains(block uint64) bool {
	return block >= e.StartBlock && block < e.EndBlock()
}

// IsAdjacentTo reports whether the two extents touch without overlapping,
// in either order.
func (e Extent) IsAdjacentTo(other Extent) bool {
	return e.EndBlock() == other.StartBlock || other.EndBlock() == e.StartBlock
}

// Merge joins two adjacent extents into one.
func (e Extent) Merge(other Extent) (Extent, error) {
	if !e.IsAdjacentTo(other) {
		return Extent{}, ErrNotAdjacent
	}
	start := e.StartBlock
	if other.StartBlock < start {
		start = other.StartBlock
	}
	return Extent{StartBlock: start, BlockCount: e.BlockCount + other.BlockCount}, nil
}

func (e Extent) SizeInBytes(blockSize uint32) uint64 {
	return uint64(e.BlockCount) * uint64(blockSize)
}

func (e Extent) String() string {
	return fmt.Sprintf("extent{start: %v, count: %v}", e.StartBlock, e.BlockCount)
}

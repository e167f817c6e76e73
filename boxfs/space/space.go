package space

import (
	"errors"
	"fmt"

	"github.com/google/btree"

	"github.com/parasource/boxfs/boxfs/container"
)

var (
	ErrNoSpace      = errors.New("not enough free space")
	ErrDoubleFree   = errors.New("extent overlaps already free space")
	ErrOutOfBounds  = errors.New("extent outside of managed space")
	ErrZeroBlocks   = errors.New("cannot allocate zero blocks")
	ErrZeroCapacity = errors.New("total block count must be greater than zero")
)

type freeExtent struct {
	container.Extent
}

func (f freeExtent) Less(than btree.Item) bool {
	return f.StartBlock < than.(freeExtent).StartBlock
}

// Manager tracks which blocks of a container are free. Free runs are
// kept in a btree ordered by start block, so first-fit scans and
// neighbor coalescing are both cheap. It is not safe for concurrent
// use on its own.
type Manager struct {
	totalBlocks uint64
	freeBlocks  uint64
	free        *btree.BTree
}

// NewManager creates a manager with every block free.
func NewManager(totalBlocks uint64) (*Manager, error) {
	if totalBlocks == 0 {
		return nil, ErrZeroCapacity
	}
	m := &Manager{
		totalBlocks: totalBlocks,
		free:        btree.New(32),
	}
	m.InitializeNew()
	return m, nil
}

// InitializeNew resets the manager to a single free run covering the
// whole container.
func (m *Manager) InitializeNew() {
	m.free.Clear(false)
	m.freeBlocks = 0
	remaining := m.totalBlocks
	start := uint64(0)
	// A single extent can only address 2^32-1 blocks, so very large
	// containers start out as several free runs.
	for remaining > 0 {
		count := remaining
		if count > 0xFFFFFFFF {
			count = 0xFFFFFFFF
		}
		m.free.ReplaceOrInsert(freeExtent{container.Extent{StartBlock: start, BlockCount: uint32(count)}})
		m.freeBlocks += count
		start += count
		remaining -= count
	}
}

func (m *Manager) TotalBlocks() uint64 {
	return m.totalBlocks
}

func (m *Manager) TotalFreeBlocks() uint64 {
	return m.freeBlocks
}

func (m *Manager) TotalUsedBlocks() uint64 {
	return m.totalBlocks - m.freeBlocks
}

// LargestFreeExtent returns the biggest single free run, or zero
// blocks if nothing is free.
func (m *Manager) LargestFreeExtent() uint32 {
	var largest uint32
	m.free.Ascend(func(item btree.Item) bool {
		ext := item.(freeExtent)
		if ext.BlockCount > largest {
			largest = ext.BlockCount
		}
		return true
	})
	return largest
}

// FreeExtents returns the free list sorted by start block.
func (m *Manager) FreeExtents() []container.Extent {
	out := make([]container.Extent, 0, m.free.Len())
	m.free.Ascend(func(item btree.Item) bool {
		out = append(out, item.(freeExtent).Extent)
		return true
	})
	return out
}

// SetFreeExtents replaces the free list wholesale, used when loading
// persisted state. Extents must be sorted, non-overlapping and in
// bounds.
func (m *Manager) SetFreeExtents(extents []container.Extent) error {
	tree := btree.New(32)
	var freeBlocks uint64
	var prevEnd uint64
	for i, ext := range extents {
		if ext.BlockCount == 0 {
			return ErrZeroBlocks
		}
		if ext.EndBlock() > m.totalBlocks {
			return fmt.Errorf("%w: %v", ErrOutOfBounds, ext)
		}
		if i > 0 && ext.StartBlock < prevEnd {
			return fmt.Errorf("%w: %v", ErrDoubleFree, ext)
		}
		prevEnd = ext.EndBlock()
		tree.ReplaceOrInsert(freeExtent{ext})
		freeBlocks += uint64(ext.BlockCount)
	}
	m.free = tree
	m.freeBlocks = freeBlocks
	return nil
}

// Allocate carves blockCount blocks out of the first free run large
// enough to hold them.
func (m *Manager) Allocate(blockCount uint32) (container.Extent, error) {
	if blockCount == 0 {
		return container.Extent{}, ErrZeroBlocks
	}

	var found freeExtent
	ok := false
	m.free.Ascend(func(item btree.Item) bool {
		ext := item.(freeExtent)
		if ext.BlockCount >= blockCount {
			found = ext
			ok = true
			return false
		}
		return true
	})
	if !ok {
		return container.Extent{}, fmt.Errorf("%w: requested %v blocks, largest free run is %v", ErrNoSpace, blockCount, m.LargestFreeExtent())
	}

	allocated := container.Extent{StartBlock: found.StartBlock, BlockCount: blockCount}
	m.free.Delete(found)
	if remainder := found.BlockCount - blockCount; remainder > 0 {
		m.free.ReplaceOrInsert(freeExtent{container.Extent{
			StartBlock: found.StartBlock + uint64(blockCount),
			BlockCount: remainder,
		}})
	}
	m.freeBlocks -= uint64(blockCount)
	return allocated, nil
}

// AllocateMultiple allocates blockCount blocks as one or more extents,
// greedily taking free runs from the lowest start block. On failure
// nothing is allocated.
func (m *Manager) AllocateMultiple(blockCount uint64) ([]container.Extent, error) {
	if blockCount == 0 {
		return nil, ErrZeroBlocks
	}
	if blockCount > m.freeBlocks {
		return nil, fmt.Errorf("%w: requested %v blocks, %v free", ErrNoSpace, blockCount, m.freeBlocks)
	}

	var allocated []container.Extent
	remaining := blockCount
	for remaining > 0 {
		want := remaining
		if want > 0xFFFFFFFF {
			want = 0xFFFFFFFF
		}
		// Take the lowest free run, whole if possible.
		item := m.free.Min()
		if item == nil {
			// Cannot happen with a consistent freeBlocks counter,
			// but roll back rather than corrupt state.
			m.FreeAll(allocated)
			return nil, fmt.Errorf("%w: free list exhausted", ErrNoSpace)
		}
		ext := item.(freeExtent)
		take := ext.BlockCount
		if uint64(take) > want {
			take = uint32(want)
		}
		m.free.Delete(ext)
		if remainder := ext.BlockCount - take; remainder > 0 {
			m.free.ReplaceOrInsert(freeExtent{container.Extent{
				StartBlock: ext.StartBlock + uint64(take),
				BlockCount: remainder,
			}})
		}
		m.freeBlocks -= uint64(take)
		allocated = append(allocated, container.Extent{StartBlock: ext.StartBlock, BlockCount: take})
		remaining -= uint64(take)
	}
	return allocated, nil
}

// Free returns an extent to the free list, merging with adjacent free
// runs on both sides.
func (m *Manager) Free(ext container.Extent) error {
	if ext.BlockCount == 0 {
		return ErrZeroBlocks
	}
	if ext.EndBlock() > m.totalBlocks {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, ext)
	}

	// Check overlap against the neighbor on each side.
	var before, after freeExtent
	hasBefore, hasAfter := false, false
	m.free.DescendLessOrEqual(freeExtent{ext}, func(item btree.Item) bool {
		before = item.(freeExtent)
		hasBefore = true
		return false
	})
	m.free.AscendGreaterOrEqual(freeExtent{ext}, func(item btree.Item) bool {
		after = item.(freeExtent)
		hasAfter = true
		return false
	})
	if hasBefore && before.EndBlock() > ext.StartBlock {
		return fmt.Errorf("%w: %v", ErrDoubleFree, ext)
	}
	if hasAfter && after.StartBlock < ext.EndBlock() {
		return fmt.Errorf("%w: %v", ErrDoubleFree, ext)
	}

	merged := ext
	if hasBefore && before.EndBlock() == merged.StartBlock &&
		uint64(before.BlockCount)+uint64(merged.BlockCount) <= 0xFFFFFFFF {
		m.free.Delete(before)
		merged = container.Extent{
			StartBlock: before.StartBlock,
			BlockCount: before.BlockCount + merged.BlockCount,
		}
	}
	if hasAfter && merged.EndBlock() == after.StartBlock &&
		uint64(merged.BlockCount)+uint64(after.BlockCount) <= 0xFFFFFFFF {
		m.free.Delete(after)
		merged = container.Extent{
			StartBlock: merged.StartBlock,
			BlockCount: merged.BlockCount + after.BlockCount,
		}
	}
	m.free.ReplaceOrInsert(freeExtent{merged})
	m.freeBlocks += uint64(ext.BlockCount)
	return nil
}

// FreeAll frees every extent in the list, stopping at the first error.
func (m *Manager) FreeAll(extents []container.Extent) error {
	for _, ext := range extents {
		if err := m.Free(ext); err != nil {
			return err
		}
	}
	return nil
}

// AreFree reports whether every block of the extent is currently free.
// Free runs are kept coalesced, so blocks spanning two runs are never
// all free.
func (m *Manager) AreFree(ext container.Extent) bool {
	if ext.BlockCount == 0 || ext.EndBlock() > m.totalBlocks {
		return false
	}
	free := false
	m.free.DescendLessOrEqual(freeExtent{ext}, func(item btree.Item) bool {
		run := item.(freeExtent)
		free = run.StartBlock <= ext.StartBlock && ext.EndBlock() <= run.EndBlock()
		return false
	})
	return free
}

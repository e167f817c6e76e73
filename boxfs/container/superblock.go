package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Magic spells "BOXF" in ASCII.
	Magic   uint32 = 0x424F5846
	Version uint32 = 1

	MinBlockSize     uint32 = 512
	DefaultBlockSize uint32 = 4096

	// superblockFixedSize is the size of the fixed superblock header:
	// magic, version, blockSize, metadataExtentCount (4 bytes each)
	// and totalBlocks (8 bytes).
	superblockFixedSize = 24

	// extentEncodedSize is the on-disk size of a single extent:
	// startBlock (8 bytes) plus blockCount (4 bytes).
	extentEncodedSize = 12
)

var (
	ErrInvalidBlockSize   = errors.New("block size must be a power of two of at least 512 bytes")
	ErrInvalidTotalBlocks = errors.New("total blocks must be greater than zero")
	ErrTooManyExtents     = errors.New("metadata extent list does not fit in superblock")
	ErrInvalidFormat      = errors.New("invalid container format")
)

// Superblock is the first block of a container. It pins the geometry of
// the container and points at the extents holding the metadata region.
type Superblock struct {
	blockSize       uint32
	totalBlocks     uint64
	metadataExtents []Extent
}

func NewSuperblock(blockSize uint32, totalBlocks uint64) (*Superblock, error) {
	if blockSize < MinBlockSize || blockSize&(blockSize-1) != 0 {
		return nil, ErrInvalidBlockSize
	}
	if totalBlocks == 0 {
		return nil, ErrInvalidTotalBlocks
	}
	return &Superblock{
		blockSize:   blockSize,
		totalBlocks: totalBlocks,
	}, nil
}

func (sb *Superblock) BlockSize() uint32 {
	return sb.blockSize
}

func (sb *Superblock) TotalBlocks() uint64 {
	return sb.totalBlocks
}

// MaxMetadataExtents is how many metadata extents fit in one block
// after the fixed header.
func (sb *Superblock) MaxMetadataExtents() int {
	return int((sb.blockSize - superblockFixedSize) / extentEncodedSize)
}

func (sb *Superblock) MetadataExtents() []Extent {
	out := make([]Extent, len(sb.metadataExtents))
	copy(out, sb.metadataExtents)
	return out
}

func (sb *Superblock) SetMetadataExtents(extents []Extent) error {
	if len(extents) > sb.MaxMetadataExtents() {
		return fmt.Errorf("%w: %v extents, at most %v fit", ErrTooManyExtents, len(extents), sb.MaxMetadataExtents())
	}
	sb.metadataExtents = make([]Extent, len(extents))
	copy(sb.metadataExtents, extents)
	return nil
}

// BlockOffset returns the byte offset of a data block. Block 0 starts
// right after the superblock.
func (sb *Superblock) BlockOffset(block uint64) int64 {
	return int64(sb.blockSize) * int64(1+block)
}

// SizeInBytes is the full container size: superblock plus all blocks.
func (sb *Superblock) SizeInBytes() int64 {
	return int64(sb.blockSize) * int64(1+sb.totalBlocks)
}

// Serialize encodes the superblock into a buffer of exactly one block.
func (sb *Superblock) Serialize() ([]byte, error) {
	if len(sb.metadataExtents) > sb.MaxMetadataExtents() {
		return nil, ErrTooManyExtents
	}

	buf := bytes.NewBuffer(make([]byte, 0, sb.blockSize))
	binary.Write(buf, binary.BigEndian, Magic)
	binary.Write(buf, binary.BigEndian, Version)
	binary.Write(buf, binary.BigEndian, sb.blockSize)
	binary.Write(buf, binary.BigEndian, sb.totalBlocks)
	binary.Write(buf, binary.BigEndian, uint32(len(sb.metadataExtents)))
	for _, ext := range sb.metadataExtents {
		binary.Write(buf, binary.BigEndian, ext.StartBlock)
		binary.Write(buf, binary.BigEndian, ext.BlockCount)
	}

	block := make([]byte, sb.blockSize)
	copy(block, buf.Bytes())
	return block, nil
}

// DeserializeSuperblock decodes a superblock from raw bytes. The slice
// must hold at least the fixed header; with a full block every encoded
// extent is recovered as well.
func DeserializeSuperblock(data []byte) (*Superblock, error) {
	if len(data) < superblockFixedSize {
		return nil, fmt.Errorf("%w: superblock too short", ErrInvalidFormat)
	}

	magic := binary.BigEndian.Uint32(data[0:4])
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrInvalidFormat, magic)
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != Version {
		return nil, fmt.Errorf("%w: unsupported version %v", ErrInvalidFormat, version)
	}
	blockSize := binary.BigEndian.Uint32(data[8:12])
	if blockSize < MinBlockSize || blockSize&(blockSize-1) != 0 {
		return nil, fmt.Errorf("%w: bad block size %v", ErrInvalidFormat, blockSize)
	}
	totalBlocks := binary.BigEndian.Uint64(data[12:20])
	if totalBlocks == 0 {
		return nil, fmt.Errorf("%w: zero total blocks", ErrInvalidFormat)
	}

	sb := &Superblock{blockSize: blockSize, totalBlocks: totalBlocks}

	extentCount := binary.BigEndian.Uint32(data[20:24])
	if int(extentCount) > sb.MaxMetadataExtents() {
		return nil, fmt.Errorf("%w: metadata extent count %v exceeds capacity", ErrInvalidFormat, extentCount)
	}
	need := superblockFixedSize + int(extentCount)*extentEncodedSize
	if len(data) < need {
		return nil, fmt.Errorf("%w: truncated metadata extent list", ErrInvalidFormat)
	}

	sb.metadataExtents = make([]Extent, 0, extentCount)
	off := superblockFixedSize
	for i := uint32(0); i < extentCount; i++ {
		start := binary.BigEndian.Uint64(data[off : off+8])
		count := binary.BigEndian.Uint32(data[off+8 : off+12])
		if count == 0 {
			return nil, fmt.Errorf("%w: zero-length metadata extent", ErrInvalidFormat)
		}
		sb.metadataExtents = append(sb.metadataExtents, Extent{StartBlock: start, BlockCount: count})
		off += extentEncodedSize
	}
	return sb, nil
}

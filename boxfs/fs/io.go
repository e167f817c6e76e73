package fs

import (
	"fmt"

	"github.com/parasource/boxfs/boxfs/container"
	"github.com/parasource/boxfs/boxfs/meta"
)

// forEachRange walks the byte range [offset, offset+length) across the
// extents of a file, calling fn with each extent together with the
// byte offset inside it and the chunk length. Extents map file bytes
// in order.
func forEachRange(blockSize uint32, extents []container.Extent, offset, length uint64, fn func(ext container.Extent, extOff, n uint64) error) error {
	var pos uint64
	for _, ext := range extents {
		if length == 0 {
			return nil
		}
		size := ext.SizeInBytes(blockSize)
		if offset < pos+size {
			extOff := uint64(0)
			if offset > pos {
				extOff = offset - pos
			}
			n := size - extOff
			if n > length {
				n = length
			}
			if err := fn(ext, extOff, n); err != nil {
				return err
			}
			offset += n
			length -= n
		}
		pos += size
	}
	if length > 0 {
		return fmt.Errorf("%w: range beyond allocated extents", ErrIO)
	}
	return nil
}

// readFileData reads up to len(buf) bytes of a file starting at
// offset. Reads are clamped to the file size. A read at or past the
// end returns 0 bytes and done=true.
func (boxfs *FileSystem) readFileData(ino *meta.Inode, offset uint64, buf []byte) (int, bool, error) {
	if offset >= ino.Size {
		return 0, true, nil
	}
	if avail := ino.Size - offset; uint64(len(buf)) > avail {
		buf = buf[:avail]
	}
	if len(buf) == 0 {
		return 0, false, nil
	}

	blockSize := boxfs.cont.Superblock().BlockSize()
	read := 0
	err := forEachRange(blockSize, ino.Extents, offset, uint64(len(buf)), func(ext container.Extent, extOff, n uint64) error {
		m, err := boxfs.cont.ReadFromExtent(ext, extOff, buf[read:uint64(read)+n])
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("%w: read past extent end", ErrIO)
		}
		read += m
		return nil
	})
	if err != nil {
		return read, false, translateContainerErr(err)
	}
	return read, false, nil
}

// ensureCapacity grows the extent list of a file until it holds at
// least sizeInBytes bytes.
func (boxfs *FileSystem) ensureCapacity(ino *meta.Inode, sizeInBytes uint64) error {
	blockSize := uint64(boxfs.cont.Superblock().BlockSize())
	needBlocks := (sizeInBytes + blockSize - 1) / blockSize
	have := ino.AllocatedBlocks()
	if needBlocks <= have {
		return nil
	}
	extents, err := boxfs.space.AllocateMultiple(needBlocks - have)
	if err != nil {
		return translateContainerErr(err)
	}
	ino.Extents = append(ino.Extents, extents...)
	return nil
}

// writeFileData writes data into a file at offset, growing it as
// needed. Writing past the current end leaves a zeroed gap.
func (boxfs *FileSystem) writeFileData(ino *meta.Inode, offset uint64, data []byte) (int, error) {
	end := offset + uint64(len(data))
	oldSize := ino.Size
	if err := boxfs.ensureCapacity(ino, end); err != nil {
		return 0, err
	}
	if offset > oldSize {
		// Zero the gap between the old end and the write offset so
		// stale block contents never leak into reads.
		if err := boxfs.zeroRange(ino, oldSize, offset-oldSize); err != nil {
			return 0, err
		}
	}

	blockSize := boxfs.cont.Superblock().BlockSize()
	written := 0
	err := forEachRange(blockSize, ino.Extents, offset, uint64(len(data)), func(ext container.Extent, extOff, n uint64) error {
		m, err := boxfs.cont.WriteToExtent(ext, extOff, data[written:uint64(written)+n])
		if err != nil {
			return err
		}
		written += m
		return nil
	})
	if err != nil {
		return written, translateContainerErr(err)
	}
	if end > ino.Size {
		ino.Size = end
	}
	ino.TouchModified()
	boxfs.dirty = true
	return written, nil
}

func (boxfs *FileSystem) zeroRange(ino *meta.Inode, offset, length uint64) error {
	if length == 0 {
		return nil
	}
	blockSize := boxfs.cont.Superblock().BlockSize()
	zeros := make([]byte, blockSize)
	return forEachRange(blockSize, ino.Extents, offset, length, func(ext container.Extent, extOff, n uint64) error {
		for n > 0 {
			chunk := n
			if chunk > uint64(len(zeros)) {
				chunk = uint64(len(zeros))
			}
			if _, err := boxfs.cont.WriteToExtent(ext, extOff, zeros[:chunk]); err != nil {
				return err
			}
			extOff += chunk
			n -= chunk
		}
		return nil
	})
}

// truncateFile resizes a file. Shrinking frees whole blocks past the
// new end, growing extends the file with zeros.
func (boxfs *FileSystem) truncateFile(ino *meta.Inode, newSize uint64) error {
	oldSize := ino.Size
	if newSize == oldSize {
		return nil
	}

	if newSize > oldSize {
		if err := boxfs.ensureCapacity(ino, newSize); err != nil {
			return err
		}
		if err := boxfs.zeroRange(ino, oldSize, newSize-oldSize); err != nil {
			return translateContainerErr(err)
		}
	} else {
		blockSize := uint64(boxfs.cont.Superblock().BlockSize())
		keepBlocks := (newSize + blockSize - 1) / blockSize
		freed, kept := splitExtents(ino.Extents, keepBlocks)
		if err := boxfs.space.FreeAll(freed); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		ino.Extents = kept
	}

	ino.Size = newSize
	ino.TouchModified()
	boxfs.dirty = true
	return nil
}

// splitExtents keeps the first keepBlocks blocks of the extent list
// and returns the rest for freeing. An extent straddling the boundary
// is split in two.
func splitExtents(extents []container.Extent, keepBlocks uint64) (freed, kept []container.Extent) {
	kept = make([]container.Extent, 0, len(extents))
	var have uint64
	for _, ext := range extents {
		if have >= keepBlocks {
			freed = append(freed, ext)
			continue
		}
		remain := keepBlocks - have
		if uint64(ext.BlockCount) <= remain {
			kept = append(kept, ext)
			have += uint64(ext.BlockCount)
			continue
		}
		kept = append(kept, container.Extent{StartBlock: ext.StartBlock, BlockCount: uint32(remain)})
		freed = append(freed, container.Extent{
			StartBlock: ext.StartBlock + remain,
			BlockCount: ext.BlockCount - uint32(remain),
		})
		have = keepBlocks
	}
	return freed, kept
}

// freeFileData releases every block of a file.
func (boxfs *FileSystem) freeFileData(ino *meta.Inode) error {
	if err := boxfs.space.FreeAll(ino.Extents); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	ino.Extents = nil
	ino.Size = 0
	return nil
}

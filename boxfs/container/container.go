package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/parasource/boxfs/boxfs/util/fileutil"
)

var (
	ErrClosed        = errors.New("container is closed")
	ErrAlreadyExists = errors.New("container file already exists")
	ErrBlockRange    = errors.New("block index out of container range")
	ErrOffsetOutside = errors.New("offset outside of extent")
)

// Container owns the backing file of a filesystem and does all
// positioned I/O against it. It is not safe for concurrent use on its
// own, callers serialize access.
type Container struct {
	file   *os.File
	sb     *Superblock
	path   string
	closed bool
}

// Create makes a new container file at path. The file must not exist.
// The full container size is preallocated up front so that later block
// writes do not run into surprise ENOSPC.
func Create(path string, blockSize uint32, totalBlocks uint64) (*Container, error) {
	sb, err := NewSuperblock(blockSize, totalBlocks)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		}
		return nil, err
	}

	c := &Container{file: file, sb: sb, path: path}
	if err := fileutil.Preallocate(file, sb.SizeInBytes(), true); err != nil {
		log.Error().Err(err).Str("path", path).Msg("error preallocating container file")
		file.Close()
		os.Remove(path)
		return nil, err
	}
	if err := c.WriteSuperblock(); err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	return c, nil
}

// Open opens an existing container file and decodes its superblock.
func Open(path string, readOnly bool) (*Container, error) {
	flags := os.O_RDWR
	if readOnly {
		flags = os.O_RDONLY
	}
	file, err := os.OpenFile(path, flags, 0666)
	if err != nil {
		return nil, err
	}

	// Sniff the geometry from the fixed header first, then read the
	// whole superblock block with the metadata extent list.
	header := make([]byte, superblockFixedSize)
	if _, err := file.ReadAt(header, 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if magic := binary.BigEndian.Uint32(header[0:4]); magic != Magic {
		file.Close()
		return nil, fmt.Errorf("%w: bad magic %#x", ErrInvalidFormat, magic)
	}
	blockSize := binary.BigEndian.Uint32(header[8:12])
	if blockSize < MinBlockSize || blockSize&(blockSize-1) != 0 {
		file.Close()
		return nil, fmt.Errorf("%w: bad block size %v", ErrInvalidFormat, blockSize)
	}

	raw := make([]byte, blockSize)
	if _, err := file.ReadAt(raw, 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	sb, err := DeserializeSuperblock(raw)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Container{file: file, sb: sb, path: path}, nil
}

func (c *Container) Superblock() *Superblock {
	return c.sb
}

func (c *Container) Path() string {
	return c.path
}

func (c *Container) checkRange(start uint64, count uint32) error {
	if c.closed {
		return ErrClosed
	}
	end := start + uint64(count)
	if end < start || end > c.sb.TotalBlocks() {
		return fmt.Errorf("%w: blocks [%v, %v), container has %v", ErrBlockRange, start, end, c.sb.TotalBlocks())
	}
	return nil
}

// WriteBlocks writes data at the given block. If data does not fill the
// last block it is zero padded.
func (c *Container) WriteBlocks(startBlock uint64, data []byte) error {
	blockSize := uint64(c.sb.BlockSize())
	count := uint32((uint64(len(data)) + blockSize - 1) / blockSize)
	if err := c.checkRange(startBlock, count); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	padded := uint64(count) * blockSize
	if uint64(len(data)) < padded {
		buf := make([]byte, padded)
		copy(buf, data)
		data = buf
	}
	_, err := c.file.WriteAt(data, c.sb.BlockOffset(startBlock))
	if err != nil {
		log.Error().Err(err).Str("path", c.path).Uint64("block", startBlock).Msg("error writing blocks")
	}
	return err
}

// ReadBlocks reads count blocks starting at startBlock.
func (c *Container) ReadBlocks(startBlock uint64, count uint32) ([]byte, error) {
	if err := c.checkRange(startBlock, count); err != nil {
		return nil, err
	}
	buf := make([]byte, uint64(count)*uint64(c.sb.BlockSize()))
	if len(buf) == 0 {
		return buf, nil
	}
	_, err := c.file.ReadAt(buf, c.sb.BlockOffset(startBlock))
	if err != nil && err != io.EOF {
		log.Error().Err(err).Str("path", c.path).Uint64("block", startBlock).Msg("error reading blocks")
		return nil, err
	}
	return buf, nil
}

// WriteToExtent writes data into an extent starting at a byte offset
// within it. The write is clamped to the extent end and the number of
// bytes actually written is returned.
func (c *Container) WriteToExtent(ext Extent, offset uint64, data []byte) (int, error) {
	if err := c.checkRange(ext.StartBlock, ext.BlockCount); err != nil {
		return 0, err
	}
	size := ext.SizeInBytes(c.sb.BlockSize())
	if offset >= size {
		return 0, fmt.Errorf("%w: offset %v, extent holds %v bytes", ErrOffsetOutside, offset, size)
	}
	if avail := size - offset; uint64(len(data)) > avail {
		data = data[:avail]
	}
	if len(data) == 0 {
		return 0, nil
	}
	n, err := c.file.WriteAt(data, c.sb.BlockOffset(ext.StartBlock)+int64(offset))
	if err != nil {
		log.Error().Err(err).Str("path", c.path).Msg("error writing to extent")
	}
	return n, err
}

// ReadFromExtent reads into buf from an extent starting at a byte
// offset within it. A read starting at or past the extent end returns
// -1 bytes read and no error.
func (c *Container) ReadFromExtent(ext Extent, offset uint64, buf []byte) (int, error) {
	if err := c.checkRange(ext.StartBlock, ext.BlockCount); err != nil {
		return 0, err
	}
	size := ext.SizeInBytes(c.sb.BlockSize())
	if offset >= size {
		return -1, nil
	}
	if avail := size - offset; uint64(len(buf)) > avail {
		buf = buf[:avail]
	}
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := c.file.ReadAt(buf, c.sb.BlockOffset(ext.StartBlock)+int64(offset))
	if err != nil && err != io.EOF {
		log.Error().Err(err).Str("path", c.path).Msg("error reading from extent")
		return n, err
	}
	return n, nil
}

// WriteSuperblock rewrites block -1, the superblock itself.
func (c *Container) WriteSuperblock() error {
	if c.closed {
		return ErrClosed
	}
	data, err := c.sb.Serialize()
	if err != nil {
		return err
	}
	if _, err := c.file.WriteAt(data, 0); err != nil {
		log.Error().Err(err).Str("path", c.path).Msg("error writing superblock")
		return err
	}
	return nil
}

// Sync flushes the backing file to stable storage.
func (c *Container) Sync() error {
	if c.closed {
		return ErrClosed
	}
	return c.file.Sync()
}

// Close closes the backing file. Calling Close more than once is a
// no-op.
func (c *Container) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.file.Close()
}

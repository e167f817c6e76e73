package fs

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/parasource/boxfs/boxfs/container"
	"github.com/parasource/boxfs/boxfs/meta"
	"github.com/parasource/boxfs/boxfs/space"
)

func translateContainerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, container.ErrInvalidFormat):
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	case errors.Is(err, container.ErrAlreadyExists):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case errors.Is(err, container.ErrClosed):
		return ErrClosed
	case errors.Is(err, space.ErrNoSpace):
		return fmt.Errorf("%w: %v", ErrNoSpace, err)
	default:
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
}

// persistMetadata writes the serialized metadata region into the
// container and points the superblock at it. Callers hold the write
// lock.
//
// The old metadata extents are freed first so their blocks can be
// reused by the new image. Allocating the new extents mutates the free
// list, which is itself part of the image, so serialization repeats
// until the encoded image fits the blocks reserved for it.
func (boxfs *FileSystem) persistMetadata() error {
	sb := boxfs.cont.Superblock()
	blockSize := uint64(sb.BlockSize())

	old := sb.MetadataExtents()
	if err := boxfs.space.FreeAll(old); err != nil {
		return fmt.Errorf("%w: freeing metadata extents: %v", ErrIO, err)
	}

	image, err := meta.Serialize(boxfs.inodes, boxfs.dirs, boxfs.space.FreeExtents())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	needBlocks := (uint64(len(image)) + blockSize - 1) / blockSize

	for {
		extents, err := boxfs.space.AllocateMultiple(needBlocks)
		if err != nil {
			return translateContainerErr(err)
		}
		if len(extents) > sb.MaxMetadataExtents() {
			boxfs.space.FreeAll(extents)
			return fmt.Errorf("%w: metadata too fragmented, needs %v extents", ErrNoSpace, len(extents))
		}

		image, err = meta.Serialize(boxfs.inodes, boxfs.dirs, boxfs.space.FreeExtents())
		if err != nil {
			boxfs.space.FreeAll(extents)
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		var capacity uint64
		for _, ext := range extents {
			capacity += ext.SizeInBytes(sb.BlockSize())
		}
		if uint64(len(image)) > capacity {
			// The image grew past its reservation because the free
			// list changed shape. Give the blocks back and retry
			// with the larger size.
			if err := boxfs.space.FreeAll(extents); err != nil {
				return fmt.Errorf("%w: %v", ErrIO, err)
			}
			needBlocks = (uint64(len(image)) + blockSize - 1) / blockSize
			continue
		}

		if err := writeAcrossExtents(boxfs.cont, extents, image); err != nil {
			boxfs.space.FreeAll(extents)
			return translateContainerErr(err)
		}
		if err := sb.SetMetadataExtents(extents); err != nil {
			boxfs.space.FreeAll(extents)
			return fmt.Errorf("%w: %v", ErrNoSpace, err)
		}
		if err := boxfs.cont.WriteSuperblock(); err != nil {
			return translateContainerErr(err)
		}
		boxfs.dirty = false
		log.Debug().Str("path", boxfs.cont.Path()).Int("bytes", len(image)).
			Int("extents", len(extents)).Msg("persisted filesystem metadata")
		return nil
	}
}

func writeAcrossExtents(cont *container.Container, extents []container.Extent, data []byte) error {
	blockSize := cont.Superblock().BlockSize()
	for _, ext := range extents {
		if len(data) == 0 {
			break
		}
		chunk := data
		if max := ext.SizeInBytes(blockSize); uint64(len(chunk)) > max {
			chunk = chunk[:max]
		}
		if _, err := cont.WriteToExtent(ext, 0, chunk); err != nil {
			return err
		}
		data = data[len(chunk):]
	}
	return nil
}

func readAcrossExtents(cont *container.Container, extents []container.Extent) ([]byte, error) {
	blockSize := cont.Superblock().BlockSize()
	var total uint64
	for _, ext := range extents {
		total += ext.SizeInBytes(blockSize)
	}
	out := make([]byte, 0, total)
	for _, ext := range extents {
		data, err := cont.ReadBlocks(ext.StartBlock, ext.BlockCount)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

// loadMetadata rebuilds the in-memory tables from the metadata region
// the superblock points at. The persisted free list was captured after
// the metadata extents were reserved, so it already excludes them.
func (boxfs *FileSystem) loadMetadata() error {
	sb := boxfs.cont.Superblock()
	extents := sb.MetadataExtents()
	if len(extents) == 0 {
		return fmt.Errorf("%w: superblock has no metadata extents", ErrInvalidFormat)
	}

	image, err := readAcrossExtents(boxfs.cont, extents)
	if err != nil {
		return translateContainerErr(err)
	}
	freeExtents, err := meta.Deserialize(image, boxfs.inodes, boxfs.dirs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if _, err := boxfs.inodes.Get(meta.RootInodeID); err != nil {
		return fmt.Errorf("%w: metadata image has no root inode", ErrInvalidFormat)
	}
	if err := boxfs.space.SetFreeExtents(freeExtents); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return nil
}

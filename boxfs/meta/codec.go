package meta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/parasource/boxfs/boxfs/container"
)

var ErrInvalidFormat = errors.New("invalid metadata format")

// Serialize encodes the whole metadata region: inodes, directory
// entries and the free extent list, in that order. All integers are
// big endian.
func Serialize(inodes *InodeTable, dirs *DirectoryTable, freeExtents []container.Extent) ([]byte, error) {
	buf := new(bytes.Buffer)

	all := inodes.All()
	binary.Write(buf, binary.BigEndian, uint32(len(all)))
	for _, ino := range all {
		binary.Write(buf, binary.BigEndian, ino.ID)
		binary.Write(buf, binary.BigEndian, uint8(ino.Type))
		binary.Write(buf, binary.BigEndian, ino.Size)
		binary.Write(buf, binary.BigEndian, ino.CreatedAt)
		binary.Write(buf, binary.BigEndian, ino.ModifiedAt)
		binary.Write(buf, binary.BigEndian, ino.AccessedAt)
		binary.Write(buf, binary.BigEndian, uint32(len(ino.Extents)))
		for _, ext := range ino.Extents {
			binary.Write(buf, binary.BigEndian, ext.StartBlock)
			binary.Write(buf, binary.BigEndian, ext.BlockCount)
		}
	}

	entries, err := dirs.All()
	if err != nil {
		return nil, err
	}
	binary.Write(buf, binary.BigEndian, uint32(len(entries)))
	for _, entry := range entries {
		name := []byte(entry.Name)
		if len(name) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: entry name of %v bytes", ErrInvalidFormat, len(name))
		}
		binary.Write(buf, binary.BigEndian, entry.ParentID)
		binary.Write(buf, binary.BigEndian, entry.ChildID)
		binary.Write(buf, binary.BigEndian, uint16(len(name)))
		buf.Write(name)
	}

	binary.Write(buf, binary.BigEndian, uint32(len(freeExtents)))
	for _, ext := range freeExtents {
		binary.Write(buf, binary.BigEndian, ext.StartBlock)
		binary.Write(buf, binary.BigEndian, ext.BlockCount)
	}

	return buf.Bytes(), nil
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) need(n int) ([]byte, error) {
	if r.off+n > len(r.data) {
		return nil, fmt.Errorf("%w: truncated at offset %v", ErrInvalidFormat, r.off)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.need(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.need(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.need(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.need(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) extents(count uint32) ([]container.Extent, error) {
	if count == 0 {
		return nil, nil
	}
	out := make([]container.Extent, 0, count)
	for i := uint32(0); i < count; i++ {
		start, err := r.u64()
		if err != nil {
			return nil, err
		}
		blocks, err := r.u32()
		if err != nil {
			return nil, err
		}
		if blocks == 0 {
			return nil, fmt.Errorf("%w: zero-length extent", ErrInvalidFormat)
		}
		out = append(out, container.Extent{StartBlock: start, BlockCount: blocks})
	}
	return out, nil
}

// Deserialize decodes a metadata image produced by Serialize. The
// inode and directory tables are cleared first, so a failed decode
// leaves them in need of a reload.
func Deserialize(data []byte, inodes *InodeTable, dirs *DirectoryTable) ([]container.Extent, error) {
	r := &reader{data: data}

	inodes.Clear()
	if err := dirs.Clear(); err != nil {
		return nil, err
	}

	inodeCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < inodeCount; i++ {
		ino := &Inode{}
		if ino.ID, err = r.u64(); err != nil {
			return nil, err
		}
		typ, err := r.u8()
		if err != nil {
			return nil, err
		}
		if typ > uint8(TypeDirectory) {
			return nil, fmt.Errorf("%w: unknown inode type %v", ErrInvalidFormat, typ)
		}
		ino.Type = InodeType(typ)
		if ino.Size, err = r.u64(); err != nil {
			return nil, err
		}
		if ino.CreatedAt, err = r.i64(); err != nil {
			return nil, err
		}
		if ino.ModifiedAt, err = r.i64(); err != nil {
			return nil, err
		}
		if ino.AccessedAt, err = r.i64(); err != nil {
			return nil, err
		}
		extentCount, err := r.u32()
		if err != nil {
			return nil, err
		}
		if ino.Extents, err = r.extents(extentCount); err != nil {
			return nil, err
		}
		if err := inodes.Register(ino); err != nil {
			return nil, fmt.Errorf("%w: duplicate inode %v", ErrInvalidFormat, ino.ID)
		}
	}

	entryCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < entryCount; i++ {
		parentID, err := r.u64()
		if err != nil {
			return nil, err
		}
		childID, err := r.u64()
		if err != nil {
			return nil, err
		}
		nameLen, err := r.u16()
		if err != nil {
			return nil, err
		}
		name, err := r.need(int(nameLen))
		if err != nil {
			return nil, err
		}
		if err := dirs.Insert(parentID, string(name), childID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	}

	freeCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	freeExtents, err := r.extents(freeCount)
	if err != nil {
		return nil, err
	}

	// Trailing bytes are block padding from the metadata extents and
	// are ignored.
	return freeExtents, nil
}

package fs

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parasource/boxfs/boxfs/meta"
)

// File is a positioned handle on a single file, in the spirit of
// os.File. A File holds the inode id rather than the inode itself and
// re-resolves under the filesystem lock on every call, so handles stay
// valid across concurrent metadata changes until the file is removed.
type File struct {
	boxfs  *FileSystem
	path   string
	id     uint64
	flags  int
	pos    int64
	closed bool
}

// OpenFile opens path with os.OpenFile-style flags: os.O_RDONLY,
// os.O_WRONLY, os.O_RDWR combined with os.O_CREATE, os.O_EXCL,
// os.O_TRUNC and os.O_APPEND.
func (boxfs *FileSystem) OpenFile(path string, flags int) (*File, error) {
	writing := flags&(os.O_WRONLY|os.O_RDWR) != 0
	mutating := writing || flags&(os.O_CREATE|os.O_TRUNC) != 0

	boxfs.mu.Lock()
	defer boxfs.mu.Unlock()

	if mutating {
		if err := boxfs.checkWritable(); err != nil {
			return nil, err
		}
	} else if err := boxfs.checkOpen(); err != nil {
		return nil, err
	}

	var ino *meta.Inode
	id, err := boxfs.resolvePath(path)
	switch {
	case err == nil:
		if flags&os.O_CREATE != 0 && flags&os.O_EXCL != 0 {
			return nil, wrapPath(ErrAlreadyExists, path)
		}
		ino, err = boxfs.inodes.Get(id)
		if err != nil {
			return nil, wrapPath(ErrNotFound, path)
		}
		if ino.IsDirectory() {
			return nil, wrapPath(ErrIsDirectory, path)
		}
	case errors.Is(err, ErrNotFound) && flags&os.O_CREATE != 0:
		ino, err = boxfs.createNode(path, meta.TypeFile)
		if err != nil {
			return nil, err
		}
	default:
		return nil, wrapPath(err, path)
	}

	if flags&os.O_TRUNC != 0 && ino.Size > 0 {
		if err := boxfs.truncateFile(ino, 0); err != nil {
			return nil, wrapPath(err, path)
		}
	}

	f := &File{boxfs: boxfs, path: path, id: ino.ID, flags: flags}
	return f, nil
}

// Create opens path for writing, creating it if needed and truncating
// it otherwise.
func (boxfs *FileSystem) Create(path string) (*File, error) {
	return boxfs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
}

// OpenRead opens path for reading.
func (boxfs *FileSystem) OpenRead(path string) (*File, error) {
	return boxfs.OpenFile(path, os.O_RDONLY)
}

func (f *File) Path() string {
	return f.path
}

func (f *File) readable() bool {
	return f.flags&os.O_WRONLY == 0
}

func (f *File) writable() bool {
	return f.flags&(os.O_WRONLY|os.O_RDWR) != 0
}

// inode re-resolves the inode under the lock held by the caller.
func (f *File) inode() (*meta.Inode, error) {
	if f.closed {
		return nil, os.ErrClosed
	}
	ino, err := f.boxfs.inodes.Get(f.id)
	if err != nil {
		return nil, wrapPath(ErrNotFound, f.path)
	}
	return ino, nil
}

// Read reads from the current position, advancing it. At end of file
// io.EOF is returned.
func (f *File) Read(p []byte) (int, error) {
	if !f.readable() {
		return 0, fmt.Errorf("%s: %w", f.path, ErrInvalid)
	}

	f.boxfs.mu.RLock()
	defer f.boxfs.mu.RUnlock()

	if err := f.boxfs.checkOpen(); err != nil {
		return 0, err
	}
	ino, err := f.inode()
	if err != nil {
		return 0, err
	}
	n, done, err := f.boxfs.readFileData(ino, uint64(f.pos), p)
	if err != nil {
		return n, wrapPath(err, f.path)
	}
	if done || (n == 0 && len(p) > 0) {
		return 0, io.EOF
	}
	f.pos += int64(n)
	return n, nil
}

// ReadAt reads at an absolute offset without moving the position.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if !f.readable() || off < 0 {
		return 0, fmt.Errorf("%s: %w", f.path, ErrInvalid)
	}

	f.boxfs.mu.RLock()
	defer f.boxfs.mu.RUnlock()

	if err := f.boxfs.checkOpen(); err != nil {
		return 0, err
	}
	ino, err := f.inode()
	if err != nil {
		return 0, err
	}
	n, done, err := f.boxfs.readFileData(ino, uint64(off), p)
	if err != nil {
		return n, wrapPath(err, f.path)
	}
	if done || n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Write writes at the current position, advancing it. With os.O_APPEND
// every write goes to the end of the file.
func (f *File) Write(p []byte) (int, error) {
	if !f.writable() {
		return 0, fmt.Errorf("%s: %w", f.path, ErrInvalid)
	}

	f.boxfs.mu.Lock()
	defer f.boxfs.mu.Unlock()

	if err := f.boxfs.checkWritable(); err != nil {
		return 0, err
	}
	ino, err := f.inode()
	if err != nil {
		return 0, err
	}
	if f.flags&os.O_APPEND != 0 {
		f.pos = int64(ino.Size)
	}
	n, err := f.boxfs.writeFileData(ino, uint64(f.pos), p)
	if err != nil {
		return n, wrapPath(err, f.path)
	}
	f.pos += int64(n)
	return n, nil
}

// Seek moves the position the io.Seeker way. Seeking past the end is
// allowed, a later write fills the gap with zeros.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.boxfs.mu.RLock()
	defer f.boxfs.mu.RUnlock()

	if err := f.boxfs.checkOpen(); err != nil {
		return 0, err
	}
	ino, err := f.inode()
	if err != nil {
		return 0, err
	}

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.pos + offset
	case io.SeekEnd:
		pos = int64(ino.Size) + offset
	default:
		return 0, fmt.Errorf("%s: %w", f.path, ErrInvalid)
	}
	if pos < 0 {
		return 0, fmt.Errorf("%s: %w", f.path, ErrInvalid)
	}
	f.pos = pos
	return pos, nil
}

// Truncate resizes the file, leaving the position untouched.
func (f *File) Truncate(size uint64) error {
	if !f.writable() {
		return fmt.Errorf("%s: %w", f.path, ErrInvalid)
	}

	f.boxfs.mu.Lock()
	defer f.boxfs.mu.Unlock()

	if err := f.boxfs.checkWritable(); err != nil {
		return err
	}
	ino, err := f.inode()
	if err != nil {
		return err
	}
	return wrapPath(f.boxfs.truncateFile(ino, size), f.path)
}

// Size returns the current file size.
func (f *File) Size() (uint64, error) {
	f.boxfs.mu.RLock()
	defer f.boxfs.mu.RUnlock()

	if err := f.boxfs.checkOpen(); err != nil {
		return 0, err
	}
	ino, err := f.inode()
	if err != nil {
		return 0, err
	}
	return ino.Size, nil
}

// Stat returns the attributes of the open file.
func (f *File) Stat() (FileInfo, error) {
	f.boxfs.mu.RLock()
	defer f.boxfs.mu.RUnlock()

	if err := f.boxfs.checkOpen(); err != nil {
		return FileInfo{}, err
	}
	ino, err := f.inode()
	if err != nil {
		return FileInfo{}, err
	}
	name := ""
	if parts := SplitPath(f.path); len(parts) > 0 {
		name = parts[len(parts)-1]
	}
	return newFileInfo(name, ino), nil
}

// Close releases the handle. Data durability still depends on the
// filesystem Sync. Closing twice is a no-op.
func (f *File) Close() error {
	f.closed = true
	return nil
}

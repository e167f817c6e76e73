package fs

import (
	"errors"
	"fmt"
	"sort"

	"github.com/parasource/boxfs/boxfs/meta"
)

// resolve walks path components from the root and returns the inode
// id the path names. Callers hold the lock.
func (boxfs *FileSystem) resolve(parts []string) (uint64, error) {
	id := meta.RootInodeID
	for _, name := range parts {
		ino, err := boxfs.inodes.Get(id)
		if err != nil {
			return 0, ErrNotFound
		}
		if !ino.IsDirectory() {
			return 0, ErrNotDirectory
		}
		child, err := boxfs.dirs.LookupChild(id, name)
		if err != nil {
			if errors.Is(err, meta.ErrEntryNotFound) {
				return 0, ErrNotFound
			}
			return 0, fmt.Errorf("%w: %v", ErrIO, err)
		}
		id = child
	}
	return id, nil
}

func (boxfs *FileSystem) resolvePath(path string) (uint64, error) {
	return boxfs.resolve(SplitPath(path))
}

func wrapPath(err error, path string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", path, err)
}

// createNode makes a new file or directory at path. The parent must
// already exist and be a directory.
func (boxfs *FileSystem) createNode(path string, typ meta.InodeType) (*meta.Inode, error) {
	parentParts, name, err := SplitParent(path)
	if err != nil {
		return nil, err
	}
	parentID, err := boxfs.resolve(parentParts)
	if err != nil {
		return nil, wrapPath(err, path)
	}
	parent, err := boxfs.inodes.Get(parentID)
	if err != nil {
		return nil, wrapPath(ErrNotFound, path)
	}
	if !parent.IsDirectory() {
		return nil, wrapPath(ErrNotDirectory, path)
	}
	if _, err := boxfs.dirs.LookupChild(parentID, name); err == nil {
		return nil, wrapPath(ErrAlreadyExists, path)
	}

	ino := boxfs.inodes.Create(typ)
	if err := boxfs.dirs.Insert(parentID, name, ino.ID); err != nil {
		boxfs.inodes.Remove(ino.ID)
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	parent.TouchModified()
	boxfs.dirty = true
	return ino, nil
}

// Mkdir creates a single directory. The parent must exist.
func (boxfs *FileSystem) Mkdir(path string) error {
	boxfs.mu.Lock()
	defer boxfs.mu.Unlock()

	if err := boxfs.checkWritable(); err != nil {
		return err
	}
	_, err := boxfs.createNode(path, meta.TypeDirectory)
	return err
}

// MkdirAll creates a directory and every missing parent. Existing
// directories along the way are fine, an existing file is not.
func (boxfs *FileSystem) MkdirAll(path string) error {
	boxfs.mu.Lock()
	defer boxfs.mu.Unlock()

	if err := boxfs.checkWritable(); err != nil {
		return err
	}

	parts := SplitPath(path)
	id := meta.RootInodeID
	created := false
	for i, name := range parts {
		child, err := boxfs.dirs.LookupChild(id, name)
		if err == nil {
			ino, err := boxfs.inodes.Get(child)
			if err != nil {
				return wrapPath(ErrNotFound, JoinPath(parts[:i+1]...))
			}
			if !ino.IsDirectory() {
				return wrapPath(ErrNotDirectory, JoinPath(parts[:i+1]...))
			}
			id = child
			continue
		}
		if !errors.Is(err, meta.ErrEntryNotFound) {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		ino := boxfs.inodes.Create(meta.TypeDirectory)
		if err := boxfs.dirs.Insert(id, name, ino.ID); err != nil {
			boxfs.inodes.Remove(ino.ID)
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		id = ino.ID
		created = true
	}
	if created {
		boxfs.dirty = true
	}
	return nil
}

// Remove deletes a file or an empty directory. The root cannot be
// removed.
func (boxfs *FileSystem) Remove(path string) error {
	boxfs.mu.Lock()
	defer boxfs.mu.Unlock()

	if err := boxfs.checkWritable(); err != nil {
		return err
	}
	return boxfs.remove(path, false)
}

// RemoveAll deletes a path and, for directories, everything below it.
// Removing a missing path is not an error.
func (boxfs *FileSystem) RemoveAll(path string) error {
	boxfs.mu.Lock()
	defer boxfs.mu.Unlock()

	if err := boxfs.checkWritable(); err != nil {
		return err
	}
	err := boxfs.remove(path, true)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (boxfs *FileSystem) remove(path string, recursive bool) error {
	id, err := boxfs.resolvePath(path)
	if err != nil {
		return wrapPath(err, path)
	}
	if id == meta.RootInodeID {
		return wrapPath(ErrInvalid, path)
	}
	return boxfs.removeInode(id, path, recursive)
}

func (boxfs *FileSystem) removeInode(id uint64, path string, recursive bool) error {
	ino, err := boxfs.inodes.Get(id)
	if err != nil {
		return wrapPath(ErrNotFound, path)
	}

	if ino.IsDirectory() {
		children, err := boxfs.dirs.ListChildren(id)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		if len(children) > 0 && !recursive {
			return wrapPath(ErrDirectoryNotEmpty, path)
		}
		for _, child := range children {
			if err := boxfs.removeInode(child.ChildID, path+Separator+child.Name, true); err != nil {
				return err
			}
		}
	} else {
		if err := boxfs.freeFileData(ino); err != nil {
			return err
		}
	}

	if err := boxfs.dirs.Remove(id); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	boxfs.inodes.Remove(id)
	boxfs.dirty = true
	return nil
}

// Move renames src to dst. Directories move as a whole without
// touching their data blocks. With replace set an existing dst is
// replaced the POSIX way: files replace files, empty directories
// replace empty directories.
func (boxfs *FileSystem) Move(src, dst string, replace bool) error {
	boxfs.mu.Lock()
	defer boxfs.mu.Unlock()

	if err := boxfs.checkWritable(); err != nil {
		return err
	}

	srcID, err := boxfs.resolvePath(src)
	if err != nil {
		return wrapPath(err, src)
	}
	if srcID == meta.RootInodeID {
		return wrapPath(ErrInvalid, src)
	}
	srcIno, err := boxfs.inodes.Get(srcID)
	if err != nil {
		return wrapPath(ErrNotFound, src)
	}

	dstParentParts, dstName, err := SplitParent(dst)
	if err != nil {
		return err
	}
	dstParentID, err := boxfs.resolve(dstParentParts)
	if err != nil {
		return wrapPath(err, dst)
	}
	dstParent, err := boxfs.inodes.Get(dstParentID)
	if err != nil {
		return wrapPath(ErrNotFound, dst)
	}
	if !dstParent.IsDirectory() {
		return wrapPath(ErrNotDirectory, dst)
	}

	// A directory cannot move into its own subtree.
	if srcIno.IsDirectory() {
		if inside, err := boxfs.isDescendant(dstParentID, srcID); err != nil {
			return err
		} else if inside {
			return fmt.Errorf("%w: cannot move a directory into itself", ErrInvalid)
		}
	}

	if dstID, err := boxfs.dirs.LookupChild(dstParentID, dstName); err == nil {
		if dstID == srcID {
			return nil
		}
		if !replace {
			return wrapPath(ErrAlreadyExists, dst)
		}
		dstIno, err := boxfs.inodes.Get(dstID)
		if err != nil {
			return wrapPath(ErrNotFound, dst)
		}
		if dstIno.IsDirectory() && !srcIno.IsDirectory() {
			return fmt.Errorf("%w: cannot replace directory with file", ErrInvalid)
		}
		if !dstIno.IsDirectory() && srcIno.IsDirectory() {
			return fmt.Errorf("%w: cannot replace file with directory", ErrInvalid)
		}
		if dstIno.IsDirectory() {
			if has, err := boxfs.dirs.HasChildren(dstID); err != nil {
				return fmt.Errorf("%w: %v", ErrIO, err)
			} else if has {
				return wrapPath(ErrDirectoryNotEmpty, dst)
			}
		}
		if err := boxfs.removeInode(dstID, dst, false); err != nil {
			return err
		}
	}

	if err := boxfs.dirs.Move(srcID, dstParentID, dstName); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	srcIno.TouchModified()
	dstParent.TouchModified()
	boxfs.dirty = true
	return nil
}

// Rename moves src to dst, failing when dst exists.
func (boxfs *FileSystem) Rename(src, dst string) error {
	return boxfs.Move(src, dst, false)
}

// isDescendant reports whether id sits at or below ancestor.
func (boxfs *FileSystem) isDescendant(id, ancestor uint64) (bool, error) {
	for {
		if id == ancestor {
			return true, nil
		}
		if id == meta.RootInodeID {
			return false, nil
		}
		entry, err := boxfs.dirs.LookupParent(id)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrIO, err)
		}
		id = entry.ParentID
	}
}

// Copy duplicates the file src at dst, byte for byte into freshly
// allocated blocks. Directory sources are rejected.
func (boxfs *FileSystem) Copy(src, dst string) error {
	boxfs.mu.Lock()
	defer boxfs.mu.Unlock()

	if err := boxfs.checkWritable(); err != nil {
		return err
	}

	srcID, err := boxfs.resolvePath(src)
	if err != nil {
		return wrapPath(err, src)
	}
	srcIno, err := boxfs.inodes.Get(srcID)
	if err != nil {
		return wrapPath(ErrNotFound, src)
	}
	if srcIno.IsDirectory() {
		return fmt.Errorf("%w: cannot copy directories", ErrInvalid)
	}
	return boxfs.copyInode(srcIno, dst)
}

func (boxfs *FileSystem) copyInode(srcIno *meta.Inode, dst string) error {
	dstIno, err := boxfs.createNode(dst, srcIno.Type)
	if err != nil {
		return err
	}

	blockSize := boxfs.cont.Superblock().BlockSize()
	buf := make([]byte, blockSize)
	var offset uint64
	for offset < srcIno.Size {
		n, done, err := boxfs.readFileData(srcIno, offset, buf)
		if err != nil {
			return err
		}
		if done || n == 0 {
			break
		}
		if _, err := boxfs.writeFileData(dstIno, offset, buf[:n]); err != nil {
			return err
		}
		offset += uint64(n)
	}
	return nil
}

// DirEntryInfo is one row of a directory listing.
type DirEntryInfo struct {
	Name  string
	IsDir bool
	Size  uint64
}

// ReadDir lists the entries of a directory sorted by name.
func (boxfs *FileSystem) ReadDir(path string) ([]DirEntryInfo, error) {
	boxfs.mu.RLock()
	defer boxfs.mu.RUnlock()

	if err := boxfs.checkOpen(); err != nil {
		return nil, err
	}

	id, err := boxfs.resolvePath(path)
	if err != nil {
		return nil, wrapPath(err, path)
	}
	ino, err := boxfs.inodes.Get(id)
	if err != nil {
		return nil, wrapPath(ErrNotFound, path)
	}
	if !ino.IsDirectory() {
		return nil, wrapPath(ErrNotDirectory, path)
	}

	children, err := boxfs.dirs.ListChildren(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	out := make([]DirEntryInfo, 0, len(children))
	for _, child := range children {
		childIno, err := boxfs.inodes.Get(child.ChildID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		out = append(out, DirEntryInfo{
			Name:  child.Name,
			IsDir: childIno.IsDirectory(),
			Size:  childIno.Size,
		})
	}
	return out, nil
}

// Stat returns the attributes of the file or directory at path.
func (boxfs *FileSystem) Stat(path string) (FileInfo, error) {
	boxfs.mu.RLock()
	defer boxfs.mu.RUnlock()

	if err := boxfs.checkOpen(); err != nil {
		return FileInfo{}, err
	}

	id, err := boxfs.resolvePath(path)
	if err != nil {
		return FileInfo{}, wrapPath(err, path)
	}
	ino, err := boxfs.inodes.Get(id)
	if err != nil {
		return FileInfo{}, wrapPath(ErrNotFound, path)
	}
	name := ""
	if parts := SplitPath(path); len(parts) > 0 {
		name = parts[len(parts)-1]
	}
	return newFileInfo(name, ino), nil
}

// Exists reports whether path names a file or directory.
func (boxfs *FileSystem) Exists(path string) (bool, error) {
	boxfs.mu.RLock()
	defer boxfs.mu.RUnlock()

	if err := boxfs.checkOpen(); err != nil {
		return false, err
	}
	_, err := boxfs.resolvePath(path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapPath(err, path)
	}
	return true, nil
}

// Find walks the whole tree and returns every path matching the
// pattern, sorted. The pattern uses glob syntax unless prefixed with
// "regex:".
func (boxfs *FileSystem) Find(pattern string) ([]string, error) {
	matcher, err := NewMatcher(pattern)
	if err != nil {
		return nil, err
	}

	boxfs.mu.RLock()
	defer boxfs.mu.RUnlock()

	if err := boxfs.checkOpen(); err != nil {
		return nil, err
	}

	var out []string
	var walk func(id uint64, prefix string) error
	walk = func(id uint64, prefix string) error {
		children, err := boxfs.dirs.ListChildren(id)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		for _, child := range children {
			path := prefix + Separator + child.Name
			if matcher.Matches(path) {
				out = append(out, path)
			}
			childIno, err := boxfs.inodes.Get(child.ChildID)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrIO, err)
			}
			if childIno.IsDirectory() {
				if err := walk(child.ChildID, path); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(meta.RootInodeID, ""); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// WriteFile writes data as the full contents of the file at path,
// creating it if needed and truncating anything that was there.
func (boxfs *FileSystem) WriteFile(path string, data []byte) error {
	boxfs.mu.Lock()
	defer boxfs.mu.Unlock()

	if err := boxfs.checkWritable(); err != nil {
		return err
	}

	ino, err := boxfs.lookupOrCreateFile(path)
	if err != nil {
		return err
	}
	if err := boxfs.truncateFile(ino, 0); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err = boxfs.writeFileData(ino, 0, data)
	return wrapPath(err, path)
}

func (boxfs *FileSystem) lookupOrCreateFile(path string) (*meta.Inode, error) {
	id, err := boxfs.resolvePath(path)
	if err == nil {
		ino, err := boxfs.inodes.Get(id)
		if err != nil {
			return nil, wrapPath(ErrNotFound, path)
		}
		if ino.IsDirectory() {
			return nil, wrapPath(ErrIsDirectory, path)
		}
		return ino, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, wrapPath(err, path)
	}
	return boxfs.createNode(path, meta.TypeFile)
}

// ReadFile returns the full contents of the file at path.
func (boxfs *FileSystem) ReadFile(path string) ([]byte, error) {
	boxfs.mu.RLock()
	defer boxfs.mu.RUnlock()

	if err := boxfs.checkOpen(); err != nil {
		return nil, err
	}

	id, err := boxfs.resolvePath(path)
	if err != nil {
		return nil, wrapPath(err, path)
	}
	ino, err := boxfs.inodes.Get(id)
	if err != nil {
		return nil, wrapPath(ErrNotFound, path)
	}
	if ino.IsDirectory() {
		return nil, wrapPath(ErrIsDirectory, path)
	}

	buf := make([]byte, ino.Size)
	n, _, err := boxfs.readFileData(ino, 0, buf)
	if err != nil {
		return nil, wrapPath(err, path)
	}
	return buf[:n], nil
}

// Truncate resizes the file at path.
func (boxfs *FileSystem) Truncate(path string, size uint64) error {
	boxfs.mu.Lock()
	defer boxfs.mu.Unlock()

	if err := boxfs.checkWritable(); err != nil {
		return err
	}

	id, err := boxfs.resolvePath(path)
	if err != nil {
		return wrapPath(err, path)
	}
	ino, err := boxfs.inodes.Get(id)
	if err != nil {
		return wrapPath(ErrNotFound, path)
	}
	if ino.IsDirectory() {
		return wrapPath(ErrIsDirectory, path)
	}
	return wrapPath(boxfs.truncateFile(ino, size), path)
}

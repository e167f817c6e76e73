package fs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T, totalBlocks uint64) (*FileSystem, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.box")
	boxfs, err := Open(path, Options{Create: true, BlockSize: 512, TotalBlocks: totalBlocks})
	require.Nil(t, err)
	t.Cleanup(func() {
		boxfs.Close()
	})
	return boxfs, path
}

func TestCreateValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "a.box"), Options{Create: true})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Open(filepath.Join(dir, "b.box"), Options{Create: true, TotalBlocks: 10, ReadOnly: true})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Open(filepath.Join(dir, "missing.box"), Options{})
	assert.ErrorIs(t, err, ErrIO)

	// Creating over an existing container file is rejected.
	path := filepath.Join(dir, "c.box")
	boxfs, err := Open(path, Options{Create: true, TotalBlocks: 10})
	require.Nil(t, err)
	require.Nil(t, boxfs.Close())
	_, err = Open(path, Options{Create: true, TotalBlocks: 10})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestWriteAndReadFile(t *testing.T) {
	boxfs, _ := newTestFS(t, 64)

	data := []byte("hello boxfs")
	require.Nil(t, boxfs.WriteFile("/hello.txt", data))

	read, err := boxfs.ReadFile("/hello.txt")
	assert.Nil(t, err)
	assert.Equal(t, data, read)

	// Overwriting truncates the old contents.
	require.Nil(t, boxfs.WriteFile("/hello.txt", []byte("short")))
	read, err = boxfs.ReadFile("/hello.txt")
	assert.Nil(t, err)
	assert.Equal(t, []byte("short"), read)

	_, err = boxfs.ReadFile("/missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteBlockBoundaries(t *testing.T) {
	boxfs, _ := newTestFS(t, 64)

	for _, size := range []int{511, 512, 513, 1024, 1025} {
		path := fmt.Sprintf("/file%d", size)
		data := bytes.Repeat([]byte{byte(size)}, size)
		require.Nil(t, boxfs.WriteFile(path, data))

		read, err := boxfs.ReadFile(path)
		require.Nil(t, err)
		assert.Equal(t, data, read, "size %d", size)
	}
}

func TestMkdirAndReadDir(t *testing.T) {
	boxfs, _ := newTestFS(t, 64)

	require.Nil(t, boxfs.Mkdir("/docs"))
	require.Nil(t, boxfs.WriteFile("/docs/a.txt", []byte("a")))
	require.Nil(t, boxfs.WriteFile("/docs/b.txt", []byte("bb")))
	require.Nil(t, boxfs.Mkdir("/docs/sub"))

	assert.ErrorIs(t, boxfs.Mkdir("/docs"), ErrAlreadyExists)
	assert.ErrorIs(t, boxfs.Mkdir("/missing/child"), ErrNotFound)

	entries, err := boxfs.ReadDir("/docs")
	require.Nil(t, err)
	require.Equal(t, 3, len(entries))
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, "b.txt", entries[1].Name)
	assert.Equal(t, "sub", entries[2].Name)
	assert.True(t, entries[2].IsDir)
	assert.Equal(t, uint64(2), entries[1].Size)

	_, err = boxfs.ReadDir("/docs/a.txt")
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestMkdirAll(t *testing.T) {
	boxfs, _ := newTestFS(t, 64)

	require.Nil(t, boxfs.MkdirAll("/a/b/c"))
	require.Nil(t, boxfs.MkdirAll("/a/b/c"))

	info, err := boxfs.Stat("/a/b/c")
	require.Nil(t, err)
	assert.True(t, info.IsDir())

	require.Nil(t, boxfs.WriteFile("/a/file", []byte("x")))
	assert.ErrorIs(t, boxfs.MkdirAll("/a/file/deeper"), ErrNotDirectory)
}

func TestStat(t *testing.T) {
	boxfs, _ := newTestFS(t, 64)

	require.Nil(t, boxfs.WriteFile("/f.bin", bytes.Repeat([]byte{1}, 700)))

	info, err := boxfs.Stat("/f.bin")
	require.Nil(t, err)
	assert.Equal(t, "f.bin", info.Name())
	assert.Equal(t, int64(700), info.Size())
	assert.False(t, info.IsDir())
	assert.False(t, info.ModTime().IsZero())

	root, err := boxfs.Stat("/")
	require.Nil(t, err)
	assert.True(t, root.IsDir())

	_, err = boxfs.Stat("/nope")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := boxfs.Exists("/f.bin")
	assert.Nil(t, err)
	assert.True(t, ok)
	ok, err = boxfs.Exists("/nope")
	assert.Nil(t, err)
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	boxfs, _ := newTestFS(t, 64)

	require.Nil(t, boxfs.Mkdir("/d"))
	require.Nil(t, boxfs.WriteFile("/d/f", bytes.Repeat([]byte{2}, 1000)))

	assert.ErrorIs(t, boxfs.Remove("/d"), ErrDirectoryNotEmpty)
	assert.ErrorIs(t, boxfs.Remove("/missing"), ErrNotFound)
	assert.ErrorIs(t, boxfs.Remove("/"), ErrInvalid)

	stats, _ := boxfs.Stats()
	usedBefore := stats.UsedBlocks

	require.Nil(t, boxfs.Remove("/d/f"))
	require.Nil(t, boxfs.Remove("/d"))

	// Deleting gives the data blocks back.
	stats, _ = boxfs.Stats()
	assert.Equal(t, usedBefore-2, stats.UsedBlocks)

	_, err := boxfs.Stat("/d")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveAll(t *testing.T) {
	boxfs, _ := newTestFS(t, 64)

	require.Nil(t, boxfs.MkdirAll("/tree/a/b"))
	require.Nil(t, boxfs.WriteFile("/tree/f1", []byte("1")))
	require.Nil(t, boxfs.WriteFile("/tree/a/f2", []byte("2")))
	require.Nil(t, boxfs.WriteFile("/tree/a/b/f3", []byte("3")))

	require.Nil(t, boxfs.RemoveAll("/tree"))
	ok, _ := boxfs.Exists("/tree")
	assert.False(t, ok)

	// Removing a missing path is not an error.
	assert.Nil(t, boxfs.RemoveAll("/tree"))
}

func TestMove(t *testing.T) {
	boxfs, _ := newTestFS(t, 64)

	require.Nil(t, boxfs.Mkdir("/src"))
	require.Nil(t, boxfs.Mkdir("/dst"))
	require.Nil(t, boxfs.WriteFile("/src/f", []byte("payload")))

	require.Nil(t, boxfs.Move("/src/f", "/dst/renamed", false))

	ok, _ := boxfs.Exists("/src/f")
	assert.False(t, ok)
	read, err := boxfs.ReadFile("/dst/renamed")
	assert.Nil(t, err)
	assert.Equal(t, []byte("payload"), read)

	// A directory moves with everything under it.
	require.Nil(t, boxfs.Rename("/dst", "/moved"))
	read, err = boxfs.ReadFile("/moved/renamed")
	assert.Nil(t, err)
	assert.Equal(t, []byte("payload"), read)

	assert.ErrorIs(t, boxfs.Move("/missing", "/x", false), ErrNotFound)
	assert.ErrorIs(t, boxfs.Move("/", "/x", false), ErrInvalid)
}

func TestMoveIntoOwnSubtree(t *testing.T) {
	boxfs, _ := newTestFS(t, 64)

	require.Nil(t, boxfs.MkdirAll("/a/b"))
	err := boxfs.Move("/a", "/a/b/a", false)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMoveReplace(t *testing.T) {
	boxfs, _ := newTestFS(t, 64)

	require.Nil(t, boxfs.WriteFile("/f1", []byte("one")))
	require.Nil(t, boxfs.WriteFile("/f2", []byte("two")))
	require.Nil(t, boxfs.Mkdir("/d1"))
	require.Nil(t, boxfs.Mkdir("/d2"))
	require.Nil(t, boxfs.Mkdir("/full"))
	require.Nil(t, boxfs.WriteFile("/full/x", []byte("x")))

	// Without replace an existing destination is an error.
	assert.ErrorIs(t, boxfs.Move("/f1", "/f2", false), ErrAlreadyExists)

	// A file replaces a file.
	require.Nil(t, boxfs.Move("/f1", "/f2", true))
	read, err := boxfs.ReadFile("/f2")
	assert.Nil(t, err)
	assert.Equal(t, []byte("one"), read)

	// An empty directory replaces an empty directory.
	require.Nil(t, boxfs.Move("/d1", "/d2", true))
	ok, _ := boxfs.Exists("/d1")
	assert.False(t, ok)

	// Mixing kinds is rejected.
	err = boxfs.Move("/f2", "/d2", true)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "cannot replace directory with file")

	err = boxfs.Move("/d2", "/f2", true)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "cannot replace file with directory")

	// A non-empty directory is never replaced.
	assert.ErrorIs(t, boxfs.Move("/d2", "/full", true), ErrDirectoryNotEmpty)
}

func TestCopy(t *testing.T) {
	boxfs, _ := newTestFS(t, 256)

	payload := bytes.Repeat([]byte{0x5A}, 2000)
	require.Nil(t, boxfs.WriteFile("/orig", payload))
	require.Nil(t, boxfs.Copy("/orig", "/dup"))

	read, err := boxfs.ReadFile("/dup")
	assert.Nil(t, err)
	assert.Equal(t, payload, read)

	// The copy owns its own blocks.
	require.Nil(t, boxfs.WriteFile("/orig", []byte("changed")))
	read, err = boxfs.ReadFile("/dup")
	assert.Nil(t, err)
	assert.Equal(t, payload, read)

	// Directories cannot be copied.
	require.Nil(t, boxfs.Mkdir("/tree"))
	assert.ErrorIs(t, boxfs.Copy("/tree", "/tree2"), ErrInvalid)

	assert.ErrorIs(t, boxfs.Copy("/missing", "/x"), ErrNotFound)
}

func TestTruncate(t *testing.T) {
	boxfs, _ := newTestFS(t, 64)

	require.Nil(t, boxfs.WriteFile("/f", bytes.Repeat([]byte{7}, 1500)))
	stats, _ := boxfs.Stats()
	usedBefore := stats.UsedBlocks

	// Shrinking frees whole blocks.
	require.Nil(t, boxfs.Truncate("/f", 400))
	stats, _ = boxfs.Stats()
	assert.Equal(t, usedBefore-2, stats.UsedBlocks)

	read, err := boxfs.ReadFile("/f")
	require.Nil(t, err)
	assert.Equal(t, bytes.Repeat([]byte{7}, 400), read)

	// Growing extends with zeros.
	require.Nil(t, boxfs.Truncate("/f", 1000))
	read, err = boxfs.ReadFile("/f")
	require.Nil(t, err)
	assert.Equal(t, bytes.Repeat([]byte{7}, 400), read[:400])
	assert.Equal(t, make([]byte, 600), read[400:])

	assert.ErrorIs(t, boxfs.Truncate("/missing", 0), ErrNotFound)
}

func TestNoSpace(t *testing.T) {
	boxfs, _ := newTestFS(t, 8)

	// One block belongs to the metadata region.
	err := boxfs.WriteFile("/big", bytes.Repeat([]byte{1}, 8*512))
	assert.ErrorIs(t, err, ErrNoSpace)

	// The filesystem keeps working afterwards.
	require.Nil(t, boxfs.WriteFile("/small", bytes.Repeat([]byte{2}, 2*512)))
	read, err := boxfs.ReadFile("/small")
	assert.Nil(t, err)
	assert.Equal(t, 1024, len(read))
}

func TestPersistenceAcrossReopen(t *testing.T) {
	boxfs, path := newTestFS(t, 64)

	require.Nil(t, boxfs.MkdirAll("/docs/deep"))
	require.Nil(t, boxfs.WriteFile("/docs/a.txt", []byte("alpha")))
	require.Nil(t, boxfs.WriteFile("/docs/deep/b.txt", bytes.Repeat([]byte{9}, 1300)))
	require.Nil(t, boxfs.Close())

	reopened, err := Open(path, Options{})
	require.Nil(t, err)
	defer reopened.Close()

	read, err := reopened.ReadFile("/docs/a.txt")
	assert.Nil(t, err)
	assert.Equal(t, []byte("alpha"), read)

	read, err = reopened.ReadFile("/docs/deep/b.txt")
	assert.Nil(t, err)
	assert.Equal(t, bytes.Repeat([]byte{9}, 1300), read)

	// The free list survived, new writes keep working.
	require.Nil(t, reopened.WriteFile("/docs/c.txt", []byte("gamma")))
	read, err = reopened.ReadFile("/docs/c.txt")
	assert.Nil(t, err)
	assert.Equal(t, []byte("gamma"), read)
}

func TestMetadataGrowsPastOneBlock(t *testing.T) {
	boxfs, path := newTestFS(t, 256)

	// Enough objects that the metadata image outgrows a single
	// 512 byte block and the persist loop has to re-reserve.
	for i := 0; i < 40; i++ {
		require.Nil(t, boxfs.WriteFile(fmt.Sprintf("/file-with-a-long-name-%02d", i), []byte("data")))
	}
	require.Nil(t, boxfs.Close())

	reopened, err := Open(path, Options{})
	require.Nil(t, err)
	defer reopened.Close()

	for i := 0; i < 40; i++ {
		read, err := reopened.ReadFile(fmt.Sprintf("/file-with-a-long-name-%02d", i))
		require.Nil(t, err)
		assert.Equal(t, []byte("data"), read)
	}
}

func TestReadOnly(t *testing.T) {
	boxfs, path := newTestFS(t, 64)
	require.Nil(t, boxfs.WriteFile("/f", []byte("data")))
	require.Nil(t, boxfs.Close())

	ro, err := Open(path, Options{ReadOnly: true})
	require.Nil(t, err)
	defer ro.Close()

	assert.True(t, ro.ReadOnly())

	read, err := ro.ReadFile("/f")
	assert.Nil(t, err)
	assert.Equal(t, []byte("data"), read)

	assert.ErrorIs(t, ro.WriteFile("/g", []byte("x")), ErrReadOnly)
	assert.ErrorIs(t, ro.Mkdir("/d"), ErrReadOnly)
	assert.ErrorIs(t, ro.Remove("/f"), ErrReadOnly)
	assert.ErrorIs(t, ro.Move("/f", "/g", false), ErrReadOnly)
	assert.ErrorIs(t, ro.Truncate("/f", 0), ErrReadOnly)
	assert.Nil(t, ro.Sync())
}

func TestClosedFilesystem(t *testing.T) {
	boxfs, _ := newTestFS(t, 64)
	require.Nil(t, boxfs.Close())

	_, err := boxfs.ReadFile("/f")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, boxfs.WriteFile("/f", []byte("x")), ErrClosed)
	assert.ErrorIs(t, boxfs.Sync(), ErrClosed)

	// Closing twice is fine.
	assert.Nil(t, boxfs.Close())
}

func TestFind(t *testing.T) {
	boxfs, _ := newTestFS(t, 256)

	require.Nil(t, boxfs.MkdirAll("/docs/sub"))
	require.Nil(t, boxfs.WriteFile("/docs/a.txt", []byte("a")))
	require.Nil(t, boxfs.WriteFile("/docs/sub/b.txt", []byte("b")))
	require.Nil(t, boxfs.WriteFile("/docs/c.md", []byte("c")))

	paths, err := boxfs.Find("**.txt")
	require.Nil(t, err)
	assert.Equal(t, []string{"/docs/a.txt", "/docs/sub/b.txt"}, paths)

	paths, err = boxfs.Find("docs/*.md")
	require.Nil(t, err)
	assert.Equal(t, []string{"/docs/c.md"}, paths)

	paths, err = boxfs.Find(`regex:.*/sub/.*`)
	require.Nil(t, err)
	assert.Equal(t, []string{"/docs/sub/b.txt"}, paths)
}

func TestConcurrentWriters(t *testing.T) {
	boxfs, _ := newTestFS(t, 2048)

	const writers = 8
	payload := func(i int) []byte {
		return bytes.Repeat([]byte{byte(i + 1)}, 1500)
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/worker-%d", i)
			if err := boxfs.WriteFile(path, payload(i)); err != nil {
				errs <- err
				return
			}
			if _, err := boxfs.ReadFile(path); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent writer failed: %v", err)
	}

	for i := 0; i < writers; i++ {
		read, err := boxfs.ReadFile(fmt.Sprintf("/worker-%d", i))
		require.Nil(t, err)
		assert.Equal(t, payload(i), read)
	}
}

func TestConcurrentWritesSameFile(t *testing.T) {
	boxfs, _ := newTestFS(t, 256)

	require.Nil(t, boxfs.WriteFile("/shared", nil))

	// Every writer puts its whole buffer at position 0, so the file
	// must end up holding exactly one of the buffers.
	const writers = 8
	const size = 1200
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := boxfs.OpenFile("/shared", os.O_WRONLY)
			if err != nil {
				errs <- err
				return
			}
			defer f.Close()
			if _, err := f.Write(bytes.Repeat([]byte{byte(i + 1)}, size)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent writer failed: %v", err)
	}

	read, err := boxfs.ReadFile("/shared")
	require.Nil(t, err)
	require.Equal(t, size, len(read))
	winner := read[0]
	assert.GreaterOrEqual(t, int(winner), 1)
	assert.LessOrEqual(t, int(winner), writers)
	assert.Equal(t, bytes.Repeat([]byte{winner}, size), read)
}

func TestOpenWhileAlreadyOpen(t *testing.T) {
	boxfs, path := newTestFS(t, 64)

	_, err := Open(path, Options{})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// Closing releases the container for a fresh open.
	require.Nil(t, boxfs.Close())
	reopened, err := Open(path, Options{})
	require.Nil(t, err)
	assert.Nil(t, reopened.Close())
}

func TestOpenShared(t *testing.T) {
	boxfs, path := newTestFS(t, 64)
	require.Nil(t, boxfs.Close())

	a, err := OpenShared(path, Options{})
	require.Nil(t, err)
	b, err := OpenShared(path, Options{})
	require.Nil(t, err)
	assert.Same(t, a, b)

	got, ok := Get(path)
	assert.True(t, ok)
	assert.Same(t, a, got)

	require.Nil(t, a.Close())
	_, ok = Get(path)
	assert.False(t, ok)
}

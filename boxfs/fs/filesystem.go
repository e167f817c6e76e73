package fs

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parasource/boxfs/boxfs/container"
	"github.com/parasource/boxfs/boxfs/meta"
	"github.com/parasource/boxfs/boxfs/space"
	"github.com/parasource/boxfs/boxfs/util/tickers"
)

// Options controls how a filesystem is opened.
type Options struct {
	// Create makes a new container. The file must not already exist.
	Create bool
	// BlockSize is used with Create, defaults to 4096.
	BlockSize uint32
	// TotalBlocks is used with Create and is required there.
	TotalBlocks uint64
	// ReadOnly opens the container without write access. Every
	// mutating operation fails.
	ReadOnly bool
	// SyncInterval, when set, starts a background loop that
	// periodically persists metadata and flushes the container.
	SyncInterval time.Duration
}

// FileSystem is a hierarchical filesystem stored inside a single
// container file. All operations are safe for concurrent use, readers
// run shared and mutators exclusive.
type FileSystem struct {
	mu sync.RWMutex

	cont   *container.Container
	space  *space.Manager
	inodes *meta.InodeTable
	dirs   *meta.DirectoryTable

	readOnly bool
	closed   bool
	dirty    bool

	stopSync chan struct{}
	syncDone chan struct{}
}

// Open opens or creates a container filesystem at path. Opening a
// container that is already open in this process fails with
// ErrAlreadyExists, use OpenShared to share the open instance.
func Open(path string, opts Options) (*FileSystem, error) {
	key, err := registryKey(path)
	if err != nil {
		return nil, err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, ok := registry.open[key]; ok {
		return nil, fmt.Errorf("%w: container already open: %s", ErrAlreadyExists, key)
	}
	boxfs, err := openContainer(key, opts)
	if err != nil {
		return nil, err
	}
	registry.open[key] = boxfs
	return boxfs, nil
}

// openContainer dispatches create/open and starts the sync loop. The
// caller holds the registry mutex.
func openContainer(path string, opts Options) (*FileSystem, error) {
	if opts.Create && opts.ReadOnly {
		return nil, fmt.Errorf("%w: cannot create a read-only filesystem", ErrInvalid)
	}

	var boxfs *FileSystem
	var err error
	if opts.Create {
		boxfs, err = create(path, opts)
	} else {
		boxfs, err = open(path, opts)
	}
	if err != nil {
		return nil, err
	}

	if opts.SyncInterval > 0 && !opts.ReadOnly {
		boxfs.stopSync = make(chan struct{})
		boxfs.syncDone = make(chan struct{})
		go boxfs.syncLoop(opts.SyncInterval)
	}
	return boxfs, nil
}

func create(path string, opts Options) (*FileSystem, error) {
	blockSize := opts.BlockSize
	if blockSize == 0 {
		blockSize = container.DefaultBlockSize
	}
	if opts.TotalBlocks == 0 {
		return nil, fmt.Errorf("%w: total blocks required to create a filesystem", ErrInvalid)
	}

	cont, err := container.Create(path, blockSize, opts.TotalBlocks)
	if err != nil {
		return nil, translateContainerErr(err)
	}
	mgr, err := space.NewManager(opts.TotalBlocks)
	if err != nil {
		cont.Close()
		return nil, translateContainerErr(err)
	}
	dirs, err := meta.NewDirectoryTable()
	if err != nil {
		cont.Close()
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	boxfs := &FileSystem{
		cont:   cont,
		space:  mgr,
		inodes: meta.NewInodeTable(),
		dirs:   dirs,
	}
	// Persist right away so a crash before the first sync still
	// leaves a valid empty filesystem on disk.
	if err := boxfs.persistMetadata(); err != nil {
		cont.Close()
		return nil, err
	}
	if err := cont.Sync(); err != nil {
		cont.Close()
		return nil, translateContainerErr(err)
	}
	log.Debug().Str("path", path).Uint32("block_size", blockSize).
		Uint64("total_blocks", opts.TotalBlocks).Msg("created container filesystem")
	return boxfs, nil
}

func open(path string, opts Options) (*FileSystem, error) {
	cont, err := container.Open(path, opts.ReadOnly)
	if err != nil {
		return nil, translateContainerErr(err)
	}
	mgr, err := space.NewManager(cont.Superblock().TotalBlocks())
	if err != nil {
		cont.Close()
		return nil, translateContainerErr(err)
	}
	dirs, err := meta.NewDirectoryTable()
	if err != nil {
		cont.Close()
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	boxfs := &FileSystem{
		cont:     cont,
		space:    mgr,
		inodes:   meta.NewInodeTable(),
		dirs:     dirs,
		readOnly: opts.ReadOnly,
	}
	if err := boxfs.loadMetadata(); err != nil {
		cont.Close()
		return nil, err
	}
	log.Debug().Str("path", path).Msg("opened container filesystem")
	return boxfs, nil
}

// BlockSize returns the container block size in bytes.
func (boxfs *FileSystem) BlockSize() uint32 {
	return boxfs.cont.Superblock().BlockSize()
}

// ContainerPath returns the host path of the backing container file.
func (boxfs *FileSystem) ContainerPath() string {
	return boxfs.cont.Path()
}

// ReadOnly reports whether mutating operations are rejected.
func (boxfs *FileSystem) ReadOnly() bool {
	return boxfs.readOnly
}

func (boxfs *FileSystem) checkOpen() error {
	if boxfs.closed {
		return ErrClosed
	}
	return nil
}

func (boxfs *FileSystem) checkWritable() error {
	if err := boxfs.checkOpen(); err != nil {
		return err
	}
	if boxfs.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (boxfs *FileSystem) syncLoop(interval time.Duration) {
	defer close(boxfs.syncDone)
	tk := tickers.SetTicker(interval)
	defer tickers.ReleaseTicker(tk)
	for {
		select {
		case <-tk.C:
			if err := boxfs.Sync(); err != nil && err != ErrClosed {
				log.Error().Err(err).Str("path", boxfs.cont.Path()).Msg("error syncing filesystem")
			}
		case <-boxfs.stopSync:
			return
		}
	}
}

// Sync persists metadata if anything changed since the last sync and
// flushes the container file to stable storage.
func (boxfs *FileSystem) Sync() error {
	boxfs.mu.Lock()
	defer boxfs.mu.Unlock()

	if err := boxfs.checkOpen(); err != nil {
		return err
	}
	if boxfs.readOnly {
		return nil
	}
	if boxfs.dirty {
		if err := boxfs.persistMetadata(); err != nil {
			return err
		}
	}
	if err := boxfs.cont.Sync(); err != nil {
		return translateContainerErr(err)
	}
	return nil
}

// Close syncs and closes the filesystem. The filesystem is unusable
// afterwards. Closing twice is a no-op.
func (boxfs *FileSystem) Close() error {
	boxfs.mu.Lock()
	if boxfs.closed {
		boxfs.mu.Unlock()
		return nil
	}
	stop := boxfs.stopSync
	boxfs.stopSync = nil
	boxfs.mu.Unlock()

	if stop != nil {
		close(stop)
		<-boxfs.syncDone
	}

	boxfs.mu.Lock()
	defer boxfs.mu.Unlock()
	if boxfs.closed {
		return nil
	}

	var firstErr error
	if !boxfs.readOnly && boxfs.dirty {
		if err := boxfs.persistMetadata(); err != nil {
			firstErr = err
		}
	}
	if !boxfs.readOnly {
		if err := boxfs.cont.Sync(); err != nil && firstErr == nil {
			firstErr = translateContainerErr(err)
		}
	}
	boxfs.closed = true
	unregister(boxfs.cont.Path())
	if err := boxfs.cont.Close(); err != nil && firstErr == nil {
		firstErr = translateContainerErr(err)
	}
	return firstErr
}

// Stats is a point-in-time snapshot of space and object usage.
type Stats struct {
	BlockSize   uint32
	TotalBlocks uint64
	FreeBlocks  uint64
	UsedBlocks  uint64
	Inodes      int
	LargestFree uint32
}

func (boxfs *FileSystem) Stats() (Stats, error) {
	boxfs.mu.RLock()
	defer boxfs.mu.RUnlock()

	if err := boxfs.checkOpen(); err != nil {
		return Stats{}, err
	}
	return Stats{
		BlockSize:   boxfs.cont.Superblock().BlockSize(),
		TotalBlocks: boxfs.space.TotalBlocks(),
		FreeBlocks:  boxfs.space.TotalFreeBlocks(),
		UsedBlocks:  boxfs.space.TotalUsedBlocks(),
		Inodes:      boxfs.inodes.Len(),
		LargestFree: boxfs.space.LargestFreeExtent(),
	}, nil
}

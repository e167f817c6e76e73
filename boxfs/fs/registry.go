package fs

import (
	"fmt"
	"path/filepath"
	"sync"
)

// The registry tracks open filesystems by the absolute path of their
// container file, so the same container is never opened twice in one
// process.
var registry = struct {
	mu   sync.Mutex
	open map[string]*FileSystem
}{open: make(map[string]*FileSystem)}

func registryKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return filepath.Clean(abs), nil
}

// OpenShared opens the container at path, or returns the filesystem
// already open on it.
func OpenShared(path string, opts Options) (*FileSystem, error) {
	key, err := registryKey(path)
	if err != nil {
		return nil, err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if boxfs, ok := registry.open[key]; ok {
		return boxfs, nil
	}
	boxfs, err := openContainer(key, opts)
	if err != nil {
		return nil, err
	}
	registry.open[key] = boxfs
	return boxfs, nil
}

// Get returns the open filesystem for a container path, if any.
func Get(path string) (*FileSystem, bool) {
	key, err := registryKey(path)
	if err != nil {
		return nil, false
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	boxfs, ok := registry.open[key]
	return boxfs, ok
}

func unregister(path string) {
	key, err := registryKey(path)
	if err != nil {
		return
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.open, key)
}

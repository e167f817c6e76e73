package fileutil

import (
	"os"
)

// Preallocate reserves sizeInBytes of disk space for f. With extendFile
// the file length grows to the reserved size, otherwise the length is
// left alone. Filesystems without allocation support fall back to a
// plain truncate in the extending case and to a no-op otherwise.
func Preallocate(f *os.File, sizeInBytes int64, extendFile bool) error {
	if sizeInBytes == 0 {
		// fallocate fails with EINVAL on a zero length
		return nil
	}
	if extendFile {
		return allocExtend(f, sizeInBytes)
	}
	return allocKeepSize(f, sizeInBytes)
}

// extendTrunc grows the file to sizeInBytes without reserving blocks.
// A file that is already large enough is left alone.
func extendTrunc(f *os.File, sizeInBytes int64) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() >= sizeInBytes {
		return nil
	}
	return f.Truncate(sizeInBytes)
}

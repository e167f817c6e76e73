//go:build linux
// +build linux

package fileutil

import (
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

func allocExtend(f *os.File, sizeInBytes int64) error {
	err := unix.Fallocate(int(f.Fd()), 0, 0, sizeInBytes)
	if err == unix.ENOTSUP {
		log.Debug().Err(err).Msg("fallocate unsupported, extending with truncate")
		return extendTrunc(f, sizeInBytes)
	}
	return err
}

func allocKeepSize(f *os.File, sizeInBytes int64) error {
	err := unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_KEEP_SIZE, 0, sizeInBytes)
	if err != unix.ENOTSUP {
		return err
	}
	// ZFS rejects a bare KEEP_SIZE but accepts it combined with a
	// punch, which leaves the file untouched.
	err = unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_KEEP_SIZE|unix.FALLOC_FL_PUNCH_HOLE, 0, sizeInBytes)
	if err == unix.ENOTSUP {
		return nil
	}
	return err
}

//go:build !linux
// +build !linux

package fileutil

import "os"

func allocExtend(f *os.File, sizeInBytes int64) error {
	return extendTrunc(f, sizeInBytes)
}

func allocKeepSize(f *os.File, sizeInBytes int64) error { return nil }

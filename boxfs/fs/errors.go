package fs

import "errors"

var (
	ErrNotFound          = errors.New("no such file or directory")
	ErrAlreadyExists     = errors.New("file already exists")
	ErrNotDirectory      = errors.New("not a directory")
	ErrIsDirectory       = errors.New("is a directory")
	ErrDirectoryNotEmpty = errors.New("directory not empty")
	ErrInvalid           = errors.New("invalid argument")
	ErrNoSpace           = errors.New("no space left in container")
	ErrReadOnly          = errors.New("filesystem is read-only")
	ErrClosed            = errors.New("filesystem is closed")
	ErrInvalidFormat     = errors.New("invalid container format")
	ErrIO                = errors.New("i/o error")
)

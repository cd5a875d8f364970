package memory

import "errors"

var (
	// ErrNoSpace is returned when a write would exceed Config.MaxSize.
	ErrNoSpace = errors.New("memory device is full")
	// ErrDirNotEmpty is returned by Remove on a non-empty directory.
	ErrDirNotEmpty = errors.New("directory not empty")
)

package resfs

import (
	"errors"
	"fmt"
	"io/fs"
)

// Common errors
var (
	// ErrDeviceNotFound is returned by hard operations when the entry point is not mounted.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrNotExist is returned when the device cannot locate the target.
	// It is io/fs's sentinel so errors from the os package match it.
	ErrNotExist = fs.ErrNotExist
	// ErrExist is returned when the target already exists.
	ErrExist = fs.ErrExist
	// ErrIO is matched by every backend failure that is not ErrNotExist.
	ErrIO = errors.New("i/o error")
	// ErrUnknownFormat is returned when no decoder is registered for an extension.
	ErrUnknownFormat = errors.New("unknown file format")
	// ErrFormat is matched by every *FormatError.
	ErrFormat = errors.New("malformed structured data")
	// ErrInvalidPath is returned when an address has no entry point.
	ErrInvalidPath = errors.New("path has no entry point")
	// ErrNativePath is returned when a native absolute location is used as an address.
	ErrNativePath = errors.New("native path used as address")
	// ErrInvalidMountName is returned when a mount name cannot be used as an entry point.
	ErrInvalidMountName = errors.New("invalid mount name")
	// ErrNilDevice is returned when trying to mount a nil device.
	ErrNilDevice = errors.New("device cannot be nil")
	// ErrNotSupported is returned when a device lacks an optional capability.
	ErrNotSupported = errors.New("operation not supported")
	// ErrNotAllowed is returned when a path escapes the device root.
	ErrNotAllowed = errors.New("operation not allowed")
	// ErrNotDir is returned when a directory operation targets a file.
	ErrNotDir = errors.New("not a directory")
	// ErrIsDir is returned when a file operation targets a directory.
	ErrIsDir = errors.New("is a directory")
)

// PathError records an error and the operation and path that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError wraps err with the operation and path.
func NewPathError(op, path string, err error) *PathError {
	return &PathError{Op: op, Path: path, Err: err}
}

// IOError wraps a backend failure so callers can match ErrIO without knowing the backend.
type IOError struct {
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%v: %v", ErrIO, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports ErrIO as a match.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// FormatError is returned by ReadStructured when a decoder rejects the content.
// Log carries the decoder's human-readable diagnostic.
type FormatError struct {
	Source    string
	Extension string
	Log       string
	Err       error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Log)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is reports ErrFormat as a match.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// deviceError normalizes a backend error for the facade: not-found errors are
// kept as they are, everything else is wrapped in an *IOError.
func deviceError(op string, p Path, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotExist) || errors.Is(err, ErrIO) || errors.Is(err, ErrReadOnly) {
		return &PathError{Op: op, Path: p.String(), Err: err}
	}
	return &PathError{Op: op, Path: p.String(), Err: &IOError{Err: err}}
}

// IsDeviceNotFound reports whether err was caused by an unmounted entry point.
func IsDeviceNotFound(err error) bool {
	return errors.Is(err, ErrDeviceNotFound)
}

// IsNotExist reports whether an error indicates that a file or directory
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsUnknownFormat reports whether err was caused by an unregistered extension.
func IsUnknownFormat(err error) bool {
	return errors.Is(err, ErrUnknownFormat)
}

// IsFormatError reports whether a decoder rejected the content.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrFormat)
}

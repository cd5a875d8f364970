package resfs

import (
	"context"
	"iter"
)

// ============================================================================
// Device Capability Contract
// ============================================================================

// DeviceReader provides the read-only half of a storage backend.
// Paths are relative to the device root and use forward slashes.
type DeviceReader interface {
	// Read returns the full content of the file at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// Size returns the file size in bytes.
	Size(ctx context.Context, path string) (int64, error)

	// Exists reports whether anything exists at path.
	Exists(ctx context.Context, path string) bool

	// IsFile reports whether a regular file exists at path.
	IsFile(ctx context.Context, path string) bool

	// IsDir reports whether a directory exists at path.
	IsDir(ctx context.Context, path string) bool

	// List enumerates the entry names directly inside the directory at path.
	// Backend resources are acquired when iteration starts and released when
	// it ends, including when the consumer stops early. A failure is yielded
	// once as ("", err) and ends the sequence.
	List(ctx context.Context, path string) iter.Seq2[string, error]

	// Resolve maps path to a backend-defined native location, such as an
	// absolute filesystem path, for interop with external tools.
	Resolve(path string) (string, error)
}

// DeviceWriter provides the mutating half of a storage backend.
type DeviceWriter interface {
	// Write replaces the content of the file at path, creating it if needed.
	Write(ctx context.Context, path string, data []byte) error

	// MkdirAll creates the directory at path along with any missing parents.
	MkdirAll(ctx context.Context, path string) error

	// Remove deletes a file or an empty directory. It returns false when
	// nothing existed at path.
	Remove(ctx context.Context, path string) (bool, error)

	// RemoveAll deletes path and everything below it, returning the number of
	// removed entries.
	RemoveAll(ctx context.Context, path string) (int64, error)
}

// Device is a storage backend mounted under an entry point.
type Device interface {
	DeviceReader
	DeviceWriter
}

// ============================================================================
// Optional Capability Interfaces
// ============================================================================
// Use type assertion to check if a device supports a capability:
//
//	if cs, ok := dev.(CanChecksum); ok {
//	    sum, err := cs.Checksum(ctx, "textures/block.png")
//	}

// CanChecksum indicates the device can compute a content checksum without
// handing the bytes to the caller. The result must match Checksum over the
// bytes returned by Read.
type CanChecksum interface {
	Checksum(ctx context.Context, path string) (string, error)
}

// ReadOnly is implemented by devices that reject every write.
type ReadOnly interface {
	IsReadOnly() bool
}

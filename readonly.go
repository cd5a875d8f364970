package resfs

import (
	"context"
	"errors"
	"iter"
)

// ErrReadOnly is returned when a write operation is attempted on a read-only device.
var ErrReadOnly = errors.New("device is read-only")

// ============================================================================
// ReadOnlyDevice Decorator
// ============================================================================

// ReadOnlyDevice wraps a Device to prevent all write operations.
// Package and archive mounts are usually exposed through it.
//
// Example:
//
//	dev, _ := local.New("/opt/game/res")
//	reg.Mount("base", resfs.NewReadOnlyDevice(dev))
//
//	// Reads work normally, writes fail with an error wrapping ErrReadOnly
//	err := reg.WriteString(ctx, resfs.NewPath("base:x.txt"), "x")
type ReadOnlyDevice struct {
	dev  Device
	opts ReadOnlyOptions
}

// ReadOnlyOptions configures the ReadOnlyDevice behavior.
type ReadOnlyOptions struct {
	// AllowMkdir permits directory creation even in read-only mode.
	// Default: false
	AllowMkdir bool

	// OnWriteAttempt is called when a write operation is attempted.
	// If it returns nil, the write is allowed (use carefully).
	// If nil, every write fails with ErrReadOnly.
	OnWriteAttempt func(op, path string) error
}

// ReadOnlyOption is a functional option for configuring ReadOnlyDevice.
type ReadOnlyOption func(*ReadOnlyOptions)

// WithAllowMkdir allows directory creation in read-only mode.
func WithAllowMkdir(allow bool) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.AllowMkdir = allow
	}
}

// WithWriteAttemptHandler sets a custom handler for write attempts.
func WithWriteAttemptHandler(handler func(op, path string) error) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.OnWriteAttempt = handler
	}
}

// NewReadOnlyDevice creates a read-only wrapper around a Device.
func NewReadOnlyDevice(dev Device, opts ...ReadOnlyOption) *ReadOnlyDevice {
	options := ReadOnlyOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &ReadOnlyDevice{
		dev:  dev,
		opts: options,
	}
}

// Unwrap returns the underlying Device.
func (r *ReadOnlyDevice) Unwrap() Device {
	return r.dev
}

// IsReadOnly returns true.
func (r *ReadOnlyDevice) IsReadOnly() bool {
	return true
}

// readOnlyError creates an appropriate error for write operations.
func (r *ReadOnlyDevice) readOnlyError(op, path string) error {
	if r.opts.OnWriteAttempt != nil {
		if err := r.opts.OnWriteAttempt(op, path); err != nil {
			return &PathError{Op: op, Path: path, Err: err}
		}
		// Handler returned nil, allow the operation
		return nil
	}
	return &PathError{Op: op, Path: path, Err: ErrReadOnly}
}

// ============================================================================
// Read Operations (Delegated)
// ============================================================================

func (r *ReadOnlyDevice) Read(ctx context.Context, path string) ([]byte, error) {
	return r.dev.Read(ctx, path)
}

func (r *ReadOnlyDevice) Size(ctx context.Context, path string) (int64, error) {
	return r.dev.Size(ctx, path)
}

func (r *ReadOnlyDevice) Exists(ctx context.Context, path string) bool {
	return r.dev.Exists(ctx, path)
}

func (r *ReadOnlyDevice) IsFile(ctx context.Context, path string) bool {
	return r.dev.IsFile(ctx, path)
}

func (r *ReadOnlyDevice) IsDir(ctx context.Context, path string) bool {
	return r.dev.IsDir(ctx, path)
}

func (r *ReadOnlyDevice) List(ctx context.Context, path string) iter.Seq2[string, error] {
	return r.dev.List(ctx, path)
}

func (r *ReadOnlyDevice) Resolve(path string) (string, error) {
	return r.dev.Resolve(path)
}

// Checksum delegates to the underlying device if supported.
func (r *ReadOnlyDevice) Checksum(ctx context.Context, path string) (string, error) {
	if cs, ok := r.dev.(CanChecksum); ok {
		return cs.Checksum(ctx, path)
	}
	return "", &PathError{Op: "checksum", Path: path, Err: ErrNotSupported}
}

// ============================================================================
// Write Operations (Blocked)
// ============================================================================

// Write returns ErrReadOnly.
func (r *ReadOnlyDevice) Write(ctx context.Context, path string, data []byte) error {
	if err := r.readOnlyError("write", path); err != nil {
		return err
	}
	return r.dev.Write(ctx, path, data)
}

// MkdirAll returns ErrReadOnly unless AllowMkdir is enabled.
func (r *ReadOnlyDevice) MkdirAll(ctx context.Context, path string) error {
	if !r.opts.AllowMkdir {
		if err := r.readOnlyError("mkdir", path); err != nil {
			return err
		}
	}
	return r.dev.MkdirAll(ctx, path)
}

// Remove returns ErrReadOnly.
func (r *ReadOnlyDevice) Remove(ctx context.Context, path string) (bool, error) {
	if err := r.readOnlyError("remove", path); err != nil {
		return false, err
	}
	return r.dev.Remove(ctx, path)
}

// RemoveAll returns ErrReadOnly.
func (r *ReadOnlyDevice) RemoveAll(ctx context.Context, path string) (int64, error) {
	if err := r.readOnlyError("removeall", path); err != nil {
		return 0, err
	}
	return r.dev.RemoveAll(ctx, path)
}

// Ensure ReadOnlyDevice implements Device and optional interfaces
var (
	_ Device      = (*ReadOnlyDevice)(nil)
	_ CanChecksum = (*ReadOnlyDevice)(nil)
	_ ReadOnly    = (*ReadOnlyDevice)(nil)
)

// IsReadOnly checks if an error is due to read-only restrictions.
func IsReadOnly(err error) bool {
	return errors.Is(err, ErrReadOnly)
}

package resfs

import (
	"context"
	"iter"
	"path"
	"strings"
)

// SubDevice forwards every operation to a parent device with a fixed root
// prefix applied, so a directory of one mount can be exposed as a mount of its
// own.
//
// The parent is shared, not owned: unmounting the parent's name from a
// Registry leaves the SubDevice working for as long as the parent backend
// itself does.
type SubDevice struct {
	parent Device
	root   string
}

// NewSubDevice creates a device rooted at root inside parent.
func NewSubDevice(parent Device, root string) *SubDevice {
	return &SubDevice{
		parent: parent,
		root:   strings.Trim(strings.ReplaceAll(root, `\`, "/"), "/"),
	}
}

// Parent returns the device operations are forwarded to.
func (s *SubDevice) Parent() Device {
	return s.parent
}

// Root returns the prefix applied to every path.
func (s *SubDevice) Root() string {
	return s.root
}

// rel rewrites a path relative to the sub-device into one relative to the
// parent. ".." segments are resolved against the sub-device root and cannot
// climb above it.
func (s *SubDevice) rel(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, `\`, "/")), "/")
	switch {
	case s.root == "":
		return p
	case p == "":
		return s.root
	default:
		return s.root + "/" + p
	}
}

func (s *SubDevice) Read(ctx context.Context, path string) ([]byte, error) {
	return s.parent.Read(ctx, s.rel(path))
}

func (s *SubDevice) Size(ctx context.Context, path string) (int64, error) {
	return s.parent.Size(ctx, s.rel(path))
}

func (s *SubDevice) Exists(ctx context.Context, path string) bool {
	return s.parent.Exists(ctx, s.rel(path))
}

func (s *SubDevice) IsFile(ctx context.Context, path string) bool {
	return s.parent.IsFile(ctx, s.rel(path))
}

func (s *SubDevice) IsDir(ctx context.Context, path string) bool {
	return s.parent.IsDir(ctx, s.rel(path))
}

func (s *SubDevice) List(ctx context.Context, path string) iter.Seq2[string, error] {
	return s.parent.List(ctx, s.rel(path))
}

func (s *SubDevice) Resolve(path string) (string, error) {
	return s.parent.Resolve(s.rel(path))
}

func (s *SubDevice) Write(ctx context.Context, path string, data []byte) error {
	return s.parent.Write(ctx, s.rel(path), data)
}

func (s *SubDevice) MkdirAll(ctx context.Context, path string) error {
	return s.parent.MkdirAll(ctx, s.rel(path))
}

func (s *SubDevice) Remove(ctx context.Context, path string) (bool, error) {
	return s.parent.Remove(ctx, s.rel(path))
}

// RemoveAll forwards to the parent. Removing the sub-device root empties the
// directory but keeps it, matching what devices do for their own root.
func (s *SubDevice) RemoveAll(ctx context.Context, path string) (int64, error) {
	target := s.rel(path)
	if s.root == "" || target != s.root || !s.parent.IsDir(ctx, target) {
		return s.parent.RemoveAll(ctx, target)
	}

	var names []string
	for name, err := range s.parent.List(ctx, target) {
		if err != nil {
			return 0, err
		}
		names = append(names, name)
	}

	var total int64
	for _, name := range names {
		n, err := s.parent.RemoveAll(ctx, target+"/"+name)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Checksum delegates to the parent when it supports checksums.
func (s *SubDevice) Checksum(ctx context.Context, path string) (string, error) {
	if cs, ok := s.parent.(CanChecksum); ok {
		return cs.Checksum(ctx, s.rel(path))
	}
	return "", &PathError{Op: "checksum", Path: path, Err: ErrNotSupported}
}

// IsReadOnly reports whether the parent rejects writes.
func (s *SubDevice) IsReadOnly() bool {
	ro, ok := s.parent.(ReadOnly)
	return ok && ro.IsReadOnly()
}

var (
	_ Device      = (*SubDevice)(nil)
	_ CanChecksum = (*SubDevice)(nil)
	_ ReadOnly    = (*SubDevice)(nil)
)

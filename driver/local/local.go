package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobeaver/resfs"
)

// listBatch is the number of directory entries read per ReadDir call.
const listBatch = 64

// Device provides a local filesystem implementation of resfs.Device
type Device struct {
	root string
}

// New creates a new local filesystem device rooted at root. The root
// directory is created if it does not exist.
func New(root string) (*Device, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	// Ensure the root directory exists
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, err
	}

	return &Device{
		root: absRoot,
	}, nil
}

// Root returns the absolute root directory.
func (d *Device) Root() string {
	return d.root
}

// fullPath maps a device path to a native path, refusing anything that
// escapes the root.
func (d *Device) fullPath(op, path string) (string, error) {
	fullPath := filepath.Join(d.root, filepath.FromSlash(path))
	if !isPathUnderRoot(d.root, fullPath) {
		return "", &resfs.PathError{Op: op, Path: path, Err: resfs.ErrNotAllowed}
	}
	return fullPath, nil
}

// Read implements resfs.DeviceReader
func (d *Device) Read(ctx context.Context, path string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fullPath, err := d.fullPath("read", path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, pathError("read", path, err)
	}
	return data, nil
}

// Size implements resfs.DeviceReader
func (d *Device) Size(ctx context.Context, path string) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	fullPath, err := d.fullPath("size", path)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return 0, pathError("size", path, err)
	}
	if info.IsDir() {
		return 0, &resfs.PathError{Op: "size", Path: path, Err: resfs.ErrIsDir}
	}
	return info.Size(), nil
}

func (d *Device) stat(ctx context.Context, path string) (fs.FileInfo, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	fullPath, err := d.fullPath("stat", path)
	if err != nil {
		return nil, false
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, false
	}
	return info, true
}

// Exists implements resfs.DeviceReader
func (d *Device) Exists(ctx context.Context, path string) bool {
	_, ok := d.stat(ctx, path)
	return ok
}

// IsFile implements resfs.DeviceReader
func (d *Device) IsFile(ctx context.Context, path string) bool {
	info, ok := d.stat(ctx, path)
	return ok && info.Mode().IsRegular()
}

// IsDir implements resfs.DeviceReader
func (d *Device) IsDir(ctx context.Context, path string) bool {
	info, ok := d.stat(ctx, path)
	return ok && info.IsDir()
}

// List implements resfs.DeviceReader. The directory handle is opened when
// iteration starts, read in batches, and closed when the loop ends.
func (d *Device) List(ctx context.Context, path string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		fullPath, err := d.fullPath("list", path)
		if err != nil {
			yield("", err)
			return
		}

		dir, err := os.Open(fullPath)
		if err != nil {
			yield("", pathError("list", path, err))
			return
		}
		defer dir.Close()

		for {
			select {
			case <-ctx.Done():
				yield("", ctx.Err())
				return
			default:
			}

			entries, err := dir.ReadDir(listBatch)
			for _, entry := range entries {
				if !yield(entry.Name(), nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", pathError("list", path, err))
				return
			}
		}
	}
}

// Resolve implements resfs.DeviceReader and returns the absolute native path.
func (d *Device) Resolve(path string) (string, error) {
	return d.fullPath("resolve", path)
}

// Write implements resfs.DeviceWriter. Content is written to a temporary file
// next to the target and renamed into place.
func (d *Device) Write(ctx context.Context, path string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fullPath, err := d.fullPath("write", path)
	if err != nil {
		return err
	}

	// Ensure the directory exists
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return pathError("write", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return pathError("write", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return pathError("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return pathError("write", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return pathError("write", path, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return pathError("write", path, err)
	}
	return nil
}

// MkdirAll implements resfs.DeviceWriter
func (d *Device) MkdirAll(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fullPath, err := d.fullPath("mkdir", path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(fullPath, 0755); err != nil {
		return pathError("mkdir", path, err)
	}
	return nil
}

// Remove implements resfs.DeviceWriter
func (d *Device) Remove(ctx context.Context, path string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	fullPath, err := d.fullPath("remove", path)
	if err != nil {
		return false, err
	}
	if fullPath == d.root {
		return false, &resfs.PathError{Op: "remove", Path: path, Err: resfs.ErrNotAllowed}
	}

	err = os.Remove(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, pathError("remove", path, err)
	}
	return true, nil
}

// RemoveAll implements resfs.DeviceWriter. Removing the root empties it but
// keeps the directory itself.
func (d *Device) RemoveAll(ctx context.Context, path string) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	fullPath, err := d.fullPath("removeall", path)
	if err != nil {
		return 0, err
	}

	var count int64
	err = filepath.WalkDir(fullPath, func(p string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != d.root {
			count++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, pathError("removeall", path, err)
	}

	if fullPath == d.root {
		entries, err := os.ReadDir(fullPath)
		if err != nil {
			return 0, pathError("removeall", path, err)
		}
		for _, entry := range entries {
			if err := os.RemoveAll(filepath.Join(fullPath, entry.Name())); err != nil {
				return 0, pathError("removeall", path, err)
			}
		}
		return count, nil
	}

	if err := os.RemoveAll(fullPath); err != nil {
		return 0, pathError("removeall", path, err)
	}
	return count, nil
}

// Checksum implements resfs.CanChecksum by streaming the file through the hash.
func (d *Device) Checksum(ctx context.Context, path string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	fullPath, err := d.fullPath("checksum", path)
	if err != nil {
		return "", err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return "", pathError("checksum", path, err)
	}
	defer file.Close()

	sum, err := resfs.ChecksumReader(file)
	if err != nil {
		return "", pathError("checksum", path, err)
	}
	return sum, nil
}

// isPathUnderRoot checks if a path is under a given root directory
func isPathUnderRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return !filepath.IsAbs(rel) && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// pathError maps os errors onto the resfs sentinels.
func pathError(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &resfs.PathError{Op: op, Path: path, Err: resfs.ErrNotExist}
	case errors.Is(err, fs.ErrPermission):
		return &resfs.PathError{Op: op, Path: path, Err: resfs.ErrNotAllowed}
	default:
		return &resfs.PathError{Op: op, Path: path, Err: err}
	}
}

// Ensure Device implements interfaces
var (
	_ resfs.Device      = (*Device)(nil)
	_ resfs.CanChecksum = (*Device)(nil)
)

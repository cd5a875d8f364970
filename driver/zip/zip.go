package zip

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"iter"
	"path"
	"sort"
	"strings"

	"github.com/gobeaver/resfs"
)

// Device exposes a ZIP archive as a read-only resfs.Device. Resource packs
// are typically mounted this way.
type Device struct {
	name   string
	reader *zip.Reader
	closer io.Closer
	files  map[string]*zip.File // regular files by normalized path
	dirs   map[string][]string  // directory -> sorted child names
}

// Open opens an existing ZIP file for reading
func Open(zipPath string) (*Device, error) {
	rc, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	d := newDevice(zipPath, &rc.Reader)
	d.closer = rc
	return d, nil
}

// NewReader creates a device over an archive held in r.
func NewReader(name string, r io.ReaderAt, size int64) (*Device, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read zip: %w", err)
	}
	return newDevice(name, zr), nil
}

func newDevice(name string, zr *zip.Reader) *Device {
	d := &Device{
		name:   name,
		reader: zr,
		files:  make(map[string]*zip.File),
		dirs:   map[string][]string{"": nil},
	}

	children := make(map[string]map[string]struct{})
	addChild := func(p string) {
		dir, base := parentOf(p), path.Base(p)
		if children[dir] == nil {
			children[dir] = make(map[string]struct{})
		}
		children[dir][base] = struct{}{}
	}

	// Build the index
	for _, f := range zr.File {
		name := normalizePath(f.Name)
		if name == "" || !isValidPath(name) {
			continue
		}
		if f.FileInfo().IsDir() {
			if _, ok := d.dirs[name]; !ok {
				d.dirs[name] = nil
			}
		} else {
			d.files[name] = f
		}
		addChild(name)

		// Also add parent directories
		for dir := parentOf(name); dir != ""; dir = parentOf(dir) {
			if _, ok := d.dirs[dir]; !ok {
				d.dirs[dir] = nil
			}
			addChild(dir)
		}
	}

	for dir, set := range children {
		names := make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		sort.Strings(names)
		d.dirs[dir] = names
	}
	return d
}

// Close closes the archive when it was opened from a file
func (d *Device) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Read implements resfs.DeviceReader
func (d *Device) Read(ctx context.Context, filePath string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath = normalizePath(filePath)
	f, exists := d.files[filePath]
	if !exists {
		if _, isDir := d.dirs[filePath]; isDir {
			return nil, resfs.NewPathError("read", filePath, resfs.ErrIsDir)
		}
		return nil, resfs.NewPathError("read", filePath, resfs.ErrNotExist)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, resfs.NewPathError("read", filePath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, resfs.NewPathError("read", filePath, err)
	}
	return data, nil
}

// Size implements resfs.DeviceReader and reports the uncompressed size.
func (d *Device) Size(ctx context.Context, filePath string) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	filePath = normalizePath(filePath)
	f, exists := d.files[filePath]
	if !exists {
		return 0, resfs.NewPathError("size", filePath, resfs.ErrNotExist)
	}
	return int64(f.UncompressedSize64), nil
}

// Exists implements resfs.DeviceReader
func (d *Device) Exists(ctx context.Context, p string) bool {
	return d.IsFile(ctx, p) || d.IsDir(ctx, p)
}

// IsFile implements resfs.DeviceReader
func (d *Device) IsFile(_ context.Context, p string) bool {
	_, ok := d.files[normalizePath(p)]
	return ok
}

// IsDir implements resfs.DeviceReader
func (d *Device) IsDir(_ context.Context, p string) bool {
	_, ok := d.dirs[normalizePath(p)]
	return ok
}

// List implements resfs.DeviceReader. Entries come from the index built at
// open time, in name order.
func (d *Device) List(ctx context.Context, dirPath string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		dirPath = normalizePath(dirPath)
		names, ok := d.dirs[dirPath]
		if !ok {
			if _, isFile := d.files[dirPath]; isFile {
				yield("", resfs.NewPathError("list", dirPath, resfs.ErrNotDir))
				return
			}
			yield("", resfs.NewPathError("list", dirPath, resfs.ErrNotExist))
			return
		}
		for _, name := range names {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			if !yield(name, nil) {
				return
			}
		}
	}
}

// Resolve implements resfs.DeviceReader. Archive members have no native path;
// the result names the archive and the member.
func (d *Device) Resolve(p string) (string, error) {
	return d.name + "!/" + normalizePath(p), nil
}

// Checksum implements resfs.CanChecksum.
func (d *Device) Checksum(ctx context.Context, filePath string) (string, error) {
	data, err := d.Read(ctx, filePath)
	if err != nil {
		return "", err
	}
	return resfs.Checksum(data), nil
}

// IsReadOnly implements resfs.ReadOnly.
func (d *Device) IsReadOnly() bool {
	return true
}

// Write implements resfs.DeviceWriter and always fails.
func (d *Device) Write(_ context.Context, p string, _ []byte) error {
	return resfs.NewPathError("write", p, resfs.ErrReadOnly)
}

// MkdirAll implements resfs.DeviceWriter and always fails.
func (d *Device) MkdirAll(_ context.Context, p string) error {
	return resfs.NewPathError("mkdir", p, resfs.ErrReadOnly)
}

// Remove implements resfs.DeviceWriter and always fails.
func (d *Device) Remove(_ context.Context, p string) (bool, error) {
	return false, resfs.NewPathError("remove", p, resfs.ErrReadOnly)
}

// RemoveAll implements resfs.DeviceWriter and always fails.
func (d *Device) RemoveAll(_ context.Context, p string) (int64, error) {
	return 0, resfs.NewPathError("removeall", p, resfs.ErrReadOnly)
}

// normalizePath normalizes a file path
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return path.Clean(p)
}

// isValidPath checks if path is valid (no traversal)
func isValidPath(p string) bool {
	return p != ".." && !strings.HasPrefix(p, "../")
}

func parentOf(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

var (
	_ resfs.Device      = (*Device)(nil)
	_ resfs.CanChecksum = (*Device)(nil)
	_ resfs.ReadOnly    = (*Device)(nil)
)

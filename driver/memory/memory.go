package memory

import (
	"context"
	"iter"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobeaver/resfs"
)

// memoryFile represents a file stored in memory
type memoryFile struct {
	content []byte
	modTime time.Time
}

// Device provides an in-memory implementation of resfs.Device.
// Useful for tests and for generated resources.
type Device struct {
	mu      sync.RWMutex
	files   map[string]*memoryFile
	dirs    map[string]time.Time
	maxSize int64 // Maximum total storage size (0 = unlimited)
	size    int64 // Current total size
}

// Config holds configuration for the memory device
type Config struct {
	// MaxSize is the maximum total storage size in bytes (0 = unlimited)
	MaxSize int64
}

// New creates a new in-memory device
func New(cfg ...Config) *Device {
	var maxSize int64
	if len(cfg) > 0 {
		maxSize = cfg[0].MaxSize
	}

	d := &Device{
		files:   make(map[string]*memoryFile),
		dirs:    make(map[string]time.Time),
		maxSize: maxSize,
	}

	// Root directory
	d.dirs[""] = time.Now()

	return d
}

// Write implements resfs.DeviceWriter
func (d *Device) Write(ctx context.Context, p string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p = normalizePath(p)
	if !isValidPath(p) || p == "" {
		return &resfs.PathError{Op: "write", Path: p, Err: resfs.ErrNotAllowed}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, isDir := d.dirs[p]; isDir {
		return &resfs.PathError{Op: "write", Path: p, Err: resfs.ErrIsDir}
	}
	if err := d.checkParents(p); err != nil {
		return &resfs.PathError{Op: "write", Path: p, Err: err}
	}

	newSize := d.size + int64(len(data))
	if existing, exists := d.files[p]; exists {
		newSize -= int64(len(existing.content))
	}
	if d.maxSize > 0 && newSize > d.maxSize {
		return &resfs.PathError{Op: "write", Path: p, Err: ErrNoSpace}
	}

	d.ensureParentDirs(p)

	// Copy so the caller can reuse its buffer
	content := make([]byte, len(data))
	copy(content, data)

	d.files[p] = &memoryFile{content: content, modTime: time.Now()}
	d.size = newSize
	return nil
}

// Read implements resfs.DeviceReader
func (d *Device) Read(ctx context.Context, p string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p = normalizePath(p)

	d.mu.RLock()
	defer d.mu.RUnlock()

	file, exists := d.files[p]
	if !exists {
		if _, isDir := d.dirs[p]; isDir {
			return nil, &resfs.PathError{Op: "read", Path: p, Err: resfs.ErrIsDir}
		}
		return nil, &resfs.PathError{Op: "read", Path: p, Err: resfs.ErrNotExist}
	}

	// Return a copy of the content to prevent modification
	data := make([]byte, len(file.content))
	copy(data, file.content)
	return data, nil
}

// Size implements resfs.DeviceReader
func (d *Device) Size(ctx context.Context, p string) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	p = normalizePath(p)

	d.mu.RLock()
	defer d.mu.RUnlock()

	file, exists := d.files[p]
	if !exists {
		return 0, &resfs.PathError{Op: "size", Path: p, Err: resfs.ErrNotExist}
	}
	return int64(len(file.content)), nil
}

// Exists implements resfs.DeviceReader
func (d *Device) Exists(ctx context.Context, p string) bool {
	return d.IsFile(ctx, p) || d.IsDir(ctx, p)
}

// IsFile implements resfs.DeviceReader
func (d *Device) IsFile(ctx context.Context, p string) bool {
	if ctx.Err() != nil {
		return false
	}
	p = normalizePath(p)

	d.mu.RLock()
	defer d.mu.RUnlock()

	_, exists := d.files[p]
	return exists
}

// IsDir implements resfs.DeviceReader
func (d *Device) IsDir(ctx context.Context, p string) bool {
	if ctx.Err() != nil {
		return false
	}
	p = normalizePath(p)

	d.mu.RLock()
	defer d.mu.RUnlock()

	_, exists := d.dirs[p]
	return exists
}

// List implements resfs.DeviceReader. The directory is snapshotted when
// iteration starts; entries are yielded in name order.
func (d *Device) List(ctx context.Context, p string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		select {
		case <-ctx.Done():
			yield("", ctx.Err())
			return
		default:
		}

		names, err := d.snapshot(normalizePath(p))
		if err != nil {
			yield("", err)
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

func (d *Device) snapshot(dir string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, exists := d.dirs[dir]; !exists {
		if _, isFile := d.files[dir]; isFile {
			return nil, &resfs.PathError{Op: "list", Path: dir, Err: resfs.ErrNotDir}
		}
		return nil, &resfs.PathError{Op: "list", Path: dir, Err: resfs.ErrNotExist}
	}

	var names []string
	collect := func(p string) {
		if parentOf(p) == dir {
			names = append(names, path.Base(p))
		}
	}
	for p := range d.files {
		collect(p)
	}
	for p := range d.dirs {
		if p != "" {
			collect(p)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Resolve implements resfs.DeviceReader. Memory devices have no native
// location; the normalized path is returned with a mem:// scheme.
func (d *Device) Resolve(p string) (string, error) {
	p = normalizePath(p)
	if !isValidPath(p) {
		return "", &resfs.PathError{Op: "resolve", Path: p, Err: resfs.ErrNotAllowed}
	}
	return "mem:///" + p, nil
}

// MkdirAll implements resfs.DeviceWriter
func (d *Device) MkdirAll(ctx context.Context, p string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p = normalizePath(p)
	if !isValidPath(p) {
		return &resfs.PathError{Op: "mkdir", Path: p, Err: resfs.ErrNotAllowed}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, isFile := d.files[p]; isFile {
		return &resfs.PathError{Op: "mkdir", Path: p, Err: resfs.ErrExist}
	}
	if err := d.checkParents(p); err != nil {
		return &resfs.PathError{Op: "mkdir", Path: p, Err: err}
	}

	if _, exists := d.dirs[p]; !exists {
		d.dirs[p] = time.Now()
	}
	d.ensureParentDirs(p)
	return nil
}

// Remove implements resfs.DeviceWriter
func (d *Device) Remove(ctx context.Context, p string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	p = normalizePath(p)
	if p == "" {
		return false, &resfs.PathError{Op: "remove", Path: p, Err: resfs.ErrNotAllowed}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if file, exists := d.files[p]; exists {
		d.size -= int64(len(file.content))
		delete(d.files, p)
		return true, nil
	}
	if _, exists := d.dirs[p]; !exists {
		return false, nil
	}
	if d.hasChildren(p) {
		return false, &resfs.PathError{Op: "remove", Path: p, Err: ErrDirNotEmpty}
	}
	delete(d.dirs, p)
	return true, nil
}

// RemoveAll implements resfs.DeviceWriter
func (d *Device) RemoveAll(ctx context.Context, p string) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	p = normalizePath(p)
	if !isValidPath(p) {
		return 0, &resfs.PathError{Op: "removeall", Path: p, Err: resfs.ErrNotAllowed}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var removed int64
	for fp, file := range d.files {
		if isUnder(fp, p) {
			d.size -= int64(len(file.content))
			delete(d.files, fp)
			removed++
		}
	}
	for dp := range d.dirs {
		if dp != "" && isUnder(dp, p) {
			delete(d.dirs, dp)
			removed++
		}
	}
	return removed, nil
}

// Checksum implements resfs.CanChecksum.
func (d *Device) Checksum(ctx context.Context, p string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	p = normalizePath(p)

	d.mu.RLock()
	defer d.mu.RUnlock()

	file, exists := d.files[p]
	if !exists {
		return "", &resfs.PathError{Op: "checksum", Path: p, Err: resfs.ErrNotExist}
	}
	return resfs.Checksum(file.content), nil
}

// Clear removes all files and directories
func (d *Device) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.files = make(map[string]*memoryFile)
	d.dirs = map[string]time.Time{"": time.Now()}
	d.size = 0
}

// TotalSize returns the current total size of all files
func (d *Device) TotalSize() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.size
}

// FileCount returns the number of files stored
func (d *Device) FileCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.files)
}

// ensureParentDirs creates all parent directories for a path. Caller holds mu.
func (d *Device) ensureParentDirs(p string) {
	now := time.Now()
	for dir := parentOf(p); dir != ""; dir = parentOf(dir) {
		if _, exists := d.dirs[dir]; exists {
			return
		}
		d.dirs[dir] = now
	}
}

// checkParents fails when a file sits where a parent directory should be.
func (d *Device) checkParents(p string) error {
	for dir := parentOf(p); dir != ""; dir = parentOf(dir) {
		if _, isFile := d.files[dir]; isFile {
			return resfs.ErrNotDir
		}
	}
	return nil
}

func (d *Device) hasChildren(dir string) bool {
	for p := range d.files {
		if parentOf(p) == dir {
			return true
		}
	}
	for p := range d.dirs {
		if p != "" && parentOf(p) == dir {
			return true
		}
	}
	return false
}

// normalizePath cleans a path and strips the leading slash
func normalizePath(p string) string {
	p = strings.TrimPrefix(strings.ReplaceAll(p, `\`, "/"), "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}

// isValidPath checks if a path is valid (no directory traversal)
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

// isUnder reports whether p is root or lies below it.
func isUnder(p, root string) bool {
	return root == "" || p == root || strings.HasPrefix(p, root+"/")
}

// Ensure Device implements interfaces
var (
	_ resfs.Device      = (*Device)(nil)
	_ resfs.CanChecksum = (*Device)(nil)
)

package resfs

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
)

// ============================================================================
// Existence queries (soft)
// ============================================================================
// These never fail. An unmounted entry point, a path without entry point or a
// native location all resolve to false.

// Exists reports whether anything exists at p.
func (r *Registry) Exists(ctx context.Context, p Path) bool {
	dev, ok := r.lookupPath(p)
	if !ok {
		return false
	}
	return dev.Exists(ctx, p.PathPart())
}

// IsFile reports whether a regular file exists at p.
func (r *Registry) IsFile(ctx context.Context, p Path) bool {
	dev, ok := r.lookupPath(p)
	if !ok {
		return false
	}
	return dev.IsFile(ctx, p.PathPart())
}

// IsDir reports whether a directory exists at p.
func (r *Registry) IsDir(ctx context.Context, p Path) bool {
	dev, ok := r.lookupPath(p)
	if !ok {
		return false
	}
	return dev.IsDir(ctx, p.PathPart())
}

// ============================================================================
// Required operations (hard)
// ============================================================================
// These fail with ErrDeviceNotFound when the entry point is not mounted, and
// surface backend failures as ErrNotExist or ErrIO.

// ReadBytes returns the full content of the file at p.
func (r *Registry) ReadBytes(ctx context.Context, p Path) ([]byte, error) {
	dev, err := r.requirePath("read", p)
	if err != nil {
		return nil, err
	}
	data, err := dev.Read(ctx, p.PathPart())
	if err != nil {
		return nil, deviceError("read", p, err)
	}
	return data, nil
}

// ReadString returns the content of the file at p as text.
func (r *Registry) ReadString(ctx context.Context, p Path) (string, error) {
	data, err := r.ReadBytes(ctx, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadLines returns the non-empty lines of the text file at p with
// surrounding whitespace trimmed. Lines starting with '#' are skipped.
func (r *Registry) ReadLines(ctx context.Context, p Path) ([]string, error) {
	text, err := r.ReadString(ctx, p)
	if err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), len(text)+1)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, deviceError("readlines", p, err)
	}
	return lines, nil
}

// WriteBytes replaces the content of the file at p.
func (r *Registry) WriteBytes(ctx context.Context, p Path, data []byte) error {
	dev, err := r.requirePath("write", p)
	if err != nil {
		return err
	}
	return deviceError("write", p, dev.Write(ctx, p.PathPart(), data))
}

// WriteString replaces the content of the file at p with text.
func (r *Registry) WriteString(ctx context.Context, p Path, text string) error {
	return r.WriteBytes(ctx, p, []byte(text))
}

// WriteJSON encodes v as JSON and writes it to p. Pretty output is indented
// with two spaces.
func (r *Registry) WriteJSON(ctx context.Context, p Path, v any, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return &PathError{Op: "writejson", Path: p.String(), Err: err}
	}
	return r.WriteBytes(ctx, p, data)
}

// Size returns the size in bytes of the file at p.
func (r *Registry) Size(ctx context.Context, p Path) (int64, error) {
	dev, err := r.requirePath("size", p)
	if err != nil {
		return 0, err
	}
	size, err := dev.Size(ctx, p.PathPart())
	if err != nil {
		return 0, deviceError("size", p, err)
	}
	return size, nil
}

// MkdirAll creates the directory at p and any missing parents. It returns
// false when the directory already existed.
func (r *Registry) MkdirAll(ctx context.Context, p Path) (bool, error) {
	dev, err := r.requirePath("mkdir", p)
	if err != nil {
		return false, err
	}
	if dev.IsDir(ctx, p.PathPart()) {
		return false, nil
	}
	if err := dev.MkdirAll(ctx, p.PathPart()); err != nil {
		return false, deviceError("mkdir", p, err)
	}
	return true, nil
}

// Remove deletes the file or empty directory at p. It returns false when
// nothing existed there.
func (r *Registry) Remove(ctx context.Context, p Path) (bool, error) {
	dev, err := r.requirePath("remove", p)
	if err != nil {
		return false, err
	}
	removed, err := dev.Remove(ctx, p.PathPart())
	if err != nil {
		return false, deviceError("remove", p, err)
	}
	return removed, nil
}

// RemoveAll deletes p and everything below it, returning the number of
// removed entries.
func (r *Registry) RemoveAll(ctx context.Context, p Path) (int64, error) {
	dev, err := r.requirePath("removeall", p)
	if err != nil {
		return 0, err
	}
	n, err := dev.RemoveAll(ctx, p.PathPart())
	if err != nil {
		return n, deviceError("removeall", p, err)
	}
	return n, nil
}

// Resolve maps p to the native location its device reports, for handing
// files to external tools.
func (r *Registry) Resolve(p Path) (string, error) {
	dev, err := r.requirePath("resolve", p)
	if err != nil {
		return "", err
	}
	native, err := dev.Resolve(p.PathPart())
	if err != nil {
		return "", deviceError("resolve", p, err)
	}
	return native, nil
}

// List returns a single-use iterator over the entry names of the directory at
// p. The device is resolved immediately; the backend is only touched once
// iteration starts.
func (r *Registry) List(ctx context.Context, p Path) (*DirIterator, error) {
	dev, err := r.requirePath("list", p)
	if err != nil {
		return nil, err
	}
	return newDirIterator(p, dev.List(ctx, p.PathPart())), nil
}

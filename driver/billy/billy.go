// Package billy mounts a go-billy filesystem as a resfs device. Any billy
// implementation works: memfs for scratch space, osfs for a directory, or a
// worktree filesystem handed out by go-git.
package billy

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"os"
	"path"
	"strings"

	gobilly "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/gobeaver/resfs"
)

// Device adapts a billy.Filesystem to resfs.Device.
type Device struct {
	fs gobilly.Filesystem
}

// New wraps fs.
func New(fs gobilly.Filesystem) *Device {
	return &Device{fs: fs}
}

// Filesystem returns the wrapped filesystem.
func (d *Device) Filesystem() gobilly.Filesystem {
	return d.fs
}

func clean(p string) (string, bool) {
	p = strings.TrimPrefix(strings.ReplaceAll(p, `\`, "/"), "/")
	if p == "" {
		return "", true
	}
	p = path.Clean(p)
	if p == "." {
		return "", true
	}
	return p, p != ".." && !strings.HasPrefix(p, "../")
}

func (d *Device) target(op, p string) (string, error) {
	name, ok := clean(p)
	if !ok {
		return "", resfs.NewPathError(op, p, resfs.ErrNotAllowed)
	}
	if name == "" {
		return ".", nil
	}
	return name, nil
}

func (d *Device) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := d.target("read", p)
	if err != nil {
		return nil, err
	}
	if info, err := d.fs.Stat(name); err == nil && info.IsDir() {
		return nil, resfs.NewPathError("read", p, resfs.ErrIsDir)
	}
	data, err := util.ReadFile(d.fs, name)
	if err != nil {
		return nil, pathError("read", p, err)
	}
	return data, nil
}

func (d *Device) Size(ctx context.Context, p string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	name, err := d.target("size", p)
	if err != nil {
		return 0, err
	}
	info, err := d.fs.Stat(name)
	if err != nil {
		return 0, pathError("size", p, err)
	}
	if info.IsDir() {
		return 0, resfs.NewPathError("size", p, resfs.ErrIsDir)
	}
	return info.Size(), nil
}

func (d *Device) stat(p string) (os.FileInfo, bool) {
	name, err := d.target("stat", p)
	if err != nil {
		return nil, false
	}
	info, err := d.fs.Stat(name)
	return info, err == nil
}

func (d *Device) Exists(_ context.Context, p string) bool {
	_, ok := d.stat(p)
	return ok
}

func (d *Device) IsFile(_ context.Context, p string) bool {
	info, ok := d.stat(p)
	return ok && !info.IsDir()
}

func (d *Device) IsDir(_ context.Context, p string) bool {
	info, ok := d.stat(p)
	return ok && info.IsDir()
}

// List reads the directory when iteration starts. billy has no streaming
// directory reads, so the entries are held for the duration of the loop.
func (d *Device) List(ctx context.Context, p string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		name, err := d.target("list", p)
		if err != nil {
			yield("", err)
			return
		}
		infos, err := d.fs.ReadDir(name)
		if err != nil {
			yield("", pathError("list", p, err))
			return
		}
		for _, info := range infos {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			if !yield(info.Name(), nil) {
				return
			}
		}
	}
}

// Resolve joins p onto the filesystem root.
func (d *Device) Resolve(p string) (string, error) {
	name, err := d.target("resolve", p)
	if err != nil {
		return "", err
	}
	return d.fs.Join(d.fs.Root(), name), nil
}

func (d *Device) Write(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := d.target("write", p)
	if err != nil {
		return err
	}
	if name == "." {
		return resfs.NewPathError("write", p, resfs.ErrIsDir)
	}
	if dir := path.Dir(name); dir != "." {
		if err := d.fs.MkdirAll(dir, 0755); err != nil {
			return pathError("write", p, err)
		}
	}
	if err := util.WriteFile(d.fs, name, data, 0644); err != nil {
		return pathError("write", p, err)
	}
	return nil
}

func (d *Device) MkdirAll(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := d.target("mkdir", p)
	if err != nil {
		return err
	}
	if err := d.fs.MkdirAll(name, 0755); err != nil {
		return pathError("mkdir", p, err)
	}
	return nil
}

func (d *Device) Remove(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	name, err := d.target("remove", p)
	if err != nil {
		return false, err
	}
	if name == "." {
		return false, resfs.NewPathError("remove", p, resfs.ErrNotAllowed)
	}
	if _, err := d.fs.Lstat(name); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := d.fs.Remove(name); err != nil {
		return false, pathError("remove", p, err)
	}
	return true, nil
}

// RemoveAll counts the entries below p before removing them with
// util.RemoveAll.
func (d *Device) RemoveAll(ctx context.Context, p string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	name, err := d.target("removeall", p)
	if err != nil {
		return 0, err
	}

	var count int64
	err = util.Walk(d.fs, name, func(walked string, _ os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if walked != name || name != "." {
			count++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, pathError("removeall", p, err)
	}

	if name == "." {
		infos, err := d.fs.ReadDir(name)
		if err != nil {
			return 0, pathError("removeall", p, err)
		}
		for _, info := range infos {
			if err := util.RemoveAll(d.fs, info.Name()); err != nil {
				return 0, pathError("removeall", p, err)
			}
		}
		return count, nil
	}

	if err := util.RemoveAll(d.fs, name); err != nil {
		return 0, pathError("removeall", p, err)
	}
	return count, nil
}

func pathError(op, p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return resfs.NewPathError(op, p, resfs.ErrNotExist)
	}
	return resfs.NewPathError(op, p, err)
}

var _ resfs.Device = (*Device)(nil)

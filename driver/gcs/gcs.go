package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/gobeaver/resfs"
	"google.golang.org/api/iterator"
)

// Bucket is the subset of bucket operations the device uses. Buckets
// obtained from a *storage.Client are adapted by New.
type Bucket interface {
	NewReader(ctx context.Context, name string) (io.ReadCloser, error)
	Attrs(ctx context.Context, name string) (*storage.ObjectAttrs, error)
	Write(ctx context.Context, name string, data []byte, contentType string) error
	Delete(ctx context.Context, name string) error
	Objects(ctx context.Context, q *storage.Query) ObjectIterator
}

// ObjectIterator yields object attributes until it returns iterator.Done.
// *storage.ObjectIterator satisfies it.
type ObjectIterator interface {
	Next() (*storage.ObjectAttrs, error)
}

// bucketHandle adapts *storage.BucketHandle to Bucket.
type bucketHandle struct {
	b *storage.BucketHandle
}

func (h bucketHandle) NewReader(ctx context.Context, name string) (io.ReadCloser, error) {
	return h.b.Object(name).NewReader(ctx)
}

func (h bucketHandle) Attrs(ctx context.Context, name string) (*storage.ObjectAttrs, error) {
	return h.b.Object(name).Attrs(ctx)
}

func (h bucketHandle) Write(ctx context.Context, name string, data []byte, contentType string) error {
	// Cancelling the context aborts the upload if the copy fails.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := h.b.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (h bucketHandle) Delete(ctx context.Context, name string) error {
	return h.b.Object(name).Delete(ctx)
}

func (h bucketHandle) Objects(ctx context.Context, q *storage.Query) ObjectIterator {
	return h.b.Objects(ctx, q)
}

// Device provides a Google Cloud Storage implementation of resfs.Device.
// Directories are name prefixes; MkdirAll writes an empty "dir/" marker.
type Device struct {
	bucket Bucket
	name   string
	prefix string
}

// DeviceOption is a function that configures a Device
type DeviceOption func(*Device)

// WithPrefix sets the prefix for GCS objects
func WithPrefix(prefix string) DeviceOption {
	return func(d *Device) {
		prefix = strings.Trim(prefix, "/")
		// Ensure prefix ends with a slash if it's not empty
		if prefix != "" {
			prefix += "/"
		}
		d.prefix = prefix
	}
}

// New creates a device over the named bucket.
func New(client *storage.Client, bucket string, options ...DeviceOption) *Device {
	return NewFromBucket(bucketHandle{b: client.Bucket(bucket)}, bucket, options...)
}

// NewFromBucket creates a device over any Bucket implementation. name is
// only used by Resolve.
func NewFromBucket(bucket Bucket, name string, options ...DeviceOption) *Device {
	d := &Device{
		bucket: bucket,
		name:   name,
	}

	// Apply options
	for _, option := range options {
		option(d)
	}

	return d
}

func (d *Device) key(p string) string {
	p = strings.Trim(strings.ReplaceAll(p, `\`, "/"), "/")
	if p == "" {
		return d.prefix
	}
	return d.prefix + path.Clean(p)
}

// dirKey returns the listing prefix for the directory at p.
func (d *Device) dirKey(p string) string {
	key := d.key(p)
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	return key
}

// Read implements resfs.DeviceReader
func (d *Device) Read(ctx context.Context, filePath string) ([]byte, error) {
	r, err := d.bucket.NewReader(ctx, d.key(filePath))
	if err != nil {
		return nil, mapGCSError("read", filePath, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, resfs.NewPathError("read", filePath, err)
	}
	return data, nil
}

// Size implements resfs.DeviceReader
func (d *Device) Size(ctx context.Context, filePath string) (int64, error) {
	attrs, err := d.bucket.Attrs(ctx, d.key(filePath))
	if err != nil {
		return 0, mapGCSError("size", filePath, err)
	}
	return attrs.Size, nil
}

// Exists implements resfs.DeviceReader
func (d *Device) Exists(ctx context.Context, p string) bool {
	return d.IsFile(ctx, p) || d.IsDir(ctx, p)
}

// IsFile implements resfs.DeviceReader
func (d *Device) IsFile(ctx context.Context, filePath string) bool {
	key := d.key(filePath)
	if key == "" || strings.HasSuffix(key, "/") {
		return false
	}
	_, err := d.bucket.Attrs(ctx, key)
	return err == nil
}

// IsDir implements resfs.DeviceReader. A directory exists when any object
// carries its prefix; the device root always exists.
func (d *Device) IsDir(ctx context.Context, dirPath string) bool {
	key := d.dirKey(dirPath)
	if key == d.prefix {
		return true
	}
	_, err := d.bucket.Objects(ctx, &storage.Query{Prefix: key}).Next()
	return err == nil
}

// List implements resfs.DeviceReader. The object iterator fetches pages as
// the consumer advances.
func (d *Device) List(ctx context.Context, dirPath string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		listPrefix := d.dirKey(dirPath)
		it := d.bucket.Objects(ctx, &storage.Query{
			Prefix:    listPrefix,
			Delimiter: "/",
		})

		empty := true
		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				yield("", mapGCSError("list", dirPath, err))
				return
			}

			// Synthetic directory entries carry only a prefix
			var name string
			if attrs.Prefix != "" {
				name = strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, listPrefix), "/")
			} else {
				name = strings.TrimPrefix(attrs.Name, listPrefix)
			}
			empty = false
			// Skip the directory marker itself
			if name == "" {
				continue
			}
			if !yield(name, nil) {
				return
			}
		}

		if empty && listPrefix != d.prefix {
			yield("", resfs.NewPathError("list", dirPath, resfs.ErrNotExist))
		}
	}
}

// Resolve implements resfs.DeviceReader and returns a gs:// URL.
func (d *Device) Resolve(p string) (string, error) {
	return fmt.Sprintf("gs://%s/%s", d.name, d.key(p)), nil
}

// Write implements resfs.DeviceWriter. The content type is guessed from the
// name and content.
func (d *Device) Write(ctx context.Context, filePath string, data []byte) error {
	key := d.key(filePath)
	if key == d.prefix {
		return resfs.NewPathError("write", filePath, resfs.ErrIsDir)
	}
	contentType := resfs.GuessContentType(resfs.NewPath(filePath), data)
	if err := d.bucket.Write(ctx, key, data, contentType); err != nil {
		return mapGCSError("write", filePath, err)
	}
	return nil
}

// MkdirAll implements resfs.DeviceWriter
func (d *Device) MkdirAll(ctx context.Context, dirPath string) error {
	key := d.dirKey(dirPath)
	if key == d.prefix {
		return nil
	}
	if err := d.bucket.Write(ctx, key, nil, "application/x-directory"); err != nil {
		return mapGCSError("mkdir", dirPath, err)
	}
	return nil
}

// Remove implements resfs.DeviceWriter. A directory is removed only when
// nothing but its marker remains.
func (d *Device) Remove(ctx context.Context, p string) (bool, error) {
	if d.IsFile(ctx, p) {
		return true, d.deleteKey(ctx, "remove", p, d.key(p))
	}

	dirKey := d.dirKey(p)
	if dirKey == d.prefix {
		return false, resfs.NewPathError("remove", p, resfs.ErrNotAllowed)
	}

	it := d.bucket.Objects(ctx, &storage.Query{Prefix: dirKey})
	var names []string
	for len(names) < 2 {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return false, mapGCSError("remove", p, err)
		}
		names = append(names, attrs.Name)
	}

	switch {
	case len(names) == 0:
		return false, nil
	case len(names) == 1 && names[0] == dirKey:
		return true, d.deleteKey(ctx, "remove", p, dirKey)
	default:
		return false, resfs.NewPathError("remove", p, ErrDirNotEmpty)
	}
}

// RemoveAll implements resfs.DeviceWriter
func (d *Device) RemoveAll(ctx context.Context, p string) (int64, error) {
	var removed int64
	if d.IsFile(ctx, p) {
		if err := d.deleteKey(ctx, "removeall", p, d.key(p)); err != nil {
			return 0, err
		}
		removed++
	}

	it := d.bucket.Objects(ctx, &storage.Query{Prefix: d.dirKey(p)})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return removed, nil
		}
		if err != nil {
			return removed, mapGCSError("removeall", p, err)
		}
		if err := d.deleteKey(ctx, "removeall", p, attrs.Name); err != nil {
			return removed, err
		}
		removed++
	}
}

func (d *Device) deleteKey(ctx context.Context, op, p, key string) error {
	if err := d.bucket.Delete(ctx, key); err != nil {
		return mapGCSError(op, p, err)
	}
	return nil
}

// ErrDirNotEmpty is returned by Remove on a prefix that still holds objects.
var ErrDirNotEmpty = errors.New("directory not empty")

// mapGCSError maps GCS errors to resfs errors
func mapGCSError(op, filePath string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return resfs.NewPathError(op, filePath, resfs.ErrNotExist)
	}
	return resfs.NewPathError(op, filePath, err)
}

var _ resfs.Device = (*Device)(nil)

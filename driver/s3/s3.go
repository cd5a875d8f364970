package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gobeaver/resfs"
)

// API is the subset of *s3.Client the device uses.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Device provides an S3 implementation of resfs.Device. Directories are
// key prefixes; MkdirAll writes an empty "dir/" marker object.
type Device struct {
	client   API
	bucket   string
	prefix   string
	pageSize int32
}

// DeviceOption is a function that configures a Device
type DeviceOption func(*Device)

// WithPrefix sets the prefix for S3 objects
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

// WithPageSize sets how many keys List requests per page.
func WithPageSize(n int32) DeviceOption {
	return func(d *Device) {
		d.pageSize = n
	}
}

// New creates a new S3 device
func New(client API, bucket string, options ...DeviceOption) *Device {
	d := &Device{
		client:   client,
		bucket:   bucket,
		pageSize: 1000,
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
	resp, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(filePath)),
	})
	if err != nil {
		return nil, mapS3Error("read", filePath, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resfs.NewPathError("read", filePath, err)
	}
	return data, nil
}

// Size implements resfs.DeviceReader
func (d *Device) Size(ctx context.Context, filePath string) (int64, error) {
	resp, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(filePath)),
	})
	if err != nil {
		return 0, mapS3Error("size", filePath, err)
	}
	return aws.ToInt64(resp.ContentLength), nil
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
	_, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	return err == nil
}

// IsDir implements resfs.DeviceReader. A directory exists when any object
// carries its prefix; the device root always exists.
func (d *Device) IsDir(ctx context.Context, dirPath string) bool {
	key := d.dirKey(dirPath)
	if key == d.prefix {
		return true
	}
	resp, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.bucket),
		Prefix:  aws.String(key),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false
	}
	return len(resp.Contents) > 0 || len(resp.CommonPrefixes) > 0
}

// List implements resfs.DeviceReader. Pages are fetched as the consumer
// advances; stopping early leaves the remaining pages unrequested.
func (d *Device) List(ctx context.Context, dirPath string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		listPrefix := d.dirKey(dirPath)
		paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
			Bucket:    aws.String(d.bucket),
			Prefix:    aws.String(listPrefix),
			Delimiter: aws.String("/"),
			MaxKeys:   aws.Int32(d.pageSize),
		})

		empty := true
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield("", mapS3Error("list", dirPath, err))
				return
			}

			// Add directories (common prefixes)
			for _, p := range page.CommonPrefixes {
				name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), listPrefix), "/")
				if name == "" {
					continue
				}
				empty = false
				if !yield(name, nil) {
					return
				}
			}

			// Add files
			for _, obj := range page.Contents {
				name := strings.TrimPrefix(aws.ToString(obj.Key), listPrefix)
				// Skip the directory marker itself
				if name == "" {
					empty = false
					continue
				}
				empty = false
				if !yield(name, nil) {
					return
				}
			}
		}

		if empty && listPrefix != d.prefix {
			yield("", resfs.NewPathError("list", dirPath, resfs.ErrNotExist))
		}
	}
}

// Resolve implements resfs.DeviceReader and returns an s3:// URL.
func (d *Device) Resolve(p string) (string, error) {
	return fmt.Sprintf("s3://%s/%s", d.bucket, d.key(p)), nil
}

// Write implements resfs.DeviceWriter
func (d *Device) Write(ctx context.Context, filePath string, data []byte) error {
	key := d.key(filePath)
	if key == d.prefix {
		return resfs.NewPathError("write", filePath, resfs.ErrIsDir)
	}
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return mapS3Error("write", filePath, err)
	}
	return nil
}

// MkdirAll implements resfs.DeviceWriter
func (d *Device) MkdirAll(ctx context.Context, dirPath string) error {
	// S3 doesn't have real directories, but we can create an empty object with a trailing slash
	key := d.dirKey(dirPath)
	if key == d.prefix {
		return nil
	}
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(nil),
		ContentType: aws.String("application/x-directory"),
	})
	if err != nil {
		return mapS3Error("mkdir", dirPath, err)
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
	resp, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.bucket),
		Prefix:  aws.String(dirKey),
		MaxKeys: aws.Int32(2),
	})
	if err != nil {
		return false, mapS3Error("remove", p, err)
	}
	switch {
	case len(resp.Contents) == 0:
		return false, nil
	case len(resp.Contents) == 1 && aws.ToString(resp.Contents[0].Key) == dirKey:
		return true, d.deleteKey(ctx, "remove", p, dirKey)
	default:
		return false, resfs.NewPathError("remove", p, ErrDirNotEmpty)
	}
}

// RemoveAll implements resfs.DeviceWriter. Objects are deleted a page at a
// time.
func (d *Device) RemoveAll(ctx context.Context, p string) (int64, error) {
	var removed int64
	if d.IsFile(ctx, p) {
		if err := d.deleteKey(ctx, "removeall", p, d.key(p)); err != nil {
			return 0, err
		}
		removed++
	}

	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.bucket),
		Prefix:  aws.String(d.dirKey(p)),
		MaxKeys: aws.Int32(d.pageSize),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return removed, mapS3Error("removeall", p, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, len(page.Contents))
		for i, obj := range page.Contents {
			objects[i] = types.ObjectIdentifier{Key: obj.Key}
		}
		resp, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(d.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return removed, mapS3Error("removeall", p, err)
		}
		if len(resp.Errors) > 0 {
			e := resp.Errors[0]
			return removed, resfs.NewPathError("removeall", aws.ToString(e.Key), errors.New(aws.ToString(e.Message)))
		}
		removed += int64(len(objects))
	}
	return removed, nil
}

func (d *Device) deleteKey(ctx context.Context, op, p, key string) error {
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapS3Error(op, p, err)
	}
	return nil
}

// ErrDirNotEmpty is returned by Remove on a prefix that still holds objects.
var ErrDirNotEmpty = errors.New("directory not empty")

// mapS3Error maps S3 errors to resfs errors
func mapS3Error(op, filePath string, err error) error {
	var nsk *types.NoSuchKey
	var notFound *types.NotFound

	if errors.As(err, &nsk) || errors.As(err, &notFound) {
		return resfs.NewPathError(op, filePath, resfs.ErrNotExist)
	}
	return resfs.NewPathError(op, filePath, err)
}

var _ resfs.Device = (*Device)(nil)

package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/gobeaver/resfs"
)

// BlobItem is a blob returned by a listing.
type BlobItem struct {
	Name string
	Size int64
}

// ListPage is one page of a blob listing. Prefixes are only filled for
// hierarchical listings.
type ListPage struct {
	Blobs    []BlobItem
	Prefixes []string
}

// Pager fetches listing pages on demand.
type Pager interface {
	More() bool
	NextPage(ctx context.Context) (ListPage, error)
}

// API is the subset of container operations the device uses. Container
// clients are adapted by New.
type API interface {
	Download(ctx context.Context, name string) (io.ReadCloser, error)
	Size(ctx context.Context, name string) (int64, error)
	Upload(ctx context.Context, name string, data []byte, contentType string) error
	Delete(ctx context.Context, name string) error
	// List pages through blobs under prefix. A non-empty delimiter groups
	// deeper names into Prefixes.
	List(prefix, delimiter string, pageSize int32) Pager
}

// containerAPI adapts *container.Client to API.
type containerAPI struct {
	c *container.Client
}

func (a containerAPI) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := a.c.NewBlobClient(name).DownloadStream(ctx, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (a containerAPI) Size(ctx context.Context, name string) (int64, error) {
	props, err := a.c.NewBlobClient(name).GetProperties(ctx, nil)
	if err != nil {
		return 0, err
	}
	return deref(props.ContentLength), nil
}

func (a containerAPI) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := a.c.NewBlockBlobClient(name).UploadBuffer(ctx, data, &blockblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr(contentType),
		},
	})
	return err
}

func (a containerAPI) Delete(ctx context.Context, name string) error {
	_, err := a.c.NewBlobClient(name).Delete(ctx, nil)
	return err
}

func (a containerAPI) List(prefix, delimiter string, pageSize int32) Pager {
	if delimiter == "" {
		return flatPager{p: a.c.NewListBlobsFlatPager(&container.ListBlobsFlatOptions{
			Prefix:     to.Ptr(prefix),
			MaxResults: to.Ptr(pageSize),
		})}
	}
	return hierarchyPager{p: a.c.NewListBlobsHierarchyPager(delimiter, &container.ListBlobsHierarchyOptions{
		Prefix:     to.Ptr(prefix),
		MaxResults: to.Ptr(pageSize),
	})}
}

type flatPager struct {
	p *runtime.Pager[container.ListBlobsFlatResponse]
}

func (f flatPager) More() bool { return f.p.More() }

func (f flatPager) NextPage(ctx context.Context) (ListPage, error) {
	resp, err := f.p.NextPage(ctx)
	if err != nil {
		return ListPage{}, err
	}
	var page ListPage
	if resp.Segment != nil {
		page.Blobs = blobItems(resp.Segment.BlobItems)
	}
	return page, nil
}

type hierarchyPager struct {
	p *runtime.Pager[container.ListBlobsHierarchyResponse]
}

func (h hierarchyPager) More() bool { return h.p.More() }

func (h hierarchyPager) NextPage(ctx context.Context) (ListPage, error) {
	resp, err := h.p.NextPage(ctx)
	if err != nil {
		return ListPage{}, err
	}
	var page ListPage
	if resp.Segment != nil {
		page.Blobs = blobItems(resp.Segment.BlobItems)
		for _, prefix := range resp.Segment.BlobPrefixes {
			if prefix.Name != nil {
				page.Prefixes = append(page.Prefixes, *prefix.Name)
			}
		}
	}
	return page, nil
}

func blobItems(items []*container.BlobItem) []BlobItem {
	out := make([]BlobItem, 0, len(items))
	for _, item := range items {
		if item.Name == nil {
			continue
		}
		b := BlobItem{Name: *item.Name}
		if item.Properties != nil {
			b.Size = deref(item.Properties.ContentLength)
		}
		out = append(out, b)
	}
	return out
}

func deref(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

// Device provides an Azure Blob Storage implementation of resfs.Device.
// Directories are name prefixes; MkdirAll writes an empty "dir/" marker.
type Device struct {
	api       API
	container string
	prefix    string
	pageSize  int32
}

// DeviceOption is a function that configures a Device
type DeviceOption func(*Device)

// WithPrefix sets the prefix for blob names
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

// WithPageSize sets how many blobs List requests per page.
func WithPageSize(n int32) DeviceOption {
	return func(d *Device) {
		d.pageSize = n
	}
}

// New creates a device over a container client.
func New(client *container.Client, options ...DeviceOption) *Device {
	name := ""
	if u := client.URL(); u != "" {
		name = strings.TrimSuffix(u, "/")
	}
	return NewFromAPI(containerAPI{c: client}, name, options...)
}

// NewFromAPI creates a device over any API implementation. containerURL is
// only used by Resolve.
func NewFromAPI(api API, containerURL string, options ...DeviceOption) *Device {
	d := &Device{
		api:       api,
		container: containerURL,
		pageSize:  5000,
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
	body, err := d.api.Download(ctx, d.key(filePath))
	if err != nil {
		return nil, mapAzureError("read", filePath, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, resfs.NewPathError("read", filePath, err)
	}
	return data, nil
}

// Size implements resfs.DeviceReader
func (d *Device) Size(ctx context.Context, filePath string) (int64, error) {
	size, err := d.api.Size(ctx, d.key(filePath))
	if err != nil {
		return 0, mapAzureError("size", filePath, err)
	}
	return size, nil
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
	_, err := d.api.Size(ctx, key)
	return err == nil
}

// IsDir implements resfs.DeviceReader. A directory exists when any blob
// carries its prefix; the device root always exists.
func (d *Device) IsDir(ctx context.Context, dirPath string) bool {
	key := d.dirKey(dirPath)
	if key == d.prefix {
		return true
	}
	pager := d.api.List(key, "", 1)
	if !pager.More() {
		return false
	}
	page, err := pager.NextPage(ctx)
	return err == nil && len(page.Blobs) > 0
}

// List implements resfs.DeviceReader. Pages are fetched as the consumer
// advances.
func (d *Device) List(ctx context.Context, dirPath string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		listPrefix := d.dirKey(dirPath)
		pager := d.api.List(listPrefix, "/", d.pageSize)

		empty := true
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				yield("", mapAzureError("list", dirPath, err))
				return
			}

			// Add directories (blob prefixes)
			for _, prefix := range page.Prefixes {
				name := strings.TrimSuffix(strings.TrimPrefix(prefix, listPrefix), "/")
				if name == "" {
					continue
				}
				empty = false
				if !yield(name, nil) {
					return
				}
			}

			// Add files
			for _, item := range page.Blobs {
				name := strings.TrimPrefix(item.Name, listPrefix)
				empty = false
				// Skip the directory marker itself
				if name == "" {
					continue
				}
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

// Resolve implements resfs.DeviceReader and returns the blob URL.
func (d *Device) Resolve(p string) (string, error) {
	return fmt.Sprintf("%s/%s", d.container, d.key(p)), nil
}

// Write implements resfs.DeviceWriter. The content type is guessed from the
// name and content.
func (d *Device) Write(ctx context.Context, filePath string, data []byte) error {
	key := d.key(filePath)
	if key == d.prefix {
		return resfs.NewPathError("write", filePath, resfs.ErrIsDir)
	}
	contentType := resfs.GuessContentType(resfs.NewPath(filePath), data)
	if err := d.api.Upload(ctx, key, data, contentType); err != nil {
		return mapAzureError("write", filePath, err)
	}
	return nil
}

// MkdirAll implements resfs.DeviceWriter
func (d *Device) MkdirAll(ctx context.Context, dirPath string) error {
	key := d.dirKey(dirPath)
	if key == d.prefix {
		return nil
	}
	if err := d.api.Upload(ctx, key, nil, "application/x-directory"); err != nil {
		return mapAzureError("mkdir", dirPath, err)
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

	pager := d.api.List(dirKey, "", 2)
	var page ListPage
	if pager.More() {
		var err error
		if page, err = pager.NextPage(ctx); err != nil {
			return false, mapAzureError("remove", p, err)
		}
	}

	switch {
	case len(page.Blobs) == 0:
		return false, nil
	case len(page.Blobs) == 1 && page.Blobs[0].Name == dirKey:
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

	// Collect first so deletions do not disturb the listing
	var names []string
	pager := d.api.List(d.dirKey(p), "", d.pageSize)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return removed, mapAzureError("removeall", p, err)
		}
		for _, item := range page.Blobs {
			names = append(names, item.Name)
		}
	}

	for _, name := range names {
		if err := d.deleteKey(ctx, "removeall", p, name); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (d *Device) deleteKey(ctx context.Context, op, p, key string) error {
	if err := d.api.Delete(ctx, key); err != nil {
		return mapAzureError(op, p, err)
	}
	return nil
}

// ErrDirNotEmpty is returned by Remove on a prefix that still holds blobs.
var ErrDirNotEmpty = errors.New("directory not empty")

// mapAzureError maps Azure errors to resfs errors
func mapAzureError(op, filePath string, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return resfs.NewPathError(op, filePath, resfs.ErrNotExist)
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return resfs.NewPathError(op, filePath, resfs.ErrNotExist)
	}
	return resfs.NewPathError(op, filePath, err)
}

var _ resfs.Device = (*Device)(nil)

package s3

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gobeaver/resfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory bucket implementing API.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	listCalls int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, obj := range in.Delete.Objects {
		delete(f.objects, aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

// ListObjectsV2 pages over keys and common prefixes merged in key order.
// The continuation token is the last entry of the previous page.
func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	type entry struct {
		key      string
		isPrefix bool
	}
	seen := map[string]bool{}
	var entries []entry
	for key := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+len(delim)]
				if !seen[cp] {
					seen[cp] = true
					entries = append(entries, entry{key: cp, isPrefix: true})
				}
				continue
			}
		}
		entries = append(entries, entry{key: key})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start = sort.Search(len(entries), func(i int) bool { return entries[i].key > tok })
	}
	limit := int(aws.ToInt32(in.MaxKeys))
	if limit <= 0 {
		limit = 1000
	}
	end := min(start+limit, len(entries))

	out := &s3.ListObjectsV2Output{}
	for _, e := range entries[start:end] {
		if e.isPrefix {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(e.key)})
		} else {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(e.key)})
		}
	}
	if end < len(entries) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(entries[end-1].key)
	}
	return out, nil
}

func TestReadWrite(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	d := New(api, "bucket", WithPrefix("/assets"))

	require.NoError(t, d.Write(ctx, "textures/block.png", []byte("png")))
	assert.Contains(t, api.objects, "assets/textures/block.png")

	data, err := d.Read(ctx, "textures/block.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	size, err := d.Size(ctx, "textures/block.png")
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)

	assert.True(t, d.IsFile(ctx, "textures/block.png"))
	assert.True(t, d.IsDir(ctx, "textures"))
	assert.False(t, d.IsDir(ctx, "sounds"))
	assert.True(t, d.IsDir(ctx, ""))

	_, err = d.Read(ctx, "missing")
	assert.ErrorIs(t, err, resfs.ErrNotExist)
	_, err = d.Size(ctx, "missing")
	assert.ErrorIs(t, err, resfs.ErrNotExist)

	native, err := d.Resolve("textures/block.png")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/assets/textures/block.png", native)
}

func TestListPaginates(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	d := New(api, "bucket", WithPageSize(2))

	for _, k := range []string{"a.txt", "b.txt", "c.txt", "dir/x.txt", "dir/y.txt", "e.txt"} {
		require.NoError(t, d.Write(ctx, k, []byte(k)))
	}

	var names []string
	for name, err := range d.List(ctx, "") {
		require.NoError(t, err)
		names = append(names, name)
	}
	// Each page yields its common prefixes before its keys.
	assert.Equal(t, []string{"a.txt", "b.txt", "dir", "c.txt", "e.txt"}, names)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt", "c.txt", "dir", "e.txt"}, names)
	assert.Equal(t, 3, api.listCalls)

	t.Run("early break stops paging", func(t *testing.T) {
		api.listCalls = 0
		for _, err := range d.List(ctx, "") {
			require.NoError(t, err)
			break
		}
		assert.Equal(t, 1, api.listCalls)
	})

	t.Run("missing directory", func(t *testing.T) {
		var errs []error
		for _, err := range d.List(ctx, "nope") {
			errs = append(errs, err)
		}
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], resfs.ErrNotExist)
	})
}

func TestDirectories(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	d := New(api, "bucket")

	require.NoError(t, d.MkdirAll(ctx, "empty"))
	assert.True(t, d.IsDir(ctx, "empty"))

	var names []string
	for name, err := range d.List(ctx, "empty") {
		require.NoError(t, err)
		names = append(names, name)
	}
	assert.Empty(t, names)

	removed, err := d.Remove(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, d.IsDir(ctx, "empty"))

	require.NoError(t, d.Write(ctx, "full/a", []byte("a")))
	_, err = d.Remove(ctx, "full")
	assert.ErrorIs(t, err, ErrDirNotEmpty)

	removed, err = d.Remove(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRemoveAll(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	d := New(api, "bucket", WithPageSize(2))

	for _, k := range []string{"dir/a", "dir/b", "dir/sub/c", "keep"} {
		require.NoError(t, d.Write(ctx, k, []byte("x")))
	}

	n, err := d.RemoveAll(ctx, "dir")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.False(t, d.Exists(ctx, "dir"))
	assert.True(t, d.IsFile(ctx, "keep"))
}

func TestThroughRegistry(t *testing.T) {
	ctx := context.Background()
	reg := resfs.NewRegistry()
	require.NoError(t, reg.Mount("cloud", New(newFakeS3(), "bucket")))

	p := resfs.NewPath("cloud:config/settings.yaml")
	require.NoError(t, reg.WriteString(ctx, p, "volume: 3\n"))

	v, err := reg.ReadStructured(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"volume": 3}, v)
}

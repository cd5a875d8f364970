package zip

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gobeaver/resfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildZip returns an archive holding files. Names ending in "/" become
// explicit directory entries.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newTestDevice(t *testing.T, files map[string]string) *Device {
	t.Helper()
	data := buildZip(t, files)
	d, err := NewReader("test.zip", bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return d
}

func TestIndex(t *testing.T) {
	ctx := context.Background()
	d := newTestDevice(t, map[string]string{
		"file1.txt":          "content1",
		"dir/file2.txt":      "content2",
		"dir/sub/file3.json": `{"a":1}`,
		"empty/":             "",
	})

	assert.True(t, d.IsFile(ctx, "file1.txt"))
	assert.True(t, d.IsDir(ctx, "dir"))
	assert.True(t, d.IsDir(ctx, "dir/sub"))
	assert.True(t, d.IsDir(ctx, "empty"))
	assert.True(t, d.IsDir(ctx, ""))
	assert.False(t, d.Exists(ctx, "nope"))

	data, err := d.Read(ctx, "/dir/sub/file3.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	size, err := d.Size(ctx, "dir/file2.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)

	_, err = d.Read(ctx, "dir")
	assert.ErrorIs(t, err, resfs.ErrIsDir)
	_, err = d.Read(ctx, "missing")
	assert.ErrorIs(t, err, resfs.ErrNotExist)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	d := newTestDevice(t, map[string]string{
		"b.txt":     "b",
		"a.txt":     "a",
		"dir/c.txt": "c",
	})

	var names []string
	for name, err := range d.List(ctx, "") {
		require.NoError(t, err)
		names = append(names, name)
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "dir"}, names)

	var errs []error
	for _, err := range d.List(ctx, "a.txt") {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], resfs.ErrNotDir)
}

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	d := newTestDevice(t, map[string]string{"a.txt": "a"})

	assert.True(t, d.IsReadOnly())
	assert.ErrorIs(t, d.Write(ctx, "a.txt", []byte("x")), resfs.ErrReadOnly)
	assert.ErrorIs(t, d.MkdirAll(ctx, "x"), resfs.ErrReadOnly)
	_, err := d.Remove(ctx, "a.txt")
	assert.ErrorIs(t, err, resfs.ErrReadOnly)
	_, err = d.RemoveAll(ctx, "")
	assert.ErrorIs(t, err, resfs.ErrReadOnly)
}

func TestOpenFromFileViaRegistry(t *testing.T) {
	ctx := context.Background()
	zipPath := filepath.Join(t.TempDir(), "pack.zip")
	require.NoError(t, os.WriteFile(zipPath, buildZip(t, map[string]string{
		"blocks/stone.json": `{"hardness": 1.5}`,
	}), 0644))

	dev, err := resfs.CreateDevice(resfs.MountSpec{Name: "pack", Driver: "zip", Root: zipPath}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.(*Device).Close() })

	reg := resfs.NewRegistry()
	require.NoError(t, reg.Mount("pack", dev))

	v, err := reg.ReadStructured(ctx, resfs.NewPath("pack:blocks/stone.json"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hardness": 1.5}, v)

	sum, err := reg.Checksum(ctx, resfs.NewPath("pack:blocks/stone.json"))
	require.NoError(t, err)
	assert.Equal(t, resfs.Checksum([]byte(`{"hardness": 1.5}`)), sum)

	_, err = Open(filepath.Join(t.TempDir(), "missing.zip"))
	assert.Error(t, err)
}

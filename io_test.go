package resfs

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func newTestRegistry(t *testing.T) (*Registry, *mockDevice) {
	t.Helper()
	dev := newMockDevice().
		put("textures/block.png", "png").
		put("lang/en_us.txt", "hello")
	reg := NewRegistry()
	if err := reg.Mount("res", dev); err != nil {
		t.Fatal(err)
	}
	return reg, dev
}

func TestSoftQueriesNeverFail(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	tests := []struct {
		path           string
		exists, isFile bool
		isDir          bool
	}{
		{"res:textures/block.png", true, true, false},
		{"res:textures", true, false, true},
		{"res:", true, false, true},
		{"res:nope.png", false, false, false},
		{"missing:textures/block.png", false, false, false},
		{"no-entry-point", false, false, false},
		{"", false, false, false},
		{"C:/Windows/system32", false, false, false},
	}
	for _, tt := range tests {
		p := NewPath(tt.path)
		if got := reg.Exists(ctx, p); got != tt.exists {
			t.Errorf("Exists(%q) = %v, want %v", tt.path, got, tt.exists)
		}
		if got := reg.IsFile(ctx, p); got != tt.isFile {
			t.Errorf("IsFile(%q) = %v, want %v", tt.path, got, tt.isFile)
		}
		if got := reg.IsDir(ctx, p); got != tt.isDir {
			t.Errorf("IsDir(%q) = %v, want %v", tt.path, got, tt.isDir)
		}
	}
}

func TestHardOperationsRequireDevice(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)
	p := NewPath("missing:file.txt")

	checks := map[string]error{}
	_, checks["ReadBytes"] = reg.ReadBytes(ctx, p)
	_, checks["ReadString"] = reg.ReadString(ctx, p)
	_, checks["ReadLines"] = reg.ReadLines(ctx, p)
	checks["WriteBytes"] = reg.WriteBytes(ctx, p, nil)
	checks["WriteString"] = reg.WriteString(ctx, p, "")
	checks["WriteJSON"] = reg.WriteJSON(ctx, p, 1, false)
	_, checks["Size"] = reg.Size(ctx, p)
	_, checks["MkdirAll"] = reg.MkdirAll(ctx, p)
	_, checks["Remove"] = reg.Remove(ctx, p)
	_, checks["RemoveAll"] = reg.RemoveAll(ctx, p)
	_, checks["Resolve"] = reg.Resolve(p)
	_, checks["List"] = reg.List(ctx, p)
	_, checks["Checksum"] = reg.Checksum(ctx, p)
	_, checks["ReadStructured"] = reg.ReadStructured(ctx, NewPath("missing:x.json"))

	for op, err := range checks {
		if !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("%s error = %v, want ErrDeviceNotFound", op, err)
		}
		var pathErr *PathError
		if !errors.As(err, &pathErr) {
			t.Errorf("%s error %T should be a *PathError", op, err)
		}
	}
}

func TestHardOperationsRejectBadAddresses(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	if _, err := reg.ReadBytes(ctx, NewPath("textures/block.png")); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("ReadBytes without entry point error = %v, want ErrInvalidPath", err)
	}
	if _, err := reg.ReadBytes(ctx, NewPath(`C:\Windows\win.ini`)); !errors.Is(err, ErrNativePath) {
		t.Errorf("ReadBytes on native path error = %v, want ErrNativePath", err)
	}
}

func TestReadWrite(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	text, err := reg.ReadString(ctx, NewPath(`res:lang\en_us.txt`))
	if err != nil || text != "hello" {
		t.Fatalf("ReadString = %q, %v", text, err)
	}

	p := NewPath("res:saves/slot1.dat")
	if err := reg.WriteBytes(ctx, p, []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}
	size, err := reg.Size(ctx, p)
	if err != nil || size != 3 {
		t.Errorf("Size = %d, %v; want 3", size, err)
	}

	if err := reg.WriteString(ctx, p, "abcd"); err != nil {
		t.Fatal(err)
	}
	data, err := reg.ReadBytes(ctx, p)
	if err != nil || string(data) != "abcd" {
		t.Errorf("ReadBytes after overwrite = %q, %v", data, err)
	}
}

func TestReadErrorsAreClassified(t *testing.T) {
	ctx := context.Background()
	reg, dev := newTestRegistry(t)

	_, err := reg.ReadBytes(ctx, NewPath("res:missing.txt"))
	if !IsNotExist(err) {
		t.Errorf("missing file error = %v, want ErrNotExist", err)
	}
	if errors.Is(err, ErrIO) {
		t.Errorf("missing file should not be ErrIO: %v", err)
	}

	dev.readErr = errors.New("disk on fire")
	_, err = reg.ReadBytes(ctx, NewPath("res:lang/en_us.txt"))
	if !errors.Is(err, ErrIO) {
		t.Errorf("backend failure error = %v, want ErrIO", err)
	}
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Err.Error() != "disk on fire" {
		t.Errorf("backend failure should carry the cause, got %v", err)
	}
}

func TestReadLines(t *testing.T) {
	ctx := context.Background()
	reg, dev := newTestRegistry(t)
	dev.put("packs.txt", "# enabled packs\nbase\n\n  hd-textures  \r\n#disabled\nmusic")

	lines, err := reg.ReadLines(ctx, NewPath("res:packs.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"base", "hd-textures", "music"}
	if !slices.Equal(lines, want) {
		t.Errorf("ReadLines = %q, want %q", lines, want)
	}
}

func TestWriteJSON(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)
	v := map[string]any{"volume": 3}

	if err := reg.WriteJSON(ctx, NewPath("res:a.json"), v, false); err != nil {
		t.Fatal(err)
	}
	if text, _ := reg.ReadString(ctx, NewPath("res:a.json")); text != `{"volume":3}` {
		t.Errorf("compact = %q", text)
	}

	if err := reg.WriteJSON(ctx, NewPath("res:b.json"), v, true); err != nil {
		t.Fatal(err)
	}
	if text, _ := reg.ReadString(ctx, NewPath("res:b.json")); text != "{\n  \"volume\": 3\n}" {
		t.Errorf("pretty = %q", text)
	}

	err := reg.WriteJSON(ctx, NewPath("res:c.json"), make(chan int), false)
	if err == nil || errors.Is(err, ErrIO) {
		t.Errorf("unencodable value error = %v", err)
	}
}

func TestDirectoryOperations(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	created, err := reg.MkdirAll(ctx, NewPath("res:saves/world1"))
	if err != nil || !created {
		t.Fatalf("MkdirAll = %v, %v; want true", created, err)
	}
	created, err = reg.MkdirAll(ctx, NewPath("res:saves/world1"))
	if err != nil || created {
		t.Errorf("second MkdirAll = %v, %v; want false", created, err)
	}
	if !reg.IsDir(ctx, NewPath("res:saves")) {
		t.Error("parent directory should exist")
	}

	removed, err := reg.Remove(ctx, NewPath("res:textures/block.png"))
	if err != nil || !removed {
		t.Errorf("Remove = %v, %v; want true", removed, err)
	}
	removed, err = reg.Remove(ctx, NewPath("res:textures/block.png"))
	if err != nil || removed {
		t.Errorf("second Remove = %v, %v; want false", removed, err)
	}

	n, err := reg.RemoveAll(ctx, NewPath("res:saves"))
	if err != nil || n != 2 {
		t.Errorf("RemoveAll = %d, %v; want 2", n, err)
	}
}

func TestResolve(t *testing.T) {
	reg, dev := newTestRegistry(t)

	native, err := reg.Resolve(NewPath("res:textures/block.png"))
	if err != nil || native != "/mock/textures/block.png" {
		t.Errorf("Resolve = %q, %v", native, err)
	}

	dev.resolveFn = func(string) (string, error) { return "", ErrNotSupported }
	_, err = reg.Resolve(NewPath("res:x"))
	if !errors.Is(err, ErrIO) || !errors.Is(err, ErrNotSupported) {
		t.Errorf("Resolve failure error = %v", err)
	}
}

package resfs

import (
	"context"
	"slices"
	"testing"
)

func TestSubDeviceEquivalentToParent(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	parent := newMockDevice().
		put("profiles/user1/settings.json", `{"fov":90}`).
		put("profiles/user1/saves/a.sav", "save").
		put("profiles/user2/settings.json", `{"fov":70}`)
	if err := reg.Mount("data", parent); err != nil {
		t.Fatal(err)
	}
	if err := reg.MountSub("user", "data", NewPath("profiles/user1")); err != nil {
		t.Fatal(err)
	}

	viaSub, err := reg.ReadString(ctx, NewPath("user:settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	direct, err := reg.ReadString(ctx, NewPath("data:profiles/user1/settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	if viaSub != direct {
		t.Errorf("sub read %q, parent read %q", viaSub, direct)
	}

	if !reg.IsDir(ctx, NewPath("user:saves")) || !reg.IsDir(ctx, NewPath("user:")) {
		t.Error("sub-device directories should mirror the parent")
	}
	if reg.Exists(ctx, NewPath("user:../user2/settings.json")) {
		t.Error("sub-device should not see siblings through relative segments")
	}

	if err := reg.WriteString(ctx, NewPath("user:saves/b.sav"), "new"); err != nil {
		t.Fatal(err)
	}
	if !parent.IsFile(ctx, "profiles/user1/saves/b.sav") {
		t.Error("write through sub-device should land under its root")
	}

	it, err := reg.List(ctx, NewPath("user:saves"))
	if err != nil {
		t.Fatal(err)
	}
	names, _ := it.Collect()
	slices.Sort(names)
	if !slices.Equal(names, []string{"a.sav", "b.sav"}) {
		t.Errorf("List(user:saves) = %v", names)
	}

	native, err := reg.Resolve(NewPath("user:settings.json"))
	if err != nil || native != "/mock/profiles/user1/settings.json" {
		t.Errorf("Resolve = %q, %v", native, err)
	}
}

func TestSubDeviceOutlivesParentName(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	parent := newMockDevice().put("root/f.txt", "x")
	if err := reg.Mount("data", parent); err != nil {
		t.Fatal(err)
	}
	if err := reg.MountSub("sub", "data", NewPath("data:root")); err != nil {
		t.Fatal(err)
	}

	reg.Unmount("data")

	if reg.Exists(ctx, NewPath("data:root/f.txt")) {
		t.Error("parent name should be gone")
	}
	text, err := reg.ReadString(ctx, NewPath("sub:f.txt"))
	if err != nil || text != "x" {
		t.Errorf("sub-device read after parent unmount = %q, %v", text, err)
	}
}

func TestSubDeviceRootNormalization(t *testing.T) {
	tests := []struct {
		root, path, want string
	}{
		{"profiles/user1", "settings.json", "profiles/user1/settings.json"},
		{`/profiles\user1/`, "/settings.json", "profiles/user1/settings.json"},
		{"profiles", "", "profiles"},
		{"", "a/b", "a/b"},
	}
	for _, tt := range tests {
		s := NewSubDevice(newMockDevice(), tt.root)
		if got := s.rel(tt.path); got != tt.want {
			t.Errorf("NewSubDevice(%q).rel(%q) = %q, want %q", tt.root, tt.path, got, tt.want)
		}
	}
}

func TestSubDeviceNesting(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	if err := reg.Mount("data", newMockDevice().put("a/b/c/file", "deep")); err != nil {
		t.Fatal(err)
	}
	if err := reg.MountSub("ab", "data", NewPath("data:a/b")); err != nil {
		t.Fatal(err)
	}
	if err := reg.MountSub("abc", "ab", NewPath("ab:c")); err != nil {
		t.Fatal(err)
	}

	text, err := reg.ReadString(ctx, NewPath("abc:file"))
	if err != nil || text != "deep" {
		t.Errorf("nested read = %q, %v", text, err)
	}
}

func TestSubDeviceRemoveAllKeepsRoot(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	parent := newMockDevice().
		put("profiles/user1/settings.json", "{}").
		put("profiles/user1/saves/a.sav", "save").
		put("profiles/user2/settings.json", "{}")
	if err := reg.Mount("data", parent); err != nil {
		t.Fatal(err)
	}
	if err := reg.MountSub("user", "data", NewPath("data:profiles/user1")); err != nil {
		t.Fatal(err)
	}

	n, err := reg.RemoveAll(ctx, NewPath("user:"))
	if err != nil || n != 3 {
		t.Fatalf("RemoveAll(user:) = %d, %v; want 3", n, err)
	}
	if !parent.IsDir(ctx, "profiles/user1") {
		t.Error("sub-device root should survive RemoveAll")
	}
	if !reg.IsDir(ctx, NewPath("user:")) {
		t.Error("user: should still be a directory")
	}
	if !parent.IsFile(ctx, "profiles/user2/settings.json") {
		t.Error("siblings of the sub-device root should be untouched")
	}

	n, err = reg.RemoveAll(ctx, NewPath("user:"))
	if err != nil || n != 0 {
		t.Errorf("RemoveAll on an empty root = %d, %v; want 0", n, err)
	}

	if err := reg.WriteString(ctx, NewPath("user:saves/b.sav"), "x"); err != nil {
		t.Fatal(err)
	}
	n, err = reg.RemoveAll(ctx, NewPath("user:saves"))
	if err != nil || n != 2 {
		t.Errorf("RemoveAll(user:saves) = %d, %v; want 2", n, err)
	}
	if parent.IsDir(ctx, "profiles/user1/saves") {
		t.Error("a non-root directory should be removed itself")
	}
}

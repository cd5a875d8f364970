package resfs

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// testDevices records the devices created by the "test" driver by root.
var testDevices = map[string]*mockDevice{}

func init() {
	RegisterDriver("test", func(spec MountSpec, cfg *Config) (Device, error) {
		dev := newMockDevice()
		if seed := spec.Options["seed"]; seed != "" {
			dev.put(seed, "seeded")
		}
		testDevices[spec.Root] = dev
		return dev, nil
	})
}

func TestNewDefaultMount(t *testing.T) {
	reg, err := New(&Config{DefaultMount: "res", DefaultDriver: "test", DefaultRoot: "default-root"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !slices.Equal(reg.Names(), []string{"res"}) {
		t.Errorf("Names() = %v", reg.Names())
	}
	dev, _ := reg.Lookup("res")
	if dev != Device(testDevices["default-root"]) {
		t.Error("default mount should use the configured driver and root")
	}
}

func TestNewWithoutMounts(t *testing.T) {
	reg, err := New(&Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(reg.Names()) != 0 {
		t.Errorf("Names() = %v, want none", reg.Names())
	}

	if _, err := New(&Config{DefaultMount: "res", DefaultDriver: "no-such-driver"}); err == nil {
		t.Error("unknown driver should fail")
	}
	if _, err := New(nil); err == nil {
		t.Error("nil config should fail")
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("BEAVER_RESFS_DEFAULT_MOUNT", "env")
	t.Setenv("BEAVER_RESFS_DEFAULT_DRIVER", "test")
	t.Setenv("BEAVER_RESFS_DEFAULT_ROOT", "env-root")

	reg, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv() error = %v", err)
	}
	if _, ok := reg.Lookup("env"); !ok {
		t.Errorf("Names() = %v, want env", reg.Names())
	}
}

const mountTableTOML = `
[[mount]]
name = "res"
driver = "test"
root = "table-root"

[mount.options]
seed = "profiles/user1/save.json"

[[mount]]
name = "user"
parent = "res"
root = "res:profiles/user1"

[[mount]]
name = "shipped"
parent = "res"
root = "res:profiles"
readonly = true
`

func TestNewWithMountTable(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "mounts.toml")
	if err := os.WriteFile(file, []byte(mountTableTOML), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := New(&Config{MountTable: file, DefaultMount: "ignored", DefaultDriver: "test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !slices.Equal(reg.Names(), []string{"res", "shipped", "user"}) {
		t.Errorf("Names() = %v", reg.Names())
	}

	got, err := reg.ReadString(ctx, NewPath("user:save.json"))
	if err != nil || got != "seeded" {
		t.Errorf("ReadString(user:save.json) = %q, %v", got, err)
	}
	if !reg.IsFile(ctx, NewPath("shipped:user1/save.json")) {
		t.Error("shipped mount should see the parent's files")
	}
	if err := reg.WriteString(ctx, NewPath("shipped:x.txt"), "x"); !IsReadOnly(err) {
		t.Errorf("write to read-only sub mount error = %v", err)
	}
	if err := reg.WriteString(ctx, NewPath("user:x.txt"), "x"); err != nil {
		t.Errorf("write to user mount failed: %v", err)
	}
	if !reg.IsFile(ctx, NewPath("res:profiles/user1/x.txt")) {
		t.Error("write through the sub mount should land in the parent")
	}
}

func TestParseMountTable(t *testing.T) {
	tests := []struct {
		name    string
		doc     Value
		want    []MountSpec
		wantErr bool
	}{
		{
			name: "object with mount list",
			doc: map[string]any{"mount": []any{
				map[string]any{"name": "res", "driver": "local", "root": "./res", "readonly": true,
					"options": map[string]any{"max_size": 1024}},
			}},
			want: []MountSpec{{Name: "res", Driver: "local", Root: "./res", ReadOnly: true,
				Options: map[string]string{"max_size": "1024"}}},
		},
		{
			name: "bare list",
			doc:  []any{map[string]any{"name": "user", "parent": "res", "root": "res:u"}},
			want: []MountSpec{{Name: "user", Parent: "res", Root: "res:u"}},
		},
		{name: "missing mount key", doc: map[string]any{}, wantErr: true},
		{name: "scalar document", doc: "res", wantErr: true},
		{name: "entry not an object", doc: []any{"res"}, wantErr: true},
		{name: "missing name", doc: []any{map[string]any{"driver": "local"}}, wantErr: true},
		{name: "missing driver and parent", doc: []any{map[string]any{"name": "res"}}, wantErr: true},
		{name: "wrong field type", doc: []any{map[string]any{"name": "res", "driver": 3}}, wantErr: true},
		{name: "wrong readonly type", doc: []any{map[string]any{"name": "res", "driver": "local", "readonly": "yes"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMountTable(tt.doc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMountTable() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseMountTable() = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				g, w := got[i], tt.want[i]
				if g.Name != w.Name || g.Driver != w.Driver || g.Root != w.Root ||
					g.Parent != w.Parent || g.ReadOnly != w.ReadOnly || len(g.Options) != len(w.Options) {
					t.Errorf("spec %d = %+v, want %+v", i, g, w)
				}
				for k, v := range w.Options {
					if g.Options[k] != v {
						t.Errorf("option %s = %q, want %q", k, g.Options[k], v)
					}
				}
			}
		})
	}
}

func TestLoadMountTableFormats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"mounts.yaml": "mount:\n  - name: res\n    driver: local\n    root: ./res\n",
		"mounts.json": `[{"name": "res", "driver": "local", "root": "./res"}]`,
		"mounts.cue":  "mount: [{name: \"res\", driver: \"local\", root: \"./res\"}]\n",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			file := filepath.Join(dir, name)
			if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			specs, err := LoadMountTable(file, DefaultDecoders())
			if err != nil {
				t.Fatalf("LoadMountTable() error = %v", err)
			}
			if len(specs) != 1 || specs[0].Name != "res" || specs[0].Driver != "local" || specs[0].Root != "./res" {
				t.Errorf("LoadMountTable() = %+v", specs)
			}
		})
	}

	if _, err := LoadMountTable(filepath.Join(dir, "missing.toml"), DefaultDecoders()); err == nil {
		t.Error("missing file should fail")
	}
	bad := filepath.Join(dir, "mounts.ini")
	if err := os.WriteFile(bad, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMountTable(bad, DefaultDecoders()); !IsUnknownFormat(err) {
		t.Errorf("unknown extension error = %v", err)
	}
}

func TestApplyOrder(t *testing.T) {
	reg := NewRegistry()
	err := reg.Apply([]MountSpec{{Name: "user", Parent: "res", Root: "res:u"}}, &Config{})
	if !IsDeviceNotFound(err) {
		t.Errorf("sub mount before its parent error = %v, want ErrDeviceNotFound", err)
	}
}

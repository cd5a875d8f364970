package resfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MountSpec describes one entry of a mount table.
//
// A spec with Parent set becomes a SubDevice of the parent mount rooted at
// Root; otherwise Driver and Root select and configure a backend.
//
//	[[mount]]
//	name = "res"
//	driver = "local"
//	root = "./res"
//
//	[[mount]]
//	name = "user"
//	parent = "res"
//	root = "res:profiles/user1"
type MountSpec struct {
	Name     string
	Driver   string
	Root     string
	Parent   string
	ReadOnly bool
	Options  map[string]string
}

// LoadMountTable reads a mount table from a native file. The format is chosen
// by extension from decoders.
func LoadMountTable(file string, decoders *DecoderTable) ([]MountSpec, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read mount table: %w", err)
	}
	v, err := decoders.Decode(strings.ToLower(filepath.Ext(file)), file, string(data))
	if err != nil {
		return nil, err
	}
	return ParseMountTable(v)
}

// ParseMountTable converts a decoded document into mount specs. It accepts
// either an object with a "mount" list or a bare list.
func ParseMountTable(v Value) ([]MountSpec, error) {
	var entries []any
	switch doc := v.(type) {
	case map[string]any:
		raw, ok := doc["mount"]
		if !ok {
			return nil, fmt.Errorf("mount table: missing \"mount\" list")
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("mount table: \"mount\" must be a list, got %T", raw)
		}
		entries = list
	case []any:
		entries = doc
	default:
		return nil, fmt.Errorf("mount table: unexpected document type %T", v)
	}

	specs := make([]MountSpec, 0, len(entries))
	for i, raw := range entries {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("mount table: entry %d must be an object, got %T", i, raw)
		}
		spec, err := parseMountSpec(m)
		if err != nil {
			return nil, fmt.Errorf("mount table: entry %d: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseMountSpec(m map[string]any) (MountSpec, error) {
	var spec MountSpec
	var err error

	if spec.Name, err = stringField(m, "name"); err != nil {
		return spec, err
	}
	if spec.Name == "" {
		return spec, fmt.Errorf("name is required")
	}
	if spec.Driver, err = stringField(m, "driver"); err != nil {
		return spec, err
	}
	if spec.Root, err = stringField(m, "root"); err != nil {
		return spec, err
	}
	if spec.Parent, err = stringField(m, "parent"); err != nil {
		return spec, err
	}
	if spec.Parent == "" && spec.Driver == "" {
		return spec, fmt.Errorf("%s: either driver or parent is required", spec.Name)
	}

	if raw, ok := m["readonly"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return spec, fmt.Errorf("readonly must be a boolean, got %T", raw)
		}
		spec.ReadOnly = b
	}

	if raw, ok := m["options"]; ok {
		opts, ok := raw.(map[string]any)
		if !ok {
			return spec, fmt.Errorf("options must be an object, got %T", raw)
		}
		spec.Options = make(map[string]string, len(opts))
		for k, v := range opts {
			spec.Options[k] = fmt.Sprint(v)
		}
	}
	return spec, nil
}

func stringField(m map[string]any, key string) (string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, raw)
	}
	return s, nil
}

// Apply mounts every spec on r in order. Sub-device specs must come after
// their parent.
func (r *Registry) Apply(specs []MountSpec, cfg *Config) error {
	for _, spec := range specs {
		if spec.Parent != "" {
			if err := r.MountSub(spec.Name, spec.Parent, NewPath(spec.Root)); err != nil {
				return err
			}
			if spec.ReadOnly {
				dev, _ := r.Lookup(spec.Name)
				if err := r.Mount(spec.Name, NewReadOnlyDevice(dev)); err != nil {
					return err
				}
			}
			continue
		}

		dev, err := CreateDevice(spec, cfg)
		if err != nil {
			return fmt.Errorf("mount %s: %w", spec.Name, err)
		}
		if err := r.Mount(spec.Name, dev); err != nil {
			return fmt.Errorf("mount %s: %w", spec.Name, err)
		}
	}
	return nil
}

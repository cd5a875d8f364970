package resfs

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Registry maps entry point names to mounted devices and serves the
// path-addressed I/O operations on top of them.
//
// Mounting and unmounting take an exclusive lock; lookups share a read lock,
// so a registry populated at startup can be used from many goroutines.
// The registry does not detect mount cycles: a sub-device whose parent chain
// leads back to itself recurses until the stack is exhausted.
type Registry struct {
	mu       sync.RWMutex
	devices  map[string]Device
	decoders *DecoderTable
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(options ...Option) *Registry {
	opts := processOptions(options...)
	return &Registry{
		devices:  make(map[string]Device),
		decoders: opts.Decoders.Clone(),
		logger:   opts.Logger,
	}
}

// Mount attaches dev under name, replacing any device already mounted there.
// Operations that already resolved the old device keep using it.
func (r *Registry) Mount(name string, dev Device) error {
	if dev == nil {
		return ErrNilDevice
	}
	if err := validateMountName(name); err != nil {
		return err
	}

	r.mu.Lock()
	_, replaced := r.devices[name]
	r.devices[name] = dev
	r.mu.Unlock()

	r.logger.Debug("mounted device",
		"name", name,
		"device", fmt.Sprintf("%T", dev),
		"replaced", replaced,
	)
	return nil
}

// Unmount removes the device mounted under name. Sub-devices created from it
// keep their own handle and stay usable. It reports whether anything was
// mounted.
func (r *Registry) Unmount(name string) bool {
	r.mu.Lock()
	_, exists := r.devices[name]
	delete(r.devices, name)
	r.mu.Unlock()

	if exists {
		r.logger.Debug("unmounted device", "name", name)
	}
	return exists
}

// Lookup returns the device mounted under name. It never fails.
func (r *Registry) Lookup(name string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.devices[name]
	return dev, ok
}

// Require returns the device mounted under name or an error wrapping
// ErrDeviceNotFound.
func (r *Registry) Require(name string) (Device, error) {
	dev, ok := r.Lookup(name)
	if !ok {
		r.logger.Debug("device lookup failed", "name", name)
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	return dev, nil
}

// MountSub mounts under name a SubDevice of the device mounted under parent,
// rooted at the path part of root.
//
// Example:
//
//	reg.MountSub("user", "data", resfs.NewPath("data:profiles/user1"))
//	// "user:settings.json" now reads "data:profiles/user1/settings.json"
func (r *Registry) MountSub(name, parent string, root Path) error {
	parentDev, err := r.Require(parent)
	if err != nil {
		return fmt.Errorf("parent of %s: %w", name, err)
	}
	return r.Mount(name, NewSubDevice(parentDev, root.PathPart()))
}

// Names returns the mounted entry points in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Devices returns a copy of the current mount table.
func (r *Registry) Devices() map[string]Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Device, len(r.devices))
	for k, v := range r.devices {
		result[k] = v
	}
	return result
}

// Decoders returns a copy of the registry's decoder table.
func (r *Registry) Decoders() *DecoderTable {
	return r.decoders.Clone()
}

// lookupPath is the soft resolution used by existence queries.
func (r *Registry) lookupPath(p Path) (Device, bool) {
	if p.IsEmpty() || !p.IsValid() || p.IsNative() {
		return nil, false
	}
	return r.Lookup(p.EntryPoint())
}

// requirePath is the hard resolution used by everything that reads, writes or
// reports a size.
func (r *Registry) requirePath(op string, p Path) (Device, error) {
	switch {
	case p.IsNative():
		return nil, &PathError{Op: op, Path: p.String(), Err: ErrNativePath}
	case !p.IsValid():
		return nil, &PathError{Op: op, Path: p.String(), Err: ErrInvalidPath}
	}
	dev, err := r.Require(p.EntryPoint())
	if err != nil {
		return nil, &PathError{Op: op, Path: p.String(), Err: err}
	}
	return dev, nil
}

// validateMountName rejects names that could never appear as an entry point.
// Single letters are reserved for native drive letters.
func validateMountName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidMountName)
	case strings.ContainsAny(name, `:/\`):
		return fmt.Errorf("%w: %q contains a separator", ErrInvalidMountName, name)
	case len(name) == 1 && isASCIILetter(name[0]):
		return fmt.Errorf("%w: %q is reserved for drive letters", ErrInvalidMountName, name)
	}
	return nil
}

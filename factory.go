package resfs

import (
	"fmt"
	"sort"
	"sync"
)

// DeviceFactory creates a Device for a mount table entry.
type DeviceFactory func(spec MountSpec, cfg *Config) (Device, error)

var (
	driverFactories = make(map[string]DeviceFactory)
	factoryMutex    sync.RWMutex
)

// RegisterDriver registers a device factory under a driver name.
// Driver packages call it from init.
func RegisterDriver(name string, factory DeviceFactory) {
	factoryMutex.Lock()
	defer factoryMutex.Unlock()
	driverFactories[name] = factory
}

// Drivers returns the registered driver names.
func Drivers() []string {
	factoryMutex.RLock()
	defer factoryMutex.RUnlock()

	names := make([]string, 0, len(driverFactories))
	for name := range driverFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateDevice creates the device described by spec. Read-only specs are
// wrapped in a ReadOnlyDevice.
func CreateDevice(spec MountSpec, cfg *Config) (Device, error) {
	factoryMutex.RLock()
	factory, exists := driverFactories[spec.Driver]
	factoryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("driver %s not registered", spec.Driver)
	}

	dev, err := factory(spec, cfg)
	if err != nil {
		return nil, err
	}
	if spec.ReadOnly {
		if _, ok := dev.(ReadOnly); !ok {
			dev = NewReadOnlyDevice(dev)
		}
	}
	return dev, nil
}

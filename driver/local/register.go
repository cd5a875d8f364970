package local

import "github.com/gobeaver/resfs"

func init() {
	resfs.RegisterDriver("local", func(spec resfs.MountSpec, _ *resfs.Config) (resfs.Device, error) {
		return New(spec.Root)
	})
}

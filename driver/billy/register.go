package billy

import (
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/gobeaver/resfs"
)

func init() {
	// Root selects the backing store: empty for an in-memory filesystem,
	// otherwise a directory on disk.
	resfs.RegisterDriver("billy", func(spec resfs.MountSpec, _ *resfs.Config) (resfs.Device, error) {
		if spec.Root == "" {
			return New(memfs.New()), nil
		}
		return New(osfs.New(spec.Root)), nil
	})
}

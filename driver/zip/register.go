package zip

import (
	"fmt"

	"github.com/gobeaver/resfs"
)

func init() {
	resfs.RegisterDriver("zip", func(spec resfs.MountSpec, _ *resfs.Config) (resfs.Device, error) {
		// Root is the archive file
		if spec.Root == "" {
			return nil, fmt.Errorf("zip driver requires root to be set to the ZIP file path")
		}
		return Open(spec.Root)
	})
}

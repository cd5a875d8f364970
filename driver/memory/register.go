package memory

import (
	"fmt"
	"strconv"

	"github.com/gobeaver/resfs"
)

func init() {
	resfs.RegisterDriver("memory", func(spec resfs.MountSpec, _ *resfs.Config) (resfs.Device, error) {
		var cfg Config
		if raw, ok := spec.Options["max_size"]; ok {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("memory: invalid max_size %q: %w", raw, err)
			}
			cfg.MaxSize = n
		}
		return New(cfg), nil
	})
}

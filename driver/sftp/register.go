package sftp

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gobeaver/resfs"
)

func init() {
	resfs.RegisterDriver("sftp", func(spec resfs.MountSpec, cfg *resfs.Config) (resfs.Device, error) {
		sftpConfig := Config{
			Host:       cfg.SFTPHost,
			Port:       cfg.SFTPPort,
			Username:   cfg.SFTPUsername,
			Password:   cfg.SFTPPassword,
			KnownHosts: cfg.SFTPKnownHosts,
			Root:       spec.Root,
		}
		keyFile := cfg.SFTPPrivateKey

		// Per-mount overrides
		if host, ok := spec.Options["host"]; ok {
			sftpConfig.Host = host
		}
		if user, ok := spec.Options["user"]; ok {
			sftpConfig.Username = user
		}
		if key, ok := spec.Options["private_key"]; ok {
			keyFile = key
		}
		if raw, ok := spec.Options["port"]; ok {
			port, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("sftp: invalid port %q: %w", raw, err)
			}
			sftpConfig.Port = port
		}

		if sftpConfig.Host == "" {
			return nil, fmt.Errorf("SFTP host is required")
		}

		// Load private key if specified
		if keyFile != "" {
			keyData, err := os.ReadFile(keyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read private key: %w", err)
			}
			sftpConfig.PrivateKey = keyData
		}

		return Dial(sftpConfig)
	})
}

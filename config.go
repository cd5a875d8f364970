package resfs

import (
	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// Mount table file (.toml, .yaml, .yml, .json or .cue). When empty a single
	// default mount is created from the Default* settings.
	MountTable string `env:"RESFS_MOUNT_TABLE"`

	// Default mount
	DefaultMount  string `env:"RESFS_DEFAULT_MOUNT,default:res"`
	DefaultDriver string `env:"RESFS_DEFAULT_DRIVER,default:local"`
	DefaultRoot   string `env:"RESFS_DEFAULT_ROOT,default:./res"`

	// Logging
	LogLevel string `env:"RESFS_LOG_LEVEL,default:info"`

	// S3 driver configuration
	S3Region          string `env:"RESFS_S3_REGION,default:us-east-1"`
	S3Bucket          string `env:"RESFS_S3_BUCKET"`
	S3Endpoint        string `env:"RESFS_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"RESFS_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"RESFS_S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle  bool   `env:"RESFS_S3_FORCE_PATH_STYLE,default:false"`

	// GCS (Google Cloud Storage) driver configuration
	GCSBucket          string `env:"RESFS_GCS_BUCKET"`
	GCSCredentialsFile string `env:"RESFS_GCS_CREDENTIALS_FILE"` // Path to service account JSON

	// Azure Blob Storage driver configuration
	AzureAccountName   string `env:"RESFS_AZURE_ACCOUNT_NAME"`
	AzureAccountKey    string `env:"RESFS_AZURE_ACCOUNT_KEY"`
	AzureContainerName string `env:"RESFS_AZURE_CONTAINER_NAME"`
	AzureEndpoint      string `env:"RESFS_AZURE_ENDPOINT"` // Optional custom endpoint

	// SFTP driver configuration
	SFTPHost       string `env:"RESFS_SFTP_HOST"`
	SFTPPort       int    `env:"RESFS_SFTP_PORT,default:22"`
	SFTPUsername   string `env:"RESFS_SFTP_USERNAME"`
	SFTPPassword   string `env:"RESFS_SFTP_PASSWORD"`
	SFTPPrivateKey string `env:"RESFS_SFTP_PRIVATE_KEY"` // Path to private key file
	SFTPKnownHosts string `env:"RESFS_SFTP_KNOWN_HOSTS"` // Path to known_hosts; host keys are not checked when empty
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

package resfs

import (
	"testing"
)

func TestGetConfig(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    Config
	}{
		{
			name:    "default values",
			envVars: map[string]string{},
			want: Config{
				DefaultMount:  "res",
				DefaultDriver: "local",
				DefaultRoot:   "./res",
				LogLevel:      "info",
				S3Region:      "us-east-1",
				SFTPPort:      22,
			},
		},
		{
			name: "mount table",
			envVars: map[string]string{
				"BEAVER_RESFS_MOUNT_TABLE": "/etc/game/mounts.toml",
				"BEAVER_RESFS_LOG_LEVEL":   "debug",
			},
			want: Config{
				MountTable:    "/etc/game/mounts.toml",
				DefaultMount:  "res",
				DefaultDriver: "local",
				DefaultRoot:   "./res",
				LogLevel:      "debug",
				S3Region:      "us-east-1",
				SFTPPort:      22,
			},
		},
		{
			name: "s3 configuration",
			envVars: map[string]string{
				"BEAVER_RESFS_DEFAULT_DRIVER":       "s3",
				"BEAVER_RESFS_DEFAULT_ROOT":         "assets/",
				"BEAVER_RESFS_S3_BUCKET":            "game-assets",
				"BEAVER_RESFS_S3_REGION":            "eu-west-1",
				"BEAVER_RESFS_S3_ENDPOINT":          "http://localhost:9000",
				"BEAVER_RESFS_S3_ACCESS_KEY_ID":     "key",
				"BEAVER_RESFS_S3_SECRET_ACCESS_KEY": "secret",
				"BEAVER_RESFS_S3_FORCE_PATH_STYLE":  "true",
			},
			want: Config{
				DefaultMount:      "res",
				DefaultDriver:     "s3",
				DefaultRoot:       "assets/",
				LogLevel:          "info",
				S3Region:          "eu-west-1",
				S3Bucket:          "game-assets",
				S3Endpoint:        "http://localhost:9000",
				S3AccessKeyID:     "key",
				S3SecretAccessKey: "secret",
				S3ForcePathStyle:  true,
				SFTPPort:          22,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := GetConfig()
			if err != nil {
				t.Fatalf("GetConfig() error = %v", err)
			}
			if *cfg != tt.want {
				t.Errorf("GetConfig() = %+v, want %+v", *cfg, tt.want)
			}
		})
	}
}

func TestBuilderPrefix(t *testing.T) {
	t.Setenv("GAME_RESFS_DEFAULT_MOUNT", "assets")
	t.Setenv("GAME_RESFS_DEFAULT_ROOT", "/srv/assets")

	cfg, err := WithPrefix("GAME_").Config()
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	if cfg.DefaultMount != "assets" || cfg.DefaultRoot != "/srv/assets" {
		t.Errorf("Config() = %+v", *cfg)
	}
	if cfg.DefaultDriver != "local" {
		t.Errorf("DefaultDriver = %q, want the default", cfg.DefaultDriver)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"nil", nil, true},
		{"default mount without driver", &Config{DefaultMount: "res"}, true},
		{"no mounts", &Config{}, false},
		{"default mount", &Config{DefaultMount: "res", DefaultDriver: "local"}, false},
		{"mount table", &Config{MountTable: "mounts.toml", DefaultMount: "res"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateConfig(tt.cfg); (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

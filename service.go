package resfs

import (
	"errors"
	"fmt"

	"github.com/gobeaver/beaver-kit/config"
)

// Builder creates registries from environment variables with a custom prefix.
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// Config loads the configuration using the builder's prefix.
func (b *Builder) Config() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New creates a registry using the builder's prefix.
func (b *Builder) New(options ...Option) (*Registry, error) {
	cfg, err := b.Config()
	if err != nil {
		return nil, err
	}
	return New(cfg, options...)
}

// New creates a registry and mounts what cfg describes: the mount table when
// one is configured, the default mount otherwise.
//
// The registry is owned by the caller; there is no process-wide instance.
func New(cfg *Config, options ...Option) (*Registry, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	reg := NewRegistry(options...)

	specs, err := mountSpecs(cfg, reg.decoders)
	if err != nil {
		return nil, err
	}
	if err := reg.Apply(specs, cfg); err != nil {
		return nil, err
	}

	reg.logger.Info("registry ready", "mounts", reg.Names())
	return reg, nil
}

// NewFromEnv creates a registry from environment variables (convenience constructor)
func NewFromEnv(options ...Option) (*Registry, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return New(cfg, options...)
}

func mountSpecs(cfg *Config, decoders *DecoderTable) ([]MountSpec, error) {
	if cfg.MountTable != "" {
		return LoadMountTable(cfg.MountTable, decoders)
	}
	if cfg.DefaultMount == "" {
		return nil, nil
	}
	return []MountSpec{{
		Name:   cfg.DefaultMount,
		Driver: cfg.DefaultDriver,
		Root:   cfg.DefaultRoot,
	}}, nil
}

// validateConfig checks configuration validity
func validateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if cfg.MountTable == "" && cfg.DefaultMount != "" && cfg.DefaultDriver == "" {
		return errors.New("default driver is required for the default mount")
	}
	return nil
}

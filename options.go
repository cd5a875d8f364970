package resfs

import (
	"log/slog"
)

// Option configures a Registry.
type Option func(*Options)

// Options contains the settings a Registry is built with.
type Options struct {
	// Logger receives mount events and resolution failures.
	// Default: a logger that discards everything.
	Logger *slog.Logger

	// Decoders maps extensions to structured-data decoders.
	// Default: DefaultDecoders().
	Decoders *DecoderTable
}

// WithLogger sets the logger used by the registry.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithDecoders sets the decoder table. The registry keeps a snapshot, so
// registering formats on the table afterwards has no effect on it.
func WithDecoders(decoders *DecoderTable) Option {
	return func(o *Options) {
		o.Decoders = decoders
	}
}

func processOptions(options ...Option) *Options {
	opts := &Options{}
	for _, option := range options {
		option(opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Decoders == nil {
		opts.Decoders = DefaultDecoders()
	}
	return opts
}

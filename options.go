package blobstore

import (
	"time"

	"github.com/gostratum/core/logx"
)

// Options holds functional options for customizing backend behavior
type Options struct {
	logger       logx.Logger
	instrumenter *Instrumenter
	clock        func() time.Time
}

// Option is a functional option for configuring a Backend
type Option func(*Options)

// WithLogger sets a custom logx.Logger
func WithLogger(logger logx.Logger) Option {
	return func(opts *Options) {
		opts.logger = logger
	}
}

// WithInstrumenter sets the metrics/tracing instrumenter
func WithInstrumenter(instr *Instrumenter) Option {
	return func(opts *Options) {
		opts.instrumenter = instr
	}
}

// WithClock sets a custom time provider (useful for testing)
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.clock = clock
	}
}

// GetLogger returns the configured logger
func (opts *Options) GetLogger() logx.Logger {
	if opts.logger == nil {
		return logx.NewNoopLogger()
	}
	return opts.logger
}

// GetInstrumenter returns the configured instrumenter; may carry nil
// metrics and tracer, which disables recording.
func (opts *Options) GetInstrumenter() *Instrumenter {
	if opts.instrumenter == nil {
		return NewInstrumenter(nil, nil)
	}
	return opts.instrumenter
}

// GetClock returns the configured clock function
func (opts *Options) GetClock() func() time.Time {
	if opts.clock == nil {
		return time.Now
	}
	return opts.clock
}

// GetEffectiveConfig returns a copy of the configuration with options applied
func GetEffectiveConfig(cfg *Config, options ...Option) (*Config, *Options) {
	opts := &Options{}
	for _, opt := range options {
		opt(opts)
	}

	// Copy the config to avoid mutations
	effective := *cfg
	return &effective, opts
}

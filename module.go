package blobstore

import (
	"context"
	"fmt"

	"github.com/gostratum/core/configx"
	"github.com/gostratum/core/logx"
	"github.com/gostratum/metricsx"
	"github.com/gostratum/tracingx"
	"go.uber.org/fx"
)

// Module provides the blobstore module for fx. This base module provides
// configuration, key builder and instrumenter, but does NOT include a
// concrete backend. Include an adapter module (e.g., s3.Module()) to get a
// working Backend implementation.
//
// Example usage:
//
//	app := fx.New(
//	    blobstore.Module(),
//	    s3.Module(), // Include the S3 adapter
//	    fx.Invoke(func(backend blobstore.Backend) {
//	        // Use backend...
//	    }),
//	)
func Module() fx.Option {
	return fx.Module("blobstore",
		fx.Provide(
			NewConfig,
			NewKeyBuilder,
			NewObservabilityInstrumenter,
		),
		fx.Invoke(registerLifecycleIfAvailable),
	)
}

// NewConfig creates a new configuration from the configx loader
func NewConfig(loader configx.Loader) (*Config, error) {
	cfg := DefaultConfig()
	if err := loader.Bind(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg = cfg.Sanitize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ObservabilityDeps defines optional observability dependencies
type ObservabilityDeps struct {
	fx.In

	Metrics metricsx.Metrics `optional:"true"`
	Tracer  tracingx.Tracer  `optional:"true"`
}

// NewObservabilityInstrumenter creates an instrumenter for storage operations
func NewObservabilityInstrumenter(deps ObservabilityDeps) *Instrumenter {
	return NewInstrumenter(deps.Metrics, deps.Tracer)
}

// LifecycleParams defines parameters for lifecycle management
type LifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Backend   Backend     `optional:"true"` // present when an adapter module is included
	Logger    logx.Logger `optional:"true"`
}

// registerLifecycleIfAvailable registers shutdown hooks for graceful cleanup
// when a backend implementation is available
func registerLifecycleIfAvailable(params LifecycleParams) {
	if params.Backend == nil {
		if params.Logger != nil {
			params.Logger.Debug("blobstore module loaded without a backend adapter")
		}
		return
	}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if params.Logger != nil {
				params.Logger.Info("blobstore module started")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if closer, ok := params.Backend.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					if params.Logger != nil {
						params.Logger.Error("error closing backend", ArgsToFields("error", err)...)
					}
					return err
				}
			}

			if params.Logger != nil {
				params.Logger.Info("blobstore module stopped")
			}
			return nil
		},
	})
}

// TestModule provides a module for testing with mock/test implementations
var TestModule = fx.Module("blobstore-test",
	fx.Provide(
		NewTestConfig,
		NewKeyBuilder,
	),
)

// NewTestConfig creates a configuration pointed at a local MinIO instance
func NewTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Bucket = "test-bucket"
	cfg.Endpoint = "http://localhost:9000"
	cfg.UsePathStyle = true
	cfg.AccessKey = "minioadmin"
	cfg.SecretKey = "minioadmin"
	cfg.DisableSSL = true
	cfg.EnableLogging = true
	return cfg
}

// WithCustomBackend provides a concrete Backend instance to the FX graph.
// Useful for tests or for applications that construct a backend outside of
// adapter modules.
func WithCustomBackend(b Backend) fx.Option {
	return fx.Supply(fx.Annotate(b, fx.As(new(Backend))))
}

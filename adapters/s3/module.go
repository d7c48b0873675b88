package s3

import (
	"context"

	"github.com/gostratum/core/logx"
	"go.uber.org/fx"

	"github.com/docshost/blobstore"
)

// Module provides the S3 backend to the FX graph. Combine with
// blobstore.Module() for configuration and observability wiring.
func Module() fx.Option {
	return fx.Module("blobstore-s3",
		fx.Provide(
			fx.Annotate(newBackendFromParams, fx.As(new(blobstore.Backend))),
		),
	)
}

// BackendParams defines the dependencies for backend construction
type BackendParams struct {
	fx.In

	Config       *blobstore.Config
	Logger       logx.Logger             `optional:"true"`
	Instrumenter *blobstore.Instrumenter `optional:"true"`
}

func newBackendFromParams(params BackendParams) (*Backend, error) {
	opts := make([]blobstore.Option, 0, 2)
	if params.Logger != nil {
		opts = append(opts, blobstore.WithLogger(params.Logger))
	}
	if params.Instrumenter != nil {
		opts = append(opts, blobstore.WithInstrumenter(params.Instrumenter))
	}
	return NewBackend(context.Background(), params.Config, opts...)
}

// Package s3 implements blobstore.Backend against an S3-compatible object
// store using the AWS SDK v2.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/gostratum/core/logx"

	"github.com/docshost/blobstore"
)

// s3API is the slice of the S3 client the backend depends on.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Backend implements blobstore.Backend against an S3-compatible store.
type Backend struct {
	client s3API
	bucket string
	cfg    *blobstore.Config
	keys   blobstore.KeyBuilder
	logger logx.Logger
	instr  *blobstore.Instrumenter
}

// NewBackend creates an S3 backend from the configuration, resolving
// credentials and validating bucket access.
func NewBackend(ctx context.Context, cfg *blobstore.Config, opts ...blobstore.Option) (*Backend, error) {
	config, options := blobstore.GetEffectiveConfig(cfg, opts...)

	if err := blobstore.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := newS3Client(ctx, config, options.GetLogger())
	if err != nil {
		return nil, err
	}

	backend := newBackendWithClient(client, config, options)
	if err := validateConnection(ctx, client, config.Bucket); err != nil {
		return nil, err
	}

	backend.logger.Info("S3 backend ready", blobstore.ArgsToFields(
		"bucket", config.Bucket,
		"region", config.Region,
		"endpoint", config.Endpoint,
	)...)

	return backend, nil
}

// newBackendWithClient wires a backend around an existing client. Test seam.
func newBackendWithClient(client s3API, cfg *blobstore.Config, options *blobstore.Options) *Backend {
	return &Backend{
		client: client,
		bucket: cfg.Bucket,
		cfg:    cfg,
		keys:   blobstore.NewKeyBuilder(cfg),
		logger: options.GetLogger(),
		instr:  options.GetInstrumenter(),
	}
}

// validateConnection performs a basic connectivity check on the bucket.
func validateConnection(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return fmt.Errorf("cannot access bucket %q: %w", bucket, err)
	}
	return nil
}

// Get fetches one blob by path. maxSize is a hard ceiling on the payload:
// the remote object's declared size is used only as a preallocation hint,
// and the body is streamed through a SizedBuffer so a larger object fails
// with ErrSizeLimit partway through rather than after full buffering.
func (b *Backend) Get(ctx context.Context, path string, maxSize int) (*blobstore.Blob, error) {
	var blob *blobstore.Blob
	err := b.instr.TraceOperation(ctx, "get", path, func(ctx context.Context) error {
		var err error
		blob, err = b.get(ctx, path, maxSize)
		return err
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func (b *Backend) get(ctx context.Context, path string, maxSize int) (*blobstore.Blob, error) {
	if path == "" {
		return nil, &blobstore.StorageError{Op: "get", Err: blobstore.ErrInvalidKey}
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.keys.BuildKey(path)),
	})
	if err != nil {
		return nil, MapS3Error(err, "get", path)
	}
	defer out.Body.Close()

	buf := blobstore.NewSizedBuffer(maxSize)
	if cl := aws.ToInt64(out.ContentLength); cl > 0 {
		// Hint only. The ceiling is enforced chunk by chunk below; the
		// declared length is not trusted.
		buf.Reserve(int(min(cl, int64(maxSize))))
	}

	if _, err := io.Copy(buf, out.Body); err != nil {
		if blobstore.IsSizeLimit(err) {
			return nil, &blobstore.StorageError{Op: "get", Key: path, Err: err}
		}
		return nil, &blobstore.StorageError{Op: "get", Key: path, Err: fmt.Errorf("%w: %v", blobstore.ErrTransport, err)}
	}

	// A 200 response without the metadata needed to build a Blob is a
	// protocol violation, not a recoverable condition.
	mime := aws.ToString(out.ContentType)
	if mime == "" {
		return nil, &blobstore.StorageError{Op: "get", Key: path, Err: fmt.Errorf("%w: response missing content type", blobstore.ErrTransport)}
	}

	dateUpdated, err := lastModified(out)
	if err != nil {
		return nil, &blobstore.StorageError{Op: "get", Key: path, Err: err}
	}

	encoding := aws.ToString(out.ContentEncoding)
	compression, ok := blobstore.ParseContentEncoding(encoding)
	if !ok {
		b.logger.Warn("unrecognized content encoding on blob",
			blobstore.ArgsToFields("path", path, "content_encoding", encoding)...)
	}

	content := buf.Take()
	b.instr.RecordReadBytes(int64(len(content)))

	return &blobstore.Blob{
		Path:        path,
		MIME:        mime,
		DateUpdated: dateUpdated,
		Content:     content,
		Compression: compression,
	}, nil
}

// putBlob issues one PutObject for a blob. The store assigns the
// last-modified instant; it is never client-supplied.
func (b *Backend) putBlob(ctx context.Context, blob blobstore.Blob) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.keys.BuildKey(blob.Path)),
		Body:        bytes.NewReader(blob.Content),
		ContentType: aws.String(blob.MIME),
	}
	if enc := blob.Compression.ContentEncoding(); enc != "" {
		in.ContentEncoding = aws.String(enc)
	}

	if _, err := b.client.PutObject(ctx, in); err != nil {
		return MapS3Error(err, "put", blob.Path)
	}
	return nil
}

// lastModified extracts the store's last-modified instant from a GetObject
// response. The typed field is preferred; when a gateway emits a date the
// SDK's strict RFC 7231 parser drops (single-digit days), the raw header is
// parsed leniently. A response carrying neither is a protocol violation.
func lastModified(out *s3.GetObjectOutput) (time.Time, error) {
	return resolveLastModified(out.LastModified, rawLastModifiedHeader(out.ResultMetadata))
}

func resolveLastModified(typed *time.Time, raw string) (time.Time, error) {
	if typed != nil {
		return typed.UTC(), nil
	}
	if raw != "" {
		return blobstore.ParseHTTPDate(raw)
	}
	return time.Time{}, fmt.Errorf("%w: response missing last-modified", blobstore.ErrTransport)
}

func rawLastModifiedHeader(md middleware.Metadata) string {
	if resp, ok := awsmiddleware.GetRawResponse(md).(*smithyhttp.Response); ok && resp != nil {
		return resp.Header.Get("Last-Modified")
	}
	return ""
}

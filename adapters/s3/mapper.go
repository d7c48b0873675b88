package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/docshost/blobstore"
)

// MapS3Error converts S3 SDK errors to domain errors
func MapS3Error(err error, op, key string) error {
	if err == nil {
		return nil
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return &blobstore.StorageError{Op: op, Key: key, Err: blobstore.ErrNotFound}
	}

	// Some gateways report the typed error only through the generic API
	// error code.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return &blobstore.StorageError{Op: op, Key: key, Err: blobstore.ErrNotFound}
		case "NoSuchBucket":
			return &blobstore.StorageError{Op: op, Key: key, Err: fmt.Errorf("%w: bucket does not exist", blobstore.ErrNotFound)}
		}
	}

	// Preserve context cancellation for errors.Is checks by the caller.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &blobstore.StorageError{Op: op, Key: key, Err: err}
	}

	return &blobstore.StorageError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", blobstore.ErrTransport, err)}
}

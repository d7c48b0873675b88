package blobstore

import (
	"context"
)

// Backend is the remote blob-store contract. Implementations persist blobs
// keyed by path and hand out write transactions.
type Backend interface {
	// Get fetches the blob stored at path. maxSize is a hard ceiling on the
	// payload: a larger object fails with ErrSizeLimit partway through
	// streaming, never returning truncated content. A missing object fails
	// with ErrNotFound.
	Get(ctx context.Context, path string, maxSize int) (*Blob, error)

	// StartStorageTransaction opens a write transaction.
	StartStorageTransaction(ctx context.Context) (Transaction, error)
}

// Transaction is a batch of independent writes sharing one retry policy.
// "Transaction" does not mean atomicity: the object store has no
// multi-object commit, so blobs that succeed stay stored even if the
// transaction as a whole later fails. There is no rollback.
type Transaction interface {
	// StoreBatch attempts to persist every blob in the batch, retrying the
	// failed subset up to the configured attempt budget. On exhaustion it
	// returns a *RetryError carrying the still-failing blobs.
	StoreBatch(ctx context.Context, batch []Blob) error

	// Complete marks the transaction finished. It performs no network
	// activity; further StoreBatch calls fail with ErrTransactionClosed.
	Complete() error
}

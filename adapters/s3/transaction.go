package s3

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/docshost/blobstore"
)

type txState int

const (
	txOpen txState = iota
	txComplete
	txAborted
)

// Transaction is a batch of independent PutObject calls sharing one retry
// policy. It is "transactional" only in that sense: there is no multi-object
// commit and no rollback, so blobs that succeed stay stored even when the
// batch as a whole exhausts its retry budget.
type Transaction struct {
	backend *Backend
	id      string

	mu    sync.Mutex
	state txState
}

// StartStorageTransaction opens a write transaction. The returned
// transaction carries a correlation id used in log entries.
func (b *Backend) StartStorageTransaction(ctx context.Context) (blobstore.Transaction, error) {
	tx := &Transaction{backend: b, id: uuid.NewString()}
	b.logger.Debug("storage transaction opened", blobstore.ArgsToFields("txn", tx.id)...)
	return tx, nil
}

// StoreBatch persists every blob in the batch. Each attempt round uploads
// the remaining blobs concurrently; only the failed subset is retried in
// the next round, so blobs that already succeeded are not re-uploaded. When the attempt budget runs out the remaining subset is
// returned in a *RetryError and the transaction aborts.
func (t *Transaction) StoreBatch(ctx context.Context, batch []blobstore.Blob) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != txOpen {
		return &blobstore.StorageError{Op: "store_batch", Err: blobstore.ErrTransactionClosed}
	}
	if len(batch) == 0 {
		return &blobstore.StorageError{Op: "store_batch", Err: fmt.Errorf("%w: empty batch", blobstore.ErrInvalidKey)}
	}

	seen := make(map[string]struct{}, len(batch))
	for i := range batch {
		if err := batch[i].Validate(); err != nil {
			return err
		}
		if _, dup := seen[batch[i].Path]; dup {
			return &blobstore.StorageError{Op: "store_batch", Key: batch[i].Path, Err: fmt.Errorf("%w: duplicate path in batch", blobstore.ErrInvalidKey)}
		}
		seen[batch[i].Path] = struct{}{}
	}

	return t.backend.instr.TraceOperation(ctx, "store_batch", "", func(ctx context.Context) error {
		return t.storeBatch(ctx, batch)
	})
}

func (t *Transaction) storeBatch(ctx context.Context, batch []blobstore.Blob) error {
	cfg := t.backend.cfg

	remaining := make([]blobstore.Blob, len(batch))
	copy(remaining, batch)

	var wait backoff.BackOff
	if cfg.BackoffInitial > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = cfg.BackoffInitial
		bo.MaxInterval = cfg.BackoffMax
		bo.MaxElapsedTime = 0
		wait = bo
	}

	attempts := cfg.MaxUploadAttempts
	for round := 1; round <= attempts; round++ {
		if round > 1 && wait != nil {
			delay := wait.NextBackOff()
			if delay == backoff.Stop {
				delay = cfg.BackoffMax
			}
			select {
			case <-ctx.Done():
				return &blobstore.StorageError{Op: "store_batch", Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		remaining = t.storeRound(ctx, remaining, round)
		if len(remaining) == 0 {
			t.backend.instr.RecordRetryRounds(round)
			return nil
		}
	}

	// Blobs that already succeeded stay stored; the caller gets the failed
	// subset back and decides whether to abort, alert or re-enqueue.
	t.state = txAborted
	t.backend.logger.Error("batch upload exhausted its retry budget",
		blobstore.ArgsToFields("txn", t.id, "failed", len(remaining), "rounds", attempts)...)
	return &blobstore.RetryError{Failed: remaining, Rounds: attempts}
}

// storeRound uploads every remaining blob concurrently and returns the ones
// that failed. Uploads within a round write to disjoint keys, so they need
// no mutual exclusion beyond the shared failure list.
func (t *Transaction) storeRound(ctx context.Context, blobs []blobstore.Blob, round int) []blobstore.Blob {
	g := new(errgroup.Group)
	if limit := t.backend.cfg.MaxConcurrentUploads; limit > 0 {
		g.SetLimit(limit)
	}

	var mu sync.Mutex
	var failed []blobstore.Blob

	for _, blob := range blobs {
		g.Go(func() error {
			if err := t.backend.putBlob(ctx, blob); err != nil {
				// Keep the blob's full data for the next round; only the
				// transport error detail is dropped after logging.
				t.backend.logger.Error("failed to upload blob",
					blobstore.ArgsToFields("txn", t.id, "path", blob.Path, "round", round, "error", err)...)
				t.backend.instr.RecordUploadFailure()
				mu.Lock()
				failed = append(failed, blob)
				mu.Unlock()
				return nil
			}
			t.backend.instr.RecordUpload()
			return nil
		})
	}

	_ = g.Wait() // tasks never return errors; Wait only joins the wave
	return failed
}

// Complete marks the transaction finished. The object store has no
// multi-object commit, so this performs no network activity.
func (t *Transaction) Complete() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != txOpen {
		return &blobstore.StorageError{Op: "complete", Err: blobstore.ErrTransactionClosed}
	}
	t.state = txComplete
	t.backend.logger.Debug("storage transaction completed", blobstore.ArgsToFields("txn", t.id)...)
	return nil
}

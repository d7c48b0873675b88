// Package testutil provides in-memory test doubles for blobstore consumers.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/docshost/blobstore"
)

// MockBackend is a thread-safe in-memory implementation of
// blobstore.Backend for testing.
type MockBackend struct {
	mu      sync.RWMutex
	objects map[string]*mockObject

	// PutFailures maps a blob path to the number of upload attempts that
	// should fail before the path starts succeeding. Used to exercise
	// retry handling in consumers.
	putFailures map[string]int

	now func() time.Time
}

type mockObject struct {
	content     []byte
	mime        string
	compression blobstore.Compression
	dateUpdated time.Time
}

// NewMockBackend creates an empty in-memory backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		objects:     make(map[string]*mockObject),
		putFailures: make(map[string]int),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for DateUpdated stamps.
func (m *MockBackend) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// FailPuts makes the next n upload attempts for path fail with a
// transport error before the path starts succeeding.
func (m *MockBackend) FailPuts(path string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putFailures[path] = n
}

// Len reports the number of stored objects.
func (m *MockBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Get retrieves a blob by path, enforcing maxSize the same way the real
// backend does.
func (m *MockBackend) Get(ctx context.Context, path string, maxSize int) (*blobstore.Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, &blobstore.StorageError{Op: "get", Key: path, Err: err}
	}
	if path == "" {
		return nil, &blobstore.StorageError{Op: "get", Err: blobstore.ErrInvalidKey}
	}

	m.mu.RLock()
	obj, exists := m.objects[path]
	m.mu.RUnlock()
	if !exists {
		return nil, &blobstore.StorageError{Op: "get", Key: path, Err: blobstore.ErrNotFound}
	}

	buf := blobstore.NewSizedBuffer(maxSize)
	if _, err := buf.Write(obj.content); err != nil {
		return nil, &blobstore.StorageError{Op: "get", Key: path, Err: err}
	}

	return &blobstore.Blob{
		Path:        path,
		MIME:        obj.mime,
		DateUpdated: obj.dateUpdated,
		Content:     buf.Take(),
		Compression: obj.compression,
	}, nil
}

func (m *MockBackend) putBlob(ctx context.Context, blob blobstore.Blob) error {
	if err := ctx.Err(); err != nil {
		return &blobstore.StorageError{Op: "put", Key: blob.Path, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if remaining := m.putFailures[blob.Path]; remaining > 0 {
		m.putFailures[blob.Path] = remaining - 1
		return &blobstore.StorageError{
			Op:  "put",
			Key: blob.Path,
			Err: fmt.Errorf("%w: injected failure", blobstore.ErrTransport),
		}
	}

	content := make([]byte, len(blob.Content))
	copy(content, blob.Content)
	m.objects[blob.Path] = &mockObject{
		content:     content,
		mime:        blob.MIME,
		compression: blob.Compression,
		dateUpdated: m.now(),
	}
	return nil
}

// StartStorageTransaction opens a write transaction against the
// in-memory store.
func (m *MockBackend) StartStorageTransaction(ctx context.Context) (blobstore.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, &blobstore.StorageError{Op: "start_transaction", Err: err}
	}
	return &MockTransaction{backend: m, attempts: 3}, nil
}

// MockTransaction mirrors the retry contract of the real transaction:
// each round retries only the blobs that failed, and exhausting the
// attempt budget aborts the transaction with a *RetryError.
type MockTransaction struct {
	backend  *MockBackend
	attempts int

	mu     sync.Mutex
	closed bool
}

// StoreBatch persists the batch with up to three attempt rounds.
func (t *MockTransaction) StoreBatch(ctx context.Context, batch []blobstore.Blob) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return &blobstore.StorageError{Op: "store_batch", Err: blobstore.ErrTransactionClosed}
	}
	if len(batch) == 0 {
		return &blobstore.StorageError{Op: "store_batch", Err: fmt.Errorf("%w: empty batch", blobstore.ErrInvalidKey)}
	}
	for i := range batch {
		if err := batch[i].Validate(); err != nil {
			return err
		}
	}

	remaining := make([]blobstore.Blob, len(batch))
	copy(remaining, batch)

	for round := 1; round <= t.attempts; round++ {
		var failed []blobstore.Blob
		for _, blob := range remaining {
			if err := t.backend.putBlob(ctx, blob); err != nil {
				failed = append(failed, blob)
			}
		}
		remaining = failed
		if len(remaining) == 0 {
			return nil
		}
	}

	t.closed = true
	return &blobstore.RetryError{Failed: remaining, Rounds: t.attempts}
}

// Complete marks the transaction finished.
func (t *MockTransaction) Complete() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return &blobstore.StorageError{Op: "complete", Err: blobstore.ErrTransactionClosed}
	}
	t.closed = true
	return nil
}

// TestModule provides a MockBackend as blobstore.Backend for FX-based
// tests.
var TestModule = fx.Module("blobstore-mock",
	fx.Provide(
		NewMockBackend,
		func(m *MockBackend) blobstore.Backend { return m },
	),
)

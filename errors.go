package blobstore

import (
	"errors"
	"fmt"
)

// Domain Errors - use errors.Is for checking
var (
	// ErrNotFound indicates no object is stored at the requested path
	ErrNotFound = errors.New("blobstore: object not found")

	// ErrSizeLimit indicates the read buffer ceiling was reached mid-read
	ErrSizeLimit = errors.New("blobstore: size limit exceeded")

	// ErrTransport indicates a network or protocol failure, including a
	// successful response that is missing metadata required to build a Blob
	ErrTransport = errors.New("blobstore: transport failure")

	// ErrMalformedTimestamp indicates a timestamp string that does not fit
	// the expected HTTP-date layout
	ErrMalformedTimestamp = errors.New("blobstore: malformed timestamp")

	// ErrRetryBudgetExhausted indicates a batch still had failing uploads
	// after the configured number of attempt rounds
	ErrRetryBudgetExhausted = errors.New("blobstore: upload retry budget exhausted")

	// ErrInvalidKey indicates an empty or otherwise unusable blob path
	ErrInvalidKey = errors.New("blobstore: invalid blob path")

	// ErrTransactionClosed indicates a store was attempted on a transaction
	// that has already completed or aborted
	ErrTransactionClosed = errors.New("blobstore: transaction closed")

	// ErrInvalidConfig indicates the storage configuration is invalid
	ErrInvalidConfig = errors.New("blobstore: invalid configuration")
)

// StorageError wraps underlying errors with operation context
type StorageError struct {
	Op  string // operation that failed
	Key string // blob path (if applicable)
	Err error  // underlying error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("blobstore %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("blobstore %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound checks if an error is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsSizeLimit checks if an error is or wraps ErrSizeLimit
func IsSizeLimit(err error) bool {
	return errors.Is(err, ErrSizeLimit)
}

// RetryError reports the subset of a batch that never stored after the
// upload retry budget ran out. Blobs that succeeded in earlier rounds stay
// stored; the caller decides whether to abort, alert or re-enqueue the rest.
type RetryError struct {
	// Failed holds the blobs that failed on every attempt, with their full
	// data so they can be resubmitted.
	Failed []Blob

	// Rounds is the number of attempt rounds that were made.
	Rounds int
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("blobstore: %d blob(s) still failing after %d upload round(s)", len(e.Failed), e.Rounds)
}

func (e *RetryError) Unwrap() error {
	return ErrRetryBudgetExhausted
}

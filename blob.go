package blobstore

import (
	"time"
)

// Compression identifies the algorithm a blob's content is compressed with,
// serialized as a Content-Encoding label. The zero value means uncompressed.
type Compression string

const (
	// CompressionNone means the content is stored uncompressed.
	CompressionNone Compression = ""

	// CompressionZstd is zstandard-compressed content.
	CompressionZstd Compression = "zstd"

	// CompressionGzip is gzip-compressed content.
	CompressionGzip Compression = "gzip"

	// CompressionBzip2 is bzip2-compressed content.
	CompressionBzip2 Compression = "bzip2"

	// CompressionUnknown is reported on read when the store returned a
	// Content-Encoding this package does not recognize. The content bytes
	// are returned untouched; callers can tell "encoding metadata was lost"
	// apart from "definitely uncompressed".
	CompressionUnknown Compression = "unknown"
)

// ParseContentEncoding maps a Content-Encoding header value onto a
// Compression. ok is false when the value names no known algorithm, in
// which case CompressionUnknown is returned.
func ParseContentEncoding(s string) (Compression, bool) {
	switch s {
	case "":
		return CompressionNone, true
	case "zstd":
		return CompressionZstd, true
	case "gzip":
		return CompressionGzip, true
	case "bzip2":
		return CompressionBzip2, true
	default:
		return CompressionUnknown, false
	}
}

// ContentEncoding returns the Content-Encoding header value to send on a
// write. None and unknown yield "", meaning the header is omitted: an
// unknown encoding is a read-side artifact and must never be written back.
func (c Compression) ContentEncoding() string {
	switch c {
	case CompressionZstd, CompressionGzip, CompressionBzip2:
		return string(c)
	default:
		return ""
	}
}

// Blob is the stored content unit: a payload identified by path, with its
// declared MIME type, optional compression encoding and the last-modified
// instant reported by the store. A Blob is immutable once constructed; it
// is created fresh for each read or write.
type Blob struct {
	// Path is the unique key within the bucket namespace.
	Path string

	// MIME is the declared content type.
	MIME string

	// DateUpdated is set by the backend on read, or by the remote store at
	// write time. It is never client-supplied on write.
	DateUpdated time.Time

	// Content is the raw payload.
	Content []byte

	// Compression is the algorithm Content is compressed with, if any.
	Compression Compression
}

// Validate reports whether the blob can be written.
func (b *Blob) Validate() error {
	if b.Path == "" {
		return &StorageError{Op: "validate", Err: ErrInvalidKey}
	}
	return nil
}

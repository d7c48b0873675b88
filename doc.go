// Package blobstore is the blob-storage layer of a documentation-hosting
// service. It stores and retrieves opaque content blobs identified by path,
// together with their MIME type, optional compression encoding and
// last-modified timestamp, against an S3-compatible object store.
//
// The package is designed to be imported from the module root:
//
//	import "github.com/docshost/blobstore"
//
// Use the Fx module (`blobstore.Module()`) together with an adapter module
// (for example `adapters/s3.Module()`) to obtain a `blobstore.Backend`, or
// construct a backend directly with `s3.NewBackend`. The alternate
// database-backed backend used when no object-store credentials are
// available implements the same Backend interface and lives outside this
// module.
//
// Writes go through a Transaction: a batch of independent uploads sharing
// one retry policy. Reads are bounded: the caller supplies a hard maximum
// size, and a read of a larger remote object fails with ErrSizeLimit instead
// of buffering it.
package blobstore

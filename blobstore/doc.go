// Package blobstore provides storage abstraction for rule sets and packet
// traces.
//
// BlobStore is the interface for reading and writing whole data blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 with range reads and multipart transfers
//   - minio.Store: MinIO and other S3-compatible servers
//
// Blobs named with a ".zst" or ".lz4" suffix are decompressed on the fly by
// OpenReader. The fetch subpackage resolves "file", "s3" and "minio" URIs to
// the matching store.
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore

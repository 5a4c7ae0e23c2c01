// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("classbench/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	rc, err := blobstore.OpenReader(ctx, store, "acl1.trace.zst")
//
// # Features
//
//   - Range reads for sequential scans of large traces
//   - Multipart uploads and concurrent downloads
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3

// Package fetch resolves input locations of rule sets and traces to a
// blobstore.
//
// Supported locations:
//
//	/path/to/acl1.rules            local file
//	file:///path/to/acl1.rules     local file
//	s3://bucket/key                Amazon S3, default AWS configuration
//	minio://host:port/bucket/key   MinIO, credentials from MINIO_ACCESS_KEY
//	                               and MINIO_SECRET_KEY, "?secure=true" for TLS
//
// Keys ending in ".zst" or ".lz4" are decompressed transparently.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/hembs/blobstore"
	minioblob "github.com/hupe1980/hembs/blobstore/minio"
	s3blob "github.com/hupe1980/hembs/blobstore/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrUnsupportedScheme is returned for a location with an unknown scheme.
var ErrUnsupportedScheme = errors.New("fetch: unsupported scheme")

// Resolve returns the store holding location and the blob name within it.
func Resolve(ctx context.Context, location string) (blobstore.BlobStore, string, error) {
	if !strings.Contains(location, "://") {
		return localStore(location)
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, "", fmt.Errorf("fetch: %w", err)
	}

	switch u.Scheme {
	case "file":
		return localStore(u.Path)
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, "", fmt.Errorf("fetch: %q: want s3://bucket/key", location)
		}
		store, err := s3blob.New(ctx, u.Host)
		if err != nil {
			return nil, "", err
		}
		return store, key, nil
	case "minio":
		bucket, key, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if u.Host == "" || !ok || bucket == "" || key == "" {
			return nil, "", fmt.Errorf("fetch: %q: want minio://host/bucket/key", location)
		}
		client, err := minio.New(u.Host, &minio.Options{
			Creds:  credentials.NewStaticV4(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), ""),
			Secure: u.Query().Get("secure") == "true",
		})
		if err != nil {
			return nil, "", fmt.Errorf("fetch: %w", err)
		}
		return minioblob.NewStore(client, bucket, ""), key, nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func localStore(p string) (blobstore.BlobStore, string, error) {
	if p == "" {
		return nil, "", errors.New("fetch: empty path")
	}
	return blobstore.NewLocalStore(filepath.Dir(p)), filepath.Base(p), nil
}

// Open returns a sequential reader over the decompressed content at location.
func Open(ctx context.Context, location string) (io.ReadCloser, error) {
	store, name, err := Resolve(ctx, location)
	if err != nil {
		return nil, err
	}
	return blobstore.OpenReader(ctx, store, name)
}

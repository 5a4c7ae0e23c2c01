package fetch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/hembs/blobstore"
	minioblob "github.com/hupe1980/hembs/blobstore/minio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_LocalFile(t *testing.T) {
	dir := t.TempDir()
	plain := []byte("@0.0.0.0/0\t0.0.0.0/0\t0 : 65535\t0 : 65535\t0x00/0x00\n")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.rules"), plain, 0o644))

	enc, err := blobstore.Compress(plain, blobstore.CompressionZstd)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.rules.zst"), enc, 0o644))

	for _, loc := range []string{
		filepath.Join(dir, "r.rules"),
		"file://" + filepath.Join(dir, "r.rules"),
		filepath.Join(dir, "r.rules.zst"),
	} {
		rc, err := Open(context.Background(), loc)
		require.NoError(t, err, loc)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, plain, got, loc)
	}

	_, err = Open(context.Background(), filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	store, name, err := Resolve(ctx, "minio://localhost:9000/bench/acl/acl1.trace")
	require.NoError(t, err)
	assert.IsType(t, &minioblob.Store{}, store)
	assert.Equal(t, "acl/acl1.trace", name)

	_, _, err = Resolve(ctx, "ftp://host/file")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, _, err = Resolve(ctx, "minio://localhost:9000/bucket-only")
	assert.Error(t, err)

	_, _, err = Resolve(ctx, "s3://bucket")
	assert.Error(t, err)
}

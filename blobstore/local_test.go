package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlobStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	data := []byte("@10.0.0.0/8\t0.0.0.0/0\t0 : 65535\t80 : 80\t0x06/0xFF\n")
	require.NoError(t, store.Put(ctx, "acl/acl1.rules", data))

	_, err := os.Stat(filepath.Join(tmpDir, "acl", "acl1.rules"))
	require.NoError(t, err)

	blob, err := store.Open(ctx, "acl/acl1.rules")
	require.NoError(t, err)
	defer blob.Close()

	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 10)
	n, err := blob.ReadAt(buf, 1)
	require.NoError(t, err)
	require.Equal(t, 10, n)
	assert.Equal(t, "10.0.0.0/8", string(buf))

	all, err := io.ReadAll(NewReader(blob))
	require.NoError(t, err)
	assert.Equal(t, data, all)

	require.NoError(t, store.Put(ctx, "acl/acl1.trace", []byte("x")))
	require.NoError(t, store.Put(ctx, "fw/fw1.rules", []byte("y")))

	names, err := store.List(ctx, "acl/")
	require.NoError(t, err)
	assert.Equal(t, []string{"acl/acl1.rules", "acl/acl1.trace"}, names)

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, names, 3)
}

func TestLocalBlobStore_NotFound(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	_, err := store.Open(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalBlobStore_PutReplaces(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a", []byte("first version")))
	require.NoError(t, store.Put(ctx, "a", []byte("second")))

	b, err := store.Open(ctx, "a")
	require.NoError(t, err)
	defer b.Close()

	got, err := ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

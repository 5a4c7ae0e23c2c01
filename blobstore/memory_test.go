package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("hello trace")
	require.NoError(t, store.Put(ctx, "t/1", data))
	data[0] = 'X'

	b, err := store.Open(ctx, "t/1")
	require.NoError(t, err)
	assert.Equal(t, int64(11), b.Size())

	got, err := ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, "hello trace", string(got))

	buf := make([]byte, 8)
	n, err := b.ReadAt(buf, 6)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "trace", string(buf[:n]))

	_, err = store.Open(ctx, "t/2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "a", nil))
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "t/1"}, names)
}

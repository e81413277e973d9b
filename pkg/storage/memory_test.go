package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"coldvault-go/pkg/checksum"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ObjectLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.CreateBucket(ctx, "b"))

	data := []byte("part payload")
	require.NoError(t, m.Put(ctx, "b", "alice/a1/0", bytes.NewReader(data), int64(len(data))))

	info, err := m.Head(ctx, "b", "alice/a1/0")
	require.NoError(t, err)
	assert.Equal(t, checksum.Bytes(data), info.Checksum)
	assert.EqualValues(t, len(data), info.Size)

	dest := filepath.Join(t.TempDir(), "0")
	require.NoError(t, m.Get(ctx, "b", "alice/a1/0", dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	objs, err := m.List(ctx, "b")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "alice/a1/0", objs[0].Key)

	require.NoError(t, m.Delete(ctx, "b", "alice/a1/0"))
	_, err = m.Head(ctx, "b", "alice/a1/0")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, m.DeleteBucket(ctx, "b"))
	_, err = m.List(ctx, "b")
	assert.ErrorIs(t, err, ErrBucketNotFound)
}

func TestMemoryStore_PutShortReader(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.CreateBucket(ctx, "b"))

	err := m.Put(ctx, "b", "k", bytes.NewReader([]byte("abc")), 10)
	require.Error(t, err)
	_, err = m.Head(ctx, "b", "k")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestMemoryStore_MissingBucket(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	err := m.Put(ctx, "nope", "k", bytes.NewReader(nil), 0)
	assert.ErrorIs(t, err, ErrBucketNotFound)
	err = m.Get(ctx, "nope", "k", filepath.Join(t.TempDir(), "x"))
	assert.ErrorIs(t, err, ErrBucketNotFound)
}

func TestMemoryStore_DeleteBucketNotEmpty(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.CreateBucket(ctx, "b"))
	require.NoError(t, m.Put(ctx, "b", "k", bytes.NewReader([]byte("x")), 1))

	require.Error(t, m.DeleteBucket(ctx, "b"))
	require.Error(t, m.CreateBucket(ctx, "b"))
}

func TestNormalizeETag(t *testing.T) {
	assert.Equal(t, "abc123", NormalizeETag(`"ABC123"`))
	assert.Equal(t, "abc123", NormalizeETag("abc123"))
}

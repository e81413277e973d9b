package service

import (
	"context"
	"errors"
	"testing"

	"coldvault-go/internal/model"
	"coldvault-go/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deniedStore 模拟没有建桶权限的凭证。
type deniedStore struct {
	storage.ObjectStore
}

func (deniedStore) CreateBucket(context.Context, string) error {
	return errors.New("AccessDenied")
}

func TestConnectionService_CreateValid(t *testing.T) {
	h := newHarness(t, 4)
	conn, err := h.conns.Create(h.ctx, CreateConnectionInput{Name: "primary", AccessKey: "ak", SecretKey: "wJalrXUtnFEMI", Region: "eu-west-1"})
	require.NoError(t, err)

	assert.True(t, conn.IsValid)
	assert.False(t, conn.IsActive)
	assert.NotEqual(t, "wJalrXUtnFEMI", conn.SecretKey)
	plain, err := h.box.Open(conn.SecretKey)
	require.NoError(t, err)
	assert.Equal(t, "wJalrXUtnFEMI", plain)

	// 连接自己的存储桶已创建，探测桶已删除
	_, err = h.mem.List(h.ctx, conn.Bucket())
	require.NoError(t, err)
	assert.Equal(t, 0, h.logs.FilterMessageSnippet("校验失败").Len())
}

func TestConnectionService_CreateInvalid(t *testing.T) {
	h := newHarness(t, 4)
	h.store = deniedStore{ObjectStore: h.mem}

	conn, err := h.conns.Create(h.ctx, CreateConnectionInput{Name: "bad", AccessKey: "ak", SecretKey: "sk", Region: "us-east-1"})
	require.NoError(t, err)
	assert.False(t, conn.IsValid)
	assert.ErrorIs(t, h.conns.Activate(h.ctx, conn.ID), ErrConnectionInvalid)

	h.store = h.mem
	valid, err := h.conns.Revalidate(h.ctx, conn.ID)
	require.NoError(t, err)
	assert.True(t, valid)
	require.NoError(t, h.conns.Activate(h.ctx, conn.ID))
}

func TestConnectionService_CreateRequiresFields(t *testing.T) {
	h := newHarness(t, 4)
	_, err := h.conns.Create(h.ctx, CreateConnectionInput{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConnectionService_SingleActive(t *testing.T) {
	h := newHarness(t, 4)
	first := h.activeConnection()
	second := h.activeConnection()

	conns, err := h.conns.List(h.ctx)
	require.NoError(t, err)
	active := 0
	for _, c := range conns {
		if c.IsActive {
			active++
			assert.Equal(t, second.ID, c.ID)
		}
	}
	assert.Equal(t, 1, active)

	conn, _, err := h.remote.Active(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, conn.ID)

	require.NoError(t, h.conns.Deactivate(h.ctx, second.ID))
	_, _, err = h.remote.Active(h.ctx)
	assert.ErrorIs(t, err, ErrNoActiveConnection)

	got, err := h.conns.Get(h.ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestConnectionService_Delete(t *testing.T) {
	h := newHarness(t, 4)
	conn := h.activeConnection()

	require.NoError(t, h.conns.Delete(h.ctx, conn.ID))
	_, err := h.mem.List(h.ctx, conn.Bucket())
	assert.ErrorIs(t, err, storage.ErrBucketNotFound)

	_, err = h.conns.Get(h.ctx, conn.ID)
	assert.ErrorIs(t, err, ErrConnectionNotFound)
	assert.ErrorIs(t, h.conns.Delete(h.ctx, conn.ID), ErrConnectionNotFound)
	assert.ErrorIs(t, h.conns.Activate(h.ctx, "missing"), ErrConnectionNotFound)

	var n int64
	require.NoError(t, h.db.Model(&model.RemoteConnection{}).Count(&n).Error)
	assert.Zero(t, n)
}

package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coldvault-go/internal/model"
	"coldvault-go/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// etagStore 对指定 key 报告伪造的摘要，或让 Head 失败。
type etagStore struct {
	storage.ObjectStore
	etags   map[string]string
	headErr map[string]error
}

func (s *etagStore) Head(ctx context.Context, bucket, key string) (storage.ObjectInfo, error) {
	if err, ok := s.headErr[key]; ok {
		return storage.ObjectInfo{}, err
	}
	info, err := s.ObjectStore.Head(ctx, bucket, key)
	if err != nil {
		return info, err
	}
	if etag, ok := s.etags[key]; ok {
		info.Checksum = `"` + etag + `"`
	}
	return info, nil
}

type partState struct {
	ID       uint
	Uploaded bool
	Cached   bool
}

type jobState struct {
	ID        uint
	PartID    uint
	Direction string
	Status    string
}

func (h *harness) snapshot() ([]partState, []jobState) {
	h.t.Helper()
	var parts []model.ArchivePartMeta
	require.NoError(h.t, h.db.Order("id").Find(&parts).Error)
	var jobs []model.PersistentTransferJob
	require.NoError(h.t, h.db.Order("id").Find(&jobs).Error)
	ps := make([]partState, len(parts))
	for i, p := range parts {
		ps[i] = partState{p.ID, p.Uploaded, p.Cached}
	}
	js := make([]jobState, len(jobs))
	for i, j := range jobs {
		js[i] = jobState{j.ID, j.PartID, j.Direction, j.Status}
	}
	return ps, js
}

func TestReconciler_NoActiveConnection(t *testing.T) {
	h := newHarness(t, 4)
	h.createArchive([]byte("0123456789"))

	report, err := h.reconciler.Run(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, report)
	assert.Equal(t, 1, h.logs.FilterMessageSnippet("跳过对账").Len())
}

func TestReconciler_UnhealthyRemoteIsReplaced(t *testing.T) {
	h := newHarness(t, 4)
	conn := h.activeConnection()
	a := h.createArchive([]byte("0123456789"))
	h.runDispatch()

	target := h.parts(a.ID)[1]
	require.NoError(t, h.db.Model(&model.ArchivePartMeta{}).Where("id = ?", target.ID).Update("checksum", "abc123").Error)
	key := model.RemoteKey("alice", a.ID, 1)
	h.store = &etagStore{ObjectStore: h.mem, etags: map[string]string{key: "deadbeef"}}

	part := h.parts(a.ID)[1]
	part.Archive = a
	healthy, err := h.reconciler.HasHealthyRemote(h.ctx, h.store, conn.Bucket(), &part)
	require.NoError(t, err)
	assert.False(t, healthy)

	report, err := h.reconciler.Run(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Healthy)
	assert.Equal(t, 1, report.Unhealthy)
	assert.Equal(t, 1, report.RemoteDeleted)
	assert.Equal(t, 1, report.UploadsQueued)

	assert.False(t, h.parts(a.ID)[1].Uploaded)
	assert.NotContains(t, h.keys(conn.Bucket()), key)

	jobs := h.scheduled()
	require.Len(t, jobs, 1)
	assert.Equal(t, target.ID, jobs[0].PartID)
	assert.Equal(t, model.DirectionUpload, jobs[0].Direction)
}

func TestReconciler_Idempotent(t *testing.T) {
	h := newHarness(t, 4)
	conn := h.activeConnection()
	a := h.createArchive([]byte("0123456789"))
	h.runDispatch()

	// 篡改一个远端对象，并放入一个孤儿对象
	require.NoError(t, h.mem.Put(h.ctx, conn.Bucket(), model.RemoteKey("alice", a.ID, 0), strings.NewReader("XXXX"), 4))
	require.NoError(t, h.mem.Put(h.ctx, conn.Bucket(), "stray/object", strings.NewReader("x"), 1))

	_, err := h.reconciler.Run(h.ctx)
	require.NoError(t, err)
	parts1, jobs1 := h.snapshot()
	keys1 := h.keys(conn.Bucket())

	_, err = h.reconciler.Run(h.ctx)
	require.NoError(t, err)
	parts2, jobs2 := h.snapshot()

	assert.Equal(t, parts1, parts2)
	assert.Equal(t, jobs1, jobs2)
	assert.Equal(t, keys1, h.keys(conn.Bucket()))
	assert.Len(t, h.scheduled(), 1)
}

func TestReconciler_OrphanCleanup(t *testing.T) {
	h := newHarness(t, 4)
	conn := h.activeConnection()
	a := h.createArchive([]byte("0123456789"))
	h.runDispatch()

	require.NoError(t, h.mem.Put(h.ctx, conn.Bucket(), "alice/deleted-archive/0", strings.NewReader("x"), 1))
	require.NoError(t, h.mem.Put(h.ctx, conn.Bucket(), "alice/"+a.ID+"/7", strings.NewReader("x"), 1))

	report, err := h.reconciler.Run(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.OrphansDeleted)
	assert.Equal(t, []string{
		model.RemoteKey("alice", a.ID, 0),
		model.RemoteKey("alice", a.ID, 1),
		model.RemoteKey("alice", a.ID, 2),
	}, h.keys(conn.Bucket()))
}

func TestReconciler_MarksHealthyRemoteUploaded(t *testing.T) {
	h := newHarness(t, 4)
	conn := h.activeConnection()
	a := h.createArchive([]byte("0123456789"))

	// 远端已有正确内容，但记录还是 uploaded=false
	content := []byte("0123456789")
	for _, p := range h.parts(a.ID) {
		body := content[p.StartByte:p.EndByte]
		require.NoError(t, h.mem.Put(h.ctx, conn.Bucket(), model.RemoteKey("alice", a.ID, p.PartIndex), strings.NewReader(string(body)), int64(len(body))))
	}

	report, err := h.reconciler.Run(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Healthy)
	for _, p := range h.parts(a.ID) {
		assert.True(t, p.Uploaded)
	}
	assert.Len(t, h.keys(conn.Bucket()), 3)
}

func TestReconciler_MissingLocalFileQueuesNothing(t *testing.T) {
	h := newHarness(t, 4)
	conn := h.activeConnection()
	a := h.createArchive([]byte("0123456789"))
	h.runDispatch()
	require.NoError(t, h.archives.ReleaseLocalCopy(h.ctx, a.ID))
	require.NoError(t, h.mem.Delete(h.ctx, conn.Bucket(), model.RemoteKey("alice", a.ID, 2)))

	report, err := h.reconciler.Run(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unhealthy)
	assert.Zero(t, report.UploadsQueued)
	assert.Empty(t, h.scheduled())
	assert.False(t, h.parts(a.ID)[2].Uploaded)
	_, statErr := os.Stat(filepath.Join(h.root, a.Path()))
	assert.True(t, os.IsNotExist(statErr))
}

func TestReconciler_HeadFailureSkipsSweep(t *testing.T) {
	h := newHarness(t, 4)
	conn := h.activeConnection()
	a := h.createArchive([]byte("0123456789"))
	h.runDispatch()
	require.NoError(t, h.mem.Put(h.ctx, conn.Bucket(), "stray", strings.NewReader("x"), 1))

	h.store = &etagStore{ObjectStore: h.mem, headErr: map[string]error{
		model.RemoteKey("alice", a.ID, 0): errors.New("throttled"),
	}}
	report, err := h.reconciler.Run(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errors)
	assert.Contains(t, h.keys(conn.Bucket()), "stray")
	assert.True(t, h.parts(a.ID)[0].Uploaded)
}

// listHookStore 在第一次 List 之前执行 beforeList，模拟清理窗口内的并发操作。
type listHookStore struct {
	storage.ObjectStore
	beforeList func()
	fired      bool
}

func (s *listHookStore) List(ctx context.Context, bucket string) ([]storage.ObjectInfo, error) {
	if !s.fired {
		s.fired = true
		s.beforeList()
	}
	return s.ObjectStore.List(ctx, bucket)
}

func TestReconciler_SweepDoesNotRaceUploads(t *testing.T) {
	h := newHarness(t, 4)
	conn := h.activeConnection()
	a := h.createArchive([]byte("0123456789"))

	completedDuringSweep := -1
	store := &listHookStore{ObjectStore: h.mem}
	store.beforeList = func() {
		completedDuringSweep = h.runDispatch()
	}
	h.store = store

	_, err := h.reconciler.Run(h.ctx)
	require.NoError(t, err)
	require.True(t, store.fired)
	assert.Zero(t, completedDuringSweep)
	assert.Equal(t, 1, h.logs.FilterMessageSnippet("另一个实例正在执行").Len())

	// 对账结束后分发照常完成，远端对象与记录一致
	assert.Equal(t, 3, h.runDispatch())
	assert.Len(t, h.keys(conn.Bucket()), 3)
	for _, p := range h.parts(a.ID) {
		assert.True(t, p.Uploaded)
	}

	report, err := h.reconciler.Run(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Healthy)
	assert.Zero(t, report.OrphansDeleted)
	assert.Len(t, h.keys(conn.Bucket()), 3)

	ok, err := h.archives.CanReleaseLocalCopy(h.ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

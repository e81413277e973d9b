package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"coldvault-go/internal/model"
	"coldvault-go/internal/repository"
	"coldvault-go/internal/testutil"
	"coldvault-go/pkg/kafka"
	"coldvault-go/pkg/lock"
	"coldvault-go/pkg/secret"
	"coldvault-go/pkg/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) all() []kafka.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]kafka.Event(nil), p.events...)
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	db        *gorm.DB
	root      string
	mem       *storage.MemoryStore
	store     storage.ObjectStore // factory 返回的存储，测试可替换
	settings  Settings
	box       *secret.Box
	locker    *lock.LocalLocker
	publisher *recordingPublisher
	log       *zap.SugaredLogger
	logs      *observer.ObservedLogs

	archiveRepo repository.ArchiveRepository
	partRepo    repository.PartRepository
	jobRepo     repository.JobRepository
	connRepo    repository.ConnectionRepository

	remote     *RemoteResolver
	planner    *Planner
	archives   ArchiveService
	conns      ConnectionService
	dispatcher *Dispatcher
	reconciler *Reconciler
	assembler  *Assembler
}

func newHarness(t *testing.T, chunkSize int64) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		ctx:       context.Background(),
		db:        testutil.NewDB(t),
		root:      t.TempDir(),
		mem:       storage.NewMemoryStore(),
		locker:    lock.NewLocalLocker(),
		publisher: &recordingPublisher{},
	}
	h.store = h.mem
	h.log, h.logs = testutil.NewLogger()
	box, err := secret.NewBox("test-master-key")
	require.NoError(t, err)
	h.box = box
	h.settings = Settings{
		Root:          h.root,
		ChunkSize:     chunkSize,
		RemoteTimeout: 5 * time.Second,
		Heartbeat:     10 * time.Millisecond,
		LockTTL:       time.Minute,
	}

	h.archiveRepo = repository.NewArchiveRepository(h.db)
	h.partRepo = repository.NewPartRepository(h.db)
	h.jobRepo = repository.NewJobRepository(h.db)
	h.connRepo = repository.NewConnectionRepository(h.db)

	factory := func(context.Context, storage.Credentials) (storage.ObjectStore, error) {
		return h.store, nil
	}
	h.remote = NewRemoteResolver(h.connRepo, factory, h.box)
	h.planner = NewPlanner(h.partRepo, h.root, h.log)
	h.archives = NewArchiveService(h.archiveRepo, h.partRepo, h.jobRepo, h.planner, h.settings, h.log)
	h.conns = NewConnectionService(h.connRepo, h.remote, h.settings, h.log)
	h.dispatcher = NewDispatcher(h.jobRepo, h.remote, h.publisher, h.locker, h.settings, h.log)
	h.reconciler = NewReconciler(h.partRepo, h.jobRepo, h.remote, h.locker, h.settings, h.log)
	h.assembler = NewAssembler(h.archiveRepo, h.partRepo, h.publisher, h.locker, h.settings, h.log)
	return h
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

func (h *harness) activeConnection() *model.RemoteConnection {
	h.t.Helper()
	conn, err := h.conns.Create(h.ctx, CreateConnectionInput{Name: "primary", AccessKey: "ak", SecretKey: "sk", Region: "us-east-1"})
	require.NoError(h.t, err)
	require.True(h.t, conn.IsValid)
	require.NoError(h.t, h.conns.Activate(h.ctx, conn.ID))
	conn, err = h.conns.Get(h.ctx, conn.ID)
	require.NoError(h.t, err)
	return conn
}

func (h *harness) createArchive(content []byte) *model.Archive {
	h.t.Helper()
	a, err := h.archives.CreateArchive(h.ctx, "alice", "backup", "data.bin", bytes.NewReader(content))
	require.NoError(h.t, err)
	return a
}

func (h *harness) parts(archiveID string) []model.ArchivePartMeta {
	h.t.Helper()
	parts, err := h.partRepo.FindByArchive(h.ctx, archiveID)
	require.NoError(h.t, err)
	return parts
}

func (h *harness) scheduled() []model.PersistentTransferJob {
	h.t.Helper()
	jobs, err := h.jobRepo.FindScheduled(h.ctx)
	require.NoError(h.t, err)
	return jobs
}

func (h *harness) archive(id string) *model.Archive {
	h.t.Helper()
	a, err := h.archives.GetArchive(h.ctx, id)
	require.NoError(h.t, err)
	return a
}

func (h *harness) keys(bucket string) []string {
	h.t.Helper()
	objects, err := h.mem.List(h.ctx, bucket)
	require.NoError(h.t, err)
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	return keys
}

// runDispatch 执行一轮分发并要求没有 pass 级错误。
func (h *harness) runDispatch() int {
	h.t.Helper()
	n, err := h.dispatcher.RunOnce(h.ctx)
	require.NoError(h.t, err)
	return n
}

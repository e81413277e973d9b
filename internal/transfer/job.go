// Package transfer 实现针对单个分片的上传与下载任务。
package transfer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"coldvault-go/internal/model"
	"coldvault-go/internal/repository"
	"coldvault-go/pkg/storage"
)

// ErrInvalid 表示任务的预检未通过，任务保持 scheduled。
var ErrInvalid = errors.New("transfer job invalid")

// Job 是一次分片传输。Validate 返回 nil 表示可以执行。
type Job interface {
	Source() string
	Destination() string
	Validate(ctx context.Context) error
	Execute(ctx context.Context) error
}

// Env 是任务执行所需的外部依赖。
type Env struct {
	Store   storage.ObjectStore
	Conn    *model.RemoteConnection
	Jobs    repository.JobRepository
	Root    string        // 本地存储根目录
	Timeout time.Duration // 单次远端调用的超时
	Now     func() time.Time
}

// New 根据任务方向构造对应的 Job。record 必须预加载 Part.Archive。
func New(record *model.PersistentTransferJob, env Env) (Job, error) {
	if record.Part == nil || record.Part.Archive == nil {
		return nil, fmt.Errorf("job %d: part or archive not loaded", record.ID)
	}
	if env.Now == nil {
		env.Now = time.Now
	}
	b := base{record: record, env: env}
	switch record.Direction {
	case model.DirectionUpload:
		return &UploadJob{base: b}, nil
	case model.DirectionDownload:
		return &DownloadJob{base: b}, nil
	default:
		return nil, fmt.Errorf("job %d: unknown direction %q", record.ID, record.Direction)
	}
}

// Describe 返回任务的可读描述。
func Describe(j Job) string {
	return fmt.Sprintf("Transferring from %s to %s", j.Source(), j.Destination())
}

type base struct {
	record *model.PersistentTransferJob
	env    Env
}

func (b *base) part() *model.ArchivePartMeta { return b.record.Part }

func (b *base) archive() *model.Archive { return b.record.Part.Archive }

func (b *base) bucket() string { return b.env.Conn.Bucket() }

func (b *base) key() string {
	return model.RemoteKey(b.archive().Owner, b.archive().ID, b.part().PartIndex)
}

func (b *base) remoteLocator() string {
	return storage.Locator(b.bucket(), b.key())
}

func (b *base) abs(rel string) string {
	p := filepath.Join(b.env.Root, rel)
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}

// remote 为一次远端调用加上超时。
func (b *base) remote(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.env.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.env.Timeout)
}

func (b *base) complete(ctx context.Context, startedAt time.Time) error {
	if err := b.env.Jobs.Complete(ctx, b.record, startedAt, b.env.Now()); err != nil {
		return fmt.Errorf("mark job %d completed: %w", b.record.ID, err)
	}
	return nil
}

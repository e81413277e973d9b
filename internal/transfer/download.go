package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"coldvault-go/internal/model"
	"coldvault-go/pkg/checksum"
	"coldvault-go/pkg/storage"
)

// DownloadJob 把远端分片下载到本地缓存目录。
type DownloadJob struct {
	base
}

func (j *DownloadJob) cachePath() string {
	return j.abs(model.CachePath(j.archive(), j.part().PartIndex))
}

func (j *DownloadJob) Source() string {
	return j.remoteLocator()
}

func (j *DownloadJob) Destination() string {
	return j.cachePath()
}

// Validate 要求连接可用且处于激活状态，并且远端对象存在、摘要与记录一致。
func (j *DownloadJob) Validate(ctx context.Context) error {
	if !j.env.Conn.IsValid || !j.env.Conn.IsActive {
		return fmt.Errorf("%w: connection %s not valid and active", ErrInvalid, j.env.Conn.ID)
	}
	rctx, cancel := j.remote(ctx)
	defer cancel()
	info, err := j.env.Store.Head(rctx, j.bucket(), j.key())
	if err != nil {
		return fmt.Errorf("%w: head %s: %v", ErrInvalid, j.Source(), err)
	}
	if got := storage.NormalizeETag(info.Checksum); got != j.part().Checksum {
		return fmt.Errorf("%w: remote checksum %s != %s", ErrInvalid, got, j.part().Checksum)
	}
	return nil
}

// Execute 下载分片并校验；校验失败时删除缓存文件，任务保持 scheduled。
func (j *DownloadJob) Execute(ctx context.Context) error {
	startedAt := j.env.Now()
	dest := j.cachePath()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	rctx, cancel := j.remote(ctx)
	defer cancel()
	if err := j.env.Store.Get(rctx, j.bucket(), j.key(), dest); err != nil {
		return fmt.Errorf("get %s: %w", j.Source(), err)
	}

	sum, err := checksum.File(dest)
	if err != nil {
		return err
	}
	if sum != j.part().Checksum {
		_ = os.Remove(dest)
		return fmt.Errorf("downloaded checksum %s != %s for %s", sum, j.part().Checksum, dest)
	}
	return j.complete(ctx, startedAt)
}

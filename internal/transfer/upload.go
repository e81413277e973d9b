package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"coldvault-go/pkg/storage"

	"github.com/google/uuid"
)

var probePayload = []byte("hello world")

// UploadJob 把分片字节区间写入远端存储。
type UploadJob struct {
	base
}

func (j *UploadJob) localPath() string {
	return j.abs(j.archive().Path())
}

// Source 形如 /abs/path/file::[start:end]
func (j *UploadJob) Source() string {
	return fmt.Sprintf("%s::[%d:%d]", j.localPath(), j.part().StartByte, j.part().EndByte)
}

func (j *UploadJob) Destination() string {
	return j.remoteLocator()
}

// Validate 检查本地区间可读，并通过写入再删除一个探测对象确认远端写权限。
func (j *UploadJob) Validate(ctx context.Context) error {
	info, err := os.Stat(j.localPath())
	if err != nil {
		return fmt.Errorf("%w: local file: %v", ErrInvalid, err)
	}
	p := j.part()
	if p.StartByte < 0 || p.EndByte < p.StartByte || p.EndByte > info.Size() {
		return fmt.Errorf("%w: range [%d:%d] outside file of %d bytes", ErrInvalid, p.StartByte, p.EndByte, info.Size())
	}

	probeKey := path.Join(j.archive().Owner, j.archive().ID, "probe-"+uuid.NewString())
	rctx, cancel := j.remote(ctx)
	defer cancel()
	if err := j.env.Store.Put(rctx, j.bucket(), probeKey, bytes.NewReader(probePayload), int64(len(probePayload))); err != nil {
		return fmt.Errorf("%w: probe put: %v", ErrInvalid, err)
	}
	if err := j.env.Store.Delete(rctx, j.bucket(), probeKey); err != nil {
		return fmt.Errorf("%w: probe delete: %v", ErrInvalid, err)
	}
	return nil
}

// Execute 上传 [start,end) 并确认远端摘要与记录一致后才完成任务。
// 任何失败都不修改任务与分片状态。
func (j *UploadJob) Execute(ctx context.Context) error {
	startedAt := j.env.Now()

	f, err := os.Open(j.localPath())
	if err != nil {
		return err
	}
	defer f.Close()

	p := j.part()
	section := io.NewSectionReader(f, p.StartByte, p.Size())

	rctx, cancel := j.remote(ctx)
	defer cancel()
	if err := j.env.Store.Put(rctx, j.bucket(), j.key(), section, p.Size()); err != nil {
		return fmt.Errorf("put %s: %w", j.Destination(), err)
	}
	info, err := j.env.Store.Head(rctx, j.bucket(), j.key())
	if err != nil {
		return fmt.Errorf("head %s: %w", j.Destination(), err)
	}
	if got := storage.NormalizeETag(info.Checksum); got != p.Checksum {
		mismatch := fmt.Errorf("remote checksum %s != %s for %s", got, p.Checksum, j.Destination())
		// 错误的字节不能留在远端
		if derr := j.env.Store.Delete(rctx, j.bucket(), j.key()); derr != nil {
			return errors.Join(mismatch, derr)
		}
		return mismatch
	}
	return j.complete(ctx, startedAt)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"coldvault-go/internal/model"
	"coldvault-go/internal/repository"
	"coldvault-go/pkg/checksum"
	"coldvault-go/pkg/kafka"
	"coldvault-go/pkg/lock"
	"coldvault-go/pkg/tasks"

	"go.uber.org/zap"
)

// Assembler 把下载缓存中经过校验的分片重新拼接为完整归档。
type Assembler struct {
	archives  repository.ArchiveRepository
	parts     repository.PartRepository
	publisher kafka.Publisher
	locker    lock.Locker
	settings  Settings
	log       *zap.SugaredLogger
	now       func() time.Time
}

// NewAssembler 创建一个新的 Assembler。
func NewAssembler(archives repository.ArchiveRepository, parts repository.PartRepository, publisher kafka.Publisher, locker lock.Locker, settings Settings, log *zap.SugaredLogger) *Assembler {
	return &Assembler{
		archives:  archives,
		parts:     parts,
		publisher: publisher,
		locker:    locker,
		settings:  settings,
		log:       log,
		now:       time.Now,
	}
}

func (a *Assembler) path(rel string) string {
	return filepath.Join(a.settings.Root, rel)
}

// CheckCacheHealth 校验每个分片的缓存文件。损坏的文件被删除并清除 cached；
// 健康的分片标记为 cached。所有分片都健康时返回 true，没有分片的归档返回 false。
func (a *Assembler) CheckCacheHealth(ctx context.Context, archive *model.Archive) (bool, error) {
	ready, _, err := a.checkCache(ctx, archive)
	return ready, err
}

func (a *Assembler) checkCache(ctx context.Context, archive *model.Archive) (bool, int, error) {
	parts, err := a.parts.FindByArchive(ctx, archive.ID)
	if err != nil {
		return false, 0, err
	}
	if len(parts) == 0 {
		return false, 0, nil
	}

	ready := true
	for i := range parts {
		p := &parts[i]
		cachePath := a.path(model.CachePath(archive, p.PartIndex))
		sum, err := checksum.File(cachePath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			ready = false
			if p.Cached {
				if err := a.parts.SetCached(ctx, p.ID, false); err != nil {
					return false, 0, err
				}
			}
		case err != nil:
			return false, 0, err
		case sum != p.Checksum:
			ready = false
			a.log.Warnf("[Assembler] 缓存分片 %s 已损坏 (%s != %s)，删除", cachePath, sum, p.Checksum)
			if err := os.Remove(cachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return false, 0, err
			}
			if p.Cached {
				if err := a.parts.SetCached(ctx, p.ID, false); err != nil {
					return false, 0, err
				}
			}
		default:
			if !p.Cached {
				if err := a.parts.SetCached(ctx, p.ID, true); err != nil {
					return false, 0, err
				}
			}
		}
	}
	return ready, len(parts), nil
}

// cachedPartFiles 列出缓存目录中序号小于 count 的分片文件，按序号的数值升序排列。
func cachedPartFiles(dir string, count int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type indexed struct {
		index int
		name  string
	}
	var files []indexed
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		idx, err := strconv.Atoi(e.Name())
		// 只接受规范写法，"01"、"+1" 这类别名不算分片
		if err != nil || idx < 0 || idx >= count || strconv.Itoa(idx) != e.Name() {
			continue
		}
		files = append(files, indexed{index: idx, name: e.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Join(dir, f.name)
	}
	return names, nil
}

func concatenate(dst string, srcs []string) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	for _, src := range srcs {
		in, err := os.Open(src)
		if err != nil {
			out.Close()
			return err
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			out.Close()
			return err
		}
	}
	return out.Close()
}

// Assemble 在缓存就绪时重建归档文件并校验整体摘要。
// 返回 true 表示归档已恢复到规范路径。
func (a *Assembler) Assemble(ctx context.Context, archive *model.Archive) (bool, error) {
	if archive.Checksum == nil {
		return false, fmt.Errorf("archive %s has no recorded checksum", archive.ID)
	}
	ready, count, err := a.checkCache(ctx, archive)
	if err != nil || !ready {
		return false, err
	}

	cacheDir := a.path(archive.CacheDir())
	files, err := cachedPartFiles(cacheDir, count)
	if err != nil {
		return false, err
	}
	staging := cacheDir + ".assembling"
	if err := concatenate(staging, files); err != nil {
		_ = os.Remove(staging)
		return false, fmt.Errorf("concatenate parts of %s: %w", archive.ID, err)
	}

	sum, err := checksum.File(staging)
	if err != nil {
		_ = os.Remove(staging)
		return false, err
	}
	if sum != *archive.Checksum {
		_ = os.Remove(staging)
		a.log.Errorf("[Assembler] 归档 %s 组装后摘要不一致 (%s != %s)，保留缓存等待下次重试", archive.ID, sum, *archive.Checksum)
		return false, nil
	}

	// 规范目录中残留的内容直接丢弃
	dir := a.path(archive.Dir())
	if err := os.RemoveAll(dir); err != nil {
		return false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	if err := os.Rename(staging, a.path(archive.Path())); err != nil {
		return false, err
	}
	if err := a.archives.MarkRestored(ctx, archive.ID); err != nil {
		return false, err
	}
	archive.Cached = true
	if err := os.RemoveAll(cacheDir); err != nil {
		a.log.Warnf("[Assembler] 清理缓存目录 %s 失败: %v", cacheDir, err)
	}
	a.log.Infof("[Assembler] 归档 %s 已从 %d 个缓存分片恢复", archive.ID, len(files))

	ev := tasks.ArchiveRestoredEvent{
		Type:      tasks.EventArchiveRestored,
		ArchiveID: archive.ID,
		Owner:     archive.Owner,
		Checksum:  sum,
		Size:      archive.Size,
		Restored:  a.now(),
	}
	pctx, cancel := withTimeout(ctx, a.settings.RemoteTimeout)
	defer cancel()
	if err := a.publisher.Publish(pctx, ev); err != nil {
		a.log.Warnf("[Assembler] 发布恢复事件失败: %v", err)
	}
	return true, nil
}

// RunAll 在组装锁内尝试恢复所有存在缓存目录的未缓存归档，返回恢复的数量。
func (a *Assembler) RunAll(ctx context.Context) (int, error) {
	restored := 0
	err := runLocked(ctx, a.locker, PassAssemble, a.settings.LockTTL, a.log, func(ctx context.Context) error {
		archives, err := a.archives.FindUncached(ctx)
		if err != nil {
			return err
		}
		for i := range archives {
			archive := &archives[i]
			if _, err := os.Stat(a.path(archive.CacheDir())); err != nil {
				continue
			}
			ok, err := a.Assemble(ctx, archive)
			if err != nil {
				a.log.Errorf("[Assembler] 组装归档 %s 失败: %v", archive.ID, err)
				continue
			}
			if ok {
				restored++
			}
		}
		return nil
	})
	return restored, err
}

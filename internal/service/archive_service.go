package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"coldvault-go/internal/model"
	"coldvault-go/internal/repository"
	"coldvault-go/pkg/checksum"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ArchiveService 接口定义了外部协作方（Web 层）使用的归档操作。
type ArchiveService interface {
	// CreateArchive 保存上传内容，计算校验和，切分分片并安排上传。
	CreateArchive(ctx context.Context, owner, name, fileName string, content io.Reader) (*model.Archive, error)
	GetArchive(ctx context.Context, id string) (*model.Archive, error)
	// ListArchives owner 为空时返回全部归档。
	ListArchives(ctx context.Context, owner string) ([]model.Archive, error)
	ListParts(ctx context.Context, id string) ([]model.ArchivePartMeta, error)
	// RequestCache 为尚未缓存的分片安排下载任务，返回新建任务数。
	RequestCache(ctx context.Context, id string) (int, error)
	CanReleaseLocalCopy(ctx context.Context, id string) (bool, error)
	ReleaseLocalCopy(ctx context.Context, id string) error
	DeleteArchive(ctx context.Context, id string) error
	// SyncLocalArchives 根据磁盘上的规范文件校正每个归档的 cached 标记。
	SyncLocalArchives(ctx context.Context) error
}

type archiveService struct {
	archives repository.ArchiveRepository
	parts    repository.PartRepository
	jobs     repository.JobRepository
	planner  *Planner
	settings Settings
	log      *zap.SugaredLogger
}

// NewArchiveService 创建一个新的 ArchiveService 实例。
func NewArchiveService(archives repository.ArchiveRepository, parts repository.PartRepository, jobs repository.JobRepository, planner *Planner, settings Settings, log *zap.SugaredLogger) ArchiveService {
	return &archiveService{
		archives: archives,
		parts:    parts,
		jobs:     jobs,
		planner:  planner,
		settings: settings,
		log:      log,
	}
}

func (s *archiveService) path(rel string) string {
	return filepath.Join(s.settings.Root, rel)
}

func validOwner(owner string) bool {
	return owner != "" && owner != "." && owner != ".." && !strings.ContainsAny(owner, `/\`)
}

func (s *archiveService) CreateArchive(ctx context.Context, owner, name, fileName string, content io.Reader) (*model.Archive, error) {
	base := filepath.Base(strings.ReplaceAll(fileName, `\`, "/"))
	if !validOwner(owner) || base == "." || base == ".." || base == "/" {
		return nil, fmt.Errorf("%w: owner %q, file name %q", ErrInvalidInput, owner, fileName)
	}
	if name == "" {
		name = base
	}

	archive := &model.Archive{
		ID:       uuid.NewString(),
		Owner:    owner,
		Name:     name,
		FileName: base,
	}
	archive.StoragePath = archive.Path()
	dir := s.path(archive.Dir())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	size, err := writeFile(s.path(archive.Path()), content)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("save archive file: %w", err)
	}
	if size == 0 {
		_ = os.RemoveAll(dir)
		return nil, ErrEmptyArchive
	}
	archive.Size = size
	archive.Cached = true

	if err := s.archives.Create(ctx, archive); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	if err := s.initialize(ctx, archive); err != nil {
		s.log.Errorf("[CreateArchive] 归档 %s 初始化失败，回滚: %v", archive.ID, err)
		if derr := s.archives.DeleteCascade(ctx, archive.ID); derr != nil {
			s.log.Errorf("[CreateArchive] 回滚归档 %s 记录失败: %v", archive.ID, derr)
		}
		_ = os.RemoveAll(dir)
		return nil, err
	}
	s.log.Infof("[CreateArchive] 归档已创建: id=%s, owner=%s, size=%d, checksum=%s", archive.ID, owner, size, archive.ChecksumValue())
	return archive, nil
}

func (s *archiveService) initialize(ctx context.Context, archive *model.Archive) error {
	sum, err := checksum.File(s.path(archive.Path()))
	if err != nil {
		return err
	}
	if err := s.archives.SetChecksum(ctx, archive.ID, sum); err != nil {
		return err
	}
	archive.Checksum = &sum
	_, err = s.planner.Initialize(ctx, archive, s.settings.ChunkSize)
	return err
}

func writeFile(path string, content io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func (s *archiveService) GetArchive(ctx context.Context, id string) (*model.Archive, error) {
	archive, err := s.archives.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, id)
	}
	return archive, err
}

func (s *archiveService) ListArchives(ctx context.Context, owner string) ([]model.Archive, error) {
	if owner == "" {
		return s.archives.FindAll(ctx)
	}
	return s.archives.FindByOwner(ctx, owner)
}

func (s *archiveService) ListParts(ctx context.Context, id string) ([]model.ArchivePartMeta, error) {
	if _, err := s.GetArchive(ctx, id); err != nil {
		return nil, err
	}
	return s.parts.FindByArchive(ctx, id)
}

func allUploaded(parts []model.ArchivePartMeta) bool {
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if !p.Uploaded {
			return false
		}
	}
	return true
}

func (s *archiveService) RequestCache(ctx context.Context, id string) (int, error) {
	parts, err := s.ListParts(ctx, id)
	if err != nil {
		return 0, err
	}
	if !allUploaded(parts) {
		return 0, fmt.Errorf("%w: %s", ErrNotFullyUploaded, id)
	}
	scheduled := 0
	for _, p := range parts {
		if p.Cached {
			continue
		}
		created, err := s.jobs.ScheduleIfAbsent(ctx, p.ID, model.DirectionDownload)
		if err != nil {
			return scheduled, err
		}
		if created {
			scheduled++
		}
	}
	s.log.Infof("[RequestCache] 归档 %s 已安排 %d 个下载任务", id, scheduled)
	return scheduled, nil
}

func (s *archiveService) CanReleaseLocalCopy(ctx context.Context, id string) (bool, error) {
	parts, err := s.ListParts(ctx, id)
	if err != nil {
		return false, err
	}
	return allUploaded(parts), nil
}

func (s *archiveService) ReleaseLocalCopy(ctx context.Context, id string) error {
	archive, err := s.GetArchive(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.CanReleaseLocalCopy(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFullyUploaded, id)
	}
	if err := os.Remove(s.path(archive.Path())); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := s.archives.SetCached(ctx, id, false); err != nil {
		return err
	}
	s.log.Infof("[ReleaseLocalCopy] 已释放归档 %s 的本地副本", id)
	return nil
}

func (s *archiveService) DeleteArchive(ctx context.Context, id string) error {
	archive, err := s.GetArchive(ctx, id)
	if err != nil {
		return err
	}
	if err := s.archives.DeleteCascade(ctx, id); err != nil {
		return err
	}
	if err := os.RemoveAll(s.path(archive.Dir())); err != nil {
		return err
	}
	if err := os.RemoveAll(s.path(archive.CacheDir())); err != nil {
		return err
	}
	// 远端对象由下一次对账作为孤儿清理
	s.log.Infof("[DeleteArchive] 归档 %s 已删除", id)
	return nil
}

func (s *archiveService) SyncLocalArchives(ctx context.Context) error {
	archives, err := s.archives.FindAll(ctx)
	if err != nil {
		return err
	}
	for i := range archives {
		a := &archives[i]
		sum, err := checksum.File(s.path(a.Path()))
		if errors.Is(err, os.ErrNotExist) {
			if a.Cached {
				s.log.Warnf("[SyncLocalArchives] 归档 %s 的本地文件不存在，标记为未缓存", a.ID)
				if err := s.archives.SetCached(ctx, a.ID, false); err != nil {
					return err
				}
			}
			continue
		}
		if err != nil {
			s.log.Warnf("[SyncLocalArchives] 读取归档 %s 失败: %v", a.ID, err)
			continue
		}
		if a.Checksum == nil {
			if err := s.archives.SetChecksum(ctx, a.ID, sum); err != nil {
				return err
			}
			a.Checksum = &sum
		}
		if sum != *a.Checksum {
			s.log.Warnf("[SyncLocalArchives] 归档 %s 的本地文件摘要不一致 (%s != %s)", a.ID, sum, *a.Checksum)
			continue
		}
		if !a.Cached {
			if err := s.archives.SetCached(ctx, a.ID, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"errors"

	"coldvault-go/internal/model"

	"gorm.io/gorm"
)

// ErrChecksumAlreadySet 表示归档的校验和已经写入，不允许覆盖。
var ErrChecksumAlreadySet = errors.New("archive checksum already set")

// ArchiveRepository 接口定义了归档记录的持久化操作。
type ArchiveRepository interface {
	Create(ctx context.Context, archive *model.Archive) error
	FindByID(ctx context.Context, id string) (*model.Archive, error)
	FindAll(ctx context.Context) ([]model.Archive, error)
	FindByOwner(ctx context.Context, owner string) ([]model.Archive, error)
	FindUncached(ctx context.Context) ([]model.Archive, error)
	SetChecksum(ctx context.Context, id, checksum string) error
	SetCached(ctx context.Context, id string, cached bool) error
	// MarkRestored 在一个事务中设置 cached=true 并清除所有分片的 cached 标记。
	MarkRestored(ctx context.Context, id string) error
	// DeleteCascade 在一个事务中依次删除任务、分片与归档记录。
	DeleteCascade(ctx context.Context, id string) error
}

type archiveRepository struct {
	db *gorm.DB
}

// NewArchiveRepository 创建一个新的 ArchiveRepository 实例。
func NewArchiveRepository(db *gorm.DB) ArchiveRepository {
	return &archiveRepository{db: db}
}

func (r *archiveRepository) Create(ctx context.Context, archive *model.Archive) error {
	return r.db.WithContext(ctx).Create(archive).Error
}

// FindByID 未找到时返回 gorm.ErrRecordNotFound。
func (r *archiveRepository) FindByID(ctx context.Context, id string) (*model.Archive, error) {
	var archive model.Archive
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&archive).Error; err != nil {
		return nil, err
	}
	return &archive, nil
}

func (r *archiveRepository) FindAll(ctx context.Context) ([]model.Archive, error) {
	var archives []model.Archive
	err := r.db.WithContext(ctx).Order("created_at, id").Find(&archives).Error
	return archives, err
}

func (r *archiveRepository) FindByOwner(ctx context.Context, owner string) ([]model.Archive, error) {
	var archives []model.Archive
	err := r.db.WithContext(ctx).Where("owner = ?", owner).Order("created_at, id").Find(&archives).Error
	return archives, err
}

func (r *archiveRepository) FindUncached(ctx context.Context) ([]model.Archive, error) {
	var archives []model.Archive
	err := r.db.WithContext(ctx).Where("cached = ?", false).Order("created_at, id").Find(&archives).Error
	return archives, err
}

// SetChecksum 只在 checksum 仍为 NULL 时写入。
func (r *archiveRepository) SetChecksum(ctx context.Context, id, checksum string) error {
	res := r.db.WithContext(ctx).Model(&model.Archive{}).
		Where("id = ? AND checksum IS NULL", id).
		Update("checksum", checksum)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrChecksumAlreadySet
	}
	return nil
}

func (r *archiveRepository) SetCached(ctx context.Context, id string, cached bool) error {
	return r.db.WithContext(ctx).Model(&model.Archive{}).Where("id = ?", id).Update("cached", cached).Error
}

func (r *archiveRepository) MarkRestored(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Archive{}).Where("id = ?", id).Update("cached", true).Error; err != nil {
			return err
		}
		return tx.Model(&model.ArchivePartMeta{}).Where("archive_id = ?", id).Update("cached", false).Error
	})
}

func (r *archiveRepository) DeleteCascade(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var partIDs []uint
		if err := tx.Model(&model.ArchivePartMeta{}).Where("archive_id = ?", id).Pluck("id", &partIDs).Error; err != nil {
			return err
		}
		if len(partIDs) > 0 {
			if err := tx.Where("part_id IN ?", partIDs).Delete(&model.PersistentTransferJob{}).Error; err != nil {
				return err
			}
			if err := tx.Where("archive_id = ?", id).Delete(&model.ArchivePartMeta{}).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", id).Delete(&model.Archive{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

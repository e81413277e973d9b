package repository

import (
	"context"

	"coldvault-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PartRepository 接口定义了归档分片的持久化操作。
type PartRepository interface {
	// CreateWithUploadJobs 在一个事务中批量插入分片，并为每个分片创建一个 scheduled 上传任务。
	CreateWithUploadJobs(ctx context.Context, parts []model.ArchivePartMeta) error
	CountByArchive(ctx context.Context, archiveID string) (int64, error)
	// FindByArchive 按 part_index 升序返回分片。
	FindByArchive(ctx context.Context, archiveID string) ([]model.ArchivePartMeta, error)
	// FindAllWithArchive 返回全部分片并预加载所属归档。
	FindAllWithArchive(ctx context.Context) ([]model.ArchivePartMeta, error)
	// FindUploadedWithArchive 返回 uploaded=true 的分片并预加载所属归档。
	FindUploadedWithArchive(ctx context.Context) ([]model.ArchivePartMeta, error)
	SetUploaded(ctx context.Context, id uint, uploaded bool) error
	SetCached(ctx context.Context, id uint, cached bool) error
}

type partRepository struct {
	db *gorm.DB
}

// NewPartRepository 创建一个新的 PartRepository 实例。
func NewPartRepository(db *gorm.DB) PartRepository {
	return &partRepository{db: db}
}

func (r *partRepository) CreateWithUploadJobs(ctx context.Context, parts []model.ArchivePartMeta) error {
	if len(parts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&parts).Error; err != nil {
			return err
		}
		jobs := make([]model.PersistentTransferJob, 0, len(parts))
		for _, p := range parts {
			jobs = append(jobs, model.PersistentTransferJob{
				PartID:    p.ID,
				Direction: model.DirectionUpload,
				Status:    model.JobStatusScheduled,
			})
		}
		return tx.Omit(clause.Associations).Create(&jobs).Error
	})
}

func (r *partRepository) CountByArchive(ctx context.Context, archiveID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ArchivePartMeta{}).Where("archive_id = ?", archiveID).Count(&n).Error
	return n, err
}

func (r *partRepository) FindByArchive(ctx context.Context, archiveID string) ([]model.ArchivePartMeta, error) {
	var parts []model.ArchivePartMeta
	err := r.db.WithContext(ctx).Where("archive_id = ?", archiveID).Order("part_index").Find(&parts).Error
	return parts, err
}

func (r *partRepository) FindAllWithArchive(ctx context.Context) ([]model.ArchivePartMeta, error) {
	var parts []model.ArchivePartMeta
	err := r.db.WithContext(ctx).Preload("Archive").Order("archive_id, part_index").Find(&parts).Error
	return parts, err
}

func (r *partRepository) FindUploadedWithArchive(ctx context.Context) ([]model.ArchivePartMeta, error) {
	var parts []model.ArchivePartMeta
	err := r.db.WithContext(ctx).Preload("Archive").
		Where("uploaded = ?", true).
		Order("archive_id, part_index").
		Find(&parts).Error
	return parts, err
}

func (r *partRepository) SetUploaded(ctx context.Context, id uint, uploaded bool) error {
	return r.db.WithContext(ctx).Model(&model.ArchivePartMeta{}).Where("id = ?", id).Update("uploaded", uploaded).Error
}

func (r *partRepository) SetCached(ctx context.Context, id uint, cached bool) error {
	return r.db.WithContext(ctx).Model(&model.ArchivePartMeta{}).Where("id = ?", id).Update("cached", cached).Error
}

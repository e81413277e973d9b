package repository

import (
	"context"
	"fmt"
	"time"

	"coldvault-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRepository 接口定义了传输任务的持久化操作。
type JobRepository interface {
	// FindScheduled 按 (created_at, id) 升序返回所有 scheduled 任务，并预加载分片与归档。
	FindScheduled(ctx context.Context) ([]model.PersistentTransferJob, error)
	FindByPart(ctx context.Context, partID uint) ([]model.PersistentTransferJob, error)
	HasScheduled(ctx context.Context, partID uint, direction string) (bool, error)
	// ScheduleIfAbsent 在不存在同方向 scheduled 任务时创建一个，返回是否新建。
	ScheduleIfAbsent(ctx context.Context, partID uint, direction string) (bool, error)
	// Complete 在一个事务中把任务置为 completed 并写入开始、完成时间，按方向设置分片的 uploaded 或 cached。
	// 失败的传输不写任务行。
	Complete(ctx context.Context, job *model.PersistentTransferJob, startedAt, completedAt time.Time) error
}

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository 创建一个新的 JobRepository 实例。
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) FindScheduled(ctx context.Context) ([]model.PersistentTransferJob, error) {
	var jobs []model.PersistentTransferJob
	err := r.db.WithContext(ctx).
		Preload("Part.Archive").
		Where("status = ?", model.JobStatusScheduled).
		Order("created_at, id").
		Find(&jobs).Error
	return jobs, err
}

func (r *jobRepository) FindByPart(ctx context.Context, partID uint) ([]model.PersistentTransferJob, error) {
	var jobs []model.PersistentTransferJob
	err := r.db.WithContext(ctx).Where("part_id = ?", partID).Order("created_at, id").Find(&jobs).Error
	return jobs, err
}

func (r *jobRepository) HasScheduled(ctx context.Context, partID uint, direction string) (bool, error) {
	return hasScheduled(r.db.WithContext(ctx), partID, direction)
}

func hasScheduled(db *gorm.DB, partID uint, direction string) (bool, error) {
	var n int64
	err := db.Model(&model.PersistentTransferJob{}).
		Where("part_id = ? AND direction = ? AND status = ?", partID, direction, model.JobStatusScheduled).
		Count(&n).Error
	return n > 0, err
}

func (r *jobRepository) ScheduleIfAbsent(ctx context.Context, partID uint, direction string) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := hasScheduled(tx, partID, direction)
		if err != nil || exists {
			return err
		}
		job := model.PersistentTransferJob{
			PartID:    partID,
			Direction: direction,
			Status:    model.JobStatusScheduled,
		}
		if err := tx.Omit(clause.Associations).Create(&job).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (r *jobRepository) Complete(ctx context.Context, job *model.PersistentTransferJob, startedAt, completedAt time.Time) error {
	var flag string
	switch job.Direction {
	case model.DirectionUpload:
		flag = "uploaded"
	case model.DirectionDownload:
		flag = "cached"
	default:
		return fmt.Errorf("unknown job direction %q", job.Direction)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.PersistentTransferJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":       model.JobStatusCompleted,
			"started_at":   startedAt,
			"completed_at": completedAt,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&model.ArchivePartMeta{}).Where("id = ?", job.PartID).Update(flag, true).Error
	})
}

package model

import "time"

// 传输方向
const (
	DirectionUpload   = "upload"
	DirectionDownload = "download"
)

// 任务状态
const (
	JobStatusScheduled = "scheduled"
	JobStatusCompleted = "completed"
)

// PersistentTransferJob 对应于数据库中的 'persistent_transfer_jobs' 表。
// 每条记录是针对某个分片的一次上传或下载任务。
type PersistentTransferJob struct {
	ID          uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	PartID      uint             `gorm:"not null;index" json:"partId"`
	Part        *ArchivePartMeta `gorm:"foreignKey:PartID" json:"-"`
	Direction   string           `gorm:"type:varchar(16);not null" json:"direction"`
	Status      string           `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	StartedAt   *time.Time       `gorm:"default:null" json:"startedAt"`
	CompletedAt *time.Time       `gorm:"default:null" json:"completedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (PersistentTransferJob) TableName() string {
	return "persistent_transfer_jobs"
}

// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"path/filepath"
	"time"
)

// Archive 定义了 archives 表的 ORM 模型。
// 一个 Archive 对应用户上传的一个完整文件。
type Archive struct {
	ID          string    `gorm:"type:varchar(64);primaryKey" json:"archiveId"`
	Owner       string    `gorm:"type:varchar(150);not null;index" json:"owner"`
	Name        string    `gorm:"type:varchar(512)" json:"archiveName"`
	FileName    string    `gorm:"type:varchar(512);not null" json:"fileName"`
	StoragePath string    `gorm:"type:varchar(1024);not null" json:"storagePath"` // 相对于存储根目录
	Size        int64     `gorm:"not null" json:"size"`
	Checksum    *string   `gorm:"type:varchar(64)" json:"checksum"` // 计算完成前为 NULL，写入后不可变
	Cached      bool      `gorm:"not null" json:"cached"`           // 完整文件是否存在于规范路径
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Archive) TableName() string {
	return "archives"
}

// Dir 返回归档文件所在目录（相对于存储根目录）：archives/{owner}/{archive_id}
func (a *Archive) Dir() string {
	return filepath.Join("archives", a.Owner, a.ID)
}

// Path 返回归档文件的规范路径（相对于存储根目录）。
func (a *Archive) Path() string {
	return filepath.Join(a.Dir(), a.FileName)
}

// CacheDir 返回下载缓存目录（相对于存储根目录）：cache/{owner}/{archive_id}
func (a *Archive) CacheDir() string {
	return filepath.Join("cache", a.Owner, a.ID)
}

// ChecksumValue 返回已记录的校验和，尚未计算时返回空字符串。
func (a *Archive) ChecksumValue() string {
	if a.Checksum == nil {
		return ""
	}
	return *a.Checksum
}

package model

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// ArchivePartMeta 对应于数据库中的 'archive_part_meta' 表。
// 它记录了归档文件中一段固定大小的字节区间 [StartByte, EndByte)。
// Uploaded 与 Cached 相互独立维护。
type ArchivePartMeta struct {
	ID        uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	ArchiveID string   `gorm:"type:varchar(64);not null;uniqueIndex:idx_archive_part" json:"archiveId"`
	Archive   *Archive `gorm:"foreignKey:ArchiveID" json:"-"`
	PartIndex int      `gorm:"not null;uniqueIndex:idx_archive_part" json:"partIndex"`
	StartByte int64    `gorm:"not null" json:"startByte"`
	EndByte   int64    `gorm:"not null" json:"endByte"`
	Checksum  string   `gorm:"type:varchar(64);not null" json:"checksum"`
	Uploaded  bool     `gorm:"not null" json:"uploaded"` // 远端副本存在且校验通过
	Cached    bool     `gorm:"not null" json:"cached"`   // 下载缓存副本存在且校验通过
}

// TableName 指定了此模型在数据库中对应的表名。
func (ArchivePartMeta) TableName() string {
	return "archive_part_meta"
}

// Size 返回分片的字节数。
func (p *ArchivePartMeta) Size() int64 {
	return p.EndByte - p.StartByte
}

// RemoteKey 返回分片在对象存储中的 key：{owner}/{archive_id}/{part_index}
func RemoteKey(owner, archiveID string, partIndex int) string {
	return fmt.Sprintf("%s/%s/%d", owner, archiveID, partIndex)
}

// CachePath 返回分片在下载缓存中的路径（相对于存储根目录）。
func CachePath(archive *Archive, partIndex int) string {
	return filepath.Join(archive.CacheDir(), strconv.Itoa(partIndex))
}

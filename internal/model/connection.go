package model

import "time"

// RemoteConnection 对应于数据库中的 'remote_connections' 表。
// 它保存访问对象存储的凭证，连接 ID 同时也是存储桶名称。
type RemoteConnection struct {
	ID        string `gorm:"type:varchar(64);primaryKey" json:"connectionId"`
	Name      string `gorm:"type:varchar(512);not null" json:"connectionName"`
	AccessKey string `gorm:"type:varchar(256);not null" json:"accessKey"`
	// SecretKey 以加密形式保存，见 pkg/secret。
	SecretKey string `gorm:"type:varchar(512);not null" json:"-"`
	Region    string `gorm:"type:varchar(64);not null" json:"region"`
	IsValid   bool   `gorm:"not null" json:"isValid"`
	IsActive  bool   `gorm:"not null" json:"isActive"`
	// ActiveSlot 在活跃连接上为 1，其余为 NULL；唯一索引保证最多只有一个活跃连接。
	ActiveSlot *int      `gorm:"uniqueIndex" json:"-"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (RemoteConnection) TableName() string {
	return "remote_connections"
}

// Bucket 返回该连接使用的存储桶名称。
func (c *RemoteConnection) Bucket() string {
	return c.ID
}

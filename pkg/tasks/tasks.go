// Package tasks 定义发往 Kafka 的事件结构。
package tasks

import "time"

// 事件类型
const (
	EventTransferCompleted = "transfer.completed"
	EventArchiveRestored   = "archive.restored"
)

// TransferEvent 在一个分片传输任务完成后发出。
type TransferEvent struct {
	Type        string    `json:"type"`
	JobID       uint      `json:"job_id"`
	ArchiveID   string    `json:"archive_id"`
	Owner       string    `json:"owner"`
	PartIndex   int       `json:"part_index"`
	Direction   string    `json:"direction"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	CompletedAt time.Time `json:"completed_at"`
}

// ArchiveRestoredEvent 在缓存分片被重新组装为完整归档后发出。
type ArchiveRestoredEvent struct {
	Type      string    `json:"type"`
	ArchiveID string    `json:"archive_id"`
	Owner     string    `json:"owner"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	Restored  time.Time `json:"restored_at"`
}

// Key 返回事件的分区键，同一归档的事件落在同一分区。
func (e TransferEvent) Key() string { return e.ArchiveID }

func (e ArchiveRestoredEvent) Key() string { return e.ArchiveID }

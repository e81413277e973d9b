package service

import (
	"time"

	"coldvault-go/internal/config"
)

// Settings 是各服务与后台任务共享的运行参数。
type Settings struct {
	Root          string
	ChunkSize     int64
	RemoteTimeout time.Duration
	Heartbeat     time.Duration
	LockTTL       time.Duration
}

// SettingsFromConfig 从应用配置中提取运行参数。
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Root:          cfg.Storage.Root,
		ChunkSize:     cfg.Storage.ChunkSize,
		RemoteTimeout: cfg.Storage.RemoteTimeout,
		Heartbeat:     cfg.Worker.Heartbeat,
		LockTTL:       cfg.Worker.LockTTL,
	}
}

// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	Driver string      `mapstructure:"driver"` // mysql | postgres | sqlite
	DSN    string      `mapstructure:"dsn"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时使用进程内锁。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// StorageConfig 存储本地文件布局与对象存储的配置。
type StorageConfig struct {
	Root          string        `mapstructure:"root"`   // 本地存储根目录，包含 archives/ 与 cache/
	Driver        string        `mapstructure:"driver"` // minio | s3 | memory
	Endpoint      string        `mapstructure:"endpoint"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	ChunkSize     int64         `mapstructure:"chunk_size"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
}

// WorkerConfig 存储后台任务的调度配置。
type WorkerConfig struct {
	Heartbeat         time.Duration `mapstructure:"heartbeat"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	AssembleInterval  time.Duration `mapstructure:"assemble_interval"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不发布事件。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// SecurityConfig 存储加密连接密钥所用的主密钥。
type SecurityConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("storage.root", "./media")
	v.SetDefault("storage.driver", "minio")
	v.SetDefault("storage.chunk_size", 5*1024*1024)
	v.SetDefault("storage.remote_timeout", 30*time.Second)
	v.SetDefault("worker.heartbeat", 10*time.Second)
	v.SetDefault("worker.reconcile_interval", 10*time.Minute)
	v.SetDefault("worker.assemble_interval", time.Minute)
	v.SetDefault("worker.lock_ttl", 30*time.Minute)
	v.SetDefault("kafka.topic", "coldvault-transfers")
}

// Load 从指定的 YAML 文件读取配置并解析到 Config 中。
// configPath 为空时只使用默认值与环境变量（前缀 COLDVAULT_，如 COLDVAULT_STORAGE_ROOT）。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COLDVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) validate() error {
	if c.Storage.ChunkSize <= 0 {
		return fmt.Errorf("storage.chunk_size must be positive, got %d", c.Storage.ChunkSize)
	}
	// remote_timeout 为 0 表示不限制
	if c.Storage.RemoteTimeout < 0 {
		return fmt.Errorf("storage.remote_timeout must not be negative, got %s", c.Storage.RemoteTimeout)
	}
	for name, d := range map[string]time.Duration{
		"worker.heartbeat":          c.Worker.Heartbeat,
		"worker.reconcile_interval": c.Worker.ReconcileInterval,
		"worker.assemble_interval":  c.Worker.AssembleInterval,
		"worker.lock_ttl":           c.Worker.LockTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

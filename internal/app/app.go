// Package app 按配置组装进程所需的全部组件，供 cmd/server 与 cmd/worker 共用。
package app

import (
	"context"
	"errors"
	"fmt"

	"coldvault-go/internal/config"
	"coldvault-go/internal/handler"
	"coldvault-go/internal/repository"
	"coldvault-go/internal/service"
	"coldvault-go/pkg/database"
	"coldvault-go/pkg/kafka"
	"coldvault-go/pkg/lock"
	"coldvault-go/pkg/secret"
	"coldvault-go/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// App 持有已初始化的服务与需要在退出时释放的资源。
type App struct {
	Settings    service.Settings
	Archives    service.ArchiveService
	Connections service.ConnectionService
	Dispatcher  *service.Dispatcher
	Reconciler  *service.Reconciler
	Assembler   *service.Assembler

	log       *zap.SugaredLogger
	publisher kafka.Publisher
	rdb       *redis.Client
}

// New 连接数据库、可选的 Redis 与 Kafka，并完成依赖注入。
func New(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	if cfg.Security.SecretKey == "" {
		return nil, errors.New("security.secret_key 未配置")
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}
	log.Infof("[App] 数据库 %s 连接成功", cfg.Database.Driver)

	var (
		locker lock.Locker
		rdb    *redis.Client
	)
	if cfg.Database.Redis.Addr != "" {
		rdb, err = database.OpenRedis(ctx, cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("连接 Redis 失败: %w", err)
		}
		locker = lock.NewRedisLocker(rdb)
		log.Infof("[App] 使用 Redis 分布式锁 %s", cfg.Database.Redis.Addr)
	} else {
		locker = lock.NewLocalLocker()
		log.Warn("[App] 未配置 Redis，使用进程内锁")
	}

	factory, err := storage.NewFactory(cfg.Storage)
	if err != nil {
		return nil, err
	}
	box, err := secret.NewBox(cfg.Security.SecretKey)
	if err != nil {
		return nil, err
	}
	publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)

	settings := service.SettingsFromConfig(cfg)
	archiveRepo := repository.NewArchiveRepository(db)
	partRepo := repository.NewPartRepository(db)
	jobRepo := repository.NewJobRepository(db)
	connRepo := repository.NewConnectionRepository(db)
	remote := service.NewRemoteResolver(connRepo, factory, box)
	planner := service.NewPlanner(partRepo, settings.Root, log)

	return &App{
		Settings:    settings,
		Archives:    service.NewArchiveService(archiveRepo, partRepo, jobRepo, planner, settings, log),
		Connections: service.NewConnectionService(connRepo, remote, settings, log),
		Dispatcher:  service.NewDispatcher(jobRepo, remote, publisher, locker, settings, log),
		Reconciler:  service.NewReconciler(partRepo, jobRepo, remote, locker, settings, log),
		Assembler:   service.NewAssembler(archiveRepo, partRepo, publisher, locker, settings, log),
		log:         log,
		publisher:   publisher,
		rdb:         rdb,
	}, nil
}

// Router 返回挂载了全部 API 的路由引擎。
func (a *App) Router() *gin.Engine {
	return handler.NewRouter(a.log,
		handler.NewArchiveHandler(a.Archives, a.log),
		handler.NewConnectionHandler(a.Connections, a.log),
		handler.NewMaintenanceHandler(a.Dispatcher, a.Reconciler, a.Assembler, a.Archives, a.log),
	)
}

// Close 释放 Kafka 与 Redis 连接。
func (a *App) Close() {
	if err := a.publisher.Close(); err != nil {
		a.log.Warnf("[App] 关闭事件发布器失败: %v", err)
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

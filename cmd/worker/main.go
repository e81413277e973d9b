// Package main 提供一次性运行后台任务的命令行入口，便于由 cron 等外部调度器触发。
//
// 用法: worker [-config path] <dispatch|dispatch-once|reconcile|assemble|sync-local>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"coldvault-go/internal/app"
	"coldvault-go/internal/config"
	"coldvault-go/pkg/log"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", envOr("COLDVAULT_CONFIG", "./configs/config.yaml"), "配置文件路径")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "用法: %s [-config path] <dispatch|dispatch-once|reconcile|assemble|sync-local>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	logger := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatal("初始化失败", err)
	}
	err = run(ctx, a, flag.Arg(0), logger)
	a.Close()
	if err != nil {
		logger.Errorf("[Worker] %s 执行失败: %v", flag.Arg(0), err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, command string, logger *zap.SugaredLogger) error {
	switch command {
	case "dispatch":
		// 常驻运行，直到收到停止信号
		a.Dispatcher.Run(ctx)
		return nil
	case "dispatch-once":
		n, err := a.Dispatcher.RunOnce(ctx)
		if err == nil {
			logger.Infof("[Worker] 本轮完成 %d 个传输任务", n)
		}
		return err
	case "reconcile":
		report, err := a.Reconciler.Run(ctx)
		if err == nil {
			logger.Infow("[Worker] 对账完成",
				"healthy", report.Healthy,
				"unhealthy", report.Unhealthy,
				"remoteDeleted", report.RemoteDeleted,
				"uploadsQueued", report.UploadsQueued,
				"orphansDeleted", report.OrphansDeleted,
				"errors", report.Errors,
			)
		}
		return err
	case "assemble":
		n, err := a.Assembler.RunAll(ctx)
		if err == nil {
			logger.Infof("[Worker] 恢复了 %d 个归档", n)
		}
		return err
	case "sync-local":
		return a.Archives.SyncLocalArchives(ctx)
	default:
		return fmt.Errorf("未知命令 %q", command)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

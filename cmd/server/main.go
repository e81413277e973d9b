// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"coldvault-go/internal/app"
	"coldvault-go/internal/config"
	"coldvault-go/internal/service"
	"coldvault-go/pkg/log"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", envOr("COLDVAULT_CONFIG", "./configs/config.yaml"), "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	logger := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Infof("日志记录器初始化成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 组装依赖
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatal("初始化失败", err)
	}
	defer a.Close()

	// 4. 启动后台任务
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		a.Dispatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		service.Every(ctx, cfg.Worker.ReconcileInterval, func(ctx context.Context) {
			if _, err := a.Reconciler.Run(ctx); err != nil {
				logger.Errorf("[Reconciler] 对账失败: %v", err)
			}
		})
	}()
	go func() {
		defer wg.Done()
		service.Every(ctx, cfg.Worker.AssembleInterval, func(ctx context.Context) {
			if _, err := a.Assembler.RunAll(ctx); err != nil {
				logger.Errorf("[Assembler] 组装失败: %v", err)
			}
		})
	}()

	// 5. 启动 HTTP 服务器
	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: a.Router(),
	}
	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP 服务监听失败", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infof("接收到停机信号，正在关闭服务...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止后台任务，进行中的传输会在当前任务结束后退出
	cancel()
	wg.Wait()
	log.Infof("服务已优雅关闭")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

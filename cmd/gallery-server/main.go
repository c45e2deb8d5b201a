// 文件: cmd/gallery-server/main.go
package main

import (
	"PICs_Gallery/config"
	"PICs_Gallery/internal/api"
	"PICs_Gallery/internal/bootstrap"
	"PICs_Gallery/internal/task"
	"PICs_Gallery/pkg/logger"
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	// --- 1. 初始化 ---
	if err := config.LoadConfig("."); err != nil {
		log.Fatalf("FATAL: 无法加载配置: %v", err)
	}
	if err := logger.InitLogger(); err != nil {
		log.Fatalf("FATAL: 无法初始化日志: %v", err)
	}
	slog.Info("应用启动", "driver", config.C.Database.Driver)
	defer slog.Info("应用关闭")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. 组装存储和核心服务 ---
	app, err := bootstrap.New(ctx, config.C)
	if err != nil {
		slog.Error("FATAL: 无法初始化图库服务", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("关闭资源失败", "error", err)
		}
	}()
	slog.Info("图库服务组装完成", "tables", app.Registry.Len())

	// 浏览计数后台批量写入，停止时再刷新一次
	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		app.Counters.Run(ctx, config.C.Gallery.ViewFlushInterval)
	}()

	// 预热聚合缓存，失败不影响启动
	go func() {
		if n, err := app.Gallery.Reload(ctx); err != nil {
			slog.Warn("预热聚合缓存失败", "error", err)
		} else {
			slog.Info("聚合缓存已预热", "photos", n)
		}
	}()

	taskManager := task.NewManager(app.Gallery, 2*time.Minute, slog.Default().With("component", "task"))

	// --- 3. 设置并启动HTTP服务器 ---
	router := api.RegisterRoutes(app.Gallery, taskManager, config.C, "config.yaml")

	server := &http.Server{
		Addr:         config.C.Server.Port,
		Handler:      router,
		ReadTimeout:  config.C.Server.Timeout,
		WriteTimeout: config.C.Server.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP服务器关闭失败", "error", err)
		}
	}()

	slog.Info("HTTP服务器正在启动...", "地址", config.C.Server.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("无法启动HTTP服务器", "error", err)
		stop()
	}

	<-ctx.Done()
	taskManager.Wait()
	<-flushDone
}

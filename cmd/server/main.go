package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/laundry-kiosk/internal/api"
	"github.com/wfunc/laundry-kiosk/internal/config"
	"github.com/wfunc/laundry-kiosk/internal/database"
	"github.com/wfunc/laundry-kiosk/internal/hardware"
	"github.com/wfunc/laundry-kiosk/internal/logger"
	"github.com/wfunc/laundry-kiosk/internal/repository"
	"go.uber.org/zap"
)

var (
	configPath  = flag.String("config", "", "配置文件路径")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

const version = "1.0.0"

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("laundry-kiosk bridge server v%s\n", version)
		os.Exit(0)
	}

	// 初始化配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("配置初始化失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("日志初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	log := logger.GetLogger()
	log.Info("硬件桥接服务启动中",
		zap.String("version", version),
		zap.String("serial_port", cfg.Serial.Port),
		zap.Int("baud_rate", cfg.Serial.BaudRate))

	// 初始化数据库（硬件事件日志）
	if err := database.Init(&cfg.Database); err != nil {
		log.Fatal("数据库初始化失败", zap.Error(err))
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(); err != nil {
			log.Fatal("数据库迁移失败", zap.Error(err))
		}
	}

	// 柜门配置表：解码器和指令分发器共用
	slots, err := hardware.NewSlotTable(cfg.Lockers)
	if err != nil {
		log.Fatal("柜门配置表无效", zap.Error(err))
	}

	// 硬件事件异步落库
	eventRepo := repository.NewHardwareEventRepository(database.GetDB())
	eventWriter := repository.NewEventWriter(eventRepo)
	defer eventWriter.Close()

	// 硬件状态存储与串口链路
	store := hardware.NewStore(slots)
	link := hardware.NewLinkManager(cfg.Serial, store, eventWriter)
	if cfg.Serial.Enabled {
		if err := link.Start(); err != nil {
			// 打不开串口不是致命错误，服务照常启动，状态接口返回断开
			log.Warn("串口打开失败，等待硬件接入", zap.Error(err))
		}
	}
	defer link.Stop()

	dispatcher := hardware.NewDispatcher(link, slots)

	// WebSocket状态推送
	hub := api.NewStatusHub(store, cfg.Server.PushInterval, logger.GetModuleLogger("api.ws"))
	defer hub.Stop()

	// HTTP服务
	router := api.NewRouter(store, link, dispatcher, eventRepo, hub, logger.GetModuleLogger("api"))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("HTTP服务监听中", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP服务异常退出", zap.Error(err))
		}
	}()

	// 事件日志定期清理
	if cfg.Database.RetentionDays > 0 {
		go cleanupLoop(eventRepo, cfg.Database.RetentionDays, log)
	}

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		log.Info("配置已重新加载")
	})

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("收到退出信号，开始优雅关闭")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP服务关闭失败", zap.Error(err))
	}

	log.Info("硬件桥接服务已退出")
}

// cleanupLoop 每天清理一次超过保留期的硬件事件
func cleanupLoop(repo *repository.HardwareEventRepository, retentionDays int, log *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		deleted, err := repo.CleanupEvents(retentionDays)
		if err != nil {
			log.Error("事件日志清理失败", zap.Error(err))
			continue
		}
		if deleted > 0 {
			log.Info("事件日志已清理",
				zap.Int64("deleted", deleted),
				zap.Int("retention_days", retentionDays))
		}
	}
}

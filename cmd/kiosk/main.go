package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/laundry-kiosk/internal/config"
	"github.com/wfunc/laundry-kiosk/internal/kiosk"
	"github.com/wfunc/laundry-kiosk/internal/logger"
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
		fmt.Printf("laundry-kiosk agent v%s\n", version)
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("配置初始化失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("日志初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	log := logger.GetLogger()
	log.Info("自助终端启动中",
		zap.String("version", version),
		zap.String("bridge_url", cfg.Kiosk.BridgeURL),
		zap.Bool("demo_mode", cfg.Kiosk.DemoMode))

	client := kiosk.NewClient(cfg.Kiosk)
	terminal := kiosk.NewKiosk(client, cfg.Kiosk, cfg.Lockers)
	terminal.Start()
	defer terminal.Stop()

	// 定期把柜门状态写进日志，方便现场排查
	go statusLoop(terminal, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("自助终端已退出")
}

// statusLoop 每分钟记录一次柜门状态概览
func statusLoop(terminal *kiosk.Kiosk, log *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		lockers := terminal.Lockers()
		occupied := 0
		for _, l := range lockers {
			if l.Status == kiosk.LockerOccupied {
				occupied++
			}
		}
		log.Info("柜门状态概览",
			zap.Int("total", len(lockers)),
			zap.Int("occupied", occupied),
			zap.Bool("bridge_disconnected", terminal.Disconnected()))
	}
}

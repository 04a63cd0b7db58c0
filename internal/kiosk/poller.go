package kiosk

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/laundry-kiosk/internal/logger"
	"go.uber.org/zap"
)

// CancelFunc 停止轮询，可以安全地重复调用
type CancelFunc func()

// StartPolling 启动对桥接服务的状态轮询
// 每个tick独立发起一次请求：成功则回调onUpdate并清零失败计数，
// 失败只累加计数，连续失败达到failureThreshold时回调onStale一次。
// 单次请求不会阻塞后续tick，慢响应各自超时、各自作废。
func (c *Client) StartPolling(
	interval time.Duration,
	failureThreshold int,
	onUpdate func(*StatusResponse),
	onStale func(),
) CancelFunc {
	stopCh := make(chan struct{})
	var once sync.Once
	var failures int32

	log := logger.GetModuleLogger("kiosk.poller")
	log.Info("状态轮询已启动",
		zap.Duration("interval", interval),
		zap.Int("failure_threshold", failureThreshold))

	tick := func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.http.Timeout)
		defer cancel()

		status, err := c.FetchStatus(ctx)
		if err != nil {
			count := atomic.AddInt32(&failures, 1)
			log.Debug("状态轮询失败",
				zap.Int32("consecutive", count),
				zap.Error(err))

			// 只在刚越过阈值时通知一次，避免每个tick都报一遍
			if int(count) == failureThreshold && onStale != nil {
				log.Warn("桥接服务连续无响应，标记为失联",
					zap.Int("threshold", failureThreshold))
				onStale()
			}
			return
		}

		atomic.StoreInt32(&failures, 0)
		if onUpdate != nil {
			onUpdate(status)
		}
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				log.Info("状态轮询已停止")
				return
			case <-ticker.C:
				go tick()
			}
		}
	}()

	return func() {
		once.Do(func() {
			close(stopCh)
		})
	}
}

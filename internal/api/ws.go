package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/laundry-kiosk/internal/hardware"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 桥接服务只在本地网络可达，不校验来源
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusHub 状态推送中心
// 按固定间隔把硬件快照推给所有WebSocket订阅者，是轮询接口的补充。
type StatusHub struct {
	store    *hardware.Store
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	stopCh  chan struct{}
	stopped sync.Once
}

// NewStatusHub 创建状态推送中心
func NewStatusHub(store *hardware.Store, interval time.Duration, log *zap.Logger) *StatusHub {
	hub := &StatusHub{
		store:    store,
		interval: interval,
		log:      log,
		clients:  make(map[*websocket.Conn]struct{}),
		stopCh:   make(chan struct{}),
	}

	go hub.run()

	return hub
}

// Handle 处理WebSocket升级请求
func (h *StatusHub) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket升级失败", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info("状态订阅者已连接", zap.Int("clients", count))

	// 读循环只负责发现客户端断开
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()
}

// run 推送循环
func (h *StatusHub) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.broadcast()
		}
	}
}

// broadcast 把当前快照推给所有订阅者
func (h *StatusHub) broadcast() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		return
	}

	snapshot := h.store.Snapshot()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(snapshot); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// remove 移除断开的订阅者
func (h *StatusHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[conn]; ok {
		conn.Close()
		delete(h.clients, conn)
	}
}

// Stop 停止推送并断开所有订阅者
func (h *StatusHub) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)

		h.mu.Lock()
		defer h.mu.Unlock()
		for conn := range h.clients {
			conn.Close()
		}
		h.clients = make(map[*websocket.Conn]struct{})
	})
}

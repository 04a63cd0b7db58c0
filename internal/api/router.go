package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/laundry-kiosk/internal/database"
	"github.com/wfunc/laundry-kiosk/internal/hardware"
	"github.com/wfunc/laundry-kiosk/internal/middleware"
	"github.com/wfunc/laundry-kiosk/internal/repository"
	"go.uber.org/zap"
)

// Router 硬件桥接API路由器
type Router struct {
	engine     *gin.Engine
	store      *hardware.Store
	link       *hardware.LinkManager
	dispatcher *hardware.Dispatcher
	events     *repository.HardwareEventRepository
	hub        *StatusHub
	log        *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(
	store *hardware.Store,
	link *hardware.LinkManager,
	dispatcher *hardware.Dispatcher,
	events *repository.HardwareEventRepository,
	hub *StatusHub,
	log *zap.Logger,
) *Router {
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(middleware.CORS())

	router := &Router{
		engine:     engine,
		store:      store,
		link:       link,
		dispatcher: dispatcher,
		events:     events,
		hub:        hub,
		log:        log,
	}

	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	api := r.engine.Group("/api")
	{
		api.GET("/status", r.getStatus)
		api.POST("/unlock", r.postUnlock)
		api.GET("/events", r.getEvents)
	}

	if r.hub != nil {
		r.engine.GET("/ws/status", r.hub.Handle)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "接口不存在"})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":   "healthy",
		"serial":   string(r.link.State()),
		"database": database.IsConnected(),
	})
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/laundry-kiosk/internal/errors"
	"github.com/wfunc/laundry-kiosk/internal/models"
	"go.uber.org/zap"
)

// UnlockRequest 开锁请求
type UnlockRequest struct {
	LockerID int `json:"lockerId" binding:"required"`
}

// getStatus 返回当前硬件快照
// 永远同步成功，返回存储当前持有的内容。
func (r *Router) getStatus(c *gin.Context) {
	snapshot := r.store.Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"lockers":    snapshot.Lockers,
		"credit":     snapshot.Credit,
		"connected":  snapshot.Connected,
		"updated_at": snapshot.UpdatedAt,
	})
}

// postUnlock 下发开锁指令
func (r *Router) postUnlock(c *gin.Context) {
	var req UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := r.dispatcher.Unlock(req.LockerID); err != nil {
		status := http.StatusInternalServerError
		if appErr, ok := err.(*errors.AppError); ok {
			status = appErr.HTTPStatus()
		}

		r.log.Warn("开锁请求失败",
			zap.Int("locker_id", req.LockerID),
			zap.Error(err))

		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// getEvents 查询最近的硬件事件日志
func (r *Router) getEvents(c *gin.Context) {
	query := &models.HardwareEventQuery{
		Direction: c.Query("direction"),
		Limit:     100,
	}

	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			if limit > 1000 {
				limit = 1000
			}
			query.Limit = limit
		}
	}

	events, total, err := r.events.Query(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "事件查询失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  total,
	})
}

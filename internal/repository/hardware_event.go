package repository

import (
	"fmt"
	"time"

	"github.com/wfunc/laundry-kiosk/internal/models"
	"gorm.io/gorm"
)

// HardwareEventRepository 硬件事件日志仓库
type HardwareEventRepository struct {
	db *gorm.DB
}

// NewHardwareEventRepository 创建硬件事件日志仓库
func NewHardwareEventRepository(db *gorm.DB) *HardwareEventRepository {
	return &HardwareEventRepository{db: db}
}

// Create 追加一条事件记录
func (r *HardwareEventRepository) Create(event *models.HardwareEvent) error {
	return r.db.Create(event).Error
}

// CreateBatch 批量追加事件记录
func (r *HardwareEventRepository) CreateBatch(events []*models.HardwareEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.CreateInBatches(events, 100).Error
}

// Query 查询事件日志
func (r *HardwareEventRepository) Query(query *models.HardwareEventQuery) ([]*models.HardwareEvent, int64, error) {
	db := r.db.Model(&models.HardwareEvent{})

	if query.Direction != "" {
		db = db.Where("direction = ?", query.Direction)
	}
	if query.StartTime != nil {
		db = db.Where("created_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("created_at <= ?", *query.EndTime)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = db.Order("created_at DESC")
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}

	var events []*models.HardwareEvent
	if err := db.Find(&events).Error; err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

// GetLatest 获取最新的事件记录
func (r *HardwareEventRepository) GetLatest(limit int, direction string) ([]*models.HardwareEvent, error) {
	var events []*models.HardwareEvent
	db := r.db.Order("created_at DESC").Limit(limit)
	if direction != "" {
		db = db.Where("direction = ?", direction)
	}
	err := db.Find(&events).Error
	return events, err
}

// DeleteOldEvents 删除旧事件
func (r *HardwareEventRepository) DeleteOldEvents(beforeTime time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", beforeTime).Delete(&models.HardwareEvent{})
	return result.RowsAffected, result.Error
}

// CleanupEvents 清理事件日志（保留最近N天的数据）
func (r *HardwareEventRepository) CleanupEvents(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be greater than 0")
	}
	beforeTime := time.Now().AddDate(0, 0, -retentionDays)
	return r.DeleteOldEvents(beforeTime)
}

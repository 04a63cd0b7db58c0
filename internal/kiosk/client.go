package kiosk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/wfunc/laundry-kiosk/internal/config"
	"github.com/wfunc/laundry-kiosk/internal/errors"
	"github.com/wfunc/laundry-kiosk/internal/logger"
	"go.uber.org/zap"
)

// Client 桥接服务客户端
// 终端侧通过它读取硬件快照、下发开锁指令。
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// NewClient 创建桥接服务客户端
func NewClient(cfg config.KioskConfig) *Client {
	return &Client{
		baseURL: cfg.BridgeURL,
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		log: logger.GetModuleLogger("kiosk.client"),
	}
}

// FetchStatus 拉取当前硬件快照
func (c *Client) FetchStatus(ctx context.Context) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status", nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrBridgeRequest, "构造状态请求失败")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrBridgeRequest, "状态请求失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrBridgeResponse, "状态接口返回异常: %d", resp.StatusCode)
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, errors.Wrap(err, errors.ErrBridgeResponse, "状态响应解析失败")
	}

	return &status, nil
}

// Unlock 请求桥接服务打开指定柜门
func (c *Client) Unlock(ctx context.Context, lockerID int) error {
	body, err := json.Marshal(map[string]int{"lockerId": lockerID})
	if err != nil {
		return errors.Wrap(err, errors.ErrBridgeRequest, "构造开锁请求失败")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/unlock", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.ErrBridgeRequest, "构造开锁请求失败")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrBridgeRequest, "开锁请求失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.ErrBridgeResponse, unlockErrorMessage(resp))
	}

	c.log.Info("开锁指令已下发", zap.Int("locker_id", lockerID))
	return nil
}

// unlockErrorMessage 提取开锁失败响应里的错误描述
func unlockErrorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			return payload.Error
		}
	}
	return fmt.Sprintf("开锁接口返回异常: %d", resp.StatusCode)
}

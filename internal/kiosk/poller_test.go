package kiosk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/laundry-kiosk/internal/config"
)

func testBridgeServer(t *testing.T, status *StatusResponse, fail *atomic.Bool) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail != nil && fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		switch r.URL.Path {
		case "/api/status":
			json.NewEncoder(w).Encode(status)
		case "/api/unlock":
			json.NewEncoder(w).Encode(map[string]bool{"success": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testClientConfig(url string) config.KioskConfig {
	cfg := testKioskConfig()
	cfg.BridgeURL = url
	cfg.PollInterval = 10 * time.Millisecond
	cfg.RequestTimeout = time.Second
	cfg.FailureThreshold = 3
	return cfg
}

func TestClientFetchStatus(t *testing.T) {
	status := &StatusResponse{
		Lockers: map[int]LockerReading{
			1: {Door: "OPEN", Weight: 3.2},
			2: {Door: "CLOSED", Weight: 0},
		},
		Credit:    15.0,
		Connected: true,
	}
	server := testBridgeServer(t, status, nil)
	client := NewClient(testClientConfig(server.URL))

	got, err := client.FetchStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15.0, got.Credit)
	assert.Equal(t, "OPEN", got.Lockers[1].Door)
	assert.Equal(t, 3.2, got.Lockers[1].Weight)
}

func TestClientUnlock(t *testing.T) {
	server := testBridgeServer(t, &StatusResponse{}, nil)
	client := NewClient(testClientConfig(server.URL))

	require.NoError(t, client.Unlock(context.Background(), 1))
}

func TestClientUnlockError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "无效的柜门编号"})
	}))
	t.Cleanup(server.Close)
	client := NewClient(testClientConfig(server.URL))

	err := client.Unlock(context.Background(), 99)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "无效的柜门编号")
}

func TestPollingDeliversUpdates(t *testing.T) {
	status := &StatusResponse{Credit: 5.0, Connected: true}
	server := testBridgeServer(t, status, nil)
	client := NewClient(testClientConfig(server.URL))

	var updates atomic.Int32
	cancel := client.StartPolling(10*time.Millisecond, 3, func(s *StatusResponse) {
		assert.Equal(t, 5.0, s.Credit)
		updates.Add(1)
	}, nil)
	defer cancel()

	require.Eventually(t, func() bool {
		return updates.Load() >= 3
	}, time.Second, 10*time.Millisecond)
}

func TestPollingStaleAfterConsecutiveFailures(t *testing.T) {
	var fail atomic.Bool
	server := testBridgeServer(t, &StatusResponse{}, &fail)
	client := NewClient(testClientConfig(server.URL))

	var updates, stales atomic.Int32
	cancel := client.StartPolling(10*time.Millisecond, 3,
		func(*StatusResponse) { updates.Add(1) },
		func() { stales.Add(1) },
	)
	defer cancel()

	// 先正常轮询几次
	require.Eventually(t, func() bool {
		return updates.Load() >= 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), stales.Load())

	// 桥接服务开始报错，连续失败达到阈值后标记失联一次
	fail.Store(true)
	require.Eventually(t, func() bool {
		return stales.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// 恢复后重新收到更新
	recovered := updates.Load()
	fail.Store(false)
	require.Eventually(t, func() bool {
		return updates.Load() > recovered
	}, time.Second, 10*time.Millisecond)
}

func TestPollingCancelIdempotent(t *testing.T) {
	server := testBridgeServer(t, &StatusResponse{}, nil)
	client := NewClient(testClientConfig(server.URL))

	cancel := client.StartPolling(10*time.Millisecond, 3, nil, nil)

	// 重复取消不会panic
	cancel()
	cancel()
	cancel()
}

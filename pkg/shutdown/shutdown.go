// Package shutdown 收口进程退出：回调按注册顺序执行，外部入口先停，
// 引擎与通道随后，整体受一个带超时的 ctx 约束。
package shutdown

import (
	"context"
	"sync"

	"github.com/betbot/gofut/pkg/logger"
)

// Handler 单个关闭步骤
type Handler func(ctx context.Context)

// Manager 顺序执行注册的关闭步骤
type Manager struct {
	mu    sync.Mutex
	steps []Handler
}

// NewManager 创建关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册一个关闭步骤，执行顺序与注册顺序一致
func (m *Manager) OnShutdown(h Handler) {
	if h == nil {
		return
	}
	m.mu.Lock()
	m.steps = append(m.steps, h)
	m.mu.Unlock()
}

// Shutdown 依次执行全部步骤。单步 panic 只记日志，不拦住后面的步骤；
// ctx 到期后剩余步骤仍会被调用，由各步骤自行决定是否放弃等待。
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	steps := m.steps
	m.mu.Unlock()

	if len(steps) == 0 {
		return
	}
	logger.Infof("开始优雅关闭，共 %d 步", len(steps))

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			logger.Warnf("关闭超时，第 %d 步起在超时后执行: %v", i+1, err)
		}
		runStep(ctx, i, step)
	}
	logger.Info("关闭流程完成")
}

func runStep(ctx context.Context, idx int, step Handler) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("关闭第 %d 步 panic: %v", idx+1, r)
		}
	}()
	step(ctx)
}

// Package syncgroup 按"一批"管理成组协程的生命周期。
// 行情源的读循环与心跳循环属于同一条连接，重连时整组收掉再整组重启，
// 这里把 Add/Done 的配对收进包内，调用方只描述要跑什么。
package syncgroup

import "sync"

// SyncGroup 可重复启动的协程组。
// 用法固定为 Add 若干函数后 Run 一次；重启前先 WaitAndClear。
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	pending []func()
	running int
	started bool
}

// NewSyncGroup 创建空组
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 登记一个待启动的函数。上一批还有协程在跑时登记会被丢弃，
// 调用方必须先 WaitAndClear。
func (g *SyncGroup) Add(fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started && g.running > 0 {
		return
	}
	g.pending = append(g.pending, fn)
}

// Run 启动当前登记的全部函数并清空登记表。
// 上一批未收干净时本次调用不生效。
func (g *SyncGroup) Run() {
	g.mu.Lock()
	if g.started && g.running > 0 {
		g.mu.Unlock()
		return
	}
	fns := g.pending
	g.pending = nil
	g.started = true
	g.running = len(fns)
	g.mu.Unlock()

	for _, fn := range fns {
		g.wg.Add(1)
		go func(run func()) {
			defer func() {
				g.wg.Done()
				g.mu.Lock()
				g.running--
				g.mu.Unlock()
			}()
			run()
		}(fn)
	}
}

// Wait 等待当前一批协程退出
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}

// WaitAndClear 等待当前一批退出并复位，之后允许登记下一批
func (g *SyncGroup) WaitAndClear() {
	g.wg.Wait()
	g.mu.Lock()
	g.pending = nil
	g.started = false
	g.running = 0
	g.mu.Unlock()
}

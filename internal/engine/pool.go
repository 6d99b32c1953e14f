package engine

import (
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// serialPool 单工作者串行任务队列。
// 策略初始化与落盘任务在这里排队，避免阻塞总线分发协程；
// 任务内 panic 被吸收为日志，绝不外传。
type serialPool struct {
	name  string
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
	log   *logrus.Entry
}

func newSerialPool(name string, depth int) *serialPool {
	p := &serialPool{
		name:  name,
		tasks: make(chan func(), depth),
		log:   logrus.WithField("component", "pool."+name),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *serialPool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.invoke(task)
	}
}

func (p *serialPool) invoke(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorf("任务 panic: %v\n%s", r, debug.Stack())
		}
	}()
	task()
}

// Submit 入队执行；队列满时在调用方阻塞（背压）
func (p *serialPool) Submit(task func()) {
	p.tasks <- task
}

// Close 停止接收并等待剩余任务排空
func (p *serialPool) Close() {
	p.once.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}

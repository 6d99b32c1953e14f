// Package sigchan 提供只表达"发生过"的信号通道。
// 行情重连这类事件可以合并：连发多次信号，消费方处理一次即可。
package sigchan

// Chan 带合并语义的信号通道。缓冲满时 Emit 直接丢弃，
// 生产方永远不会被消费方拖住。
type Chan struct {
	c chan struct{}
}

// New 创建信号通道，buffer 通常给 1
func New(buffer int) *Chan {
	return &Chan{c: make(chan struct{}, buffer)}
}

// Emit 投递一个信号，通道已满时静默合并
func (s *Chan) Emit() {
	select {
	case s.c <- struct{}{}:
	default:
	}
}

// C 暴露底层通道供 select 使用
func (s *Chan) C() <-chan struct{} {
	return s.c
}

// Package kline 从 tick 流驱动 Renko 砖型K线，并在收盘K线上增量维护一组技术指标。
package kline

import "math"

// defaultMaxLen 指标序列的环形上限，防止长时间运行内存无界增长
const defaultMaxLen = 3000

// Series 定长追加序列：超出上限丢弃最旧值
type Series struct {
	data []float64
	max  int
}

// NewSeries 创建序列，max<=0 时使用默认上限
func NewSeries(max int) *Series {
	if max <= 0 {
		max = defaultMaxLen
	}
	return &Series{max: max}
}

// Append 追加一个值
func (s *Series) Append(v float64) {
	s.data = append(s.data, v)
	if len(s.data) > s.max {
		// 整体左移而非重切片，避免底层数组泄漏
		copy(s.data, s.data[len(s.data)-s.max:])
		s.data = s.data[:s.max]
	}
}

// SetLast 覆写最后一个值（仅用于 Wilder 类递推指标的就地更新）
func (s *Series) SetLast(v float64) {
	if len(s.data) > 0 {
		s.data[len(s.data)-1] = v
	}
}

// Len 当前长度
func (s *Series) Len() int { return len(s.data) }

// Last 最后一个值，空序列返回 0
func (s *Series) Last() float64 { return s.At(0) }

// At 自尾部起第 i 个值：At(0)==Last。越界返回 0。
func (s *Series) At(i int) float64 {
	idx := len(s.data) - 1 - i
	if idx < 0 || idx >= len(s.data) {
		return 0
	}
	return s.data[idx]
}

// Tail 尾部 n 个值的副本，不足 n 时返回全部
func (s *Series) Tail(n int) []float64 {
	if n > len(s.data) {
		n = len(s.data)
	}
	out := make([]float64, n)
	copy(out, s.data[len(s.data)-n:])
	return out
}

// Sum 尾部 n 个值之和
func (s *Series) Sum(n int) float64 {
	var sum float64
	for i := 0; i < n && i < len(s.data); i++ {
		sum += s.At(i)
	}
	return sum
}

// Mean 尾部 n 个值的均值，空返回 0
func (s *Series) Mean(n int) float64 {
	if n > len(s.data) {
		n = len(s.data)
	}
	if n == 0 {
		return 0
	}
	return s.Sum(n) / float64(n)
}

// Max 尾部 n 个值的最大值
func (s *Series) Max(n int) float64 {
	if n > len(s.data) {
		n = len(s.data)
	}
	if n == 0 {
		return 0
	}
	m := s.At(0)
	for i := 1; i < n; i++ {
		if v := s.At(i); v > m {
			m = v
		}
	}
	return m
}

// Min 尾部 n 个值的最小值
func (s *Series) Min(n int) float64 {
	if n > len(s.data) {
		n = len(s.data)
	}
	if n == 0 {
		return 0
	}
	m := s.At(0)
	for i := 1; i < n; i++ {
		if v := s.At(i); v < m {
			m = v
		}
	}
	return m
}

// Std 尾部 n 个值的总体标准差
func (s *Series) Std(n int) float64 {
	if n > len(s.data) {
		n = len(s.data)
	}
	if n == 0 {
		return 0
	}
	mean := s.Mean(n)
	var sq float64
	for i := 0; i < n; i++ {
		d := s.At(i) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n))
}

// slopeDeg 相邻两值的比值变化角度（度）。prev 为 0 时返回 0。
func slopeDeg(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return math.Atan((cur/prev-1)*100) * 180 / math.Pi
}

package kline

import "github.com/betbot/gofut/internal/domain"

// macdSegment 柱状图同号段：记录段内价格极值与 DIF 极值
type macdSegment struct {
	positive bool
	extremePrice float64 // 正段最高价 / 负段最低价
	extremeDif   float64 // 正段 DIF 最大值 / 负段 DIF 最小值
}

// MACD 指数平滑异同均线，带分段顶/底背离检测。
// 背离：相邻两个同号柱段中，价格极值刷新而 DIF 极值未跟上。
type MACD struct {
	Fast   int
	Slow   int
	Signal int

	DIF  *Series
	DEA  *Series
	Hist *Series

	TopDivergence    bool // 顶背离（正段间）
	BottomDivergence bool // 底背离（负段间）

	emaFast *EMA
	emaSlow *EMA

	current      *macdSegment
	lastPositive *macdSegment
	lastNegative *macdSegment
}

// NewMACD 创建 MACD
func NewMACD(fast, slow, signal, maxLen int) *MACD {
	return &MACD{
		Fast: fast, Slow: slow, Signal: signal,
		DIF:     NewSeries(maxLen),
		DEA:     NewSeries(maxLen),
		Hist:    NewSeries(maxLen),
		emaFast: NewEMA(fast, maxLen),
		emaSlow: NewEMA(slow, maxLen),
	}
}

// Update 推进一步
func (m *MACD) Update(bar *domain.Bar) {
	m.emaFast.Update(bar.ClosePrice)
	m.emaSlow.Update(bar.ClosePrice)
	dif := m.emaFast.Value.Last() - m.emaSlow.Value.Last()

	prevDEA := m.DEA.Last()
	alpha := 2.0 / float64(m.Signal+1)
	dea := prevDEA + alpha*(dif-prevDEA)
	if m.DEA.Len() == 0 {
		dea = dif
	}
	hist := 2 * (dif - dea)

	m.DIF.Append(dif)
	m.DEA.Append(dea)
	m.Hist.Append(hist)

	m.trackSegments(bar, dif, hist)
}

// trackSegments 维护同号柱段并在换段时做背离比对
func (m *MACD) trackSegments(bar *domain.Bar, dif, hist float64) {
	if hist == 0 {
		return
	}
	positive := hist > 0

	if m.current == nil || m.current.positive != positive {
		m.sealCurrent()
		m.current = &macdSegment{positive: positive}
		if positive {
			m.current.extremePrice = bar.HighPrice
		} else {
			m.current.extremePrice = bar.LowPrice
		}
		m.current.extremeDif = dif
		m.compareSegments()
		return
	}

	if positive {
		if bar.HighPrice > m.current.extremePrice {
			m.current.extremePrice = bar.HighPrice
		}
		if dif > m.current.extremeDif {
			m.current.extremeDif = dif
		}
	} else {
		if bar.LowPrice < m.current.extremePrice {
			m.current.extremePrice = bar.LowPrice
		}
		if dif < m.current.extremeDif {
			m.current.extremeDif = dif
		}
	}
	m.compareSegments()
}

func (m *MACD) sealCurrent() {
	if m.current == nil {
		return
	}
	if m.current.positive {
		m.lastPositive = m.current
	} else {
		m.lastNegative = m.current
	}
}

// compareSegments 当前段与上一个同号段比价格极值与 DIF 极值
func (m *MACD) compareSegments() {
	m.TopDivergence = false
	m.BottomDivergence = false
	if m.current == nil {
		return
	}

	if m.current.positive && m.lastPositive != nil {
		m.TopDivergence = m.current.extremePrice > m.lastPositive.extremePrice &&
			m.current.extremeDif < m.lastPositive.extremeDif
	}
	if !m.current.positive && m.lastNegative != nil {
		m.BottomDivergence = m.current.extremePrice < m.lastNegative.extremePrice &&
			m.current.extremeDif > m.lastNegative.extremeDif
	}
}

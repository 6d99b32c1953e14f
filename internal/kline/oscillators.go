package kline

// RSI Wilder 相对强弱指数，附峰谷记录
type RSI struct {
	Period int
	Value  *Series

	// 峰谷：RSI 序列的局部极值，用于背离判断
	Peaks   []float64
	Troughs []float64

	prevClose float64
	avgGain   float64
	avgLoss   float64
	count     int
}

// NewRSI 创建 RSI
func NewRSI(period, maxLen int) *RSI {
	return &RSI{Period: period, Value: NewSeries(maxLen)}
}

// Update 推进一步
func (r *RSI) Update(close float64) {
	defer func() { r.prevClose = close }()

	if r.count == 0 {
		r.count++
		r.Value.Append(50)
		return
	}
	gain, loss := 0.0, 0.0
	if d := close - r.prevClose; d > 0 {
		gain = d
	} else {
		loss = -d
	}

	n := float64(r.Period)
	r.avgGain = (r.avgGain*(n-1) + gain) / n
	r.avgLoss = (r.avgLoss*(n-1) + loss) / n
	r.count++

	r.Value.Append(rsiOf(r.avgGain, r.avgLoss))
	r.trackExtremes()
}

// rsiOf 上下窗口全平时回退为 50 而非除零
func rsiOf(avgGain, avgLoss float64) float64 {
	total := avgGain + avgLoss
	if total == 0 {
		return 50
	}
	return 100 * avgGain / total
}

// next 外推一步（实时值，不回写）
func (r *RSI) next(close float64) float64 {
	if r.count == 0 {
		return 50
	}
	gain, loss := 0.0, 0.0
	if d := close - r.prevClose; d > 0 {
		gain = d
	} else {
		loss = -d
	}
	n := float64(r.Period)
	return rsiOf((r.avgGain*(n-1)+gain)/n, (r.avgLoss*(n-1)+loss)/n)
}

const maxExtremes = 50

func (r *RSI) trackExtremes() {
	if r.Value.Len() < 3 {
		return
	}
	mid, left, right := r.Value.At(1), r.Value.At(2), r.Value.At(0)
	if mid > left && mid > right {
		r.Peaks = appendCapped(r.Peaks, mid, maxExtremes)
	}
	if mid < left && mid < right {
		r.Troughs = appendCapped(r.Troughs, mid, maxExtremes)
	}
}

func appendCapped(list []float64, v float64, limit int) []float64 {
	list = append(list, v)
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}

// KDJ 随机指标，带金叉/死叉计数
type KDJ struct {
	Period int
	K      *Series
	D      *Series
	J      *Series

	GoldenCount int // K 上穿 D 次数
	DeathCount  int // K 下穿 D 次数
}

// NewKDJ 创建 KDJ
func NewKDJ(period, maxLen int) *KDJ {
	return &KDJ{Period: period, K: NewSeries(maxLen), D: NewSeries(maxLen), J: NewSeries(maxLen)}
}

// rsv 高低全平时回退为 50
func rsv(high, low *Series, close float64, period int) float64 {
	hh := high.Max(period)
	ll := low.Min(period)
	if hh == ll {
		return 50
	}
	return (close - ll) / (hh - ll) * 100
}

// Update 推进一步
func (k *KDJ) Update(high, low *Series, close float64) {
	v := rsv(high, low, close, k.Period)

	prevK, prevD := k.K.Last(), k.D.Last()
	if k.K.Len() == 0 {
		prevK, prevD = 50, 50
	}
	nk := prevK*2/3 + v/3
	nd := prevD*2/3 + nk/3
	k.K.Append(nk)
	k.D.Append(nd)
	k.J.Append(3*nk - 2*nd)

	if k.K.Len() > 1 {
		if prevK <= prevD && nk > nd {
			k.GoldenCount++
		}
		if prevK >= prevD && nk < nd {
			k.DeathCount++
		}
	}
}

// CCI 顺价指标
type CCI struct {
	Period int
	TP     *Series
	Value  *Series
}

// NewCCI 创建 CCI
func NewCCI(period, maxLen int) *CCI {
	return &CCI{Period: period, TP: NewSeries(maxLen), Value: NewSeries(maxLen)}
}

// Update 推进一步
func (c *CCI) Update(high, low, close float64) {
	tp := (high + low + close) / 3
	c.TP.Append(tp)

	n := c.Period
	if c.TP.Len() < n {
		n = c.TP.Len()
	}
	mean := c.TP.Mean(n)
	var dev float64
	for i := 0; i < n; i++ {
		d := c.TP.At(i) - mean
		if d < 0 {
			d = -d
		}
		dev += d
	}
	dev /= float64(n)
	if dev == 0 {
		c.Value.Append(0)
		return
	}
	c.Value.Append((tp - mean) / (0.015 * dev))
}

// SKD 基于 RSI 的随机指标合成，带高低位背离标记
type SKD struct {
	Period int
	rsi    *RSI
	K      *Series
	D      *Series

	// 背离标记：价格新高而 SKD 未新高 / 价格新低而 SKD 未新低
	HighDivergence bool
	LowDivergence  bool

	priceHigh *Series
	priceLow  *Series
}

// NewSKD 创建 SKD
func NewSKD(period, maxLen int) *SKD {
	return &SKD{
		Period:    period,
		rsi:       NewRSI(period, maxLen),
		K:         NewSeries(maxLen),
		D:         NewSeries(maxLen),
		priceHigh: NewSeries(maxLen),
		priceLow:  NewSeries(maxLen),
	}
}

// Update 推进一步
func (s *SKD) Update(close, high, low float64) {
	s.rsi.Update(close)
	s.priceHigh.Append(high)
	s.priceLow.Append(low)

	// 对 RSI 序列再做一次随机化
	hh := s.rsi.Value.Max(s.Period)
	ll := s.rsi.Value.Min(s.Period)
	v := 50.0
	if hh != ll {
		v = (s.rsi.Value.Last() - ll) / (hh - ll) * 100
	}

	prevK, prevD := s.K.Last(), s.D.Last()
	if s.K.Len() == 0 {
		prevK, prevD = 50, 50
	}
	nk := prevK*2/3 + v/3
	nd := prevD*2/3 + nk/3
	s.K.Append(nk)
	s.D.Append(nd)

	s.detectDivergence()
}

func (s *SKD) detectDivergence() {
	n := s.Period
	if s.K.Len() <= n {
		return
	}
	priceNewHigh := s.priceHigh.Last() >= s.priceHigh.Max(n)
	skdNewHigh := s.K.Last() >= s.K.Max(n)
	s.HighDivergence = priceNewHigh && !skdNewHigh && s.K.Last() > 70

	priceNewLow := s.priceLow.Last() <= s.priceLow.Min(n)
	skdNewLow := s.K.Last() <= s.K.Min(n)
	s.LowDivergence = priceNewLow && !skdNewLow && s.K.Last() < 30
}

// YB (c+h+l)/3 的 EMA，带颜色翻转计数：
// Count>0 表示连续上行根数，Count<0 表示连续下行根数。
type YB struct {
	Period int
	Value  *Series
	Count  int

	ema *EMA
}

// NewYB 创建 YB
func NewYB(period, maxLen int) *YB {
	return &YB{Period: period, Value: NewSeries(maxLen), ema: NewEMA(period, maxLen)}
}

// Update 推进一步
func (y *YB) Update(close, high, low float64) {
	prev := y.ema.Value.Last()
	y.ema.Update((close + high + low) / 3)
	cur := y.ema.Value.Last()
	y.Value.Append(cur)

	if y.Value.Len() < 2 {
		return
	}
	switch {
	case cur > prev:
		if y.Count > 0 {
			y.Count++
		} else {
			y.Count = 1
		}
	case cur < prev:
		if y.Count < 0 {
			y.Count--
		} else {
			y.Count = -1
		}
	}
}

package kline

import (
	"math"

	"github.com/betbot/gofut/internal/domain"
)

// IndicatorConfig 指标参数。零值字段取 DefaultIndicatorConfig 的默认值。
type IndicatorConfig struct {
	MAPeriods  [3]int
	EMAPeriods [3]int

	KAMAPeriod int
	KAMAFast   int
	KAMASlow   int

	ATRPeriods [3]int
	RSIPeriods [2]int

	DMIPeriod int

	BollPeriods [2]int
	BollDev     float64

	KDJPeriod int

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	CCIPeriod int

	SARStep float64
	SARMax  float64

	KalmanQ float64
	KalmanR float64

	SKDPeriod int
	YBPeriod  int

	GoldenPeriod int

	MaxLen int
}

// DefaultIndicatorConfig 常用参数
func DefaultIndicatorConfig() IndicatorConfig {
	return IndicatorConfig{
		MAPeriods:    [3]int{5, 10, 20},
		EMAPeriods:   [3]int{5, 10, 20},
		KAMAPeriod:   10,
		KAMAFast:     2,
		KAMASlow:     30,
		ATRPeriods:   [3]int{7, 14, 28},
		RSIPeriods:   [2]int{6, 14},
		DMIPeriod:    14,
		BollPeriods:  [2]int{20, 40},
		BollDev:      2,
		KDJPeriod:    9,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		CCIPeriod:    14,
		SARStep:      0.02,
		SARMax:       0.2,
		KalmanQ:      1e-5,
		KalmanR:      1e-2,
		SKDPeriod:    9,
		YBPeriod:     10,
		GoldenPeriod: 60,
		MaxLen:       defaultMaxLen,
	}
}

func (c *IndicatorConfig) fillDefaults() {
	def := DefaultIndicatorConfig()
	if c.MAPeriods == ([3]int{}) {
		c.MAPeriods = def.MAPeriods
	}
	if c.EMAPeriods == ([3]int{}) {
		c.EMAPeriods = def.EMAPeriods
	}
	if c.KAMAPeriod == 0 {
		c.KAMAPeriod = def.KAMAPeriod
	}
	if c.KAMAFast == 0 {
		c.KAMAFast = def.KAMAFast
	}
	if c.KAMASlow == 0 {
		c.KAMASlow = def.KAMASlow
	}
	if c.ATRPeriods == ([3]int{}) {
		c.ATRPeriods = def.ATRPeriods
	}
	if c.RSIPeriods == ([2]int{}) {
		c.RSIPeriods = def.RSIPeriods
	}
	if c.DMIPeriod == 0 {
		c.DMIPeriod = def.DMIPeriod
	}
	if c.BollPeriods == ([2]int{}) {
		c.BollPeriods = def.BollPeriods
	}
	if c.BollDev == 0 {
		c.BollDev = def.BollDev
	}
	if c.KDJPeriod == 0 {
		c.KDJPeriod = def.KDJPeriod
	}
	if c.MACDFast == 0 {
		c.MACDFast = def.MACDFast
	}
	if c.MACDSlow == 0 {
		c.MACDSlow = def.MACDSlow
	}
	if c.MACDSignal == 0 {
		c.MACDSignal = def.MACDSignal
	}
	if c.CCIPeriod == 0 {
		c.CCIPeriod = def.CCIPeriod
	}
	if c.SARStep == 0 {
		c.SARStep = def.SARStep
	}
	if c.SARMax == 0 {
		c.SARMax = def.SARMax
	}
	if c.KalmanQ == 0 {
		c.KalmanQ = def.KalmanQ
	}
	if c.KalmanR == 0 {
		c.KalmanR = def.KalmanR
	}
	if c.SKDPeriod == 0 {
		c.SKDPeriod = def.SKDPeriod
	}
	if c.YBPeriod == 0 {
		c.YBPeriod = def.YBPeriod
	}
	if c.GoldenPeriod == 0 {
		c.GoldenPeriod = def.GoldenPeriod
	}
	if c.MaxLen == 0 {
		c.MaxLen = def.MaxLen
	}
}

// Suite 单合约的全套指标。只在收盘砖上推进；
// 临时砖上的实时值由聚合器的 RT* 方法按需计算，不回写。
type Suite struct {
	cfg IndicatorConfig

	Open  *Series
	High  *Series
	Low   *Series
	Close *Series

	MA   [3]*MA
	EMA  [3]*EMA
	KAMA *KAMA
	ATR  [3]*ATR
	RSI  [2]*RSI
	DMI  *DMI
	Boll [2]*Boll
	KDJ  *KDJ
	MACD *MACD
	CCI  *CCI
	SAR  *SAR
	Kalman *Kalman
	SKD  *SKD
	YB   *YB

	Golden *GoldenSection
	Period *PeriodClassifier

	barCount int
}

// NewSuite 创建指标组
func NewSuite(cfg IndicatorConfig) *Suite {
	cfg.fillDefaults()
	s := &Suite{
		cfg:   cfg,
		Open:  NewSeries(cfg.MaxLen),
		High:  NewSeries(cfg.MaxLen),
		Low:   NewSeries(cfg.MaxLen),
		Close: NewSeries(cfg.MaxLen),
	}
	for i := 0; i < 3; i++ {
		s.MA[i] = NewMA(cfg.MAPeriods[i], cfg.MaxLen)
		s.EMA[i] = NewEMA(cfg.EMAPeriods[i], cfg.MaxLen)
		s.ATR[i] = NewATR(cfg.ATRPeriods[i], cfg.MaxLen)
	}
	for i := 0; i < 2; i++ {
		s.RSI[i] = NewRSI(cfg.RSIPeriods[i], cfg.MaxLen)
		s.Boll[i] = NewBoll(cfg.BollPeriods[i], cfg.BollDev, cfg.MaxLen)
	}
	s.KAMA = NewKAMA(cfg.KAMAPeriod, cfg.KAMAFast, cfg.KAMASlow, cfg.MaxLen)
	s.DMI = NewDMI(cfg.DMIPeriod, cfg.MaxLen)
	s.KDJ = NewKDJ(cfg.KDJPeriod, cfg.MaxLen)
	s.MACD = NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal, cfg.MaxLen)
	s.CCI = NewCCI(cfg.CCIPeriod, cfg.MaxLen)
	s.SAR = NewSAR(cfg.SARStep, cfg.SARMax, cfg.MaxLen)
	s.Kalman = NewKalman(cfg.KalmanQ, cfg.KalmanR, cfg.MaxLen)
	s.SKD = NewSKD(cfg.SKDPeriod, cfg.MaxLen)
	s.YB = NewYB(cfg.YBPeriod, cfg.MaxLen)
	s.Golden = NewGoldenSection(cfg.GoldenPeriod)
	s.Period = NewPeriodClassifier(s.MA)
	return s
}

// Count 已推进的收盘砖数量
func (s *Suite) Count() int { return s.barCount }

// UpdateBar 收盘砖入账，全部指标前进一步
func (s *Suite) UpdateBar(bar *domain.Bar) {
	s.Open.Append(bar.OpenPrice)
	s.High.Append(bar.HighPrice)
	s.Low.Append(bar.LowPrice)
	s.Close.Append(bar.ClosePrice)
	s.barCount++

	for i := 0; i < 3; i++ {
		s.MA[i].Update(s.Close)
		s.EMA[i].Update(bar.ClosePrice)
		s.ATR[i].Update(bar.HighPrice, bar.LowPrice, s.Close.At(1))
	}
	for i := 0; i < 2; i++ {
		s.RSI[i].Update(bar.ClosePrice)
		s.Boll[i].Update(s.Close)
	}
	s.KAMA.Update(s.Close)
	s.DMI.Update(bar.HighPrice, bar.LowPrice, bar.ClosePrice)
	s.KDJ.Update(s.High, s.Low, bar.ClosePrice)
	s.MACD.Update(bar)
	s.CCI.Update(bar.HighPrice, bar.LowPrice, bar.ClosePrice)
	s.SAR.Update(bar.HighPrice, bar.LowPrice)
	s.Kalman.Update(bar.ClosePrice)
	s.SKD.Update(bar.ClosePrice, bar.HighPrice, bar.LowPrice)
	s.YB.Update(bar.ClosePrice, bar.HighPrice, bar.LowPrice)
	s.Period.Update()
}

// MA 简单移动平均，含斜率（相邻均值比值的角度）
type MA struct {
	Period int
	Value  *Series
	Slope  *Series
}

// NewMA 创建 MA
func NewMA(period, maxLen int) *MA {
	return &MA{Period: period, Value: NewSeries(maxLen), Slope: NewSeries(maxLen)}
}

// Update 推进一步
func (m *MA) Update(close *Series) {
	v := close.Mean(m.Period)
	prev := m.Value.Last()
	m.Value.Append(v)
	if m.Value.Len() > 1 {
		m.Slope.Append(slopeDeg(v, prev))
	} else {
		m.Slope.Append(0)
	}
}

// EMA 指数移动平均。样本不足 4×period 前输出累计均值，达到后开始递推。
type EMA struct {
	Period int
	Value  *Series

	count  int
	sum    float64
	seeded bool
}

// NewEMA 创建 EMA
func NewEMA(period, maxLen int) *EMA {
	return &EMA{Period: period, Value: NewSeries(maxLen)}
}

// Update 推进一步
func (e *EMA) Update(close float64) {
	e.count++
	e.sum += close
	if !e.seeded {
		if e.count >= 4*e.Period {
			e.seeded = true
		}
		e.Value.Append(e.sum / float64(e.count))
		return
	}
	alpha := 2.0 / float64(e.Period+1)
	e.Value.Append(alpha*close + (1-alpha)*e.Value.Last())
}

// next 用给定收盘价外推一步（实时值，不回写）
func (e *EMA) next(close float64) float64 {
	if !e.seeded {
		return (e.sum + close) / float64(e.count+1)
	}
	alpha := 2.0 / float64(e.Period+1)
	return alpha*close + (1-alpha)*e.Value.Last()
}

// KAMA 考夫曼自适应均线：效率系数加权的平滑常数
type KAMA struct {
	Period int
	Fast   int
	Slow   int
	Value  *Series
}

// NewKAMA 创建 KAMA
func NewKAMA(period, fast, slow, maxLen int) *KAMA {
	return &KAMA{Period: period, Fast: fast, Slow: slow, Value: NewSeries(maxLen)}
}

// Update 推进一步
func (k *KAMA) Update(close *Series) {
	c := close.Last()
	if close.Len() <= k.Period {
		k.Value.Append(c)
		return
	}

	change := math.Abs(c - close.At(k.Period))
	var volatility float64
	for i := 0; i < k.Period; i++ {
		volatility += math.Abs(close.At(i) - close.At(i+1))
	}
	er := 0.0
	if volatility > 0 {
		er = change / volatility
	}

	fastSC := 2.0 / float64(k.Fast+1)
	slowSC := 2.0 / float64(k.Slow+1)
	sc := er*(fastSC-slowSC) + slowSC
	sc *= sc

	prev := k.Value.Last()
	k.Value.Append(prev + sc*(c-prev))
}

// ATR Wilder 平均真实波幅。首样本直接取 TR。
type ATR struct {
	Period int
	TR     *Series
	Value  *Series
}

// NewATR 创建 ATR
func NewATR(period, maxLen int) *ATR {
	return &ATR{Period: period, TR: NewSeries(maxLen), Value: NewSeries(maxLen)}
}

func trueRange(high, low, prevClose float64) float64 {
	tr := high - low
	if prevClose > 0 {
		tr = max(tr, math.Abs(high-prevClose), math.Abs(low-prevClose))
	}
	return tr
}

// Update 推进一步。prevClose 为上一根收盘价（首根传 0）。
func (a *ATR) Update(high, low, prevClose float64) {
	tr := trueRange(high, low, prevClose)
	a.TR.Append(tr)

	if a.Value.Len() == 0 {
		a.Value.Append(tr)
		return
	}
	prev := a.Value.Last()
	n := float64(a.Period)
	a.Value.Append((prev*(n-1) + tr) / n)
}

// Kalman 一维卡尔曼滤波平滑器
type Kalman struct {
	Q     float64 // 过程噪声
	R     float64 // 观测噪声
	Value *Series

	x float64
	p float64
}

// NewKalman 创建滤波器
func NewKalman(q, r float64, maxLen int) *Kalman {
	return &Kalman{Q: q, R: r, Value: NewSeries(maxLen), p: 1}
}

// Update 推进一步
func (k *Kalman) Update(close float64) {
	if k.Value.Len() == 0 {
		k.x = close
		k.Value.Append(close)
		return
	}
	k.p += k.Q
	gain := k.p / (k.p + k.R)
	k.x += gain * (close - k.x)
	k.p *= 1 - gain
	k.Value.Append(k.x)
}

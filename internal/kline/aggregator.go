package kline

import (
	"math"

	"github.com/betbot/gofut/internal/domain"
)

// Aggregator 单合约K线聚合器：Renko 砖生成 + 收盘指标推进。
// 实时值（含临时砖）由 RT* 方法按需计算，首次请求时登记、永不回写。
type Aggregator struct {
	VtSymbol string

	renko *Renko
	suite *Suite

	onBar func(*domain.Bar)

	rtRegistered map[string]bool
}

// NewAggregator 创建聚合器。onBar 在每根砖收盘、指标推进完成后被调用。
func NewAggregator(symbol string, exchange domain.Exchange, renkoCfg RenkoConfig, indCfg IndicatorConfig, onBar func(*domain.Bar)) *Aggregator {
	a := &Aggregator{
		VtSymbol:     domain.VtSymbolOf(symbol, exchange),
		suite:        NewSuite(indCfg),
		onBar:        onBar,
		rtRegistered: make(map[string]bool),
	}
	a.renko = NewRenko(symbol, exchange, renkoCfg, a.handleClosedBar)
	return a
}

// Renko 底层砖生成器（用于注册快速反转回调等）
func (a *Aggregator) Renko() *Renko { return a.renko }

// Suite 收盘指标组
func (a *Aggregator) Suite() *Suite { return a.suite }

// OnTick tick 入口
func (a *Aggregator) OnTick(tick *domain.Tick) {
	a.renko.OnTick(tick)
}

func (a *Aggregator) handleClosedBar(bar *domain.Bar) {
	a.suite.UpdateBar(bar)
	if a.onBar != nil {
		a.onBar(bar)
	}
}

// registerRT 实时指标惰性登记
func (a *Aggregator) registerRT(name string) {
	if !a.rtRegistered[name] {
		a.rtRegistered[name] = true
		log.Debugf("%s 注册实时指标 %s", a.VtSymbol, name)
	}
}

// provisionalOHLC 当前临时砖的高低收。无临时砖时全为 0。
func (a *Aggregator) provisionalOHLC() (high, low, close float64, ok bool) {
	p := a.renko.Provisional()
	if p == nil {
		return 0, 0, 0, false
	}
	return p.HighPrice, p.LowPrice, p.ClosePrice, true
}

// tailWith 收盘序列尾部 n−1 个值加上临时值
func tailWith(s *Series, n int, extra float64) []float64 {
	vals := s.Tail(n - 1)
	return append(vals, extra)
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func stdOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	mean := meanOf(vals)
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)))
}

// RTClose 临时砖最新收盘价
func (a *Aggregator) RTClose() float64 {
	_, _, c, ok := a.provisionalOHLC()
	if !ok {
		return a.suite.Close.Last()
	}
	return c
}

// RTMA 含临时砖的第 i 条均线实时值
func (a *Aggregator) RTMA(i int) float64 {
	a.registerRT("ma")
	_, _, c, ok := a.provisionalOHLC()
	if !ok {
		return a.suite.MA[i].Value.Last()
	}
	return meanOf(tailWith(a.suite.Close, a.suite.MA[i].Period, c))
}

// RTEMA 含临时砖的第 i 条 EMA 实时值
func (a *Aggregator) RTEMA(i int) float64 {
	a.registerRT("ema")
	_, _, c, ok := a.provisionalOHLC()
	if !ok {
		return a.suite.EMA[i].Value.Last()
	}
	return a.suite.EMA[i].next(c)
}

// RTATR 含临时砖的第 i 条 ATR 实时值
func (a *Aggregator) RTATR(i int) float64 {
	a.registerRT("atr")
	h, l, _, ok := a.provisionalOHLC()
	atr := a.suite.ATR[i]
	if !ok || atr.Value.Len() == 0 {
		return atr.Value.Last()
	}
	tr := trueRange(h, l, a.suite.Close.Last())
	n := float64(atr.Period)
	return (atr.Value.Last()*(n-1) + tr) / n
}

// RTRSI 含临时砖的第 i 条 RSI 实时值
func (a *Aggregator) RTRSI(i int) float64 {
	a.registerRT("rsi")
	_, _, c, ok := a.provisionalOHLC()
	if !ok {
		return a.suite.RSI[i].Value.Last()
	}
	return a.suite.RSI[i].next(c)
}

// RTBoll 含临时砖的第 i 组布林带实时值
func (a *Aggregator) RTBoll(i int) (mid, upper, lower float64) {
	a.registerRT("boll")
	b := a.suite.Boll[i]
	_, _, c, ok := a.provisionalOHLC()
	if !ok {
		return b.Mid.Last(), b.Upper.Last(), b.Lower.Last()
	}
	vals := tailWith(a.suite.Close, b.Period, c)
	mid = meanOf(vals)
	std := stdOf(vals)
	return mid, mid + b.Dev*std, mid - b.Dev*std
}

// RTKDJ 含临时砖的 KDJ 实时值
func (a *Aggregator) RTKDJ() (k, d, j float64) {
	a.registerRT("kdj")
	kdj := a.suite.KDJ
	h, l, c, ok := a.provisionalOHLC()
	if !ok {
		return kdj.K.Last(), kdj.D.Last(), kdj.J.Last()
	}

	hh := max(a.suite.High.Max(kdj.Period-1), h)
	ll := a.suite.Low.Min(kdj.Period - 1)
	if a.suite.Low.Len() == 0 || l < ll {
		ll = l
	}
	v := 50.0
	if hh != ll {
		v = (c - ll) / (hh - ll) * 100
	}
	prevK, prevD := kdj.K.Last(), kdj.D.Last()
	if kdj.K.Len() == 0 {
		prevK, prevD = 50, 50
	}
	k = prevK*2/3 + v/3
	d = prevD*2/3 + k/3
	return k, d, 3*k - 2*d
}

// RTMACD 含临时砖的 MACD 实时值
func (a *Aggregator) RTMACD() (dif, dea, hist float64) {
	a.registerRT("macd")
	m := a.suite.MACD
	_, _, c, ok := a.provisionalOHLC()
	if !ok {
		return m.DIF.Last(), m.DEA.Last(), m.Hist.Last()
	}
	dif = m.emaFast.next(c) - m.emaSlow.next(c)
	alpha := 2.0 / float64(m.Signal+1)
	dea = m.DEA.Last() + alpha*(dif-m.DEA.Last())
	if m.DEA.Len() == 0 {
		dea = dif
	}
	return dif, dea, 2 * (dif - dea)
}

// RTKAMA 含临时砖的 KAMA 实时值
func (a *Aggregator) RTKAMA() float64 {
	a.registerRT("kama")
	k := a.suite.KAMA
	_, _, c, ok := a.provisionalOHLC()
	if !ok || a.suite.Close.Len() < k.Period {
		return k.Value.Last()
	}

	change := math.Abs(c - a.suite.Close.At(k.Period-1))
	volatility := math.Abs(c - a.suite.Close.Last())
	for i := 0; i < k.Period-1; i++ {
		volatility += math.Abs(a.suite.Close.At(i) - a.suite.Close.At(i+1))
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
	return prev + sc*(c-prev)
}

// RTGolden 含临时砖的黄金分割档位
func (a *Aggregator) RTGolden() [5]float64 {
	a.registerRT("golden")
	g := a.suite.Golden
	h, l, _, ok := a.provisionalOHLC()
	hh := a.suite.High.Max(g.Period)
	ll := a.suite.Low.Min(g.Period)
	if ok {
		hh = max(hh, h)
		if a.suite.Low.Len() == 0 || l < ll {
			ll = l
		}
	}
	span := hh - ll
	var out [5]float64
	if span <= 0 {
		return out
	}
	for i, ratio := range GoldenLevels {
		out[i] = ll + span*ratio
	}
	return out
}

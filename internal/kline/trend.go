package kline

import "math"

// DMI 动向指标（+DI/-DI/ADX/ADXR），附多空态势标记
type DMI struct {
	Period int

	PlusDI  *Series
	MinusDI *Series
	ADX     *Series
	ADXR    *Series

	// Wilder 平滑累计
	smTR      float64
	smPlusDM  float64
	smMinusDM float64

	prevHigh  float64
	prevLow   float64
	prevClose float64
	count     int
}

// NewDMI 创建 DMI
func NewDMI(period, maxLen int) *DMI {
	return &DMI{
		Period:  period,
		PlusDI:  NewSeries(maxLen),
		MinusDI: NewSeries(maxLen),
		ADX:     NewSeries(maxLen),
		ADXR:    NewSeries(maxLen),
	}
}

// Update 推进一步
func (d *DMI) Update(high, low, close float64) {
	defer func() {
		d.prevHigh, d.prevLow, d.prevClose = high, low, close
		d.count++
	}()

	if d.count == 0 {
		d.PlusDI.Append(0)
		d.MinusDI.Append(0)
		d.ADX.Append(0)
		d.ADXR.Append(0)
		return
	}

	upMove := high - d.prevHigh
	downMove := d.prevLow - low
	plusDM, minusDM := 0.0, 0.0
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}
	tr := trueRange(high, low, d.prevClose)

	n := float64(d.Period)
	d.smTR = d.smTR - d.smTR/n + tr
	d.smPlusDM = d.smPlusDM - d.smPlusDM/n + plusDM
	d.smMinusDM = d.smMinusDM - d.smMinusDM/n + minusDM

	plusDI, minusDI := 0.0, 0.0
	if d.smTR > 0 {
		plusDI = 100 * d.smPlusDM / d.smTR
		minusDI = 100 * d.smMinusDM / d.smTR
	}
	d.PlusDI.Append(plusDI)
	d.MinusDI.Append(minusDI)

	dx := 0.0
	if plusDI+minusDI > 0 {
		dx = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}
	prevADX := d.ADX.Last()
	adx := (prevADX*(n-1) + dx) / n
	d.ADX.Append(adx)
	d.ADXR.Append((adx + d.ADX.At(min(d.Period, d.ADX.Len()-1))) / 2)
}

// LongRegime 多头态势：+DI 占优且 ADX 抬升
func (d *DMI) LongRegime() bool {
	return d.PlusDI.Last() > d.MinusDI.Last() && d.ADX.Last() > d.ADX.At(1)
}

// ShortRegime 空头态势：-DI 占优且 ADX 抬升
func (d *DMI) ShortRegime() bool {
	return d.MinusDI.Last() > d.PlusDI.Last() && d.ADX.Last() > d.ADX.At(1)
}

// Boll 布林带
type Boll struct {
	Period int
	Dev    float64

	Mid   *Series
	Upper *Series
	Lower *Series
	Std   *Series

	MidSlope   *Series
	UpperSlope *Series
	LowerSlope *Series
}

// NewBoll 创建布林带
func NewBoll(period int, dev float64, maxLen int) *Boll {
	return &Boll{
		Period: period, Dev: dev,
		Mid: NewSeries(maxLen), Upper: NewSeries(maxLen), Lower: NewSeries(maxLen),
		Std: NewSeries(maxLen),
		MidSlope: NewSeries(maxLen), UpperSlope: NewSeries(maxLen), LowerSlope: NewSeries(maxLen),
	}
}

// Update 推进一步
func (b *Boll) Update(close *Series) {
	mid := close.Mean(b.Period)
	std := close.Std(b.Period)
	upper := mid + b.Dev*std
	lower := mid - b.Dev*std

	prevMid, prevUp, prevLo := b.Mid.Last(), b.Upper.Last(), b.Lower.Last()
	b.Mid.Append(mid)
	b.Upper.Append(upper)
	b.Lower.Append(lower)
	b.Std.Append(std)

	if b.Mid.Len() > 1 {
		b.MidSlope.Append(slopeDeg(mid, prevMid))
		b.UpperSlope.Append(slopeDeg(upper, prevUp))
		b.LowerSlope.Append(slopeDeg(lower, prevLo))
	} else {
		b.MidSlope.Append(0)
		b.UpperSlope.Append(0)
		b.LowerSlope.Append(0)
	}
}

// SAR 抛物线转向，追踪上/下行态势
type SAR struct {
	Step float64
	Max  float64

	Value *Series
	Up    bool // 当前为上行态势

	af      float64
	extreme float64
	count   int
}

// NewSAR 创建 SAR
func NewSAR(step, maxStep float64, maxLen int) *SAR {
	return &SAR{Step: step, Max: maxStep, Value: NewSeries(maxLen)}
}

// Update 推进一步
func (s *SAR) Update(high, low float64) {
	s.count++
	if s.count == 1 {
		s.Up = true
		s.af = s.Step
		s.extreme = high
		s.Value.Append(low)
		return
	}

	sar := s.Value.Last() + s.af*(s.extreme-s.Value.Last())

	if s.Up {
		if low <= sar {
			// 反转为下行
			s.Up = false
			sar = s.extreme
			s.extreme = low
			s.af = s.Step
		} else {
			if high > s.extreme {
				s.extreme = high
				s.af = min(s.af+s.Step, s.Max)
			}
		}
	} else {
		if high >= sar {
			s.Up = true
			sar = s.extreme
			s.extreme = high
			s.af = s.Step
		} else {
			if low < s.extreme {
				s.extreme = low
				s.af = min(s.af+s.Step, s.Max)
			}
		}
	}
	s.Value.Append(sar)
}

// GoldenLevels 黄金分割档位
var GoldenLevels = [5]float64{0.192, 0.382, 0.5, 0.618, 0.809}

// GoldenSection 滚动 N 根砖区间的黄金分割位
type GoldenSection struct {
	Period int
}

// NewGoldenSection 创建
func NewGoldenSection(period int) *GoldenSection {
	return &GoldenSection{Period: period}
}

// Levels 自区间低点向上的各档位价格。区间为空返回零值。
func (g *GoldenSection) Levels(high, low *Series) [5]float64 {
	hh := high.Max(g.Period)
	ll := low.Min(g.Period)
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

// Regime 多空震荡态势
type Regime string

const (
	RegimeLong  Regime = "LONG"
	RegimeShort Regime = "SHORT"
	RegimeShock Regime = "SHOCK"
)

// PeriodChangeFunc 态势切换回调
type PeriodChangeFunc func(old, new Regime)

// PeriodClassifier 多均线排列 → 多/空/震荡态势分类
type PeriodClassifier struct {
	mas     [3]*MA
	current Regime

	onChange PeriodChangeFunc
}

// NewPeriodClassifier 创建分类器
func NewPeriodClassifier(mas [3]*MA) *PeriodClassifier {
	return &PeriodClassifier{mas: mas, current: RegimeShock}
}

// SetOnChange 注册切换回调
func (p *PeriodClassifier) SetOnChange(fn PeriodChangeFunc) {
	p.onChange = fn
}

// Current 当前态势
func (p *PeriodClassifier) Current() Regime {
	return p.current
}

// Update 依据最新均线排列重判态势
func (p *PeriodClassifier) Update() {
	// 最长周期的均线样本未满前不判
	if p.mas[2].Value.Len() < p.mas[2].Period {
		return
	}
	m1 := p.mas[0].Value.Last()
	m2 := p.mas[1].Value.Last()
	m3 := p.mas[2].Value.Last()

	next := RegimeShock
	switch {
	case m1 > m2 && m2 > m3:
		next = RegimeLong
	case m1 < m2 && m2 < m3:
		next = RegimeShort
	}

	if next != p.current {
		old := p.current
		p.current = next
		if p.onChange != nil {
			p.onChange(old, next)
		}
	}
}

package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundTo 将价格按最小变动价位取整（四舍五入）
// 使用 decimal 避免 0.1+0.2 类浮点误差污染委托价。
func RoundTo(value, target float64) float64 {
	if target <= 0 {
		return value
	}
	v := decimal.NewFromFloat(value)
	t := decimal.NewFromFloat(target)
	rounded := v.Div(t).Round(0).Mul(t)
	f, _ := rounded.Float64()
	return f
}

// FloorTo 向下取整到最小变动价位
func FloorTo(value, target float64) float64 {
	if target <= 0 {
		return value
	}
	v := decimal.NewFromFloat(value)
	t := decimal.NewFromFloat(target)
	floored := v.Div(t).Floor().Mul(t)
	f, _ := floored.Float64()
	return f
}

// CeilTo 向上取整到最小变动价位
func CeilTo(value, target float64) float64 {
	if target <= 0 {
		return value
	}
	v := decimal.NewFromFloat(value)
	t := decimal.NewFromFloat(target)
	ceiled := v.Div(t).Ceil().Mul(t)
	f, _ := ceiled.Float64()
	return f
}

// AlmostEqual 浮点近似相等（对账容差 1e-7）
func AlmostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-7
}

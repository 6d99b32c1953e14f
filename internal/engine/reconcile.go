package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/internal/metrics"
	"github.com/betbot/gofut/pkg/eventbus"
)

// 持仓对账：账户实盘持仓对比全部策略申报持仓。
// 中金所按净持仓口径，其余交易所多空分边比较，容差 1e-7。

const posTolerance = 1e-7

type posSide struct {
	long         float64
	short        float64
	contributors []string
}

// comparePos 聚合并比对，失配时告警，可选自动平衡
func (e *Engine) comparePos() {
	metrics.ReconcileRuns.Add(1)
	account := make(map[string]*posSide)
	for _, pos := range e.book.GetAllPositions() {
		side := account[pos.VtSymbol()]
		if side == nil {
			side = &posSide{}
			account[pos.VtSymbol()] = side
		}
		switch pos.Direction {
		case domain.DirectionLong:
			side.long += pos.Volume
		case domain.DirectionShort:
			side.short += pos.Volume
		case domain.DirectionNet:
			if pos.Volume >= 0 {
				side.long += pos.Volume
			} else {
				side.short += -pos.Volume
			}
		}
	}

	e.mu.Lock()
	insts := make([]*instance, 0, len(e.strategies))
	for _, inst := range e.strategies {
		insts = append(insts, inst)
	}
	e.mu.Unlock()

	declared := make(map[string]*posSide)
	for _, inst := range insts {
		for vtSymbol, net := range inst.strategy.Pos() {
			e.accumulateDeclared(declared, vtSymbol, net, inst.name)
		}
	}

	symbols := make(map[string]bool)
	for vtSymbol := range account {
		symbols[vtSymbol] = true
	}
	for vtSymbol := range declared {
		symbols[vtSymbol] = true
	}
	ordered := make([]string, 0, len(symbols))
	for vtSymbol := range symbols {
		ordered = append(ordered, vtSymbol)
	}
	sort.Strings(ordered)

	for _, vtSymbol := range ordered {
		acc := account[vtSymbol]
		if acc == nil {
			acc = &posSide{}
		}
		strat := declared[vtSymbol]
		if strat == nil {
			strat = &posSide{}
		}
		e.compareSymbol(vtSymbol, acc, strat)
	}
}

// accumulateDeclared 记入策略申报头寸。合成合约拆解为两腿计入。
func (e *Engine) accumulateDeclared(declared map[string]*posSide, vtSymbol string, net float64, strategyName string) {
	symbol, exchange := domain.SplitVtSymbol(vtSymbol)
	if exchange == domain.ExchangeSPD && e.comb != nil {
		if comb := e.comb.Find(symbol); comb != nil {
			// 多价差 = 多腿一空腿二
			e.accumulateDeclared(declared, comb.Leg1VtSymbol, net*comb.Leg1Ratio, strategyName)
			e.accumulateDeclared(declared, comb.Leg2VtSymbol, -net*comb.Leg2Ratio, strategyName)
			return
		}
	}

	side := declared[vtSymbol]
	if side == nil {
		side = &posSide{}
		declared[vtSymbol] = side
	}
	if net >= 0 {
		side.long += net
	} else {
		side.short += -net
	}
	side.contributors = append(side.contributors, strategyName)
}

func (e *Engine) compareSymbol(vtSymbol string, acc, strat *posSide) {
	_, exchange := domain.SplitVtSymbol(vtSymbol)
	if exchange.UsesNetPosition() {
		accNet := acc.long - acc.short
		stratNet := strat.long - strat.short
		if math.Abs(accNet-stratNet) > posTolerance {
			e.reportMismatch(vtSymbol, "net", accNet, stratNet, strat.contributors)
		}
		return
	}

	if math.Abs(acc.long-strat.long) > posTolerance {
		e.reportMismatch(vtSymbol, "long", acc.long, strat.long, strat.contributors)
	}
	if math.Abs(acc.short-strat.short) > posTolerance {
		e.reportMismatch(vtSymbol, "short", acc.short, strat.short, strat.contributors)
	}
}

func (e *Engine) reportMismatch(vtSymbol, side string, accVolume, stratVolume float64, contributors []string) {
	metrics.ReconcileErrors.Add(1)
	msg := fmt.Sprintf("持仓对账失配 %s %s: 账户=%v 策略=%v [%s]",
		vtSymbol, side, accVolume, stratVolume, strings.Join(contributors, ","))
	e.log.Error(msg)
	e.bus.Put(eventbus.Event{Type: eventbus.TypeError, Data: &domain.LogEntry{
		Msg:   msg,
		Level: "error",
	}})
	if e.cfg.AutoBalance {
		e.balance(vtSymbol, side, accVolume-stratVolume)
	}
}

// balance 用市价 FAK 单抹平账户与策略的差额。
// 账户多于策略时卖出差额，反之买入。
func (e *Engine) balance(vtSymbol, side string, diff float64) {
	volume := math.Abs(diff)
	if volume < posTolerance {
		return
	}
	contract := e.book.GetContract(vtSymbol)
	if contract == nil {
		e.log.Errorf("自动平衡失败，合约缺失: %s", vtSymbol)
		return
	}

	// 账户超出(diff>0)则削减该边头寸
	direction := domain.DirectionShort
	if diff < 0 {
		direction = domain.DirectionLong
	}
	if side == "short" {
		direction = direction.Opposite()
	}

	price := 0.0
	if tick := e.book.GetTick(vtSymbol); tick != nil {
		price = tick.LastPrice
	}
	req := &domain.OrderRequest{
		Symbol:    contract.Symbol,
		Exchange:  contract.Exchange,
		Direction: direction,
		Offset:    domain.OffsetClose,
		Type:      domain.OrderTypeFAK,
		Price:     price,
		Volume:    volume,
		Reference: "auto_balance",
	}

	gw := e.gatewayFor(contract)
	if gw == nil {
		e.log.Errorf("自动平衡失败，无可用通道: %s", vtSymbol)
		return
	}
	for _, child := range e.converter.Convert(req, false) {
		vtOrderID, err := gw.SendOrder(child)
		if err != nil || vtOrderID == "" {
			e.log.Errorf("自动平衡发单失败 %s: %v", vtSymbol, err)
			continue
		}
		e.log.Warnf("自动平衡已发单 %s: %s %s x%v -> %s",
			vtSymbol, direction, child.Offset, child.Volume, vtOrderID)
	}
}

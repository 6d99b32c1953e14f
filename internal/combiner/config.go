package combiner

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// CustomContractConfig custom_contracts.json 中单个合成合约的定义
type CustomContractConfig struct {
	Exchange   string  `json:"exchange"`
	Name       string  `json:"name"`
	Size       float64 `json:"size"`
	PriceTick  float64 `json:"price_tick"`
	MarginRate float64 `json:"margin_rate"`

	Leg1Symbol string  `json:"leg1_symbol"` // vt_symbol 形式
	Leg1Ratio  float64 `json:"leg1_ratio"`
	Leg2Symbol string  `json:"leg2_symbol"`
	Leg2Ratio  float64 `json:"leg2_ratio"`

	IsSpread bool `json:"is_spread"`
	IsRatio  bool `json:"is_ratio"`

	GatewayName string `json:"gateway_name"`
}

// LoadCustomContracts 读取 custom_contracts.json 并构造合成合约列表。
// 文件不存在视为未配置，返回空表。
func LoadCustomContracts(path string) ([]*Combination, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "读取合成合约配置 %s", path)
	}

	var raw map[string]CustomContractConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "解析合成合约配置 %s", path)
	}

	symbols := make([]string, 0, len(raw))
	for symbol := range raw {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var combs []*Combination
	for _, symbol := range symbols {
		cfg := raw[symbol]
		comb, err := buildCombination(symbol, cfg)
		if err != nil {
			return nil, err
		}
		combs = append(combs, comb)
	}
	return combs, nil
}

func buildCombination(symbol string, cfg CustomContractConfig) (*Combination, error) {
	if cfg.IsSpread == cfg.IsRatio {
		return nil, errors.Errorf("合成合约 %s: is_spread 与 is_ratio 必须恰好设置一个", symbol)
	}
	if cfg.Leg1Symbol == "" || cfg.Leg2Symbol == "" {
		return nil, errors.Errorf("合成合约 %s: 缺少腿合约", symbol)
	}
	if cfg.Leg1Ratio <= 0 || cfg.Leg2Ratio <= 0 {
		return nil, errors.Errorf("合成合约 %s: 腿比例必须为正", symbol)
	}
	if cfg.PriceTick <= 0 {
		return nil, errors.Errorf("合成合约 %s: price_tick 必须为正", symbol)
	}

	mode := ModeSpread
	if cfg.IsRatio {
		mode = ModeRatio
	}
	size := cfg.Size
	if size <= 0 {
		size = 1
	}
	return &Combination{
		Symbol:       symbol,
		Name:         cfg.Name,
		Size:         size,
		PriceTick:    cfg.PriceTick,
		MarginRate:   cfg.MarginRate,
		Mode:         mode,
		Leg1VtSymbol: cfg.Leg1Symbol,
		Leg1Ratio:    cfg.Leg1Ratio,
		Leg2VtSymbol: cfg.Leg2Symbol,
		Leg2Ratio:    cfg.Leg2Ratio,
		GatewayName:  cfg.GatewayName,
	}, nil
}

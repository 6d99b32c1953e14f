// Package config 运行时配置加载。支持 YAML 与 JSON 两种格式，
// 环境变量可覆盖文件中的敏感字段（账号密码等）。
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// GatewayConfig 单个交易通道的连接参数
type GatewayConfig struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"` // ctp / paper
	TDHost   string `yaml:"td_host" json:"td_host"`
	MDHost   string `yaml:"md_host" json:"md_host"`
	BrokerID string `yaml:"broker_id" json:"broker_id"`
	UserID   string `yaml:"user_id" json:"user_id"`
	Password string `yaml:"password" json:"password"`
	AppID    string `yaml:"app_id" json:"app_id"`
	AuthCode string `yaml:"auth_code" json:"auth_code"`
	HolderID string `yaml:"holder_id" json:"holder_id"`

	// 仿真通道的合约定义文件（JSON 数组）
	ContractsFile string `yaml:"contracts_file" json:"contracts_file"`
}

// EngineConfig 策略引擎参数
type EngineConfig struct {
	AccountID      string `yaml:"account_id" json:"accountid"`
	StrategyGroup  string `yaml:"strategy_group" json:"strategy_group"`
	ComparePos     bool   `yaml:"compare_pos" json:"compare_pos"`
	AutoBalance    bool   `yaml:"auto_balance" json:"auto_balance"`
	SnapshotToFile bool   `yaml:"snapshot2file" json:"snapshot2file"`
	CancelSeconds  int    `yaml:"cancel_seconds" json:"cancel_seconds"`
	DataDir        string `yaml:"data_dir" json:"data_dir"`
	// 状态存储后端：json（默认）或 badger
	StoreBackend string `yaml:"store_backend" json:"store_backend"`
	// 熔断阈值，0 表示关闭对应检查
	MaxSendErrors  int64   `yaml:"max_send_errors" json:"max_send_errors"`
	DailyLossLimit float64 `yaml:"daily_loss_limit" json:"daily_loss_limit"`
}

// FeedConfig 行情源参数
type FeedConfig struct {
	WSAddr    string   `yaml:"ws_addr" json:"ws_addr"`
	Subscribe []string `yaml:"subscribe" json:"subscribe"` // vt_symbol 列表
}

// RecorderConfig 落库参数
type RecorderConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	SQLitePath  string `yaml:"sqlite_path" json:"sqlite_path"`
	CleanupCron string `yaml:"cleanup_cron" json:"cleanup_cron"`
}

// NotifierConfig 微信机器人告警参数
type NotifierConfig struct {
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`
	Enabled    bool   `yaml:"trade_2_wx" json:"trade_2_wx"`
}

// Config 应用配置
type Config struct {
	Engine    EngineConfig    `yaml:"engine" json:"engine"`
	Gateways  []GatewayConfig `yaml:"gateways" json:"gateways"`
	Feed      FeedConfig      `yaml:"feed" json:"feed"`
	Recorder  RecorderConfig  `yaml:"recorder" json:"recorder"`
	Notifier  NotifierConfig  `yaml:"notifier" json:"notifier"`
	WebListen string          `yaml:"web_listen" json:"web_listen"` // 管理接口，空则不启动

	// 自定义价差合约文件（combiner 加载）
	SpreadFile string `yaml:"spread_file" json:"spread_file"`

	LogLevel string `yaml:"log_level" json:"log_level"`
	LogFile  string `yaml:"log_file" json:"log_file"`
}

var (
	globalConfig   *Config
	configFilePath string
)

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configFilePath = path
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	return configFilePath
}

// Load 加载配置（带缓存，同路径只解析一次）
func Load() (*Config, error) {
	return LoadFromFile(configFilePath)
}

// LoadFromFile 从指定文件加载配置
func LoadFromFile(filePath string) (*Config, error) {
	if globalConfig != nil && configFilePath == filePath {
		return globalConfig, nil
	}

	cfg := defaults()
	if filePath != "" {
		if err := unmarshalFile(filePath, cfg); err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	configFilePath = filePath
	return cfg, nil
}

// Reset 清空缓存（测试用）
func Reset() {
	globalConfig = nil
	configFilePath = ""
}

func defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			AccountID:     "default",
			CancelSeconds: 120,
			DataDir:       "data",
			StoreBackend:  "json",
		},
		Recorder: RecorderConfig{
			SQLitePath:  "data/trader.db",
			CleanupCron: "30 8 * * *",
		},
		LogLevel: "info",
		LogFile:  "logs/trader.log",
	}
}

// unmarshalFile 按扩展名分发解析（支持 YAML 和 JSON）
func unmarshalFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}
	return nil
}

// applyEnvOverrides 环境变量覆盖。账号口令类字段允许不落盘，
// 通过 CTP_USER_ID / CTP_PASSWORD 等注入。
func applyEnvOverrides(cfg *Config) {
	cfg.Engine.AccountID = getEnv("TRADER_ACCOUNT_ID", cfg.Engine.AccountID)
	cfg.LogLevel = getEnv("TRADER_LOG_LEVEL", cfg.LogLevel)
	cfg.WebListen = getEnv("TRADER_WEB_LISTEN", cfg.WebListen)
	cfg.Notifier.WebhookURL = getEnv("TRADER_WX_WEBHOOK", cfg.Notifier.WebhookURL)

	for i := range cfg.Gateways {
		gw := &cfg.Gateways[i]
		prefix := strings.ToUpper(gw.Name)
		gw.UserID = getEnv(prefix+"_USER_ID", gw.UserID)
		gw.Password = getEnv(prefix+"_PASSWORD", gw.Password)
		gw.AuthCode = getEnv(prefix+"_AUTH_CODE", gw.AuthCode)
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Engine.AccountID == "" {
		return fmt.Errorf("engine.account_id 不能为空")
	}
	if c.Engine.CancelSeconds < 0 {
		return fmt.Errorf("engine.cancel_seconds 不能为负数")
	}
	switch c.Engine.StoreBackend {
	case "", "json", "badger":
	default:
		return fmt.Errorf("engine.store_backend 仅支持 json / badger，收到 %q", c.Engine.StoreBackend)
	}
	seen := make(map[string]bool, len(c.Gateways))
	for _, gw := range c.Gateways {
		if gw.Name == "" {
			return fmt.Errorf("网关名不能为空")
		}
		if seen[gw.Name] {
			return fmt.Errorf("网关名重复: %s", gw.Name)
		}
		seen[gw.Name] = true
		switch gw.Type {
		case "ctp":
			if gw.TDHost == "" || gw.MDHost == "" {
				return fmt.Errorf("网关 %s 缺少 td_host/md_host", gw.Name)
			}
		case "paper", "":
		default:
			return fmt.Errorf("网关 %s 类型未知: %s", gw.Name, gw.Type)
		}
	}
	if c.Recorder.Enabled && c.Recorder.SQLitePath == "" {
		return fmt.Errorf("recorder.sqlite_path 不能为空")
	}
	for _, vt := range c.Feed.Subscribe {
		if !strings.Contains(vt, ".") {
			return fmt.Errorf("feed.subscribe 需要 vt_symbol 形式: %s", vt)
		}
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ParseIntEnv 解析整数环境变量
func ParseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// ParseBoolEnv 解析布尔环境变量
func ParseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

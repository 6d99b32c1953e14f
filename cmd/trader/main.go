package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/algo"
	"github.com/betbot/gofut/internal/combiner"
	"github.com/betbot/gofut/internal/controlplane"
	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/internal/engine"
	"github.com/betbot/gofut/internal/feed"
	"github.com/betbot/gofut/internal/gateway"
	"github.com/betbot/gofut/internal/metrics"
	"github.com/betbot/gofut/internal/notifier"
	"github.com/betbot/gofut/internal/offset"
	"github.com/betbot/gofut/internal/oms"
	"github.com/betbot/gofut/internal/recorder"
	"github.com/betbot/gofut/pkg/config"
	"github.com/betbot/gofut/pkg/eventbus"
	"github.com/betbot/gofut/pkg/logger"
	"github.com/betbot/gofut/pkg/persistence"
	"github.com/betbot/gofut/pkg/shutdown"

	// 导入策略集合以触发 init() 注册
	_ "github.com/betbot/gofut/internal/strategies/all"
)

func loadContractsFile(path string) ([]*domain.Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取合约文件失败: %w", err)
	}
	var contracts []*domain.Contract
	if err := json.Unmarshal(data, &contracts); err != nil {
		return nil, fmt.Errorf("解析合约文件失败: %w", err)
	}
	return contracts, nil
}

func main() {
	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json）")
	flag.Parse()

	// .env 可选，缺失不报错
	_ = godotenv.Load()

	if *configPath != "" {
		config.SetConfigPath(*configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:        cfg.LogLevel,
		OutputFile:   cfg.LogFile,
		MaxSize:      100,
		MaxBackups:   10,
		MaxAge:       30,
		LogByTradDay: true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	logger.StartLogRotationChecker()

	logrus.Infof("🚀 启动交易引擎 account=%s", cfg.Engine.AccountID)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// 事件总线与订单簿。订单簿先注册，保证策略回调时快照已更新。
	bus := eventbus.New()
	book := oms.NewOrderBook()
	book.RegisterHandlers(bus)

	// 合成合约：产出的 tick 投回总线，走原生行情同一路径
	comb := combiner.NewCombiner(func(tick *domain.Tick) {
		bus.Put(eventbus.Event{Type: eventbus.TypeTick, Data: tick})
	})
	if cfg.SpreadFile != "" {
		combs, err := combiner.LoadCustomContracts(cfg.SpreadFile)
		if err != nil {
			logrus.Errorf("加载合成合约失败: %v", err)
			os.Exit(1)
		}
		for _, cb := range combs {
			comb.Add(cb)
		}
		for _, c := range comb.Contracts() {
			bus.Put(eventbus.Event{Type: eventbus.TypeContract, Data: c})
		}
	}

	converter := offset.NewConverter(book)

	var persist persistence.Service
	var badgerSvc *persistence.BadgerService
	if cfg.Engine.StoreBackend == "badger" {
		badgerSvc, err = persistence.NewBadgerService(filepath.Join(cfg.Engine.DataDir, "badger"))
		if err != nil {
			logrus.Errorf("打开 badger 状态库失败: %v", err)
			os.Exit(1)
		}
		persist = badgerSvc
	} else {
		persist = persistence.NewJSONFileService(filepath.Join(cfg.Engine.DataDir, "persistence"))
	}
	settingStore := persist.NewStore("engine", cfg.Engine.AccountID, "settings")
	snapStore := persist.NewStore("engine", cfg.Engine.AccountID, "snapshots")

	eng := engine.NewEngine(engine.Config{
		AccountID:      cfg.Engine.AccountID,
		StrategyGroup:  cfg.Engine.StrategyGroup,
		ComparePos:     cfg.Engine.ComparePos,
		AutoBalance:    cfg.Engine.AutoBalance,
		SnapshotToFile: cfg.Engine.SnapshotToFile,
		CancelSeconds:  cfg.Engine.CancelSeconds,
		DataDir:        cfg.Engine.DataDir,
		MaxSendErrors:  cfg.Engine.MaxSendErrors,
		DailyLossLimit: cfg.Engine.DailyLossLimit,
	}, bus, book, converter, settingStore, snapStore)
	eng.SetCombiner(comb)

	algoEngine := algo.NewEngine(bus, book, comb, eng)
	eng.SetAlgo(algoEngine)

	// 交易通道
	gateways := make([]gateway.Gateway, 0, len(cfg.Gateways))
	for _, gwCfg := range cfg.Gateways {
		switch gwCfg.Type {
		case "paper", "":
			var contracts []*domain.Contract
			if gwCfg.ContractsFile != "" {
				contracts, err = loadContractsFile(gwCfg.ContractsFile)
				if err != nil {
					logrus.Errorf("网关 %s: %v", gwCfg.Name, err)
					os.Exit(1)
				}
			}
			gw := gateway.NewPaperGateway(gwCfg.Name, bus, contracts)
			eng.AddGateway(gw)
			gateways = append(gateways, gw)
		default:
			logrus.Errorf("网关 %s 类型暂未内置: %s", gwCfg.Name, gwCfg.Type)
			os.Exit(1)
		}
	}

	// 落库
	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		rec, err = recorder.New(cfg.Recorder.SQLitePath, cfg.Engine.AccountID, bus)
		if err != nil {
			logrus.Errorf("初始化落库失败: %v", err)
			os.Exit(1)
		}
	}

	// 微信告警
	notifier.New(notifier.Config{
		WebhookURL: cfg.Notifier.WebhookURL,
		AccountID:  cfg.Engine.AccountID,
		Enabled:    cfg.Notifier.Enabled,
	}, bus)

	// 行情源（独立于交易通道的 websocket 推送）
	var marketFeed *feed.MarketFeed
	if cfg.Feed.WSAddr != "" {
		gwName := "FEED"
		if len(cfg.Gateways) > 0 {
			gwName = cfg.Gateways[0].Name
		}
		marketFeed = feed.NewMarketFeed("feed", cfg.Feed.WSAddr, gwName, bus)
	}

	// 管理接口
	var web *controlplane.Server
	if cfg.WebListen != "" {
		web = controlplane.New(controlplane.Config{Listen: cfg.WebListen}, eng, book)
		if err := web.Start(); err != nil {
			logrus.Errorf("启动管理接口失败: %v", err)
			os.Exit(1)
		}
	}

	// 可选 metrics/pprof，通过环境变量启用
	if addr := os.Getenv("TRADER_PPROF_ADDR"); addr != "" {
		if _, err := metrics.StartAsync(rootCtx, addr); err != nil {
			logrus.Errorf("metrics/pprof 启动失败: %v", err)
		} else {
			logrus.Infof("📊 metrics/pprof 启用: listen=%s", addr)
		}
	}

	// 启动事件分发
	bus.Start(rootCtx)

	// 连接通道并装载策略
	for i, gw := range gateways {
		gwCfg := cfg.Gateways[i]
		setting := map[string]string{
			"td_host":   gwCfg.TDHost,
			"md_host":   gwCfg.MDHost,
			"broker_id": gwCfg.BrokerID,
			"user_id":   gwCfg.UserID,
			"password":  gwCfg.Password,
			"app_id":    gwCfg.AppID,
			"auth_code": gwCfg.AuthCode,
			"holder_id": gwCfg.HolderID,
		}
		if err := gw.Connect(setting); err != nil {
			logrus.Errorf("连接网关 %s 失败: %v", gwCfg.Name, err)
			os.Exit(1)
		}
	}

	if marketFeed != nil {
		if err := marketFeed.Connect(rootCtx); err != nil {
			logrus.Errorf("连接行情源失败: %v", err)
			os.Exit(1)
		}
		for _, vt := range cfg.Feed.Subscribe {
			symbol, exchange := domain.SplitVtSymbol(vt)
			if err := marketFeed.Subscribe(&domain.SubscribeRequest{Symbol: symbol, Exchange: exchange}); err != nil {
				logrus.Warnf("订阅 %s 失败: %v", vt, err)
			}
		}
	}

	if err := eng.LoadSettings(); err != nil {
		logrus.Errorf("装载策略配置失败: %v", err)
		os.Exit(1)
	}

	logrus.Info("✅ 交易引擎已启动，按 Ctrl+C 停止")

	// 关闭顺序：先停外部入口，再停引擎与通道，最后停总线与落库
	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context) {
		if web != nil {
			if err := web.Close(); err != nil {
				logrus.Errorf("关闭管理接口失败: %v", err)
			}
		}
		if marketFeed != nil {
			marketFeed.Close()
		}
	})
	mgr.OnShutdown(func(ctx context.Context) {
		eng.Close()
		for _, gw := range gateways {
			if err := gw.Close(); err != nil {
				logrus.Errorf("关闭网关 %s 失败: %v", gw.Name(), err)
			}
		}
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logrus.Info("收到停止信号，正在关闭...")
	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	mgr.Shutdown(shutdownCtx)

	bus.Stop()
	if rec != nil {
		rec.Flush()
		if err := rec.Close(); err != nil {
			logrus.Errorf("关闭落库失败: %v", err)
		}
	}
	if badgerSvc != nil {
		if err := badgerSvc.Close(); err != nil {
			logrus.Errorf("关闭状态库失败: %v", err)
		}
	}

	logrus.Info("✅ 交易引擎已停止")
}

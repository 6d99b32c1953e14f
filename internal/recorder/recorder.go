// Package recorder 把总线事件落入 sqlite 文档库，供盘后复核与外部面板查询。
// 行键按 (collection, account_id, doc_key) 去重覆盖；today_ 开头的集合
// 在交易日切换时清掉旧行。
package recorder

import (
	"database/sql"
	"encoding/json"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/internal/engine"
	"github.com/betbot/gofut/pkg/eventbus"
)

const (
	collAccounts   = "accounts"
	collOrders     = "today_orders"
	collTrades     = "today_trades"
	collPositions  = "today_positions"
	collStrategy   = "today_strategy_pos"
	collSnapshots  = "strategy_snapshots"
	collLogs       = "logs"
	cleanupCronJob = "30 8 * * *" // 日盘开盘前清理
)

// Recorder 事件落库器
type Recorder struct {
	accountID string
	db        *sql.DB

	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once

	cron *cron.Cron
	log  *logrus.Entry

	mu         sync.Mutex
	tradingDay string
}

// New 打开（或建）库并注册事件订阅
func New(path, accountID string, bus *eventbus.Bus) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "打开记录库失败")
	}
	// 单写者即可，放开并发反而惹 SQLITE_BUSY
	db.SetMaxOpenConns(1)

	r := &Recorder{
		accountID: accountID,
		db:        db,
		tasks:     make(chan func(), 1024),
		cron:      cron.New(),
		log:       logrus.WithField("component", "recorder"),
	}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	r.wg.Add(1)
	go r.run()

	if _, err := r.cron.AddFunc(cleanupCronJob, r.CleanupStale); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "注册清理任务失败")
	}
	r.cron.Start()

	r.subscribe(bus)
	return r, nil
}

func (r *Recorder) migrate() error {
	_, err := r.db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
    collection  TEXT NOT NULL,
    account_id  TEXT NOT NULL,
    doc_key     TEXT NOT NULL,
    trading_day TEXT NOT NULL,
    payload     TEXT NOT NULL,
    updated_at  TEXT NOT NULL,
    PRIMARY KEY (collection, account_id, doc_key)
);
CREATE INDEX IF NOT EXISTS idx_documents_day ON documents (collection, trading_day);
`)
	return errors.Wrap(err, "建表失败")
}

func (r *Recorder) subscribe(bus *eventbus.Bus) {
	bus.Register(eventbus.TypeAccount, func(ev eventbus.Event) {
		if acc, ok := ev.Data.(*domain.Account); ok {
			r.upsert(collAccounts, acc.VtAccountID(), acc.Clone())
		}
	})
	bus.Register(eventbus.TypeOrder, func(ev eventbus.Event) {
		if order, ok := ev.Data.(*domain.Order); ok {
			r.upsert(collOrders, order.VtOrderID(), order.Clone())
		}
	})
	bus.Register(eventbus.TypeTrade, func(ev eventbus.Event) {
		if trade, ok := ev.Data.(*domain.Trade); ok {
			r.upsert(collTrades, trade.VtTradeID(), trade.Clone())
		}
	})
	bus.Register(eventbus.TypePosition, func(ev eventbus.Event) {
		if pos, ok := ev.Data.(*domain.Position); ok {
			r.upsert(collPositions, pos.VtPositionID(), pos.Clone())
		}
	})
	bus.Register(eventbus.TypeStrategyPos, func(ev eventbus.Event) {
		if sp, ok := ev.Data.(*engine.StrategyPosition); ok {
			r.upsert(collStrategy, sp.StrategyName, sp)
		}
	})
	bus.Register(eventbus.TypeStrategySnapshot, func(ev eventbus.Event) {
		if snap, ok := ev.Data.(*engine.Snapshot); ok {
			r.upsert(collSnapshots, snap.Name, snap)
		}
	})
	for _, t := range []eventbus.Type{eventbus.TypeError, eventbus.TypeWarning, eventbus.TypeCritical} {
		bus.Register(t, func(ev eventbus.Event) {
			if entry, ok := ev.Data.(*domain.LogEntry); ok {
				r.upsert(collLogs, uuid.NewString(), entry)
			}
		})
	}
}

// SetTradingDay 行情推送的交易日标签进来后更新（夜盘按下一交易日记账）
func (r *Recorder) SetTradingDay(day string) {
	r.mu.Lock()
	r.tradingDay = day
	r.mu.Unlock()
}

func (r *Recorder) currentTradingDay() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tradingDay != "" {
		return r.tradingDay
	}
	return time.Now().Format("20060102")
}

// upsert 序列化后排队写库；队列满时丢弃并记日志，绝不阻塞总线
func (r *Recorder) upsert(collection, docKey string, doc interface{}) {
	payload, err := json.Marshal(doc)
	if err != nil {
		r.log.Errorf("序列化失败 %s/%s: %v", collection, docKey, err)
		return
	}
	day := r.currentTradingDay()
	task := func() {
		_, err := r.db.Exec(`
INSERT INTO documents (collection, account_id, doc_key, trading_day, payload, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (collection, account_id, doc_key)
DO UPDATE SET trading_day = excluded.trading_day,
              payload     = excluded.payload,
              updated_at  = excluded.updated_at`,
			collection, r.accountID, docKey, day, string(payload),
			time.Now().Format(time.RFC3339))
		if err != nil {
			r.log.Errorf("落库失败 %s/%s: %v", collection, docKey, err)
		}
	}
	select {
	case r.tasks <- task:
	default:
		r.log.Warnf("记录队列已满，丢弃 %s/%s", collection, docKey)
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for task := range r.tasks {
		r.invoke(task)
	}
}

func (r *Recorder) invoke(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("记录任务 panic: %v\n%s", rec, debug.Stack())
		}
	}()
	task()
}

// CleanupStale 清掉 today_ 集合里非当前交易日的行
func (r *Recorder) CleanupStale() {
	day := r.currentTradingDay()
	task := func() {
		res, err := r.db.Exec(
			`DELETE FROM documents WHERE collection LIKE 'today_%' AND trading_day != ?`, day)
		if err != nil {
			r.log.Errorf("清理过期记录失败: %v", err)
			return
		}
		if n, _ := res.RowsAffected(); n > 0 {
			r.log.Infof("已清理过期记录 %d 行 🧹", n)
		}
	}
	select {
	case r.tasks <- task:
	default:
		r.log.Warn("记录队列已满，清理任务延后")
	}
}

// Count 某集合当前行数（测试与面板用）
func (r *Recorder) Count(collection string) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM documents WHERE collection = ? AND account_id = ?`,
		collection, r.accountID).Scan(&n)
	return n, err
}

// Load 按键读回文档
func (r *Recorder) Load(collection, docKey string, out interface{}) error {
	var payload string
	err := r.db.QueryRow(
		`SELECT payload FROM documents WHERE collection = ? AND account_id = ? AND doc_key = ?`,
		collection, r.accountID, docKey).Scan(&payload)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(payload), out)
}

// Close 停掉清理任务并排空写队列
func (r *Recorder) Close() error {
	r.cron.Stop()
	r.once.Do(func() {
		close(r.tasks)
	})
	r.wg.Wait()
	return r.db.Close()
}

// Flush 等待当前积压的写任务全部落库（测试用）
func (r *Recorder) Flush() {
	done := make(chan struct{})
	r.tasks <- func() { close(done) }
	<-done
}

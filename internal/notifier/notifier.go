// Package notifier 把 WARNING 及以上级别的事件推送到外部 webhook
// （企业微信机器人格式），让值守的人第一时间看到异常。
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/pkg/cache"
	"github.com/betbot/gofut/pkg/eventbus"
	"github.com/betbot/gofut/pkg/ratelimit"
)

const (
	sendTimeout = 5 * time.Second
	// 同文案两次推送的最小间隔，防止异常风暴刷屏
	dedupeWindow = time.Minute
	// 全局推送上限，不挑文案
	burstLimit  = 20
	burstWindow = time.Minute
)

// Config 推送配置
type Config struct {
	WebhookURL string `json:"webhook_url"`
	AccountID  string `json:"accountid"`
	Enabled    bool   `json:"trade_2_wx"`
}

// Notifier webhook 推送器
type Notifier struct {
	cfg    Config
	client *resty.Client
	log    *logrus.Entry

	dedupe *cache.InMemoryCache[string, struct{}]
	limit  ratelimit.RateLimiter
}

// New 创建推送器并订阅告警事件
func New(cfg Config, bus *eventbus.Bus) *Notifier {
	n := &Notifier{
		cfg:      cfg,
		client: resty.New().SetTimeout(sendTimeout).SetRetryCount(2),
		log:    logrus.WithField("component", "notifier"),
		dedupe: cache.NewInMemoryCache[string, struct{}](dedupeWindow),
		limit:  ratelimit.NewSlidingWindow(burstLimit, burstWindow),
	}
	for _, t := range []eventbus.Type{eventbus.TypeWarning, eventbus.TypeError, eventbus.TypeCritical} {
		level := t
		bus.Register(level, func(ev eventbus.Event) {
			if entry, ok := ev.Data.(*domain.LogEntry); ok {
				n.Notify(string(level), entry.Msg)
			}
		})
	}
	return n
}

// Notify 发送一条告警。推送失败只记日志，绝不影响交易主流程。
func (n *Notifier) Notify(level, msg string) {
	if !n.cfg.Enabled || n.cfg.WebhookURL == "" {
		return
	}
	if n.suppressed(msg) {
		return
	}
	if !n.limit.Allow() {
		n.log.Warnf("告警超出推送上限，丢弃: %s", msg)
		return
	}
	text := fmt.Sprintf("[%s] %s %s", level, n.cfg.AccountID, msg)
	// 推送走独立协程，调用方在总线分发线程上
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		resp, err := n.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]interface{}{
				"msgtype": "text",
				"text":    map[string]string{"content": text},
			}).
			Post(n.cfg.WebhookURL)
		if err != nil {
			n.log.Errorf("推送失败: %v", err)
			return
		}
		if resp.StatusCode() >= 300 {
			n.log.Errorf("推送被拒 status=%d body=%s", resp.StatusCode(), resp.String())
		}
	}()
}

// suppressed 同文案在窗口期内只放行第一条，过期项由缓存自行回收
func (n *Notifier) suppressed(msg string) bool {
	if _, ok := n.dedupe.Get(msg); ok {
		return true
	}
	n.dedupe.Set(msg, struct{}{}, dedupeWindow)
	return false
}

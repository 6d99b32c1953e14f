package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketBurstThenReject(t *testing.T) {
	tb := NewTokenBucket(3, 1, time.Second)
	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "突发额度内第 %d 次应放行", i+1)
	}
	assert.False(t, tb.Allow(), "令牌耗尽后应拒绝")
	assert.Equal(t, 0, tb.GetRemaining())
}

func TestSlidingWindowLimit(t *testing.T) {
	sw := NewSlidingWindow(2, time.Minute)
	assert.True(t, sw.Allow())
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow())
	assert.Equal(t, 0, sw.GetRemaining())
}

func TestManagerKnownEndpoints(t *testing.T) {
	m := NewRateLimitManager()
	// 报单流控有突发额度
	assert.True(t, m.Allow("trade:order:insert"))
	// 查询 1 次/秒，第二次立即拒绝
	assert.True(t, m.Allow("query:account"))
	assert.False(t, m.Allow("query:account"))
}

func TestManagerRegisterOverride(t *testing.T) {
	m := NewRateLimitManager()
	m.Register("trade:order:insert", NewSlidingWindow(1, time.Minute))
	assert.True(t, m.Allow("trade:order:insert"))
	assert.False(t, m.Allow("trade:order:insert"))
}

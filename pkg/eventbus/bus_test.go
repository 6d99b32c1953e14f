package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFIFOPerType(t *testing.T) {
	bus := New(WithQueueSize(128))

	var mu sync.Mutex
	var got []int
	bus.Register(TypeTick, func(e Event) {
		mu.Lock()
		got = append(got, e.Data.(int))
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)
	defer bus.Stop()

	for i := 0; i < 100; i++ {
		bus.Put(Event{Type: TypeTick, Data: i})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 100
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		require.Equal(t, i, v, "事件顺序必须按入队顺序")
	}
}

func TestBusHandlerPanicShield(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	count := 0
	bus.Register(TypeOrder, func(e Event) {
		panic("strategy bug")
	})
	bus.Register(TypeOrder, func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)
	defer bus.Stop()

	bus.Put(Event{Type: TypeOrder})
	bus.Put(Event{Type: TypeOrder})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBusGeneralHandler(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	seen := map[Type]int{}
	bus.RegisterGeneral(func(e Event) {
		mu.Lock()
		seen[e.Type]++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	bus.Put(Event{Type: TypeTick})
	bus.Put(Event{Type: TypeTrade})
	bus.Put(Event{Type: TypeLog})
	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen[TypeTick])
	assert.Equal(t, 1, seen[TypeTrade])
	assert.Equal(t, 1, seen[TypeLog])
}

func TestBusTimerEmits(t *testing.T) {
	bus := New(WithTimerInterval(10 * time.Millisecond))

	var mu sync.Mutex
	ticks := 0
	bus.Register(TypeTimer, func(e Event) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)
	defer bus.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ticks >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBusStopDrainsQueue(t *testing.T) {
	bus := New(WithQueueSize(1024))

	var mu sync.Mutex
	count := 0
	bus.Register(TypeTrade, func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	for i := 0; i < 500; i++ {
		bus.Put(Event{Type: TypeTrade, Data: i})
	}
	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 500, count)
}

func TestBusUnregister(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	first, second := 0, 0
	sub := bus.Register(TypeTick, func(e Event) {
		mu.Lock()
		first++
		mu.Unlock()
	})
	bus.Register(TypeTick, func(e Event) {
		mu.Lock()
		second++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	bus.Put(Event{Type: TypeTick})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return first == 1 && second == 1
	}, 2*time.Second, 5*time.Millisecond)

	// 无效凭据静默忽略，不得误伤其他处理器
	bus.Unregister(TypeTick, Subscription(9999))
	bus.Unregister(TypeTick, sub)
	bus.Put(Event{Type: TypeTick})
	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, first, "注销后不应再收到事件")
	assert.Equal(t, 2, second, "未注销的处理器不受影响")
}

func TestBusUnregisterGeneral(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	seen := 0
	sub := bus.RegisterGeneral(func(e Event) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	bus.Put(Event{Type: TypeTrade})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen == 1
	}, 2*time.Second, 5*time.Millisecond)

	bus.UnregisterGeneral(sub)
	bus.Put(Event{Type: TypeTrade})
	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen)
}

func TestBusDropCounterConcurrentPut(t *testing.T) {
	// 总线不启动，容量 1 的队列只吞一个事件，其余全部丢弃
	bus := New(WithQueueSize(1))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				bus.Put(Event{Type: TypeTick, Data: i})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(399), bus.Dropped())
}

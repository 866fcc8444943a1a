package task

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopfront_console/internal/model"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func startFeed(t *testing.T, env *testEnv, src *fakeFeedSource, sink *recordingSink) *OrderFeedTask {
	task := NewOrderFeedTask(src, "orders_inserted", 10*time.Second, env.clock, env.repo, env.tracker, sink, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go task.Run(ctx)

	task.Start()
	require.Eventually(t, func() bool { return src.count() == 1 }, waitFor, tick)
	return task
}

func TestOrderFeedTask_ReconnectConvergence(t *testing.T) {
	env := newTestEnv(t)
	src := &fakeFeedSource{}
	task := startFeed(t, env, src, &recordingSink{})

	failures := []FeedStatus{FeedClosed, FeedChannelError, FeedTimedOut}
	for i, status := range failures {
		src.attempt(i).onStatus(status, errors.New("subscription lost"))

		require.Eventually(t, task.ReconnectPending, waitFor, tick)
		assert.Equal(t, status, task.Status())
		assert.True(t, src.attempt(i).sub.closed.Load(), "失败的订阅应被拆掉")

		// 间隔未到不重连
		env.clock.Add(9 * time.Second)
		assert.Never(t, func() bool { return src.count() > i+1 }, 50*time.Millisecond, tick)

		env.clock.Add(time.Second)
		require.Eventually(t, func() bool { return src.count() == i+2 }, waitFor, tick)
	}

	src.attempt(len(failures)).onStatus(FeedSubscribed, nil)
	require.Eventually(t, func() bool {
		return task.Status() == FeedSubscribed && !task.ReconnectPending()
	}, waitFor, tick)

	// 订阅成功后不应再有任何重连
	env.clock.Add(time.Minute)
	assert.Never(t, func() bool { return src.count() > len(failures)+1 }, 100*time.Millisecond, tick)
}

func TestOrderFeedTask_RepeatedFailuresArmSingleTimer(t *testing.T) {
	env := newTestEnv(t)
	src := &fakeFeedSource{}
	task := startFeed(t, env, src, &recordingSink{})

	src.attempt(0).onStatus(FeedChannelError, nil)
	require.Eventually(t, task.ReconnectPending, waitFor, tick)

	env.clock.Add(10 * time.Second)
	require.Eventually(t, func() bool { return src.count() == 2 }, waitFor, tick)

	// 同一订阅连续上报两次失败，只会有一次重连
	src.attempt(1).onStatus(FeedClosed, nil)
	src.attempt(1).onStatus(FeedTimedOut, nil)
	require.Eventually(t, task.ReconnectPending, waitFor, tick)

	env.clock.Add(10 * time.Second)
	require.Eventually(t, func() bool { return src.count() == 3 }, waitFor, tick)
	env.clock.Add(10 * time.Second)
	assert.Never(t, func() bool { return src.count() > 3 }, 100*time.Millisecond, tick)
}

func TestOrderFeedTask_StartTearsDownAndDropsStaleEvents(t *testing.T) {
	env := newTestEnv(t)
	src := &fakeFeedSource{}
	sink := &recordingSink{}
	task := startFeed(t, env, src, sink)

	src.attempt(0).onStatus(FeedSubscribed, nil)
	require.Eventually(t, func() bool { return task.Status() == FeedSubscribed }, waitFor, tick)

	task.Start()
	require.Eventually(t, func() bool { return src.count() == 2 }, waitFor, tick)
	assert.True(t, src.attempt(0).sub.closed.Load())

	src.attempt(1).onStatus(FeedSubscribed, nil)
	require.Eventually(t, func() bool { return task.Status() == FeedSubscribed }, waitFor, tick)

	// 旧订阅的迟到回调全部作废
	src.attempt(0).onStatus(FeedClosed, nil)
	src.attempt(0).onInsert([]byte(`{"id":"late"}`))

	assert.Never(t, task.ReconnectPending, 100*time.Millisecond, tick)
	assert.Equal(t, FeedSubscribed, task.Status())
	assert.Empty(t, sink.orders())
}

func TestOrderFeedTask_StopClearsTimer(t *testing.T) {
	env := newTestEnv(t)
	src := &fakeFeedSource{}
	task := startFeed(t, env, src, &recordingSink{})

	src.attempt(0).onStatus(FeedClosed, nil)
	require.Eventually(t, task.ReconnectPending, waitFor, tick)

	task.Stop()
	require.Eventually(t, func() bool {
		return task.Status() == FeedIdle && !task.ReconnectPending()
	}, waitFor, tick)

	env.clock.Add(time.Minute)
	assert.Never(t, func() bool { return src.count() > 1 }, 100*time.Millisecond, tick)
}

func TestOrderFeedTask_InsertHydratesAndDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 已预热：冷启动抑制不影响订阅路径
	_, err := env.tracker.Reconcile(ctx, nil)
	require.NoError(t, err)

	order := &model.Order{
		DisplayID:    "SF-1",
		CustomerName: "Amina",
		City:         "Casablanca",
		TotalAmount:  4500,
		Items:        []model.OrderItem{{ProductID: "p1", Title: "Lamp", Quantity: 1, PriceAmount: 4500}},
	}
	require.NoError(t, env.repo.Create(ctx, order))

	// 通知里只有行本身，没有订单项
	row := *order
	row.Items = nil
	payload, err := json.Marshal(row)
	require.NoError(t, err)

	src := &fakeFeedSource{}
	sink := &recordingSink{}
	startFeed(t, env, src, sink)
	src.attempt(0).onStatus(FeedSubscribed, nil)

	src.attempt(0).onInsert(payload)
	src.attempt(0).onInsert(payload)

	require.Eventually(t, func() bool { return len(sink.orders()) == 1 }, waitFor, tick)
	assert.Never(t, func() bool { return len(sink.orders()) > 1 }, 100*time.Millisecond, tick)

	got := sink.orders()[0]
	assert.Equal(t, order.ID, got.ID)
	assert.Len(t, got.Items, 1, "应从远端补全订单项")

	// 快照同步更新
	snap := env.cache.Load(ctx)
	assert.Equal(t, []string{order.ID}, ids(snap.Orders))
}

func TestOrderFeedTask_HydrateFallsBackToRawRow(t *testing.T) {
	env := newTestEnv(t)
	src := &fakeFeedSource{}
	sink := &recordingSink{}
	startFeed(t, env, src, sink)

	src.attempt(0).onInsert([]byte(`{"id":"not-in-store","customer_name":"Omar","total_amount":1200}`))
	src.attempt(0).onInsert([]byte(`not json`))

	require.Eventually(t, func() bool { return len(sink.orders()) == 1 }, waitFor, tick)
	got := sink.orders()[0]
	assert.Equal(t, "Omar", got.CustomerName)
	assert.EqualValues(t, 1200, got.TotalAmount)
}

func TestOrderFeedTask_IDOnlyPayloadReadsFullOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.tracker.Reconcile(ctx, nil)
	require.NoError(t, err)

	order := &model.Order{
		DisplayID:    "SF-2",
		CustomerName: "Yassine",
		Note:         strings.Repeat("leave at the door ", 600),
		Items:        []model.OrderItem{{ProductID: "p1", Title: "Rug", Quantity: 2, PriceAmount: 9000}},
	}
	require.NoError(t, env.repo.Create(ctx, order))

	src := &fakeFeedSource{}
	sink := &recordingSink{}
	startFeed(t, env, src, sink)
	src.attempt(0).onStatus(FeedSubscribed, nil)

	src.attempt(0).onInsert([]byte(`{"id":"` + order.ID + `"}`))

	require.Eventually(t, func() bool { return len(sink.orders()) == 1 }, waitFor, tick)
	got := sink.orders()[0]
	assert.Equal(t, "Yassine", got.CustomerName)
	assert.Equal(t, order.Note, got.Note)
	assert.Len(t, got.Items, 1)
}

func TestOrderFeedTask_IDOnlyPayloadMissingLeftToSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.tracker.Reconcile(ctx, nil)
	require.NoError(t, err)

	src := &fakeFeedSource{}
	sink := &recordingSink{}
	startFeed(t, env, src, sink)

	src.attempt(0).onInsert([]byte(`{"id":"not-yet-visible"}`))
	assert.Never(t, func() bool { return len(sink.orders()) > 0 }, 100*time.Millisecond, tick)

	// 没有被记为已知，下一次全量同步仍能发现它
	fresh, err := env.tracker.Reconcile(ctx, []model.Order{{ID: "not-yet-visible", CustomerName: "Sara"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"not-yet-visible"}, ids(fresh))
}

func TestOrderFeedTask_StartCancelsPendingReconnect(t *testing.T) {
	env := newTestEnv(t)
	src := &fakeFeedSource{}
	task := startFeed(t, env, src, &recordingSink{})

	src.attempt(0).onStatus(FeedClosed, errors.New("subscription lost"))
	require.Eventually(t, task.ReconnectPending, waitFor, tick)

	task.Start()
	require.Eventually(t, func() bool {
		return src.count() == 2 && !task.ReconnectPending()
	}, waitFor, tick)

	// 原定的重连时间到了也不会再建第三个订阅
	env.clock.Add(10 * time.Second)
	assert.Never(t, func() bool { return src.count() > 2 }, 100*time.Millisecond, tick)
}

func TestOrderFeedTask_CallsAfterRunExitDoNotBlock(t *testing.T) {
	env := newTestEnv(t)
	src := &fakeFeedSource{}
	task := NewOrderFeedTask(src, "orders_inserted", 10*time.Second, env.clock, env.repo, env.tracker, &recordingSink{}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		task.Run(ctx)
		close(exited)
	}()

	task.Start()
	require.Eventually(t, func() bool { return src.count() == 1 }, waitFor, tick)
	src.attempt(0).onStatus(FeedClosed, nil)
	require.Eventually(t, task.ReconnectPending, waitFor, tick)

	cancel()
	<-exited

	done := make(chan struct{})
	go func() {
		// 超过事件队列容量
		for i := 0; i < 600; i++ {
			task.Start()
			task.Stop()
		}
		src.attempt(0).onInsert([]byte(`{"id":"late"}`))
		env.clock.Add(time.Minute)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("事件循环退出后的调用被阻塞")
	}
	assert.Equal(t, 1, src.count())
}

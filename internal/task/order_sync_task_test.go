package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopfront_console/internal/model"
	"shopfront_console/internal/realtime"
	"shopfront_console/internal/service"
)

func order(id string) model.Order {
	return model.Order{ID: id, DisplayID: "SF-" + id, CustomerName: "Customer " + id, City: "Rabat", TotalAmount: 1000, Currency: "USD"}
}

type syncFixture struct {
	env      *testEnv
	source   *fakeOrderSource
	notifier *recordingNotifier
	fanout   *recordingFanout
	task     *OrderSyncTask
	dispatch *service.NotificationDispatcher
}

func newSyncFixture(t *testing.T, perm service.Permission) *syncFixture {
	env := newTestEnv(t)
	source := &fakeOrderSource{}
	notifier := &recordingNotifier{}
	fanout := &recordingFanout{}
	dispatch := service.NewNotificationDispatcher(&fakeSettings{perm: perm}, notifier, "/console", nil, zap.NewNop())

	return &syncFixture{
		env:      env,
		source:   source,
		notifier: notifier,
		fanout:   fanout,
		dispatch: dispatch,
		task:     NewOrderSyncTask(source, nil, env.tracker, dispatch, fanout, "", 50, nil, zap.NewNop()),
	}
}

func TestOrderSyncTask_NewOrdersAfterPrime(t *testing.T) {
	f := newSyncFixture(t, service.PermissionGranted)
	ctx := context.Background()

	f.source.set([]model.Order{order("A")}, nil)
	fresh, err := f.task.SyncNow(ctx)
	require.NoError(t, err)
	assert.Empty(t, fresh, "首次拉取只建立基线")
	assert.Empty(t, f.notifier.sent())

	f.source.set([]model.Order{order("C"), order("B"), order("A")}, nil)
	fresh, err = f.task.SyncNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "B"}, ids(fresh))
	assert.Equal(t, []string{"order-C", "order-B"}, f.notifier.sent())

	snap := f.env.cache.Load(ctx)
	assert.Equal(t, []string{"C", "B", "A"}, ids(snap.Orders))
	assert.Equal(t, f.env.clock.Now().UTC(), snap.OrdersRefreshedAt.UTC())

	require.Len(t, f.fanout.refreshes, 2)
	assert.Len(t, f.fanout.refreshes[1], 3)
	assert.Equal(t, []string{realtime.SyncStateOK, realtime.SyncStateOK}, f.fanout.statuses)
}

func TestOrderSyncTask_RepeatedBatchNotifiesOnce(t *testing.T) {
	f := newSyncFixture(t, service.PermissionGranted)
	ctx := context.Background()

	f.source.set([]model.Order{order("A")}, nil)
	f.task.SyncNow(ctx)

	f.source.set([]model.Order{order("B"), order("A")}, nil)
	f.task.SyncNow(ctx)
	fresh, err := f.task.SyncNow(ctx)
	require.NoError(t, err)

	assert.Empty(t, fresh)
	assert.Equal(t, []string{"order-B"}, f.notifier.sent())
}

func TestOrderSyncTask_FetchFailureKeepsState(t *testing.T) {
	f := newSyncFixture(t, service.PermissionGranted)
	ctx := context.Background()

	f.source.set([]model.Order{order("A")}, nil)
	_, err := f.task.SyncNow(ctx)
	require.NoError(t, err)
	before := f.env.cache.Load(ctx)

	f.env.clock.Add(time.Minute)
	f.source.set(nil, errNetwork)
	fresh, err := f.task.SyncNow(ctx)

	require.ErrorIs(t, err, errNetwork)
	assert.Nil(t, fresh)
	assert.Equal(t, []string{"A"}, ids(f.env.tracker.Orders()))
	assert.True(t, f.env.tracker.Primed())

	after := f.env.cache.Load(ctx)
	assert.Equal(t, ids(before.Orders), ids(after.Orders))
	assert.True(t, before.OrdersRefreshedAt.Equal(after.OrdersRefreshedAt), "失败不应推进刷新时间")

	assert.Equal(t, realtime.SyncStateStale, f.fanout.statuses[len(f.fanout.statuses)-1])
	assert.Len(t, f.fanout.refreshes, 1)
}

func TestOrderSyncTask_DeniedPermissionStillBroadcasts(t *testing.T) {
	f := newSyncFixture(t, service.PermissionDenied)
	ctx := context.Background()

	f.source.set(nil, nil)
	f.task.SyncNow(ctx)

	f.source.set([]model.Order{order("A")}, nil)
	fresh, err := f.task.SyncNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, ids(fresh))
	assert.Empty(t, f.notifier.sent())
	assert.Len(t, f.fanout.refreshes, 2)
}

func TestOrderSyncTask_FeedThenSyncNotifiesOnce(t *testing.T) {
	f := newSyncFixture(t, service.PermissionGranted)
	ctx := context.Background()

	f.source.set([]model.Order{order("A")}, nil)
	f.task.SyncNow(ctx)

	// 订阅路径先看到 B
	isNew, err := f.env.tracker.Observe(ctx, order("B"))
	require.NoError(t, err)
	require.True(t, isNew)
	f.dispatch.DispatchNewOrders(ctx, service.SourceFeed, []model.Order{order("B")})

	f.source.set([]model.Order{order("B"), order("A")}, nil)
	fresh, err := f.task.SyncNow(ctx)
	require.NoError(t, err)

	assert.Empty(t, fresh)
	assert.Equal(t, []string{"order-B"}, f.notifier.sent())
}

func TestOrderSyncTask_RequestSyncRunsInBackground(t *testing.T) {
	f := newSyncFixture(t, service.PermissionGranted)
	f.source.set([]model.Order{order("A")}, nil)

	require.NoError(t, f.task.Start())
	t.Cleanup(f.task.Stop)

	f.task.RequestSync()
	require.Eventually(t, f.env.tracker.Primed, waitFor, tick)
}

func TestOrderSyncTask_InvalidSchedule(t *testing.T) {
	env := newTestEnv(t)
	task := NewOrderSyncTask(&fakeOrderSource{}, nil, env.tracker, &recordingSink{}, nil, "not a schedule", 0, nil, zap.NewNop())

	assert.Error(t, task.Start())
}

func TestOrderSyncTask_FeedInsertDuringFetchNotifiesOnce(t *testing.T) {
	f := newSyncFixture(t, service.PermissionGranted)
	ctx := context.Background()

	f.source.set([]model.Order{order("A")}, nil)
	f.task.SyncNow(ctx)

	// X 在拉取途中由订阅送达，这次拉取的结果里还没有它
	f.source.mu.Lock()
	f.source.duringFetch = func() {
		isNew, err := f.env.tracker.Observe(ctx, order("X"))
		require.NoError(t, err)
		require.True(t, isNew)
		f.dispatch.DispatchNewOrders(ctx, service.SourceFeed, []model.Order{order("X")})
	}
	f.source.mu.Unlock()

	fresh, err := f.task.SyncNow(ctx)
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.Equal(t, []string{"X", "A"}, ids(f.env.tracker.Orders()), "拉取途中观测到的订单不应从列表消失")
	assert.Equal(t, []string{"X", "A"}, ids(f.fanout.refreshes[len(f.fanout.refreshes)-1]))

	f.source.set([]model.Order{order("X"), order("A")}, nil)
	fresh, err = f.task.SyncNow(ctx)
	require.NoError(t, err)
	assert.Empty(t, fresh, "X 已由订阅提醒过")
	assert.Equal(t, []string{"order-X"}, f.notifier.sent())

	snap := f.env.cache.Load(ctx)
	assert.Equal(t, []string{"X", "A"}, ids(snap.Orders))
}

func TestOrderSyncTask_OfflineStartServesSnapshot(t *testing.T) {
	f := newSyncFixture(t, service.PermissionGranted)
	ctx := context.Background()

	// 上次运行留下的快照
	require.NoError(t, f.env.cache.SaveOrders(ctx, []model.Order{order("B"), order("A")}, f.env.clock.Now()))
	f.env.tracker.Prime(ctx)

	f.source.set(nil, errNetwork)
	_, err := f.task.SyncNow(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{realtime.SyncStateStale}, f.fanout.statuses)
	assert.Equal(t, []string{"B", "A"}, ids(f.env.tracker.Orders()))
	assert.True(t, f.env.tracker.Primed())

	// 远端恢复后只提醒真正的新订单
	f.source.set([]model.Order{order("C"), order("B"), order("A")}, nil)
	fresh, err := f.task.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, ids(fresh))
	assert.Equal(t, realtime.SyncStateOK, f.fanout.statuses[len(f.fanout.statuses)-1])
}

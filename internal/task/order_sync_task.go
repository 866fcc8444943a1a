package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"shopfront_console/internal/metrics"
	"shopfront_console/internal/model"
	"shopfront_console/internal/realtime"
	"shopfront_console/internal/service"
)

// OrderSource 远端订单全量读取
type OrderSource interface {
	FetchRecent(ctx context.Context, limit int) ([]model.Order, error)
}

// ProductSource 远端商品全量读取（写入商品快照）
type ProductSource interface {
	SyncProducts(ctx context.Context) ([]model.Product, error)
}

// RefreshFanout 同步结果发往所有标签页
type RefreshFanout interface {
	BroadcastRefresh(orders []model.Order)
	BroadcastSyncStatus(state, errMsg string)
}

// ==================== OrderSyncTask 全量同步 ====================

// OrderSyncTask 定时/手动的全量对账，订阅断开或漏掉事件时兜底
type OrderSyncTask struct {
	orders   OrderSource
	products ProductSource
	tracker  *service.OrderTracker
	sink     NewOrderSink
	fanout   RefreshFanout
	metrics  *metrics.Metrics
	log      *zap.Logger

	cron     *cron.Cron
	schedule string
	limit    int
	timeout  time.Duration

	// 同一时刻只跑一次同步
	runMu   sync.Mutex
	trigger chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewOrderSyncTask(
	orders OrderSource,
	products ProductSource,
	tracker *service.OrderTracker,
	sink NewOrderSink,
	fanout RefreshFanout,
	schedule string,
	limit int,
	m *metrics.Metrics,
	log *zap.Logger,
) *OrderSyncTask {
	if limit <= 0 {
		limit = 100
	}
	return &OrderSyncTask{
		orders:   orders,
		products: products,
		tracker:  tracker,
		sink:     sink,
		fanout:   fanout,
		metrics:  m,
		log:      log.Named("order_sync"),
		cron:     cron.New(),
		schedule: schedule,
		limit:    limit,
		timeout:  time.Minute,
		trigger:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Start 启动定时任务与手动触发队列；schedule 为空时只响应手动触发
func (t *OrderSyncTask) Start() error {
	if t.schedule != "" {
		_, err := t.cron.AddFunc(t.schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
			defer cancel()
			t.syncAll(ctx)
		})
		if err != nil {
			return fmt.Errorf("同步计划无效 %q: %w", t.schedule, err)
		}
		t.cron.Start()
	}

	t.wg.Add(1)
	go t.drainTriggers()

	t.log.Info("全量同步已启动", zap.String("schedule", t.schedule), zap.Int("limit", t.limit))
	return nil
}

// Stop 停止任务，等待进行中的同步结束
func (t *OrderSyncTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	close(t.stop)
	t.wg.Wait()
	t.log.Info("全量同步已停止")
}

// RequestSync 请求一次同步，不阻塞；排队中的请求会合并
func (t *OrderSyncTask) RequestSync() {
	select {
	case t.trigger <- struct{}{}:
	default:
	}
}

func (t *OrderSyncTask) drainTriggers() {
	defer t.wg.Done()
	for {
		select {
		case <-t.stop:
			return
		case <-t.trigger:
			ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
			if _, err := t.SyncNow(ctx); err != nil {
				t.log.Debug("手动同步失败", zap.Error(err))
			}
			cancel()
		}
	}
}

func (t *OrderSyncTask) syncAll(ctx context.Context) {
	if _, err := t.SyncNow(ctx); err != nil {
		t.log.Debug("定时同步失败", zap.Error(err))
	}
	if _, err := t.SyncProducts(ctx); err != nil {
		t.log.Warn("商品同步失败，保留本地快照", zap.Error(err))
	}
}

// SyncNow 全量拉取订单并对账，返回新订单
// 拉取失败只上报 stale 状态，不改动已有状态与快照
func (t *OrderSyncTask) SyncNow(ctx context.Context) ([]model.Order, error) {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	batch, err := t.orders.FetchRecent(ctx, t.limit)
	if err != nil {
		t.metrics.Sync("error")
		t.log.Warn("拉取订单失败，保留现有状态", zap.Error(err))
		if t.fanout != nil {
			t.fanout.BroadcastSyncStatus(realtime.SyncStateStale, err.Error())
		}
		return nil, fmt.Errorf("拉取订单失败: %w", err)
	}

	fresh, err := t.tracker.Reconcile(ctx, batch)
	if err != nil {
		t.log.Warn("写入订单快照失败", zap.Error(err))
	}

	t.sink.DispatchNewOrders(ctx, service.SourceSync, fresh)
	if t.fanout != nil {
		t.fanout.BroadcastRefresh(t.tracker.Orders())
		t.fanout.BroadcastSyncStatus(realtime.SyncStateOK, "")
	}
	t.metrics.Sync("ok")

	t.log.Info("订单同步完成", zap.Int("total", len(batch)), zap.Int("new", len(fresh)))
	return fresh, nil
}

// SyncProducts 刷新商品快照
func (t *OrderSyncTask) SyncProducts(ctx context.Context) ([]model.Product, error) {
	if t.products == nil {
		return nil, nil
	}
	return t.products.SyncProducts(ctx)
}

package task

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"shopfront_console/internal/metrics"
	"shopfront_console/internal/model"
	"shopfront_console/internal/repository"
	"shopfront_console/internal/service"
)

// DefaultReconnectInterval 订阅断开后的固定重试间隔
const DefaultReconnectInterval = 10 * time.Second

// NewOrderSink 新订单的去向
type NewOrderSink interface {
	DispatchNewOrders(ctx context.Context, source string, orders []model.Order)
}

type feedEventKind int

const (
	evStart feedEventKind = iota
	evStop
	evStatus
	evInsert
	evReconnect
)

type feedEvent struct {
	kind    feedEventKind
	gen     uint64
	status  FeedStatus
	err     error
	payload []byte
}

// ==================== OrderFeedTask 订单变更订阅 ====================

// OrderFeedTask 后台常驻的订单插入订阅
// 所有状态只在 Run 的事件循环里修改；旧订阅的回调按代号丢弃
type OrderFeedTask struct {
	source    FeedSource
	channel   string
	interval  time.Duration
	clock     clock.Clock
	orderRepo repository.OrderRepository
	tracker   *service.OrderTracker
	sink      NewOrderSink
	metrics   *metrics.Metrics
	log       *zap.Logger

	events chan feedEvent
	// Run 退出后关闭，之后的投递直接丢弃
	quit     chan struct{}
	quitOnce sync.Once

	// 以下只在事件循环内访问
	gen        uint64
	sub        FeedSubscription
	timer      *clock.Timer
	timerToken uint64

	mu      sync.RWMutex
	status  FeedStatus
	pending bool
}

func NewOrderFeedTask(
	source FeedSource,
	channel string,
	interval time.Duration,
	clk clock.Clock,
	orderRepo repository.OrderRepository,
	tracker *service.OrderTracker,
	sink NewOrderSink,
	m *metrics.Metrics,
	log *zap.Logger,
) *OrderFeedTask {
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}
	return &OrderFeedTask{
		source:    source,
		channel:   channel,
		interval:  interval,
		clock:     clk,
		orderRepo: orderRepo,
		tracker:   tracker,
		sink:      sink,
		metrics:   m,
		log:       log.Named("order_feed"),
		events:    make(chan feedEvent, 256),
		quit:      make(chan struct{}),
		status:    FeedIdle,
	}
}

// Start 建立订阅；已有订阅会先拆掉，可重复调用
func (t *OrderFeedTask) Start() {
	t.post(context.Background(), feedEvent{kind: evStart})
}

// Stop 拆掉订阅并清除重连定时器
func (t *OrderFeedTask) Stop() {
	t.post(context.Background(), feedEvent{kind: evStop})
}

// Status 当前订阅状态
func (t *OrderFeedTask) Status() FeedStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// ReconnectPending 是否有等待中的重连
func (t *OrderFeedTask) ReconnectPending() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pending
}

// Run 事件循环，ctx 结束时拆掉订阅
func (t *OrderFeedTask) Run(ctx context.Context) {
	defer t.quitOnce.Do(func() { close(t.quit) })
	defer t.teardown()
	defer t.clearReconnect()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-t.events:
			t.handle(ctx, ev)
		}
	}
}

func (t *OrderFeedTask) handle(ctx context.Context, ev feedEvent) {
	switch ev.kind {
	case evStart:
		// 显式重建订阅时作废等待中的重连，否则定时器到点会再建一次
		t.clearReconnect()
		t.subscribe(ctx)

	case evStop:
		t.clearReconnect()
		t.teardown()
		t.setStatus(FeedIdle)
		t.log.Info("订单订阅已停止")

	case evStatus:
		if ev.gen != t.gen {
			return
		}
		t.onStatus(ctx, ev.status, ev.err)

	case evInsert:
		if ev.gen != t.gen {
			return
		}
		t.onInsert(ctx, ev.payload)

	case evReconnect:
		if ev.gen != t.timerToken || t.timer == nil {
			return
		}
		t.timer = nil
		t.setPending(false)
		t.metrics.Reconnect()
		t.log.Info("重新订阅订单变更", zap.String("channel", t.channel))
		t.subscribe(ctx)
	}
}

func (t *OrderFeedTask) subscribe(ctx context.Context) {
	t.teardown()

	gen := t.gen
	t.setStatus(FeedJoining)

	sub, err := t.source.Subscribe(ctx, t.channel,
		func(status FeedStatus, err error) {
			t.post(ctx, feedEvent{kind: evStatus, gen: gen, status: status, err: err})
		},
		func(payload []byte) {
			t.post(ctx, feedEvent{kind: evInsert, gen: gen, payload: payload})
		},
	)
	if err != nil {
		t.onStatus(ctx, FeedChannelError, err)
		return
	}
	t.sub = sub
}

// teardown 关闭当前订阅并作废它之后的所有回调
func (t *OrderFeedTask) teardown() {
	t.gen++
	if t.sub != nil {
		if err := t.sub.Close(); err != nil {
			t.log.Debug("关闭订阅出错", zap.Error(err))
		}
		t.sub = nil
	}
}

func (t *OrderFeedTask) post(ctx context.Context, ev feedEvent) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	case <-t.quit:
	}
}

func (t *OrderFeedTask) onStatus(ctx context.Context, status FeedStatus, err error) {
	t.setStatus(status)

	if status == FeedSubscribed {
		t.clearReconnect()
		t.log.Info("订单订阅已建立", zap.String("channel", t.channel))
		return
	}

	t.log.Warn("订单订阅不可用，等待重连",
		zap.String("status", string(status)),
		zap.Duration("retry_in", t.interval),
		zap.Error(err),
	)
	t.teardown()
	t.armReconnect(ctx)
}

// armReconnect 同一时刻最多一个重连定时器
func (t *OrderFeedTask) armReconnect(ctx context.Context) {
	if t.timer != nil {
		return
	}
	t.timerToken++
	token := t.timerToken
	t.timer = t.clock.AfterFunc(t.interval, func() {
		t.post(ctx, feedEvent{kind: evReconnect, gen: token})
	})
	t.setPending(true)
}

func (t *OrderFeedTask) clearReconnect() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.setPending(false)
}

func (t *OrderFeedTask) onInsert(ctx context.Context, payload []byte) {
	var row model.Order
	if err := json.Unmarshal(payload, &row); err != nil || row.ID == "" {
		t.log.Warn("无法解析订单插入通知", zap.ByteString("payload", payload), zap.Error(err))
		return
	}

	order, ok := t.hydrate(ctx, row)
	if !ok {
		return
	}
	order.RawPayload = datatypes.JSON(payload)

	isNew, err := t.tracker.Observe(ctx, order)
	if err != nil {
		t.log.Warn("写入订单快照失败", zap.String("order_id", order.ID), zap.Error(err))
	}
	if !isNew {
		return
	}
	t.sink.DispatchNewOrders(ctx, service.SourceFeed, []model.Order{order})
}

// hydrate 按主键读取整单；失败时退回通知里的原始行
// 通知只带主键时没有可退回的内容，交给下一次全量同步
func (t *OrderFeedTask) hydrate(ctx context.Context, row model.Order) (model.Order, bool) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	full, err := t.orderRepo.GetByID(ctx, row.ID)
	if err == nil {
		return *full, true
	}
	if row.DisplayID == "" && row.CustomerName == "" {
		t.log.Warn("读取订单失败，等待全量同步补上", zap.String("order_id", row.ID), zap.Error(err))
		return row, false
	}
	t.log.Warn("补全订单失败，使用原始行", zap.String("order_id", row.ID), zap.Error(err))
	return row, true
}

func (t *OrderFeedTask) setStatus(s FeedStatus) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
	t.metrics.SetFeedStatus(string(s))
}

func (t *OrderFeedTask) setPending(p bool) {
	t.mu.Lock()
	t.pending = p
	t.mu.Unlock()
}

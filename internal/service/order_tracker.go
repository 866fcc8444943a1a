package service

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"shopfront_console/internal/model"
)

// ==================== 订单跟踪 ====================

// OrderTracker 后台上下文持有的已知订单集合
// 同步与订阅两条路径都经过它：同一身份键只会被判定为新订单一次
type OrderTracker struct {
	mu    sync.Mutex
	cache *SnapshotCache
	clock clock.Clock
	log   *zap.Logger

	primed bool
	known  KeySet
	orders []model.Order
	// 上次全量对账之后订阅路径观测到的订单
	observed []model.Order

	// 最近一次成功全量拉取的时间，订阅插入不改变它
	refreshedAt time.Time
}

func NewOrderTracker(cache *SnapshotCache, clk clock.Clock, log *zap.Logger) *OrderTracker {
	return &OrderTracker{
		cache: cache,
		clock: clk,
		log:   log.Named("tracker"),
		known: KeySet{},
	}
}

// Prime 用本地快照初始化已知集合
// 快照里有过成功拉取的记录才算已预热，否则首次全量拉取仍走冷启动抑制
func (t *OrderTracker) Prime(ctx context.Context) Snapshot {
	snap := t.cache.Load(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.orders = snap.Orders
	t.observed = nil
	t.refreshedAt = snap.OrdersRefreshedAt
	t.known = NewKeySet(snap.Orders)
	t.primed = !snap.OrdersRefreshedAt.IsZero() || len(snap.Orders) > 0
	t.log.Info("已载入订单快照", zap.Int("orders", len(snap.Orders)), zap.Bool("primed", t.primed))
	return snap
}

// Reconcile 全量拉取路径：算出新订单，整体替换订单列表与快照
// 已知集合只增不减：拉取途中由订阅观测到的订单即使不在 batch 里，也不会在下次同步时再次算新
// 快照写入失败时内存状态仍更新，新订单照常返回，错误交给调用方记录
func (t *OrderTracker) Reconcile(ctx context.Context, batch []model.Order) ([]model.Order, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var known KeySet
	if t.primed {
		known = t.known
	}
	fresh := DiffNewOrders(known, batch)

	t.orders = KeepObserved(t.observed, batch)
	t.observed = nil
	t.known.AddAll(batch)
	t.primed = true
	t.refreshedAt = t.clock.Now()

	return fresh, t.cache.SaveOrders(ctx, t.orders, t.refreshedAt)
}

// Observe 订阅路径：订单未知时插到最前并整体写回快照，返回是否为新订单
func (t *OrderTracker) Observe(ctx context.Context, order model.Order) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.known.Has(order.ID) {
		return false, nil
	}
	t.known.Add(order.ID)
	t.orders = append([]model.Order{order}, t.orders...)
	t.observed = append([]model.Order{order}, t.observed...)

	return true, t.cache.SaveOrders(ctx, t.orders, t.refreshedAt)
}

// Orders 当前已知订单的副本，最新的在前
func (t *OrderTracker) Orders() []model.Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.Order(nil), t.orders...)
}

func (t *OrderTracker) Primed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.primed
}

// Forget 清空已知集合，回到冷启动状态（退出登录或重置时）
func (t *OrderTracker) Forget() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders = nil
	t.observed = nil
	t.known = KeySet{}
	t.primed = false
	t.refreshedAt = time.Time{}
}

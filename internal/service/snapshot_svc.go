package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shopfront_console/internal/model"
	"shopfront_console/internal/repository"
)

// ==================== 本地快照 ====================

// Snapshot 最近一次成功全量拉取的结果
// 只用于启动时立即渲染，远端永远是权威
type Snapshot struct {
	Orders              []model.Order
	OrdersRefreshedAt   time.Time
	Products            []model.Product
	ProductsRefreshedAt time.Time
}

// IsEmpty 从未成功拉取过
func (s Snapshot) IsEmpty() bool {
	return s.OrdersRefreshedAt.IsZero() && s.ProductsRefreshedAt.IsZero() &&
		len(s.Orders) == 0 && len(s.Products) == 0
}

type orderSnapshotEntry struct {
	RefreshedAt time.Time     `json:"refreshed_at"`
	Items       []model.Order `json:"items"`
}

type productSnapshotEntry struct {
	RefreshedAt time.Time       `json:"refreshed_at"`
	Items       []model.Product `json:"items"`
}

// SnapshotCache 订单与商品快照的本地持久化
// 订单和商品分键存储，各自缺失或损坏互不影响
type SnapshotCache struct {
	repo repository.LocalStateRepository
	log  *zap.Logger
}

func NewSnapshotCache(repo repository.LocalStateRepository, log *zap.Logger) *SnapshotCache {
	return &SnapshotCache{repo: repo, log: log.Named("snapshot")}
}

// Load 读取快照。缺失或损坏都按空处理，不返回错误
func (c *SnapshotCache) Load(ctx context.Context) Snapshot {
	var snap Snapshot

	var orders orderSnapshotEntry
	if c.read(ctx, model.LocalKeyOrderSnapshot, &orders) {
		snap.Orders = orders.Items
		snap.OrdersRefreshedAt = orders.RefreshedAt
	}

	var products productSnapshotEntry
	if c.read(ctx, model.LocalKeyProductSnapshot, &products) {
		snap.Products = products.Items
		snap.ProductsRefreshedAt = products.RefreshedAt
	}

	return snap
}

func (c *SnapshotCache) read(ctx context.Context, key model.LocalKey, out any) bool {
	raw, ok, err := c.repo.Get(ctx, key)
	if err != nil {
		c.log.Warn("读取快照失败，按空处理", zap.String("key", string(key)), zap.Error(err))
		return false
	}
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		c.log.Warn("快照已损坏，按空处理", zap.String("key", string(key)), zap.Error(err))
		return false
	}
	return true
}

// Save 整体覆盖写入，调用返回时已落盘
func (c *SnapshotCache) Save(ctx context.Context, snap Snapshot) error {
	if err := c.SaveOrders(ctx, snap.Orders, snap.OrdersRefreshedAt); err != nil {
		return err
	}
	return c.SaveProducts(ctx, snap.Products, snap.ProductsRefreshedAt)
}

func (c *SnapshotCache) SaveOrders(ctx context.Context, orders []model.Order, refreshedAt time.Time) error {
	return c.write(ctx, model.LocalKeyOrderSnapshot, orderSnapshotEntry{RefreshedAt: refreshedAt, Items: orders})
}

func (c *SnapshotCache) SaveProducts(ctx context.Context, products []model.Product, refreshedAt time.Time) error {
	return c.write(ctx, model.LocalKeyProductSnapshot, productSnapshotEntry{RefreshedAt: refreshedAt, Items: products})
}

func (c *SnapshotCache) write(ctx context.Context, key model.LocalKey, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化快照失败: %w", err)
	}
	if err := c.repo.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("写入快照失败: %w", err)
	}
	return nil
}

// Clear 清空两类快照
func (c *SnapshotCache) Clear(ctx context.Context) error {
	return c.repo.Delete(ctx, model.LocalKeyOrderSnapshot, model.LocalKeyProductSnapshot)
}

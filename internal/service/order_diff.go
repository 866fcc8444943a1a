package service

import "shopfront_console/internal/model"

// ==================== 订单去重 ====================

// KeySet 订单身份键集合
// nil 表示本会话还没有已知集合（冷启动），与空集合语义不同
type KeySet map[string]struct{}

// NewKeySet 由订单列表构建集合，始终返回非 nil
func NewKeySet(orders []model.Order) KeySet {
	set := make(KeySet, len(orders))
	for i := range orders {
		set[orders[i].ID] = struct{}{}
	}
	return set
}

func (s KeySet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s KeySet) Add(id string) {
	s[id] = struct{}{}
}

// DiffNewOrders 返回 batch 中身份键不在 known 里的订单，保持 batch 原有顺序。
// known 为 nil（冷启动）时一律不算新订单，避免首次拉取时集中提醒。
func DiffNewOrders(known KeySet, batch []model.Order) []model.Order {
	if known == nil {
		return nil
	}

	var fresh []model.Order
	seen := make(map[string]struct{}, len(batch))
	for _, o := range batch {
		if known.Has(o.ID) {
			continue
		}
		// 同一批次内重复出现只算一次
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		fresh = append(fresh, o)
	}
	return fresh
}

// AddAll 把订单的身份键并入集合
func (s KeySet) AddAll(orders []model.Order) {
	for i := range orders {
		s[orders[i].ID] = struct{}{}
	}
}

// KeepObserved 全量结果前补上 batch 里没有的已观测订单
// 订阅在拉取途中送达的订单不在这次的 batch 里，不能因此从列表中消失
func KeepObserved(observed, batch []model.Order) []model.Order {
	if len(observed) == 0 {
		return append([]model.Order(nil), batch...)
	}
	inBatch := NewKeySet(batch)
	merged := make([]model.Order, 0, len(observed)+len(batch))
	for _, o := range observed {
		if !inBatch.Has(o.ID) {
			inBatch.Add(o.ID)
			merged = append(merged, o)
		}
	}
	return append(merged, batch...)
}

package service

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// ==================== 应用内提示 ====================

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DefaultToastTTL 非常驻提示的展示时长
const DefaultToastTTL = 10 * time.Second

// Toast 一条应用内提示
type Toast struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id,omitempty"`
	Message    string    `json:"message"`
	Severity   Severity  `json:"severity"`
	Persistent bool      `json:"persistent"`
	CreatedAt  time.Time `json:"created_at"`
}

type toastEntry struct {
	toast Toast
	timer *clock.Timer
}

// ToastBoard 单个上下文内的提示板
// 每个非常驻提示持有一个到期定时器，手动关闭时同时停掉
type ToastBoard struct {
	mu       sync.Mutex
	clock    clock.Clock
	ttl      time.Duration
	entries  map[string]*toastEntry
	order    []string
	onExpire func(Toast)
	closed   bool
}

// NewToastBoard onExpire 在提示自动过期后调用，不持有内部锁
func NewToastBoard(clk clock.Clock, ttl time.Duration, onExpire func(Toast)) *ToastBoard {
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	return &ToastBoard{
		clock:    clk,
		ttl:      ttl,
		entries:  make(map[string]*toastEntry),
		onExpire: onExpire,
	}
}

// Push 分配身份与时间后上板，返回最终的提示
func (b *ToastBoard) Push(t Toast) Toast {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Severity == "" {
		t.Severity = SeverityInfo
	}
	t.CreatedAt = b.clock.Now()

	if b.closed {
		return t
	}

	entry := &toastEntry{toast: t}
	if !t.Persistent {
		id := t.ID
		entry.timer = b.clock.AfterFunc(b.ttl, func() { b.expire(id) })
	}
	b.entries[t.ID] = entry
	b.order = append(b.order, t.ID)
	return t
}

func (b *ToastBoard) expire(id string) {
	b.mu.Lock()
	entry, ok := b.entries[id]
	if ok {
		b.remove(id)
	}
	b.mu.Unlock()

	if ok && b.onExpire != nil {
		b.onExpire(entry.toast)
	}
}

// Dismiss 手动关闭，返回提示是否还在板上
func (b *ToastBoard) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[id]
	if !ok {
		return false
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	b.remove(id)
	return true
}

func (b *ToastBoard) remove(id string) {
	delete(b.entries, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Active 当前在板上的提示，按创建顺序
func (b *ToastBoard) Active() []Toast {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Toast, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.entries[id].toast)
	}
	return out
}

// Close 停掉所有定时器，之后的 Push 不再上板
func (b *ToastBoard) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range b.entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	b.entries = make(map[string]*toastEntry)
	b.order = nil
	b.closed = true
}

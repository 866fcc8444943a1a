package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"shopfront_console/internal/model"
	"shopfront_console/internal/service"
)

// BackgroundControl 后台上下文对标签页暴露的能力
type BackgroundControl interface {
	// StartBackgroundSync 重新建立订单订阅
	StartBackgroundSync()
	// RequestSync 触发一次全量同步，不阻塞
	RequestSync()
	// OrdersSnapshot 当前已知订单以及是否已预热
	OrdersSnapshot() ([]model.Order, bool)
	TriggerNotification(ctx context.Context, n service.Notification) error
	DetectCapability(ctx context.Context, supported bool)
}

// ClickAction 点击系统通知后的动作
type ClickAction struct {
	Action    string `json:"action"` // focus | open
	SessionID string `json:"session_id,omitempty"`
	URL       string `json:"url"`
}

// Hub 所有打开的标签页，实现 service.Broadcaster
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string // 打开顺序，最近的在最后
	control  BackgroundControl

	settings service.AlertSettings
	clock    clock.Clock
	toastTTL time.Duration
	rootURL  string
	log      *zap.Logger
}

func NewHub(settings service.AlertSettings, clk clock.Clock, toastTTL time.Duration, rootURL string, log *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		settings: settings,
		clock:    clk,
		toastTTL: toastTTL,
		rootURL:  rootURL,
		log:      log.Named("hub"),
	}
}

// SetControl 注入后台控制（任务管理器晚于 hub 创建）
func (h *Hub) SetControl(c BackgroundControl) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.control = c
}

// Open 登记一个新标签页；调用方负责启动 Run
func (h *Hub) Open(ctx context.Context, notificationsSupported bool) *Session {
	h.mu.Lock()
	control := h.control
	h.mu.Unlock()

	// 先检测能力，新会话启动时才能读到正确的权限状态
	if control != nil {
		control.DetectCapability(ctx, notificationsSupported)
	}

	s := newSession(control, h.settings, h.clock, h.toastTTL, h.log)

	h.mu.Lock()
	h.sessions[s.id] = s
	h.order = append(h.order, s.id)
	h.mu.Unlock()

	h.log.Info("控制台标签页已连接", zap.String("session_id", s.id), zap.Int("open", h.Count()))
	return s
}

// Close 注销并关闭标签页
func (h *Hub) Close(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s.id]; ok {
		delete(h.sessions, s.id)
		for i, id := range h.order {
			if id == s.id {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
	}
	h.mu.Unlock()

	s.Close()
	h.log.Info("控制台标签页已断开", zap.String("session_id", s.id))
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) each(fn func(*Session)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range h.order {
		fn(h.sessions[id])
	}
}

func (h *Hub) latest() *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.order) == 0 {
		return nil
	}
	return h.sessions[h.order[len(h.order)-1]]
}

// ==================== service.Broadcaster ====================

func (h *Hub) BroadcastNewOrder(order model.Order) {
	o := order
	h.each(func(s *Session) {
		s.deliver(Envelope{Type: MsgNewOrderDetected, Order: &o})
	})
}

func (h *Hub) BroadcastToast(t service.Toast) {
	h.each(func(s *Session) {
		// 每个标签页各自分配身份与定时器
		copied := t
		s.deliver(Envelope{Type: MsgToast, Toast: &copied})
	})
}

// ShowNotification 交给最近打开的标签页显示
func (h *Hub) ShowNotification(n service.Notification) error {
	s := h.latest()
	if s == nil {
		return service.ErrNoNotificationSurface
	}
	s.deliver(Envelope{Type: MsgShowNotification, Notification: &n})
	return nil
}

// ==================== 同步结果扇出 ====================

// BroadcastRefresh 全量同步后的权威订单列表
func (h *Hub) BroadcastRefresh(orders []model.Order) {
	h.each(func(s *Session) {
		s.deliver(Envelope{Type: MsgOrdersRefreshed, Orders: orders})
	})
}

func (h *Hub) BroadcastSyncStatus(state, errMsg string) {
	h.each(func(s *Session) {
		s.deliver(Envelope{Type: MsgSyncStatus, State: state, Error: errMsg})
	})
}

// ==================== 通知点击 ====================

// ResolveClick 有打开的标签页则聚焦最近的一个，否则在控制台根地址打开新窗口
func (h *Hub) ResolveClick() ClickAction {
	s := h.latest()
	if s == nil {
		return ClickAction{Action: "open", URL: h.rootURL}
	}
	s.deliver(Envelope{Type: MsgFocus, URL: h.rootURL})
	return ClickAction{Action: "focus", SessionID: s.id, URL: h.rootURL}
}

package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"shopfront_console/internal/metrics"
	"shopfront_console/internal/model"
)

// 新订单的发现路径
const (
	SourceFeed = "feed"
	SourceSync = "sync"
)

// InstallGuidance 设备不支持系统通知时的常驻引导
const InstallGuidance = "This device cannot show system notifications. Add the console to your home screen to receive new-order alerts."

// ==================== 依赖接口 ====================

// Broadcaster 前台上下文的扇出通道
type Broadcaster interface {
	// BroadcastNewOrder 发给每个打开的标签页
	BroadcastNewOrder(order model.Order)
	BroadcastToast(toast Toast)
	// ShowNotification 前台通知面：交给最近打开的标签页显示，没有标签页时返回 ErrNoNotificationSurface
	ShowNotification(n Notification) error
}

// AlertSettings 持久化的提醒偏好
type AlertSettings interface {
	Permission() Permission
	SetPermission(ctx context.Context, p Permission) error
	SoundEnabled() bool
	SoundSource() string
}

// ==================== NotificationDispatcher ====================

// NotificationDispatcher 后台上下文里唯一发出系统通知的地方
// 同一标签在进程生命周期内只投递一次
type NotificationDispatcher struct {
	mu        sync.Mutex
	notified  map[string]struct{}
	settings  AlertSettings
	notifier  SystemNotifier
	broadcast Broadcaster
	metrics   *metrics.Metrics
	rootURL   string
	log       *zap.Logger
}

// NewNotificationDispatcher notifier 为 nil 表示没有后台通知面，退回前台
func NewNotificationDispatcher(settings AlertSettings, notifier SystemNotifier, rootURL string, m *metrics.Metrics, log *zap.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{
		notified: make(map[string]struct{}),
		settings: settings,
		notifier: notifier,
		metrics:  m,
		rootURL:  rootURL,
		log:      log.Named("notify"),
	}
}

// SetBroadcaster 注入前台扇出（hub 晚于 dispatcher 创建）
func (d *NotificationDispatcher) SetBroadcaster(b Broadcaster) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.broadcast = b
}

func (d *NotificationDispatcher) broadcaster() Broadcaster {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.broadcast
}

// DispatchNewOrders 每个新订单：扇出到所有标签页，权限允许时发一次系统通知
func (d *NotificationDispatcher) DispatchNewOrders(ctx context.Context, source string, orders []model.Order) {
	if len(orders) == 0 {
		return
	}
	d.metrics.OrderDetected(source, len(orders))

	b := d.broadcaster()
	for _, order := range orders {
		d.log.Info("发现新订单",
			zap.String("source", source),
			zap.String("order_id", order.ID),
			zap.String("display_id", order.DisplayID),
		)
		if b != nil {
			b.BroadcastNewOrder(order)
		}
		if err := d.notify(ctx, BuildOrderNotification(order, d.rootURL)); err != nil {
			d.log.Warn("系统通知未送达", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
}

// TriggerNotification 标签页请求由后台显示一条系统通知
func (d *NotificationDispatcher) TriggerNotification(ctx context.Context, n Notification) error {
	if n.Tag == "" {
		return fmt.Errorf("通知缺少标签")
	}
	n.RequireInteraction = true
	if n.URL == "" {
		n.URL = d.rootURL
	}
	return d.notify(ctx, n)
}

func (d *NotificationDispatcher) notify(ctx context.Context, n Notification) error {
	perm := d.settings.Permission()
	if !perm.AllowsSystemNotification() {
		d.metrics.Notification("system", "skipped_"+string(perm))
		return nil
	}

	d.mu.Lock()
	if _, done := d.notified[n.Tag]; done {
		d.mu.Unlock()
		d.metrics.Notification("system", "duplicate")
		return nil
	}
	d.notified[n.Tag] = struct{}{}
	d.mu.Unlock()

	channel, err := d.deliver(ctx, n)
	if err != nil {
		d.metrics.Notification(channel, "failed")
		return err
	}
	d.metrics.Notification(channel, "sent")
	return nil
}

// deliver 优先后台通知面，失败或未配置时交给前台
func (d *NotificationDispatcher) deliver(ctx context.Context, n Notification) (string, error) {
	if d.notifier != nil {
		err := d.notifier.Notify(ctx, n)
		if err == nil {
			return d.notifier.Name(), nil
		}
		d.log.Warn("后台通知面失败，改用前台", zap.String("tag", n.Tag), zap.Error(err))
	}

	b := d.broadcaster()
	if b == nil {
		return "foreground", ErrNoNotificationSurface
	}
	return "foreground", b.ShowNotification(n)
}

// RequestPermission 运营人员显式给出授权结果
func (d *NotificationDispatcher) RequestPermission(ctx context.Context, result Permission) (Permission, error) {
	current := d.settings.Permission()
	next, err := current.Resolve(result)
	if err != nil {
		return current, err
	}
	if next == current {
		return current, nil
	}
	if err := d.settings.SetPermission(ctx, next); err != nil {
		return current, fmt.Errorf("保存通知权限失败: %w", err)
	}
	d.log.Info("通知权限变更", zap.String("from", string(current)), zap.String("to", string(next)))
	return next, nil
}

// DetectCapability 标签页上报系统通知能力
// 有后台通知面时始终视为支持
func (d *NotificationDispatcher) DetectCapability(ctx context.Context, supported bool) {
	if d.notifier != nil {
		supported = true
	}
	current := d.settings.Permission()

	switch {
	case !supported && current != PermissionUnsupported:
		if err := d.settings.SetPermission(ctx, PermissionUnsupported); err != nil {
			d.log.Error("保存通知权限失败", zap.Error(err))
			return
		}
		d.log.Warn("设备不支持系统通知，已提示添加到主屏幕")
		if b := d.broadcaster(); b != nil {
			b.BroadcastToast(Toast{Message: InstallGuidance, Severity: SeverityWarning, Persistent: true})
		}
	case supported && current == PermissionUnsupported:
		// 能力恢复只回到未询问，不会自动授权
		if err := d.settings.SetPermission(ctx, PermissionUnset); err != nil {
			d.log.Error("保存通知权限失败", zap.Error(err))
		}
	}
}

// IsUnsupported 供新连接的标签页决定是否显示引导
func (d *NotificationDispatcher) IsUnsupported() bool {
	return d.settings.Permission() == PermissionUnsupported
}

// Notified 标签是否已投递过
func (d *NotificationDispatcher) Notified(tag string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.notified[tag]
	return ok
}


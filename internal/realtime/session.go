package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"shopfront_console/internal/model"
	"shopfront_console/internal/service"
)

const (
	inboxSize  = 256
	outboxSize = 256
)

type event struct {
	env        Envelope
	fromClient bool
}

// Session 一个打开的控制台标签页
// 所有事件在 Run 的单个 goroutine 里按到达顺序处理；订单列表与提示板都只属于这个标签页
type Session struct {
	id       string
	openedAt time.Time
	control  BackgroundControl
	settings service.AlertSettings
	log      *zap.Logger

	inbox  chan event
	outbox chan Envelope
	done   chan struct{}
	once   sync.Once

	// 以下只在事件循环内访问
	orders   []model.Order
	known    service.KeySet
	observed []model.Order // 上次刷新之后推送来的订单
	primed   bool
	toasts   *service.ToastBoard
}

func newSession(control BackgroundControl, settings service.AlertSettings, clk clock.Clock, toastTTL time.Duration, log *zap.Logger) *Session {
	id := uuid.NewString()
	s := &Session{
		id:       id,
		openedAt: clk.Now(),
		control:  control,
		settings: settings,
		log:      log.Named("session").With(zap.String("session_id", id)),
		inbox:    make(chan event, inboxSize),
		outbox:   make(chan Envelope, outboxSize),
		done:     make(chan struct{}),
		known:    service.KeySet{},
	}
	s.toasts = service.NewToastBoard(clk, toastTTL, func(t service.Toast) {
		s.post(event{env: Envelope{Type: MsgToastDismissed, ToastID: t.ID}})
	})
	return s
}

func (s *Session) ID() string { return s.id }

// Outbound 发往标签页的消息
func (s *Session) Outbound() <-chan Envelope { return s.outbox }

// Done 会话结束后关闭
func (s *Session) Done() <-chan struct{} { return s.done }

// HandleClient 标签页发来的消息，只接受允许的类型
func (s *Session) HandleClient(env Envelope) {
	if !env.Type.fromClient() {
		s.log.Warn("忽略标签页发来的消息", zap.String("type", string(env.Type)))
		return
	}
	s.post(event{env: env, fromClient: true})
}

func (s *Session) deliver(env Envelope) {
	s.post(event{env: env})
}

func (s *Session) post(ev event) {
	select {
	case <-s.done:
	case s.inbox <- ev:
	default:
		s.log.Warn("会话事件队列已满，丢弃消息", zap.String("type", string(ev.env.Type)))
	}
}

// Close 结束会话并停掉所有提示定时器，可重复调用
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		s.toasts.Close()
	})
}

// Run 事件循环，直到 ctx 结束或会话关闭
func (s *Session) Run(ctx context.Context) {
	defer s.Close()

	if s.control != nil {
		orders, primed := s.control.OrdersSnapshot()
		s.orders = orders
		s.known = service.NewKeySet(orders)
		s.primed = primed
	}
	s.emit(Envelope{Type: MsgOrdersSnapshot, Orders: s.orders})

	if s.settings.Permission() == service.PermissionUnsupported {
		s.raise(service.Toast{Message: service.InstallGuidance, Severity: service.SeverityWarning, Persistent: true})
	}

	// 打开控制台即触发一次全量同步
	if s.control != nil {
		s.control.RequestSync()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case ev := <-s.inbox:
			if ev.fromClient {
				s.handleClient(ctx, ev.env)
			} else {
				s.handleBackground(ev.env)
			}
		}
	}
}

func (s *Session) handleBackground(env Envelope) {
	switch env.Type {
	case MsgNewOrderDetected:
		if env.Order == nil {
			return
		}
		if s.known.Has(env.Order.ID) {
			return
		}
		s.known.Add(env.Order.ID)
		s.orders = append([]model.Order{*env.Order}, s.orders...)
		s.observed = append([]model.Order{*env.Order}, s.observed...)
		s.emit(env)
		s.alert(*env.Order)

	case MsgOrdersRefreshed:
		var known service.KeySet
		if s.primed {
			known = s.known
		}
		fresh := service.DiffNewOrders(known, env.Orders)

		// 已知集合只增不减，刷新途中推送来的订单不会在下次刷新时重复提醒
		s.orders = service.KeepObserved(s.observed, env.Orders)
		s.observed = nil
		s.known.AddAll(env.Orders)
		s.primed = true
		s.emit(Envelope{Type: MsgOrdersRefreshed, Orders: s.orders})
		for _, o := range fresh {
			s.alert(o)
		}

	case MsgToast:
		if env.Toast != nil {
			s.raise(*env.Toast)
		}

	default:
		// SYNC_STATUS / TOAST_DISMISSED / SHOW_NOTIFICATION / FOCUS 原样转发
		s.emit(env)
	}
}

func (s *Session) handleClient(ctx context.Context, env Envelope) {
	if s.control == nil && env.Type != MsgDismissToast && env.Type != MsgAudioFailed {
		return
	}
	switch env.Type {
	case MsgStartBackgroundSync:
		s.control.StartBackgroundSync()

	case MsgTriggerNotification:
		if env.Notification == nil {
			return
		}
		if err := s.control.TriggerNotification(ctx, *env.Notification); err != nil {
			s.log.Warn("请求系统通知失败", zap.String("tag", env.Notification.Tag), zap.Error(err))
		}

	case MsgDismissToast:
		if s.toasts.Dismiss(env.ToastID) {
			s.emit(Envelope{Type: MsgToastDismissed, ToastID: env.ToastID})
		}

	case MsgAudioFailed:
		// 浏览器拦截自动播放属于预期情况
		s.log.Warn("提示音播放失败", zap.String("error", env.Error))
	}
}

// alert 新订单的标签页内提醒：提示必发，提示音仅在开启时
func (s *Session) alert(order model.Order) {
	label := order.DisplayID
	if label == "" {
		label = order.ID
	}
	s.raise(service.Toast{
		OrderID:  order.ID,
		Message:  "New order " + label + " from " + order.CustomerName,
		Severity: service.SeveritySuccess,
	})

	if s.settings.SoundEnabled() {
		s.emit(Envelope{Type: MsgPlaySound, Sound: s.settings.SoundSource()})
	}
}

func (s *Session) raise(t service.Toast) {
	t = s.toasts.Push(t)
	s.emit(Envelope{Type: MsgToast, Toast: &t})
}

// Toasts 当前在板上的提示
func (s *Session) Toasts() []service.Toast {
	return s.toasts.Active()
}

func (s *Session) emit(env Envelope) {
	select {
	case s.outbox <- env:
	default:
		s.log.Warn("标签页发送缓冲已满，丢弃消息", zap.String("type", string(env.Type)))
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"shopfront_console/internal/model"
)

// ==================== 系统通知 ====================

// Notification 系统通知载荷
// Tag 相同的通知由系统替换而不是叠加
type Notification struct {
	Title              string `json:"title"`
	Body               string `json:"body"`
	Tag                string `json:"tag"`
	RequireInteraction bool   `json:"require_interaction"`
	OrderID            string `json:"order_id,omitempty"`
	URL                string `json:"url,omitempty"`
}

// SystemNotifier 后台通知面，不依赖任何打开的窗口
type SystemNotifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// ErrNoNotificationSurface 没有任何可用的通知面
var ErrNoNotificationSurface = errors.New("没有可用的通知面")

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount 分 -> "1,234.50 USD"
func FormatAmount(cents int64, currency string) string {
	return amountPrinter.Sprintf("%.2f %s", float64(cents)/100, currency)
}

// BuildOrderNotification 新订单的系统通知
func BuildOrderNotification(order model.Order, rootURL string) Notification {
	label := order.DisplayID
	if label == "" && len(order.ID) >= 8 {
		label = order.ID[:8]
	}

	body := order.CustomerName
	if order.City != "" {
		body += " - " + order.City
	}
	body += " - " + FormatAmount(order.TotalAmount, order.Currency)

	return Notification{
		Title:              "New order #" + label,
		Body:               body,
		Tag:                order.NotificationTag(),
		RequireInteraction: true,
		OrderID:            order.ID,
		URL:                rootURL,
	}
}

// ==================== 推送网关实现 ====================

// PushNotifier 通过 HTTP 推送网关投递系统通知
type PushNotifier struct {
	client   *resty.Client
	endpoint string
}

func NewPushNotifier(endpoint, token string) *PushNotifier {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &PushNotifier{client: client, endpoint: endpoint}
}

func (p *PushNotifier) Name() string { return "push" }

func (p *PushNotifier) Notify(ctx context.Context, n Notification) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(n).
		Post(p.endpoint)
	if err != nil {
		return fmt.Errorf("推送网关请求失败: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("推送网关拒绝 (Status %d): %s", resp.StatusCode(), resp.String())
	}
	return nil
}

package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ==================== 订单状态 ====================

// OrderStatus 订单状态（封闭集合）
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"   // 待确认
	OrderStatusConfirmed OrderStatus = "confirmed" // 已确认
	OrderStatusShipped   OrderStatus = "shipped"   // 已发货
	OrderStatusDelivered OrderStatus = "delivered" // 已送达
	OrderStatusCancelled OrderStatus = "cancelled" // 已取消
)

// PaymentMethodCOD 货到付款，唯一支持的支付方式
const PaymentMethodCOD = "cod"

// ErrInvalidStatusTransition 非法的状态流转
var ErrInvalidStatusTransition = errors.New("订单状态不允许此流转")

// 运营人员可执行的流转，状态从不自动推断
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// Valid 是否属于已知状态
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo 检查是否允许流转到目标状态
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ==================== Order 订单 ====================

// Order 订单。ID 由服务端分配，跨会话稳定，是唯一的身份键；
// DisplayID 只用于展示，不参与去重。
// json 标签与列名一致，变更通知中的行数据可直接解码。
type Order struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	DisplayID string `gorm:"size:32;index" json:"display_id"`

	// 顾客信息
	CustomerName  string `gorm:"size:255" json:"customer_name"`
	CustomerPhone string `gorm:"size:64" json:"customer_phone"`
	CustomerEmail string `gorm:"size:255" json:"customer_email"`
	Address       string `gorm:"size:500" json:"address"`
	City          string `gorm:"size:128;index" json:"city"`
	Note          string `gorm:"type:text" json:"note"`

	// 金额（分）
	TotalAmount   int64  `json:"total_amount"`
	Currency      string `gorm:"size:10;default:USD" json:"currency"`
	PaymentMethod string `gorm:"size:16;default:cod" json:"payment_method"`

	Status OrderStatus `gorm:"size:32;index;default:pending" json:"status"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`

	// 变更通知原始载荷
	RawPayload datatypes.JSON `gorm:"type:jsonb" json:"-"`
}

func (*Order) TableName() string {
	return "orders"
}

// BeforeCreate 分配身份键
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = PaymentMethodCOD
	}
	return nil
}

// GetTotal 总金额（元）
func (o *Order) GetTotal() float64 {
	return float64(o.TotalAmount) / 100
}

// NotificationTag 通知去重标签，同一订单重复投递时替换而非堆叠
func (o *Order) NotificationTag() string {
	return "order-" + o.ID
}

// ==================== OrderItem 订单项 ====================

// OrderItem 订单行项目
type OrderItem struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   string `gorm:"size:36;index;not null" json:"order_id"`
	ProductID string `gorm:"size:36;index" json:"product_id"`
	VariantID string `gorm:"size:36" json:"variant_id,omitempty"`
	Title     string `gorm:"size:255" json:"title"`

	Quantity    int   `gorm:"default:1" json:"quantity"`
	PriceAmount int64 `json:"price_amount"`
}

func (*OrderItem) TableName() string {
	return "order_items"
}

// GetLineTotal 行小计（分）
func (i *OrderItem) GetLineTotal() int64 {
	return i.PriceAmount * int64(i.Quantity)
}

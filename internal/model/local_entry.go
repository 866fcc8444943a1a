package model

import "time"

// LocalKey 本地持久化状态的键
type LocalKey string

// 每个键独立读取，缺失时各自回落默认值
const (
	LocalKeyOrderSnapshot   LocalKey = "snapshot.orders"
	LocalKeyProductSnapshot LocalKey = "snapshot.products"
	LocalKeyCart            LocalKey = "storefront.cart"
	LocalKeySessionID       LocalKey = "storefront.session_id"
	LocalKeySoundEnabled    LocalKey = "console.sound_enabled"
	LocalKeyCustomSound     LocalKey = "console.custom_sound"
	LocalKeyOperatorToken   LocalKey = "console.operator_token"
	LocalKeyPermission      LocalKey = "console.notification_permission"
)

// LocalEntry 本地键值存储的一行，存放在设备上的 SQLite 中
type LocalEntry struct {
	Key       string `gorm:"primaryKey;column:entry_key;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (*LocalEntry) TableName() string {
	return "local_entries"
}

// CartLine 购物车行
type CartLine struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

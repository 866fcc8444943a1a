package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductState 商品上下架状态
const (
	ProductStateActive   = "active"
	ProductStateInactive = "inactive"
)

// Product 商品，仅由后台维护；前台只持有只读缓存
type Product struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Title       string `gorm:"size:255" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Category    string `gorm:"size:64;index" json:"category"`
	// 可能是公网地址，也可能是上传失败后内联的 data URL
	ImageURL string `gorm:"type:text" json:"image_url"`
	State    string `gorm:"size:20;index;default:active" json:"state"`

	// --- 价格与库存 ---
	PriceAmount int64  `gorm:"default:0" json:"price_amount"`
	Currency    string `gorm:"size:10;default:USD" json:"currency"`
	Inventory   int    `gorm:"default:0" json:"inventory"`

	Variants []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (*Product) TableName() string {
	return "products"
}

// BeforeCreate 分配身份键
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// GetPrice 单价（元）
func (p *Product) GetPrice() float64 {
	return float64(p.PriceAmount) / 100
}

// PriceFor 计算指定规格的价格，规格有覆盖价时优先
func (p *Product) PriceFor(variantID string) int64 {
	for _, v := range p.Variants {
		if v.ID == variantID && v.PriceOverride != nil {
			return *v.PriceOverride
		}
	}
	return p.PriceAmount
}

// ProductVariant 商品规格
type ProductVariant struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	ProductID string `gorm:"size:36;index;not null" json:"product_id"`
	Name      string `gorm:"size:128" json:"name"`
	SKU       string `gorm:"size:100;index" json:"sku"`
	// nil 表示沿用商品价格
	PriceOverride *int64 `json:"price_override,omitempty"`
	Inventory     int    `gorm:"default:0" json:"inventory"`
}

func (*ProductVariant) TableName() string {
	return "product_variants"
}

// BeforeCreate 分配身份键
func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

package dto

import "shopfront_console/internal/model"

// ==================== 商品 ====================

// ListProductsRequest 商品列表请求
type ListProductsRequest struct {
	State    string `form:"state"`
	Category string `form:"category"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=50"`
}

// ListProductsResponse 商品列表响应
type ListProductsResponse struct {
	Total int64           `json:"total"`
	List  []model.Product `json:"list"`
}

// VariantInput 商品规格
type VariantInput struct {
	Name          string `json:"name" binding:"required"`
	SKU           string `json:"sku"`
	PriceOverride *int64 `json:"price_override"`
	Inventory     int    `json:"inventory"`
}

// ProductInput 新建/编辑商品
type ProductInput struct {
	Title       string         `json:"title" binding:"required,max=255"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	State       string         `json:"state" binding:"omitempty,oneof=active inactive"`
	PriceAmount int64          `json:"price_amount" binding:"gte=0"`
	Currency    string         `json:"currency"`
	Inventory   int            `json:"inventory" binding:"gte=0"`
	Variants    []VariantInput `json:"variants"`
}

// CatalogResponse 前台商品目录；Stale 为 true 表示网络失败，数据来自本地快照
type CatalogResponse struct {
	Products []model.Product `json:"products"`
	Stale    bool            `json:"stale"`
}

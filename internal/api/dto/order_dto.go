package dto

import "shopfront_console/internal/model"

// ==================== 订单列表查询 ====================

// ListOrdersRequest 订单列表请求
type ListOrdersRequest struct {
	Status   string `form:"status"` // pending, confirmed, shipped, delivered, cancelled
	City     string `form:"city"`
	Keyword  string `form:"keyword"` // 搜索：订单号、顾客名、电话
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
}

// ListOrdersResponse 订单列表响应
type ListOrdersResponse struct {
	Total int64         `json:"total"`
	List  []model.Order `json:"list"`
}

// UpdateOrderStatusRequest 运营变更订单状态
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ==================== 下单 ====================

// CheckoutRequest 货到付款下单，商品取自当前购物车
type CheckoutRequest struct {
	CustomerName  string `json:"customer_name" binding:"required,max=255"`
	CustomerPhone string `json:"customer_phone" binding:"required,max=64"`
	CustomerEmail string `json:"customer_email" binding:"omitempty,email,max=255"`
	Address       string `json:"address" binding:"required,max=500"`
	City          string `json:"city" binding:"required,max=128"`
	Note          string `json:"note" binding:"max=1000"`
}

// RefreshOrdersResponse 手动刷新结果
type RefreshOrdersResponse struct {
	Total    int           `json:"total"`
	NewCount int           `json:"new_count"`
	New      []model.Order `json:"new"`
}

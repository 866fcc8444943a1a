package dto

import "shopfront_console/internal/model"

// ==================== 提醒设置 ====================

// AlertSettingsResponse 提醒设置
type AlertSettingsResponse struct {
	SoundEnabled bool   `json:"sound_enabled"`
	SoundSource  string `json:"sound_source"`
	CustomSound  bool   `json:"custom_sound"`
	Permission   string `json:"permission"`
}

// UpdateAlertSettingsRequest 开关提示音
type UpdateAlertSettingsRequest struct {
	SoundEnabled *bool `json:"sound_enabled" binding:"required"`
}

// PermissionRequest 运营显式授权结果
type PermissionRequest struct {
	Result string `json:"result" binding:"required,oneof=granted denied"`
}

// ==================== 购物车 ====================

// AddCartLineRequest 加入购物车
type AddCartLineRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity" binding:"required,gte=1,lte=99"`
}

// CartResponse 购物车
type CartResponse struct {
	SessionID string           `json:"session_id"`
	Lines     []model.CartLine `json:"lines"`
}

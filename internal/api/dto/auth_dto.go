package dto

import "time"

// ==================== 登录 ====================

// LoginRequest 运营口令登录
type LoginRequest struct {
	Passphrase string `json:"passphrase" binding:"required,min=3,max=200"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopfront_console/internal/api/dto"
	"shopfront_console/internal/service"
)

// AuthController 运营登录
type AuthController struct {
	authSvc *service.AuthService
}

func NewAuthController(authSvc *service.AuthService) *AuthController {
	return &AuthController{authSvc: authSvc}
}

// Login 口令登录，签发运营令牌
// POST /api/auth/login
func (c *AuthController) Login(ctx *gin.Context) {
	var req dto.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	token, expiresAt, err := c.authSvc.Login(ctx.Request.Context(), req.Passphrase)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": dto.LoginResponse{AccessToken: token, ExpiresAt: expiresAt},
	})
}

// Logout 清除本地令牌与登录态数据，保留提醒偏好
// POST /api/auth/logout
func (c *AuthController) Logout(ctx *gin.Context) {
	if err := c.authSvc.Logout(ctx.Request.Context()); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shopfront_console/internal/service"
)

// TokenParser 校验运营令牌
type TokenParser interface {
	ParseToken(tokenString string) (*service.OperatorClaims, error)
}

// Context Keys
const (
	ContextKeyClaims = "operator_claims"
)

// ==================== Gin 中间件 ====================

// OperatorAuth 运营令牌认证中间件
// 浏览器的 websocket 不能带请求头，允许用查询参数 token 代替
func OperatorAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "未提供认证信息",
			})
			return
		}

		claims, err := parser.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "Token 无效或已过期",
			})
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return c.Query("token")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// ==================== 辅助函数 ====================

// GetOperatorClaims 从 Context 获取运营令牌声明
func GetOperatorClaims(c *gin.Context) *service.OperatorClaims {
	if claims, exists := c.Get(ContextKeyClaims); exists {
		return claims.(*service.OperatorClaims)
	}
	return nil
}

package middleware

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RefreshKey 手动刷新订单的限流键
const RefreshKey = "console:orders_refresh"

// ==================== 刷新限流中间件 ====================

// RefreshRateLimit 手动刷新限流中间件
//
// 使用示例:
//
//	console.POST("/orders/refresh",
//	    middleware.RefreshRateLimit(limiter, middleware.RefreshKey, 5*time.Second),
//	    consoleCtl.RefreshOrders,
//	)
func RefreshRateLimit(limiter *CooldownLimiter, key string, interval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if interval <= 0 {
			c.Next()
			return
		}

		result := limiter.Check(key, interval)
		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			c.Header("Retry-After", fmt.Sprint(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(retryAfter),
				"data": gin.H{
					"retry_after": retryAfter,
				},
			})
			return
		}

		c.Next()
	}
}

// ==================== 辅助函数 ====================

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("刷新冷却中，请 %d 秒后重试", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60
	if remainingSeconds == 0 {
		return fmt.Sprintf("刷新冷却中，请 %d 分钟后重试", minutes)
	}
	return fmt.Sprintf("刷新冷却中，请 %d 分 %d 秒后重试", minutes, remainingSeconds)
}

package router

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopfront_console/internal/controller"
	"shopfront_console/internal/metrics"
	"shopfront_console/internal/middleware"
	"shopfront_console/internal/realtime"
)

// Controllers 控制器集合
type Controllers struct {
	Auth       *controller.AuthController
	Order      *controller.OrderController
	Product    *controller.ProductController
	Console    *controller.ConsoleController
	Storefront *controller.StorefrontController
}

// Options 路由依赖
type Options struct {
	Ctx             context.Context // 标签页事件循环的生命周期
	Auth            middleware.TokenParser
	Hub             *realtime.Hub
	Metrics         *metrics.Metrics
	Limiter         *middleware.CooldownLimiter
	RefreshCooldown time.Duration
	UploadDir       string // 本地存储目录，为空则不挂载 /uploads
	Log             *zap.Logger
}

// SetupRouter 创建引擎并注册所有路由
func SetupRouter(ctl *Controllers, opts *Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.AccessLog(opts.Log))
	InitRoutes(r, ctl, opts)
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctl *Controllers, opts *Options) {
	// GET /metrics
	r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))

	if opts.UploadDir != "" {
		r.Static("/uploads", opts.UploadDir)
	}

	api := r.Group("/api")
	{
		// auth 运营登录
		auth := api.Group("/auth")
		{
			// POST /api/auth/login
			auth.POST("/login", ctl.Auth.Login)
			auth.POST("/logout", middleware.OperatorAuth(opts.Auth), ctl.Auth.Logout)
		}

		// 前台：目录、购物车、下单
		api.GET("/catalog", ctl.Storefront.Catalog)
		cart := api.Group("/cart")
		{
			cart.GET("", ctl.Storefront.GetCart)
			cart.POST("/lines", ctl.Storefront.AddLine)
			cart.DELETE("/lines/:product_id", ctl.Storefront.RemoveLine)
		}
		api.POST("/checkout", ctl.Storefront.Checkout)

		// 系统通知点击落点，不要求登录
		// GET /api/notifications/click
		api.GET("/notifications/click", ctl.Console.NotificationClick)

		console := api.Group("/console", middleware.OperatorAuth(opts.Auth))
		{
			// websocket 无法带请求头，令牌走 ?token=
			// GET /api/console/ws
			console.GET("/ws", opts.Hub.ServeWS(opts.Ctx))

			orders := console.Group("/orders")
			{
				orders.GET("", ctl.Order.List)
				orders.GET("/snapshot", ctl.Console.OrdersSnapshot)
				// POST /api/console/orders/refresh
				orders.POST("/refresh",
					middleware.RefreshRateLimit(opts.Limiter, middleware.RefreshKey, opts.RefreshCooldown),
					ctl.Console.RefreshOrders,
				)
				orders.GET("/:id", ctl.Order.GetByID)
				orders.PUT("/:id/status", ctl.Order.UpdateStatus)
			}

			products := console.Group("/products")
			{
				products.GET("", ctl.Product.List)
				products.POST("", ctl.Product.Create)
				products.GET("/:id", ctl.Product.GetByID)
				products.PUT("/:id", ctl.Product.Update)
				products.DELETE("/:id", ctl.Product.Delete)
				products.POST("/:id/image", ctl.Product.UploadImage)
			}

			alerts := console.Group("/alerts")
			{
				alerts.GET("", ctl.Console.GetAlertSettings)
				alerts.PUT("", ctl.Console.UpdateAlertSettings)
				alerts.POST("/sound", ctl.Console.UploadSound)
				alerts.DELETE("/sound", ctl.Console.ResetSound)
				alerts.POST("/permission", ctl.Console.RequestPermission)
			}

			console.GET("/status", ctl.Console.Status)
			console.GET("/activity", ctl.Console.Activity)
			console.POST("/reset", ctl.Console.Reset)
		}
	}
}

package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopfront_console/internal/api/dto"
	"shopfront_console/internal/model"
	"shopfront_console/internal/service"
)

type OrderController struct {
	orderSvc *service.OrderService
}

func NewOrderController(orderSvc *service.OrderService) *OrderController {
	return &OrderController{orderSvc: orderSvc}
}

// ==================== 订单列表与详情 ====================

// List 订单列表，支持状态、城市、关键词筛选
// GET /api/console/orders
func (c *OrderController) List(ctx *gin.Context) {
	var req dto.ListOrdersRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	resp, err := c.orderSvc.ListOrders(ctx.Request.Context(), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetByID GET /api/console/orders/:id
func (c *OrderController) GetByID(ctx *gin.Context) {
	order, err := c.orderSvc.GetOrder(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": order})
}

// ==================== 状态流转 ====================

// UpdateStatus 推进订单状态
// PUT /api/console/orders/:id/status
func (c *OrderController) UpdateStatus(ctx *gin.Context) {
	var req dto.UpdateOrderStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	order, err := c.orderSvc.UpdateStatus(ctx.Request.Context(), ctx.Param("id"), model.OrderStatus(req.Status))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": order})
}

package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopfront_console/internal/api/dto"
	"shopfront_console/internal/model"
	"shopfront_console/internal/service"
	"shopfront_console/internal/state"
)

// StorefrontController 前台目录、购物车与下单
type StorefrontController struct {
	productSvc *service.ProductService
	orderSvc   *service.OrderService
	appState   *state.AppState
}

func NewStorefrontController(productSvc *service.ProductService, orderSvc *service.OrderService, appState *state.AppState) *StorefrontController {
	return &StorefrontController{
		productSvc: productSvc,
		orderSvc:   orderSvc,
		appState:   appState,
	}
}

// Catalog 上架商品；远端不可用时返回本地快照并标记 stale
// GET /api/catalog
func (c *StorefrontController) Catalog(ctx *gin.Context) {
	products, stale, err := c.productSvc.Catalog(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	ctx.JSON(http.StatusOK, gin.H{"data": dto.CatalogResponse{Products: products, Stale: stale}})
}

// ==================== 购物车 ====================

func (c *StorefrontController) cartResponse(lines []model.CartLine) dto.CartResponse {
	if lines == nil {
		lines = []model.CartLine{}
	}
	return dto.CartResponse{SessionID: c.appState.SessionID(), Lines: lines}
}

// GetCart GET /api/cart
func (c *StorefrontController) GetCart(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"data": c.cartResponse(c.appState.Cart())})
}

// AddLine 加入购物车，同商品同规格合并数量
// POST /api/cart/lines
func (c *StorefrontController) AddLine(ctx *gin.Context) {
	var req dto.AddCartLineRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	lines, err := c.appState.AddToCart(ctx.Request.Context(), model.CartLine{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": c.cartResponse(lines)})
}

// RemoveLine DELETE /api/cart/lines/:product_id?variant_id=
func (c *StorefrontController) RemoveLine(ctx *gin.Context) {
	lines, err := c.appState.RemoveFromCart(ctx.Request.Context(), ctx.Param("product_id"), ctx.Query("variant_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": c.cartResponse(lines)})
}

// ==================== 下单 ====================

// Checkout 以当前购物车货到付款下单，成功后清空购物车
// POST /api/checkout
func (c *StorefrontController) Checkout(ctx *gin.Context) {
	var req dto.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	order, err := c.orderSvc.Checkout(ctx.Request.Context(), &req, c.appState.Cart())
	if err != nil {
		respondError(ctx, err)
		return
	}

	if err := c.appState.ClearCart(ctx.Request.Context()); err != nil {
		// 订单已落库，购物车残留只记录不回滚
		_ = ctx.Error(err)
	}
	ctx.JSON(http.StatusCreated, gin.H{"data": order})
}

package controller

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"shopfront_console/internal/api/dto"
	"shopfront_console/internal/service"
)

const maxImageBytes = 10 << 20

// ProductController 商品管理
type ProductController struct {
	productSvc *service.ProductService
}

func NewProductController(productSvc *service.ProductService) *ProductController {
	return &ProductController{productSvc: productSvc}
}

// List GET /api/console/products
func (c *ProductController) List(ctx *gin.Context) {
	var req dto.ListProductsRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	resp, err := c.productSvc.ListProducts(ctx.Request.Context(), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetByID GET /api/console/products/:id
func (c *ProductController) GetByID(ctx *gin.Context) {
	product, err := c.productSvc.GetProduct(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": product})
}

// Create POST /api/console/products
func (c *ProductController) Create(ctx *gin.Context) {
	var req dto.ProductInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	product, err := c.productSvc.CreateProduct(ctx.Request.Context(), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"data": product})
}

// Update 商品字段与规格整体替换
// PUT /api/console/products/:id
func (c *ProductController) Update(ctx *gin.Context) {
	var req dto.ProductInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	product, err := c.productSvc.UpdateProduct(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": product})
}

// Delete DELETE /api/console/products/:id
func (c *ProductController) Delete(ctx *gin.Context) {
	if err := c.productSvc.DeleteProduct(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

// UploadImage 上传商品图片，表单字段 file
// POST /api/console/products/:id/image
func (c *ProductController) UploadImage(ctx *gin.Context) {
	data, filename, err := readUpload(ctx, "file", maxImageBytes)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "上传失败: " + err.Error()})
		return
	}

	result, err := c.productSvc.UploadImage(ctx.Request.Context(), ctx.Param("id"), data, filename)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": result})
}

// readUpload 读取 multipart 文件字段
func readUpload(ctx *gin.Context, field string, limit int64) ([]byte, string, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	if fh.Size > limit {
		return nil, "", errFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil, "", err
	}
	return data, fh.Filename, nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shopfront_console/internal/api/dto"
	"shopfront_console/internal/model"
	"shopfront_console/internal/repository"
)

// ProductService 商品服务；商品只由后台维护，前台读取目录
type ProductService struct {
	productRepo repository.ProductRepository
	cache       *SnapshotCache
	storage     *StorageService
	clock       clock.Clock
	log         *zap.Logger
}

func NewProductService(productRepo repository.ProductRepository, cache *SnapshotCache, storage *StorageService, clk clock.Clock, log *zap.Logger) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		cache:       cache,
		storage:     storage,
		clock:       clk,
		log:         log.Named("product"),
	}
}

// ==================== 前台目录 ====================

// Catalog 拉取上架商品并写入快照；网络失败时返回快照，stale 为 true
func (s *ProductService) Catalog(ctx context.Context) ([]model.Product, bool, error) {
	products, err := s.SyncProducts(ctx)
	if err == nil {
		return products, false, nil
	}

	s.log.Warn("商品目录拉取失败，使用本地快照", zap.Error(err))
	snap := s.cache.Load(ctx)
	return snap.Products, true, nil
}

// SyncProducts 全量拉取上架商品并覆盖快照
func (s *ProductService) SyncProducts(ctx context.Context) ([]model.Product, error) {
	products, _, err := s.productRepo.List(ctx, repository.ProductFilter{State: model.ProductStateActive})
	if err != nil {
		return nil, fmt.Errorf("拉取商品失败: %w", err)
	}
	if err := s.cache.SaveProducts(ctx, products, s.clock.Now()); err != nil {
		s.log.Warn("写入商品快照失败", zap.Error(err))
	}
	return products, nil
}

// ==================== 后台 CRUD ====================

func (s *ProductService) ListProducts(ctx context.Context, req *dto.ListProductsRequest) (*dto.ListProductsResponse, error) {
	products, total, err := s.productRepo.List(ctx, repository.ProductFilter{
		State:    req.State,
		Category: req.Category,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("查询商品失败: %w", err)
	}
	return &dto.ListProductsResponse{Total: total, List: products}, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	return product, err
}

func (s *ProductService) CreateProduct(ctx context.Context, req *dto.ProductInput) (*model.Product, error) {
	product := &model.Product{}
	applyProductInput(product, req)
	product.Variants = toVariants(req.Variants)

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("创建商品失败: %w", err)
	}
	s.log.Info("新建商品", zap.String("product_id", product.ID), zap.String("title", product.Title))
	return product, nil
}

// UpdateProduct 商品字段与规格在同一事务内整体替换
func (s *ProductService) UpdateProduct(ctx context.Context, id string, req *dto.ProductInput) (*model.Product, error) {
	err := s.productRepo.Transaction(ctx, func(txRepo repository.ProductRepository) error {
		product, err := txRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		applyProductInput(product, req)
		if err := txRepo.Update(ctx, product); err != nil {
			return err
		}
		return txRepo.ReplaceVariants(ctx, id, toVariants(req.Variants))
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("更新商品失败: %w", err)
	}
	return s.GetProduct(ctx, id)
}

func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	err := s.productRepo.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProductNotFound
	}
	return err
}

// UploadImage 上传商品图片；存储失败时以内联 data URL 保存
func (s *ProductService) UploadImage(ctx context.Context, id string, data []byte, filename string) (*UploadResult, error) {
	if _, err := s.GetProduct(ctx, id); err != nil {
		return nil, err
	}

	result := s.storage.UploadAsset(ctx, data, filename)
	if err := s.productRepo.UpdateFields(ctx, id, map[string]interface{}{"image_url": result.URL}); err != nil {
		return nil, fmt.Errorf("保存商品图片失败: %w", err)
	}
	return &result, nil
}

// ==================== 辅助函数 ====================

func applyProductInput(p *model.Product, req *dto.ProductInput) {
	p.Title = req.Title
	p.Description = req.Description
	p.Category = req.Category
	p.PriceAmount = req.PriceAmount
	p.Inventory = req.Inventory
	p.State = req.State
	if p.State == "" {
		p.State = model.ProductStateActive
	}
	p.Currency = req.Currency
	if p.Currency == "" {
		p.Currency = "USD"
	}
}

func toVariants(inputs []dto.VariantInput) []model.ProductVariant {
	if len(inputs) == 0 {
		return nil
	}
	variants := make([]model.ProductVariant, 0, len(inputs))
	for _, in := range inputs {
		variants = append(variants, model.ProductVariant{
			Name:          in.Name,
			SKU:           in.SKU,
			PriceOverride: in.PriceOverride,
			Inventory:     in.Inventory,
		})
	}
	return variants
}

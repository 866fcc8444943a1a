package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shopfront_console/internal/api/dto"
	"shopfront_console/internal/model"
	"shopfront_console/internal/repository"
)

var (
	ErrEmptyCart        = errors.New("购物车为空")
	ErrOrderNotFound    = errors.New("订单不存在")
	ErrProductNotFound  = errors.New("商品不存在")
	ErrProductInactive  = errors.New("商品已下架")
	ErrInvalidQuantity  = errors.New("购买数量无效")
	ErrMixedCurrencies  = errors.New("购物车内商品币种不一致")
	ErrUnknownOrderStat = errors.New("未知的订单状态")
)

// ==================== OrderService ====================

// OrderService 订单服务
type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
}

// NewOrderService 创建订单服务
func NewOrderService(orderRepo repository.OrderRepository, productRepo repository.ProductRepository) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
	}
}

// ==================== 下单 ====================

// Checkout 货到付款下单：按远端商品价格计算金额，订单与订单项一次写入
func (s *OrderService) Checkout(ctx context.Context, req *dto.CheckoutRequest, lines []model.CartLine) (*model.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	order := &model.Order{
		DisplayID:     newDisplayID(),
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Address:       req.Address,
		City:          req.City,
		Note:          req.Note,
		PaymentMethod: model.PaymentMethodCOD,
		Status:        model.OrderStatusPending,
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		product, err := s.productRepo.GetByID(ctx, line.ProductID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
		}
		if err != nil {
			return nil, fmt.Errorf("查询商品失败: %w", err)
		}
		if product.State != model.ProductStateActive {
			return nil, fmt.Errorf("%w: %s", ErrProductInactive, product.Title)
		}
		if order.Currency == "" {
			order.Currency = product.Currency
		} else if order.Currency != product.Currency {
			return nil, ErrMixedCurrencies
		}

		title := product.Title
		for _, v := range product.Variants {
			if v.ID == line.VariantID {
				title += " / " + v.Name
			}
		}

		item := model.OrderItem{
			ProductID:   product.ID,
			VariantID:   line.VariantID,
			Title:       title,
			Quantity:    line.Quantity,
			PriceAmount: product.PriceFor(line.VariantID),
		}
		order.TotalAmount += item.GetLineTotal()
		order.Items = append(order.Items, item)
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("创建订单失败: %w", err)
	}
	return order, nil
}

func newDisplayID() string {
	return "SF-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// ==================== 查询 ====================

// ListOrders 获取订单列表
func (s *OrderService) ListOrders(ctx context.Context, req *dto.ListOrdersRequest) (*dto.ListOrdersResponse, error) {
	filter := repository.OrderFilter{
		Status:   model.OrderStatus(req.Status),
		City:     req.City,
		Keyword:  req.Keyword,
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	return &dto.ListOrdersResponse{Total: total, List: orders}, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

// FetchRecent 全量同步用：最近 limit 条，按创建时间倒序
func (s *OrderService) FetchRecent(ctx context.Context, limit int) ([]model.Order, error) {
	return s.orderRepo.ListRecent(ctx, limit)
}

// ==================== 状态流转 ====================

// UpdateStatus 运营人员推进订单状态，只允许预定义的流转
func (s *OrderService) UpdateStatus(ctx context.Context, id string, next model.OrderStatus) (*model.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrderStat, next)
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", model.ErrInvalidStatusTransition, order.Status, next)
	}

	if err := s.orderRepo.UpdateStatus(ctx, id, next); err != nil {
		return nil, fmt.Errorf("更新订单状态失败: %w", err)
	}
	order.Status = next
	return order, nil
}

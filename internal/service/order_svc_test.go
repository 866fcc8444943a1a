package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront_console/internal/api/dto"
	"shopfront_console/internal/model"
	"shopfront_console/internal/repository"
)

func setupOrderService(t *testing.T) (*OrderService, repository.ProductRepository) {
	db := setupTestDB(t)
	productRepo := repository.NewProductRepository(db)
	return NewOrderService(repository.NewOrderRepository(db), productRepo), productRepo
}

func checkoutRequest() *dto.CheckoutRequest {
	return &dto.CheckoutRequest{
		CustomerName:  "Amina",
		CustomerPhone: "+212600000000",
		Address:       "12 Rue Tarik",
		City:          "Casablanca",
	}
}

func TestOrderService_Checkout(t *testing.T) {
	svc, productRepo := setupOrderService(t)
	ctx := context.Background()

	override := int64(3000)
	lamp := &model.Product{
		Title: "Lamp", PriceAmount: 2000, Currency: "USD", State: model.ProductStateActive,
		Variants: []model.ProductVariant{{Name: "Large", PriceOverride: &override}},
	}
	rug := &model.Product{Title: "Rug", PriceAmount: 1500, Currency: "USD", State: model.ProductStateActive}
	require.NoError(t, productRepo.Create(ctx, lamp))
	require.NoError(t, productRepo.Create(ctx, rug))

	order, err := svc.Checkout(ctx, checkoutRequest(), []model.CartLine{
		{ProductID: lamp.ID, VariantID: lamp.Variants[0].ID, Quantity: 2},
		{ProductID: rug.ID, Quantity: 1},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.True(t, strings.HasPrefix(order.DisplayID, "SF-"))
	assert.Equal(t, model.PaymentMethodCOD, order.PaymentMethod)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.EqualValues(t, 2*3000+1500, order.TotalAmount)
	assert.Equal(t, "USD", order.Currency)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Lamp / Large", order.Items[0].Title)

	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
}

func TestOrderService_CheckoutRejects(t *testing.T) {
	svc, productRepo := setupOrderService(t)
	ctx := context.Background()

	active := &model.Product{Title: "Lamp", PriceAmount: 2000, Currency: "USD", State: model.ProductStateActive}
	euro := &model.Product{Title: "Vase", PriceAmount: 900, Currency: "EUR", State: model.ProductStateActive}
	hidden := &model.Product{Title: "Old", PriceAmount: 100, Currency: "USD", State: model.ProductStateInactive}
	for _, p := range []*model.Product{active, euro, hidden} {
		require.NoError(t, productRepo.Create(ctx, p))
	}

	tests := []struct {
		name  string
		lines []model.CartLine
		want  error
	}{
		{"空购物车", nil, ErrEmptyCart},
		{"数量无效", []model.CartLine{{ProductID: active.ID, Quantity: 0}}, ErrInvalidQuantity},
		{"商品不存在", []model.CartLine{{ProductID: "missing", Quantity: 1}}, ErrProductNotFound},
		{"商品已下架", []model.CartLine{{ProductID: hidden.ID, Quantity: 1}}, ErrProductInactive},
		{"币种不一致", []model.CartLine{{ProductID: active.ID, Quantity: 1}, {ProductID: euro.ID, Quantity: 1}}, ErrMixedCurrencies},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Checkout(ctx, checkoutRequest(), tt.lines)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOrderService_UpdateStatus(t *testing.T) {
	svc, productRepo := setupOrderService(t)
	ctx := context.Background()

	p := &model.Product{Title: "Lamp", PriceAmount: 2000, Currency: "USD", State: model.ProductStateActive}
	require.NoError(t, productRepo.Create(ctx, p))
	order, err := svc.Checkout(ctx, checkoutRequest(), []model.CartLine{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, order.ID, model.OrderStatusShipped)
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)

	updated, err := svc.UpdateStatus(ctx, order.ID, model.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, updated.Status)

	_, err = svc.UpdateStatus(ctx, order.ID, "lost")
	assert.ErrorIs(t, err, ErrUnknownOrderStat)

	_, err = svc.UpdateStatus(ctx, "missing", model.OrderStatusConfirmed)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("UpdateStatus(missing) error = %v, want ErrOrderNotFound", err)
	}
}

func TestOrderService_ListAndFetchRecent(t *testing.T) {
	svc, productRepo := setupOrderService(t)
	ctx := context.Background()

	p := &model.Product{Title: "Lamp", PriceAmount: 2000, Currency: "USD", State: model.ProductStateActive}
	require.NoError(t, productRepo.Create(ctx, p))
	for _, city := range []string{"Rabat", "Fes", "Rabat"} {
		req := checkoutRequest()
		req.City = city
		_, err := svc.Checkout(ctx, req, []model.CartLine{{ProductID: p.ID, Quantity: 1}})
		require.NoError(t, err)
	}

	resp, err := svc.ListOrders(ctx, &dto.ListOrdersRequest{City: "Rabat"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.Total)

	recent, err := svc.FetchRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

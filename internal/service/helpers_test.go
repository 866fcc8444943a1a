package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopfront_console/internal/model"
	"shopfront_console/internal/repository"
	"shopfront_console/pkg/database"
)

// ==================== 测试辅助 ====================

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.OpenLocal(":memory:", logger.Silent,
		&model.Order{}, &model.OrderItem{},
		&model.Product{}, &model.ProductVariant{},
		&model.LocalEntry{},
	)
	require.NoError(t, err)
	return db
}

func newTestCache(t *testing.T, db *gorm.DB) (*SnapshotCache, repository.LocalStateRepository) {
	repo := repository.NewLocalStateRepository(db)
	return NewSnapshotCache(repo, zap.NewNop()), repo
}

func testOrder(id string) model.Order {
	return model.Order{ID: id, DisplayID: "SF-" + id, CustomerName: "Customer " + id, City: "Rabat", TotalAmount: 1000, Currency: "USD"}
}

func orderIDs(orders []model.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID)
	}
	return out
}

// ==================== 伪造依赖 ====================

type memSettings struct {
	mu    sync.Mutex
	perm  Permission
	sound bool
}

func (s *memSettings) Permission() Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perm
}

func (s *memSettings) SetPermission(ctx context.Context, p Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perm = p
	return nil
}

func (s *memSettings) SoundEnabled() bool  { return s.sound }
func (s *memSettings) SoundSource() string { return "/static/sounds/new-order.mp3" }

type stubNotifier struct {
	mu   sync.Mutex
	err  error
	sent []Notification
}

func (n *stubNotifier) Name() string { return "stub" }

func (n *stubNotifier) Notify(ctx context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

type stubBroadcaster struct {
	mu        sync.Mutex
	orders    []model.Order
	toasts    []Toast
	shown     []Notification
	noSurface bool
}

func (b *stubBroadcaster) BroadcastNewOrder(order model.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = append(b.orders, order)
}

func (b *stubBroadcaster) BroadcastToast(toast Toast) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toasts = append(b.toasts, toast)
}

func (b *stubBroadcaster) ShowNotification(n Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.noSurface {
		return ErrNoNotificationSurface
	}
	b.shown = append(b.shown, n)
	return nil
}

type memTokenStore struct {
	token string
}

func (s *memTokenStore) SetOperatorToken(ctx context.Context, token string) error {
	s.token = token
	return nil
}

func (s *memTokenStore) Logout(ctx context.Context) error {
	s.token = ""
	return nil
}

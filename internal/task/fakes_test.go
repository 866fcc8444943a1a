package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopfront_console/internal/model"
	"shopfront_console/internal/repository"
	"shopfront_console/internal/service"
	"shopfront_console/pkg/database"
)

// ==================== 订阅来源 ====================

type fakeSub struct {
	closed atomic.Bool
}

func (s *fakeSub) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeAttempt struct {
	onStatus func(FeedStatus, error)
	onInsert func([]byte)
	sub      *fakeSub
}

type fakeFeedSource struct {
	mu       sync.Mutex
	attempts []*fakeAttempt
}

func (f *fakeFeedSource) Subscribe(ctx context.Context, channel string, onStatus func(FeedStatus, error), onInsert func([]byte)) (FeedSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &fakeAttempt{onStatus: onStatus, onInsert: onInsert, sub: &fakeSub{}}
	f.attempts = append(f.attempts, a)
	return a.sub, nil
}

func (f *fakeFeedSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func (f *fakeFeedSource) attempt(i int) *fakeAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[i]
}

// ==================== 新订单去向 ====================

type recordingSink struct {
	mu    sync.Mutex
	calls [][]model.Order
}

func (s *recordingSink) DispatchNewOrders(ctx context.Context, source string, orders []model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, orders)
}

func (s *recordingSink) orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, c := range s.calls {
		out = append(out, c...)
	}
	return out
}

// ==================== 订单来源 ====================

type fakeOrderSource struct {
	mu    sync.Mutex
	batch []model.Order
	err   error

	// duringFetch 在拉取途中执行一次，模拟订阅插入与全量拉取交错
	duringFetch func()
}

func (f *fakeOrderSource) set(batch []model.Order, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batch, f.err = batch, err
}

func (f *fakeOrderSource) FetchRecent(ctx context.Context, limit int) ([]model.Order, error) {
	f.mu.Lock()
	during := f.duringFetch
	f.duringFetch = nil
	f.mu.Unlock()
	if during != nil {
		during()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Order(nil), f.batch...), nil
}

var errNetwork = errors.New("network unreachable")

// ==================== 前台扇出 ====================

type recordingFanout struct {
	mu        sync.Mutex
	refreshes [][]model.Order
	statuses  []string
}

func (f *recordingFanout) BroadcastRefresh(orders []model.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, orders)
}

func (f *recordingFanout) BroadcastSyncStatus(state, errMsg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, state)
}

// ==================== 通知 ====================

type recordingNotifier struct {
	mu   sync.Mutex
	tags []string
}

func (n *recordingNotifier) Name() string { return "push" }

func (n *recordingNotifier) Notify(ctx context.Context, msg service.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tags = append(n.tags, msg.Tag)
	return nil
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.tags...)
}

type fakeSettings struct {
	mu   sync.Mutex
	perm service.Permission
}

func (s *fakeSettings) Permission() service.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perm
}

func (s *fakeSettings) SetPermission(ctx context.Context, p service.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perm = p
	return nil
}

func (s *fakeSettings) SoundEnabled() bool  { return false }
func (s *fakeSettings) SoundSource() string { return "" }

// ==================== 存储 ====================

type testEnv struct {
	db      *gorm.DB
	repo    repository.OrderRepository
	cache   *service.SnapshotCache
	tracker *service.OrderTracker
	clock   *clock.Mock
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := database.OpenLocal(":memory:", logger.Silent,
		&model.Order{}, &model.OrderItem{}, &model.LocalEntry{},
	)
	require.NoError(t, err)

	mock := clock.NewMock()
	cache := service.NewSnapshotCache(repository.NewLocalStateRepository(db), zap.NewNop())
	return &testEnv{
		db:      db,
		repo:    repository.NewOrderRepository(db),
		cache:   cache,
		tracker: service.NewOrderTracker(cache, mock, zap.NewNop()),
		clock:   mock,
	}
}

func ids(orders []model.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID)
	}
	return out
}

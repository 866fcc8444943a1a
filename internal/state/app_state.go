package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shopfront_console/internal/model"
	"shopfront_console/internal/repository"
	"shopfront_console/internal/service"
)

// AppState 进程内唯一的应用状态
// 由本地持久化状态初始化，只能通过下面的方法修改，退出登录或重置时收回
type AppState struct {
	mu   sync.RWMutex
	repo repository.LocalStateRepository
	log  *zap.Logger

	cache   *service.SnapshotCache
	tracker *service.OrderTracker

	defaultSound  string
	sessionID     string
	cart          []model.CartLine
	soundEnabled  bool
	customSound   string
	operatorToken string
	permission    service.Permission
}

func New(repo repository.LocalStateRepository, cache *service.SnapshotCache, tracker *service.OrderTracker, defaultSound string, log *zap.Logger) *AppState {
	return &AppState{
		repo:         repo,
		cache:        cache,
		tracker:      tracker,
		defaultSound: defaultSound,
		permission:   service.PermissionUnset,
		log:          log.Named("state"),
	}
}

// Init 逐键读取持久化状态，任何一个键缺失或损坏都只回落到它自己的默认值
func (s *AppState) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()

	if v, ok := s.get(ctx, model.LocalKeySessionID); ok && v != "" {
		s.sessionID = v
	} else {
		s.sessionID = uuid.NewString()
		if err := s.repo.Set(ctx, model.LocalKeySessionID, s.sessionID); err != nil {
			return fmt.Errorf("保存会话标识失败: %w", err)
		}
	}

	if v, ok := s.get(ctx, model.LocalKeyCart); ok {
		var lines []model.CartLine
		if err := json.Unmarshal([]byte(v), &lines); err != nil {
			s.log.Warn("购物车数据损坏，已清空", zap.Error(err))
		} else {
			s.cart = lines
		}
	}

	if v, ok := s.get(ctx, model.LocalKeySoundEnabled); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			s.log.Warn("提示音开关数据无效，默认关闭", zap.String("value", v))
		}
		s.soundEnabled = enabled
	}

	if v, ok := s.get(ctx, model.LocalKeyCustomSound); ok {
		s.customSound = v
	}
	if v, ok := s.get(ctx, model.LocalKeyOperatorToken); ok {
		s.operatorToken = v
	}
	if v, ok := s.get(ctx, model.LocalKeyPermission); ok {
		p, err := service.ParsePermission(v)
		if err != nil {
			s.log.Warn("通知权限数据无效，回到未询问", zap.String("value", v))
		} else {
			s.permission = p
		}
	}

	return nil
}

func (s *AppState) get(ctx context.Context, key model.LocalKey) (string, bool) {
	v, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		s.log.Warn("读取本地状态失败", zap.String("key", string(key)), zap.Error(err))
		return "", false
	}
	return v, ok
}

func (s *AppState) resetLocked() {
	s.sessionID = ""
	s.cart = nil
	s.soundEnabled = false
	s.customSound = ""
	s.operatorToken = ""
	s.permission = service.PermissionUnset
}

// ==================== 快照 ====================

// Snapshot 本地快照，供启动时立即渲染
func (s *AppState) Snapshot(ctx context.Context) service.Snapshot {
	return s.cache.Load(ctx)
}

// ==================== 会话与购物车 ====================

func (s *AppState) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

func (s *AppState) Cart() []model.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.CartLine(nil), s.cart...)
}

// AddToCart 同一商品规格合并数量
func (s *AppState) AddToCart(ctx context.Context, line model.CartLine) ([]model.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := false
	for i := range s.cart {
		if s.cart[i].ProductID == line.ProductID && s.cart[i].VariantID == line.VariantID {
			s.cart[i].Quantity += line.Quantity
			merged = true
			break
		}
	}
	if !merged {
		s.cart = append(s.cart, line)
	}
	return s.saveCartLocked(ctx)
}

func (s *AppState) RemoveFromCart(ctx context.Context, productID, variantID string) ([]model.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.cart[:0]
	for _, l := range s.cart {
		if l.ProductID == productID && l.VariantID == variantID {
			continue
		}
		kept = append(kept, l)
	}
	s.cart = kept
	return s.saveCartLocked(ctx)
}

func (s *AppState) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = nil
	return s.repo.Delete(ctx, model.LocalKeyCart)
}

func (s *AppState) saveCartLocked(ctx context.Context) ([]model.CartLine, error) {
	data, err := json.Marshal(s.cart)
	if err != nil {
		return nil, fmt.Errorf("序列化购物车失败: %w", err)
	}
	if err := s.repo.Set(ctx, model.LocalKeyCart, string(data)); err != nil {
		return nil, fmt.Errorf("保存购物车失败: %w", err)
	}
	return append([]model.CartLine(nil), s.cart...), nil
}

// ==================== 提醒设置（实现 service.AlertSettings）====================

func (s *AppState) SoundEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.soundEnabled
}

func (s *AppState) SetSoundEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Set(ctx, model.LocalKeySoundEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("保存提示音开关失败: %w", err)
	}
	s.soundEnabled = enabled
	return nil
}

// SoundSource 运营上传的提示音优先，否则内置默认
func (s *AppState) SoundSource() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.customSound != "" {
		return s.customSound
	}
	return s.defaultSound
}

func (s *AppState) HasCustomSound() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customSound != ""
}

func (s *AppState) SetCustomSound(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Set(ctx, model.LocalKeyCustomSound, source); err != nil {
		return fmt.Errorf("保存自定义提示音失败: %w", err)
	}
	s.customSound = source
	return nil
}

func (s *AppState) Permission() service.Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permission
}

func (s *AppState) SetPermission(ctx context.Context, p service.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Set(ctx, model.LocalKeyPermission, string(p)); err != nil {
		return err
	}
	s.permission = p
	return nil
}

// ==================== 运营会话 ====================

func (s *AppState) OperatorToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.operatorToken
}

func (s *AppState) SetOperatorToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Set(ctx, model.LocalKeyOperatorToken, token); err != nil {
		return fmt.Errorf("保存运营令牌失败: %w", err)
	}
	s.operatorToken = token
	return nil
}

// Logout 收回运营令牌，其余偏好保留
func (s *AppState) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Delete(ctx, model.LocalKeyOperatorToken); err != nil {
		return fmt.Errorf("清除运营令牌失败: %w", err)
	}
	s.operatorToken = ""
	return nil
}

// Reset 清空全部本地状态与快照，回到首次运行；会话标识重新生成
func (s *AppState) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("清空本地状态失败: %w", err)
	}
	s.resetLocked()
	if s.tracker != nil {
		s.tracker.Forget()
	}

	s.sessionID = uuid.NewString()
	if err := s.repo.Set(ctx, model.LocalKeySessionID, s.sessionID); err != nil {
		return fmt.Errorf("保存会话标识失败: %w", err)
	}
	s.log.Info("本地状态已重置")
	return nil
}

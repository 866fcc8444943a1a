package middleware

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ==================== CooldownLimiter 冷却限流器 ====================

// CooldownLimiter 按键冷却的限流器
// 防止运营频繁点击手动刷新，把远端查询打满
type CooldownLimiter struct {
	clock clock.Clock
	locks sync.Map // key -> *lockEntry
}

// lockEntry 锁条目
type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

func NewCooldownLimiter(clk clock.Clock) *CooldownLimiter {
	return &CooldownLimiter{clock: clk}
}

// ==================== 限流检查 ====================

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行，允许时记录本次时间
func (r *CooldownLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := r.clock.Now()
	if !entry.lastTime.IsZero() {
		if elapsed := now.Sub(entry.lastTime); elapsed < interval {
			return CheckResult{
				Allowed:    false,
				RetryAfter: interval - elapsed,
			}
		}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key 的限流
func (r *CooldownLimiter) Reset(key string) {
	r.locks.Delete(key)
}

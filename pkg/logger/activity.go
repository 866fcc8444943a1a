package logger

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Entry 活动日志中的一条记录
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Module  string         `json:"module"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// ActivityLog 固定容量的环形缓冲，满了覆盖最旧的记录
type ActivityLog struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewActivityLog 创建活动日志，size <= 0 时取 200
func NewActivityLog(size int) *ActivityLog {
	if size <= 0 {
		size = 200
	}
	return &ActivityLog{entries: make([]Entry, size)}
}

func (a *ActivityLog) append(e Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries[a.next] = e
	a.next = (a.next + 1) % len(a.entries)
	if a.next == 0 {
		a.full = true
	}
}

// Entries 按时间倒序返回，最新的在前
func (a *ActivityLog) Entries() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	n := a.next
	if a.full {
		n = len(a.entries)
	}
	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (a.next - i + len(a.entries)) % len(a.entries)
		out = append(out, a.entries[idx])
	}
	return out
}

// Core 返回写入本缓冲的 zap core
func (a *ActivityLog) Core() zapcore.Core {
	return &activityCore{
		LevelEnabler: zapcore.InfoLevel,
		log:          a,
	}
}

// ==================== zapcore.Core 实现 ====================

type activityCore struct {
	zapcore.LevelEnabler
	log    *ActivityLog
	fields []zapcore.Field
}

func (c *activityCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &activityCore{LevelEnabler: c.LevelEnabler, log: c.log, fields: merged}
}

func (c *activityCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *activityCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	e := Entry{
		Time:    ent.Time,
		Level:   ent.Level.String(),
		Module:  ent.LoggerName,
		Message: ent.Message,
	}
	if len(enc.Fields) > 0 {
		e.Fields = enc.Fields
	}
	c.log.append(e)
	return nil
}

func (c *activityCore) Sync() error { return nil }

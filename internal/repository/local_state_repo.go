package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopfront_console/internal/model"
)

// LocalStateRepository 设备本地键值存储，跨进程重启保留
type LocalStateRepository interface {
	// Get 读取键值，键不存在时 ok 为 false 且 err 为 nil
	Get(ctx context.Context, key model.LocalKey) (value string, ok bool, err error)
	Set(ctx context.Context, key model.LocalKey, value string) error
	Delete(ctx context.Context, keys ...model.LocalKey) error
	Clear(ctx context.Context) error
}

type localStateRepository struct {
	db *gorm.DB
}

// NewLocalStateRepository 创建本地状态仓库
func NewLocalStateRepository(db *gorm.DB) LocalStateRepository {
	return &localStateRepository{db: db}
}

func (r *localStateRepository) Get(ctx context.Context, key model.LocalKey) (string, bool, error) {
	var entry model.LocalEntry
	err := r.db.WithContext(ctx).Where("entry_key = ?", string(key)).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

// Set 覆盖写入，同一个键始终只有一行
func (r *localStateRepository) Set(ctx context.Context, key model.LocalKey, value string) error {
	entry := model.LocalEntry{
		Key:       string(key),
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (r *localStateRepository) Delete(ctx context.Context, keys ...model.LocalKey) error {
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	return r.db.WithContext(ctx).Where("entry_key IN ?", names).Delete(&model.LocalEntry{}).Error
}

func (r *localStateRepository) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&model.LocalEntry{}).Error
}

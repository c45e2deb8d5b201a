package database

import (
	"PICs_Gallery/internal/models"
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound 表示要更新的记录不存在。
var ErrNotFound = errors.New("记录不存在")

// CountersTable 是远端计数记录所在的表 (集合) 名。
const CountersTable = "photo_clicks"

// PhotoSource 按表名读取原始记录，不做任何过滤。
type PhotoSource interface {
	FetchAll(ctx context.Context, table string) ([]models.RawRecord, error)
}

// CounterStore 定义了点击/浏览计数的远端存储操作。
type CounterStore interface {
	// FetchCounters 批量读取全部计数，以复合键为键。
	FetchCounters(ctx context.Context) (map[string]models.CounterRecord, error)
	// GetCounter 读取单条计数，不存在时返回 (nil, nil)。
	GetCounter(ctx context.Context, table, photoID string) (*models.CounterRecord, error)
	InsertCounter(ctx context.Context, rec models.CounterRecord) error
	UpdateCounter(ctx context.Context, rec models.CounterRecord) error
}

// Store 是一个顶层接口，组合了图片数据源和计数存储。
type Store interface {
	PhotoSource
	CounterStore
	Close(ctx context.Context) error
}

// UpsertCounter 以 "读-改-写" 方式累加一条计数：存在则累加后更新，否则插入。
// 多设备并发点击时远端写入顺序不保证，计数只保证最终一致。
func UpsertCounter(ctx context.Context, s CounterStore, table, photoID string, clicks, views int64) (models.CounterRecord, error) {
	existing, err := s.GetCounter(ctx, table, photoID)
	if err != nil {
		return models.CounterRecord{}, fmt.Errorf("读取计数 %s 失败: %w", models.CompositeKey(table, photoID), err)
	}
	now := time.Now().UTC()
	if existing != nil {
		rec := *existing
		rec.ClickCount += clicks
		rec.ViewCount += views
		rec.UpdatedAt = now
		if err := s.UpdateCounter(ctx, rec); err != nil {
			return models.CounterRecord{}, fmt.Errorf("更新计数 %s 失败: %w", rec.Key(), err)
		}
		return rec, nil
	}
	rec := models.CounterRecord{
		TableName:  table,
		PhotoID:    photoID,
		ClickCount: clicks,
		ViewCount:  views,
		UpdatedAt:  now,
	}
	if err := s.InsertCounter(ctx, rec); err != nil {
		return models.CounterRecord{}, fmt.Errorf("插入计数 %s 失败: %w", rec.Key(), err)
	}
	return rec, nil
}

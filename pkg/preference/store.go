package preference

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/logger"
	"PICs_Gallery/pkg/lru"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// ErrPersistence 表示本地存储不可用或内容损坏。偏好退回空状态，不会中断调用方。
var ErrPersistence = errors.New("偏好持久化失败")

const keyPrefix = "gallery_preferences"

// StorageKey 返回某设备的偏好在本地存储中的键。
func StorageKey(deviceID string) string {
	if deviceID == "" {
		return keyPrefix
	}
	return keyPrefix + ":" + deviceID
}

// Weight 把点击数映射为表权重的阶梯函数，单调不减，上限为 5。
func Weight(clicks int64) float64 {
	switch {
	case clicks >= 50:
		return 5
	case clicks >= 20:
		return 3
	case clicks >= 10:
		return 2
	case clicks >= 5:
		return 1.5
	case clicks >= 1:
		return 1.2
	default:
		return 1
	}
}

// Store 是单个设备的偏好记录：数据表 -> 点击数。
type Store struct {
	mu          sync.Mutex
	storage     Storage
	key         string
	clicks      map[string]int64
	lastUpdated int64
	logger      *slog.Logger
	now         func() time.Time
}

// Load 从本地存储读取设备偏好。读取或解析失败时视为没有偏好。
func Load(storage Storage, deviceID string, log *slog.Logger) *Store {
	s := &Store{
		storage: storage,
		key:     StorageKey(deviceID),
		clicks:  make(map[string]int64),
		logger:  logger.OrDefault(log),
		now:     time.Now,
	}
	if storage == nil {
		return s
	}
	raw, ok, err := storage.Get(s.key)
	if err != nil {
		s.logger.Warn("读取偏好失败，使用空偏好", "key", s.key, "error", fmt.Errorf("%w: %v", ErrPersistence, err))
		return s
	}
	if !ok || raw == "" {
		return s
	}
	var rec models.PreferenceRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("偏好记录已损坏，使用空偏好", "key", s.key, "error", fmt.Errorf("%w: %v", ErrPersistence, err))
		return s
	}
	for table, n := range rec.TableClicks {
		if n > 0 {
			s.clicks[table] = n
		}
	}
	s.lastUpdated = rec.LastUpdated
	return s
}

// RecordClick 给数据表的点击数加一并立即持久化。
// 持久化失败时内存中的计数仍然生效，返回包装了 ErrPersistence 的错误。
func (s *Store) RecordClick(table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks[table]++
	s.lastUpdated = s.now().UnixMilli()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if s.storage == nil {
		return nil
	}
	data, err := json.Marshal(models.PreferenceRecord{TableClicks: s.clicks, LastUpdated: s.lastUpdated})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := s.storage.Set(s.key, string(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *Store) GetWeight(table string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Weight(s.clicks[table])
}

// GetTopPreferred 按点击数降序返回前 limit 个数据表，点击数相同时按表名排序。
// limit <= 0 表示全部。
func (s *Store) GetTopPreferred(limit int) []models.TablePreference {
	s.mu.Lock()
	prefs := make([]models.TablePreference, 0, len(s.clicks))
	for table, n := range s.clicks {
		prefs = append(prefs, models.TablePreference{Table: table, Count: n, Weight: Weight(n)})
	}
	s.mu.Unlock()

	sort.Slice(prefs, func(i, j int) bool {
		if prefs[i].Count != prefs[j].Count {
			return prefs[i].Count > prefs[j].Count
		}
		return prefs[i].Table < prefs[j].Table
	})
	if limit > 0 && len(prefs) > limit {
		prefs = prefs[:limit]
	}
	return prefs
}

// Clicks 返回点击数的副本。
func (s *Store) Clicks() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.clicks))
	for k, v := range s.clicks {
		out[k] = v
	}
	return out
}

func (s *Store) LastUpdated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastUpdated == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.lastUpdated)
}

// Manager 按设备ID缓存已加载的偏好。空闲超时或超出容量的设备会被移出缓存，
// 偏好在每次点击时已经持久化，再次访问时从存储重新加载。
type Manager struct {
	storage Storage
	stores  *lru.Cache[*Store]
	logger  *slog.Logger
}

// ManagerOptions 配置偏好缓存，零值使用 lru 的默认容量和空闲时间。
type ManagerOptions struct {
	Capacity int
	IdleTTL  time.Duration
	Logger   *slog.Logger
	// Clock 仅用于测试，默认 time.Now。
	Clock func() time.Time
}

func NewManager(storage Storage, log *slog.Logger) *Manager {
	return NewManagerWithOptions(storage, ManagerOptions{Logger: log})
}

func NewManagerWithOptions(storage Storage, opts ManagerOptions) *Manager {
	return &Manager{
		storage: storage,
		stores:  lru.New(lru.Options[*Store]{Capacity: opts.Capacity, TTL: opts.IdleTTL, Clock: opts.Clock}),
		logger:  logger.OrDefault(opts.Logger),
	}
}

// For 返回设备的偏好，首次访问或被移出缓存后从存储加载。
func (m *Manager) For(deviceID string) *Store {
	return m.stores.GetOrAdd(deviceID, func() *Store {
		return Load(m.storage, deviceID, m.logger.With("device", deviceID))
	})
}

// Cached 返回当前缓存的设备数。
func (m *Manager) Cached() int { return m.stores.Len() }

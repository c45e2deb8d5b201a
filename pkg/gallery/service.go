package gallery

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/aggregator"
	"PICs_Gallery/pkg/counter"
	"PICs_Gallery/pkg/logger"
	"PICs_Gallery/pkg/lru"
	"PICs_Gallery/pkg/metrics"
	"PICs_Gallery/pkg/ordering"
	"PICs_Gallery/pkg/preference"
	"PICs_Gallery/pkg/registry"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrUnknownTable 表示点击的图片来自未登记的数据表。
var ErrUnknownTable = errors.New("未登记的数据表")

// 特殊分类。
const (
	CategoryAll     = "all"
	CategoryPopular = "popular"
)

type Options struct {
	PageSize         int
	DefaultAlgorithm string
	// SessionCapacity 和 SessionTTL 限制缓存的设备会话：
	// 超过容量淘汰最久未用的会话，空闲超过 TTL 的会话被丢弃。
	SessionCapacity int
	SessionTTL      time.Duration
	Logger          *slog.Logger
	// Clock 仅用于测试，默认 time.Now。
	Clock func() time.Time
}

// Service 是聚合、排序、分页和计数的组合入口，HTTP 和 CLI 都通过它工作。
type Service struct {
	registry    *registry.Registry
	aggregator  *aggregator.Aggregator
	counters    *counter.Sync
	preferences *preference.Manager

	pageSize         int
	defaultAlgorithm string
	logger           *slog.Logger
	now              func() time.Time

	sessions *lru.Cache[*Session]
}

func NewService(reg *registry.Registry, agg *aggregator.Aggregator, cs *counter.Sync, prefs *preference.Manager, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = 150
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	svc := &Service{
		registry:         reg,
		aggregator:       agg,
		counters:         cs,
		preferences:      prefs,
		pageSize:         opts.PageSize,
		defaultAlgorithm: ordering.Resolve(opts.DefaultAlgorithm),
		logger:           logger.OrDefault(opts.Logger),
		now:              opts.Clock,
	}
	svc.sessions = lru.New(lru.Options[*Session]{
		Capacity: opts.SessionCapacity,
		TTL:      opts.SessionTTL,
		Clock:    opts.Clock,
		OnEvict: func(string, *Session) {
			metrics.SessionsEvicted.Inc()
		},
	})
	return svc
}

func (s *Service) Tables() []models.TableEntry { return s.registry.Entries() }

// Categories 返回登记表中出现的分类，不含 all 和 popular。
func (s *Service) Categories() []string { return s.registry.Categories() }

func (s *Service) DefaultAlgorithm() string { return s.defaultAlgorithm }

// Session 返回设备的会话，首次访问或会话被淘汰后重新创建，默认显示全部分类。
func (s *Service) Session(deviceID string) *Session {
	sess := s.sessions.GetOrAdd(deviceID, func() *Session { return newSession(s, deviceID) })
	metrics.SessionsActive.Set(float64(s.sessions.Len()))
	return sess
}

// SessionCount 返回当前缓存的会话数。
func (s *Service) SessionCount() int { return s.sessions.Len() }

// Snapshot 返回当前聚合快照 (可能来自缓存)。
func (s *Service) Snapshot(ctx context.Context) (*aggregator.Snapshot, error) {
	return s.aggregator.LoadAll(ctx)
}

// Reload 丢弃缓存并重新聚合，返回图片数。
func (s *Service) Reload(ctx context.Context) (int, error) {
	s.aggregator.Invalidate()
	snap, err := s.aggregator.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(snap.Photos), nil
}

// Click 记录一次点击：远端计数 (异步)、缓存快照中的计数、设备偏好。
func (s *Service) Click(ctx context.Context, deviceID string, ref models.PhotoRef) error {
	if _, ok := s.registry.Lookup(ref.Table); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, ref.Table)
	}
	if ref.ID == "" {
		return fmt.Errorf("缺少图片ID")
	}
	s.counters.RecordClickRef(ref)
	s.aggregator.Apply(ref.Key(), 1, 0)
	if err := s.preferences.For(deviceID).RecordClick(ref.Table); err != nil {
		logger.FromContext(ctx).Warn("偏好保存失败", "table", ref.Table, "error", err)
	}
	return nil
}

// Views 记录一次可见事件。重复的键只计一次，无法识别的键被忽略，返回入队数。
func (s *Service) Views(ctx context.Context, keys []string) int {
	unique := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, err := s.counters.ParseKey(k); err != nil {
			logger.FromContext(ctx).Debug("忽略无法识别的浏览键", "key", k)
			continue
		}
		unique = append(unique, k)
	}
	n := s.counters.RecordViews(unique...)
	for _, k := range unique {
		s.aggregator.Apply(k, 0, 1)
	}
	return n
}

// Preferences 返回设备最常点击的数据表。
func (s *Service) Preferences(deviceID string, limit int) []models.TablePreference {
	return s.preferences.For(deviceID).GetTopPreferred(limit)
}

func (s *Service) orderingContext(deviceID string) ordering.Context {
	return ordering.Context{Preferences: s.preferences.For(deviceID), Now: s.now()}
}

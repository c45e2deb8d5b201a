package aggregator

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/database"
	"PICs_Gallery/pkg/logger"
	"PICs_Gallery/pkg/metrics"
	"PICs_Gallery/pkg/normalizer"
	"PICs_Gallery/pkg/registry"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// ErrTransientFetch 表示单个数据表读取失败，该表本轮贡献零张图片。
var ErrTransientFetch = errors.New("数据表读取失败")

// FetchError 记录是哪张表读取失败。errors.Is(err, ErrTransientFetch) 为真。
type FetchError struct {
	Table string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("数据表 %s 读取失败: %v", e.Table, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrTransientFetch }

// CounterSource 提供按复合键索引的计数。
type CounterSource interface {
	Counters(ctx context.Context) (map[string]models.CounterRecord, error)
}

// Snapshot 是一次聚合的结果，发布后不再修改。
type Snapshot struct {
	Photos    []models.Photo
	Timestamp time.Time

	// Generation 每次真正加载后加一，Apply 产生的副本保持不变。
	Generation uint64

	// Failed 列出本轮读取失败的数据表。
	Failed []*FetchError
}

type Options struct {
	TTL          time.Duration
	Workers      int
	SyntheticIDs bool
	Logger       *slog.Logger
	// Clock 仅用于测试，默认 time.Now。
	Clock func() time.Time
}

// Aggregator 从所有登记的数据表读取记录，归一化、合并并带 TTL 缓存。
type Aggregator struct {
	source     database.PhotoSource
	registry   *registry.Registry
	counters   CounterSource
	normalizer normalizer.Normalizer
	ttl        time.Duration
	numWorkers int
	logger     *slog.Logger
	now        func() time.Time

	loadMu sync.Mutex // 同一时刻只允许一次真正的加载
	mu     sync.RWMutex
	cache  *Snapshot
	gen    uint64
}

func New(source database.PhotoSource, reg *registry.Registry, counters CounterSource, opts Options) *Aggregator {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	log := logger.OrDefault(opts.Logger)
	return &Aggregator{
		source:     source,
		registry:   reg,
		counters:   counters,
		normalizer: normalizer.Normalizer{SyntheticIDs: opts.SyntheticIDs, Logger: log},
		ttl:        opts.TTL,
		numWorkers: opts.Workers,
		logger:     log,
		now:        opts.Clock,
	}
}

// LoadAll 返回当前快照。缓存未过期时直接返回同一个快照，不发起任何读取。
// 单表失败和计数读取失败都不会让整体失败，只有 ctx 已取消时才返回错误。
func (a *Aggregator) LoadAll(ctx context.Context) (*Snapshot, error) {
	if snap, ok := a.fresh(); ok {
		metrics.AggregationCache.WithLabelValues("hit").Inc()
		return snap, nil
	}

	a.loadMu.Lock()
	defer a.loadMu.Unlock()
	// 等锁期间可能已有其他调用完成了加载
	if snap, ok := a.fresh(); ok {
		metrics.AggregationCache.WithLabelValues("hit").Inc()
		return snap, nil
	}
	metrics.AggregationCache.WithLabelValues("miss").Inc()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	photos, failed := a.fetchAll(ctx)

	var counters map[string]models.CounterRecord
	if a.counters != nil {
		var err error
		counters, err = a.counters.Counters(ctx)
		if err != nil {
			a.logger.Warn("读取计数失败，计数按已知部分处理", "error", err)
		}
	}
	for i, p := range photos {
		if c, ok := counters[p.CompositeKey]; ok {
			photos[i] = p.WithCounts(c.ClickCount, c.ViewCount)
		}
	}

	a.mu.Lock()
	a.gen++
	snap := &Snapshot{Photos: photos, Timestamp: a.now(), Generation: a.gen, Failed: failed}
	a.cache = snap
	a.mu.Unlock()
	metrics.SnapshotPhotos.Set(float64(len(photos)))
	a.logger.Info("聚合完成", "photos", len(photos), "tables", a.registry.Len(), "failed", len(failed), "耗时", time.Since(start))
	return snap, nil
}

func (a *Aggregator) fresh() (*Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.cache == nil || a.now().Sub(a.cache.Timestamp) >= a.ttl {
		return nil, false
	}
	return a.cache, true
}

// Cached 返回最近一次的快照 (可能已过期)。
func (a *Aggregator) Cached() (*Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cache, a.cache != nil
}

// Invalidate 丢弃缓存，下一次 LoadAll 会重新读取。
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	a.cache = nil
	a.mu.Unlock()
}

// Apply 把本地记录的点击/浏览增量叠加到缓存快照上。
// 旧快照保持不变，缓存替换为带有新计数的副本，时间戳不变。
func (a *Aggregator) Apply(key string, clicks, views int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cache == nil {
		return
	}
	idx := -1
	for i := range a.cache.Photos {
		if a.cache.Photos[i].CompositeKey == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	photos := make([]models.Photo, len(a.cache.Photos))
	copy(photos, a.cache.Photos)
	p := photos[idx]
	photos[idx] = p.WithCounts(p.ClickCount+clicks, p.ViewCount+views)
	a.cache = &Snapshot{Photos: photos, Timestamp: a.cache.Timestamp, Generation: a.cache.Generation, Failed: a.cache.Failed}
}

type tableResult struct {
	index  int
	photos []models.Photo
	err    *FetchError
}

// fetchAll 用工作池并发读取所有数据表，按登记顺序合并结果并按复合键去重。
func (a *Aggregator) fetchAll(ctx context.Context) ([]models.Photo, []*FetchError) {
	entries := a.registry.Entries()
	var wg sync.WaitGroup
	tasks := make(chan int, len(entries))
	results := make(chan tableResult, len(entries))

	workers := a.numWorkers
	if workers > len(entries) {
		workers = len(entries)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go a.fetchWorker(ctx, &wg, entries, tasks, results)
	}
	for i := range entries {
		tasks <- i
	}
	close(tasks)
	wg.Wait()
	close(results)

	perTable := make([][]models.Photo, len(entries))
	var failed []*FetchError
	for res := range results {
		if res.err != nil {
			failed = append(failed, res.err)
			continue
		}
		perTable[res.index] = res.photos
	}

	seen := make(map[string]struct{})
	var photos []models.Photo
	for i, list := range perTable {
		for _, p := range list {
			if _, dup := seen[p.CompositeKey]; dup {
				metrics.RecordsDropped.WithLabelValues(entries[i].TableName).Inc()
				a.logger.Debug("丢弃重复的复合键", "key", p.CompositeKey)
				continue
			}
			seen[p.CompositeKey] = struct{}{}
			photos = append(photos, p)
		}
	}
	if photos == nil {
		photos = []models.Photo{}
	}
	return photos, failed
}

func (a *Aggregator) fetchWorker(ctx context.Context, wg *sync.WaitGroup, entries []models.TableEntry, tasks <-chan int, results chan<- tableResult) {
	defer wg.Done()
	for i := range tasks {
		entry := entries[i]
		rows, err := a.source.FetchAll(ctx, entry.TableName)
		if err != nil {
			metrics.TableFetches.WithLabelValues(entry.TableName, "error").Inc()
			fe := &FetchError{Table: entry.TableName, Err: err}
			a.logger.Warn("数据表读取失败，本轮跳过", "table", entry.TableName, "error", err)
			results <- tableResult{index: i, err: fe}
			continue
		}
		metrics.TableFetches.WithLabelValues(entry.TableName, "ok").Inc()

		photos := make([]models.Photo, 0, len(rows))
		dropped := 0
		for idx, raw := range rows {
			p, err := a.normalizer.Normalize(raw, entry.TableName, entry, idx)
			if err != nil {
				dropped++
				continue
			}
			photos = append(photos, p)
		}
		if dropped > 0 {
			metrics.RecordsDropped.WithLabelValues(entry.TableName).Add(float64(dropped))
			a.logger.Debug("丢弃无法归一化的记录", "table", entry.TableName, "count", dropped)
		}
		results <- tableResult{index: i, photos: photos}
	}
}

package counter

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/database"
	"PICs_Gallery/pkg/logger"
	"PICs_Gallery/pkg/metrics"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrUnknownKey 表示复合键无法匹配任何已登记的数据表。
var ErrUnknownKey = errors.New("无法识别的复合键")

const writeTimeout = 10 * time.Second

type delta struct {
	clicks int64
	views  int64
}

type viewEntry struct {
	ref      models.PhotoRef
	count    int64
	attempts int
}

// Options 配置 Sync 的行为。
type Options struct {
	// MaxRetries 是一条浏览记录最多尝试写入的次数，超过后丢弃并记录错误。
	MaxRetries int
	Logger     *slog.Logger
}

// Sync 负责本地乐观计数与远端计数存储之间的同步。
// 点击：本地立即生效，远端异步 "读-改-写"。
// 浏览：按复合键累积在队列中，由 Flush 定期批量写入。
// 同一进程内的远端写入是串行的；多设备之间只保证最终一致。
type Sync struct {
	store      database.CounterStore
	tables     []string
	maxRetries int
	logger     *slog.Logger

	mu      sync.Mutex
	pending map[string]*delta // 尚未被远端确认的增量
	queue   map[string]*viewEntry
	// 远端写入失败的点击数，下一次 Counters (重新聚合) 时从 pending 中扣除
	failedClicks map[string]int64

	// writeMu 串行化远端写入，Counters 读取远端时也持有它，
	// 保证 "远端已写入" 和 "本地增量已扣除" 对读取方是同时可见的。
	writeMu  sync.Mutex
	inflight sync.WaitGroup
}

// NewSync 创建计数同步器。tables 用于拆分复合键。
func NewSync(store database.CounterStore, tables []string, opts Options) *Sync {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &Sync{
		store:        store,
		tables:       append([]string(nil), tables...),
		maxRetries:   opts.MaxRetries,
		logger:       logger.OrDefault(opts.Logger),
		pending:      make(map[string]*delta),
		queue:        make(map[string]*viewEntry),
		failedClicks: make(map[string]int64),
	}
}

// ParseKey 把复合键拆分为 (数据表, 图片ID)。
func (s *Sync) ParseKey(key string) (models.PhotoRef, error) {
	ref, ok := models.ParseCompositeKey(key, s.tables)
	if !ok {
		return models.PhotoRef{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return ref, nil
}

// RecordClick 记录一次点击。本地计数立即更新，远端写入在后台进行，失败只记录日志。
func (s *Sync) RecordClick(key string) error {
	ref, err := s.ParseKey(key)
	if err != nil {
		return err
	}
	s.RecordClickRef(ref)
	return nil
}

func (s *Sync) RecordClickRef(ref models.PhotoRef) {
	key := ref.Key()
	s.mu.Lock()
	s.deltaLocked(key).clicks++
	s.mu.Unlock()
	metrics.ClicksRecorded.Inc()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		s.writeMu.Lock()
		_, err := database.UpsertCounter(ctx, s.store, ref.Table, ref.ID, 1, 0)
		s.mu.Lock()
		if err != nil {
			// 当前快照里的本地计数保持不变，下一次重新聚合时丢弃
			s.failedClicks[key]++
		} else {
			s.settleLocked(key, 1, 0)
		}
		s.mu.Unlock()
		s.writeMu.Unlock()

		if err != nil {
			metrics.CounterWrites.WithLabelValues("click", "error").Inc()
			s.logger.Warn("远端点击计数写入失败", "key", key, "error", err)
			return
		}
		metrics.CounterWrites.WithLabelValues("click", "ok").Inc()
	}()
}

// RecordViews 记录一次可见事件中出现的图片。同一事件里重复的键只计一次。
// 返回实际入队的键数，无法识别的键会被跳过。
func (s *Sync) RecordViews(keys ...string) int {
	seen := make(map[string]struct{}, len(keys))
	queued := 0
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ref, ok := models.ParseCompositeKey(key, s.tables)
		if !ok {
			s.logger.Debug("跳过无法识别的浏览键", "key", key)
			continue
		}
		e, ok := s.queue[key]
		if !ok {
			e = &viewEntry{ref: ref}
			s.queue[key] = e
		}
		e.count++
		s.deltaLocked(key).views++
		queued++
	}
	metrics.ViewQueueSize.Set(float64(len(s.queue)))
	return queued
}

// Flush 把浏览队列写入远端。单个键失败不影响其他键；
// 失败的条目重新入队，累计失败 MaxRetries 次后丢弃。返回本次失败的键数。
func (s *Sync) Flush(ctx context.Context) int {
	s.mu.Lock()
	batch := s.queue
	s.queue = make(map[string]*viewEntry)
	s.mu.Unlock()
	if len(batch) == 0 {
		return 0
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	failed := 0
	for key, e := range batch {
		_, err := database.UpsertCounter(ctx, s.store, e.ref.Table, e.ref.ID, 0, e.count)
		if err == nil {
			metrics.CounterWrites.WithLabelValues("view", "ok").Inc()
			s.mu.Lock()
			s.settleLocked(key, 0, e.count)
			s.mu.Unlock()
			continue
		}
		failed++
		metrics.CounterWrites.WithLabelValues("view", "error").Inc()
		e.attempts++
		s.mu.Lock()
		if e.attempts >= s.maxRetries {
			s.settleLocked(key, 0, e.count)
			s.logger.Error("浏览计数多次写入失败，已丢弃", "key", key, "views", e.count, "attempts", e.attempts, "error", err)
		} else {
			if cur, ok := s.queue[key]; ok {
				cur.count += e.count
				if e.attempts > cur.attempts {
					cur.attempts = e.attempts
				}
			} else {
				s.queue[key] = e
			}
			s.logger.Warn("浏览计数写入失败，下次重试", "key", key, "attempts", e.attempts, "error", err)
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	metrics.ViewQueueSize.Set(float64(len(s.queue)))
	s.mu.Unlock()
	if failed > 0 {
		s.logger.Warn("浏览计数刷新完成，部分失败", "total", len(batch), "failed", failed)
	} else {
		s.logger.Debug("浏览计数刷新完成", "total", len(batch))
	}
	return failed
}

// Run 按固定间隔刷新浏览队列，ctx 结束时做最后一次刷新后返回。
func (s *Sync) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Flush(ctx)
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), writeTimeout)
			s.Flush(final)
			cancel()
			return
		}
	}
}

// Wait 等待所有在途的点击写入完成。
func (s *Sync) Wait() {
	s.inflight.Wait()
}

// QueueLen 返回待刷新的浏览条目数。
func (s *Sync) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Pending 返回某键尚未被远端确认的 (点击, 浏览) 增量。
func (s *Sync) Pending(key string) (clicks, views int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.pending[key]; ok {
		return d.clicks, d.views
	}
	return 0, 0
}

// Counters 读取远端全部计数，并叠加本地尚未确认的增量。聚合器每次重新聚合时调用，
// 此前远端写入失败的点击增量在这里被丢弃。
// 远端读取失败时仍返回仅含本地增量的结果，同时返回错误。
func (s *Sync) Counters(ctx context.Context) (map[string]models.CounterRecord, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	remote, err := s.store.FetchCounters(ctx)
	if err != nil {
		remote = nil
	}
	out := make(map[string]models.CounterRecord, len(remote))
	for k, v := range remote {
		out[k] = v
	}

	s.mu.Lock()
	for key, n := range s.failedClicks {
		s.settleLocked(key, n, 0)
	}
	clear(s.failedClicks)
	for key, d := range s.pending {
		rec, ok := out[key]
		if !ok {
			ref, parsed := models.ParseCompositeKey(key, s.tables)
			if !parsed {
				continue
			}
			rec = models.CounterRecord{TableName: ref.Table, PhotoID: ref.ID}
		}
		rec.ClickCount += d.clicks
		rec.ViewCount += d.views
		out[key] = rec
	}
	s.mu.Unlock()

	if err != nil {
		return out, fmt.Errorf("读取远端计数失败: %w", err)
	}
	return out, nil
}

func (s *Sync) deltaLocked(key string) *delta {
	d, ok := s.pending[key]
	if !ok {
		d = &delta{}
		s.pending[key] = d
	}
	return d
}

func (s *Sync) settleLocked(key string, clicks, views int64) {
	d, ok := s.pending[key]
	if !ok {
		return
	}
	d.clicks -= clicks
	d.views -= views
	if d.clicks <= 0 && d.views <= 0 {
		delete(s.pending, key)
	}
}

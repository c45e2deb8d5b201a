package memory

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/database"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Store 是 database.Store 的内存实现，用于本地演示和测试。
// 可以对单表或计数操作注入错误，并统计读取次数。
type Store struct {
	mu       sync.Mutex
	tables   map[string][]models.RawRecord
	counters map[string]models.CounterRecord

	fetchCalls   map[string]int
	failTables   map[string]error
	failCounters error
	failWrites   error
	writeCalls   int
}

var _ database.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		tables:     make(map[string][]models.RawRecord),
		counters:   make(map[string]models.CounterRecord),
		fetchCalls: make(map[string]int),
		failTables: make(map[string]error),
	}
}

type seedCounter struct {
	Table  string `yaml:"table"`
	ID     string `yaml:"id"`
	Clicks int64  `yaml:"clicks"`
	Views  int64  `yaml:"views"`
}

type seedFile struct {
	Tables   map[string][]map[string]any `yaml:"tables"`
	Counters []seedCounter               `yaml:"counters"`
}

// LoadSeedFile 从 YAML 夹具文件读取表数据和计数。
func LoadSeedFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取种子文件: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("无法解析种子文件: %w", err)
	}
	s := NewStore()
	for table, rows := range seed.Tables {
		for _, row := range rows {
			s.AddRecord(table, models.RawRecord(row))
		}
	}
	for _, c := range seed.Counters {
		s.SetCounter(models.CounterRecord{TableName: c.Table, PhotoID: c.ID, ClickCount: c.Clicks, ViewCount: c.Views})
	}
	return s, nil
}

func (s *Store) AddRecord(table string, rec models.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], rec)
}

func (s *Store) SetCounter(rec models.CounterRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[rec.Key()] = rec
}

// FailTable 让之后对该表的读取返回 err，err 为 nil 时恢复。
func (s *Store) FailTable(table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failTables, table)
		return
	}
	s.failTables[table] = err
}

func (s *Store) FailCounters(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCounters = err
}

func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = err
}

// FetchCalls 返回对某表的累计读取次数。
func (s *Store) FetchCalls(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls[table]
}

func (s *Store) TotalFetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.fetchCalls {
		total += n
	}
	return total
}

func (s *Store) WriteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCalls
}

func (s *Store) Counter(table, photoID string) (models.CounterRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.counters[models.CompositeKey(table, photoID)]
	return rec, ok
}

func (s *Store) FetchAll(ctx context.Context, table string) ([]models.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls[table]++
	if err := s.failTables[table]; err != nil {
		return nil, err
	}
	rows := s.tables[table]
	out := make([]models.RawRecord, len(rows))
	for i, row := range rows {
		cp := make(models.RawRecord, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out[i] = cp
	}
	return out, nil
}

func (s *Store) FetchCounters(ctx context.Context) (map[string]models.CounterRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCounters != nil {
		return nil, s.failCounters
	}
	out := make(map[string]models.CounterRecord, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out, nil
}

func (s *Store) GetCounter(ctx context.Context, table, photoID string) (*models.CounterRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCounters != nil {
		return nil, s.failCounters
	}
	rec, ok := s.counters[models.CompositeKey(table, photoID)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) InsertCounter(ctx context.Context, rec models.CounterRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCalls++
	if s.failWrites != nil {
		return s.failWrites
	}
	if _, exists := s.counters[rec.Key()]; exists {
		return errors.New("计数记录已存在: " + rec.Key())
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	s.counters[rec.Key()] = rec
	return nil
}

func (s *Store) UpdateCounter(ctx context.Context, rec models.CounterRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCalls++
	if s.failWrites != nil {
		return s.failWrites
	}
	if _, exists := s.counters[rec.Key()]; !exists {
		return database.ErrNotFound
	}
	s.counters[rec.Key()] = rec
	return nil
}

func (s *Store) Close(ctx context.Context) error { return nil }

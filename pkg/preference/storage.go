package preference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Storage 是设备本地的键值存储。键不存在时返回 ("", false, nil)。
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// MemoryStorage 只保存在进程内存中。
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// FileStorage 把所有键值保存在一个 JSON 文件中，每次写入都整体落盘。
type FileStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	kv := map[string]string{}
	if len(data) == 0 {
		return kv, nil
	}
	if err := json.Unmarshal(data, &kv); err != nil {
		return nil, fmt.Errorf("无法解析偏好文件 %s: %w", f.path, err)
	}
	return kv, nil
}

func (f *FileStorage) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := kv[key]
	return v, ok, nil
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.load()
	if err != nil {
		// 文件损坏时从空状态重新写入
		kv = map[string]string{}
	}
	kv[key] = value
	data, err := json.MarshalIndent(kv, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// BadgerStorage 用嵌入式 BadgerDB 保存偏好，适合设备数较多的服务端部署。
type BadgerStorage struct {
	db *badger.DB
}

// OpenBadger 打开 (或创建) path 处的 BadgerDB。path 为空时使用内存模式。
func OpenBadger(path string) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("无法打开 BadgerDB: %w", err)
	}
	return &BadgerStorage{db: db}, nil
}

func (b *BadgerStorage) Get(key string) (string, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(value), true, nil
}

func (b *BadgerStorage) Set(key, value string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

func (b *BadgerStorage) Close() error {
	return b.db.Close()
}

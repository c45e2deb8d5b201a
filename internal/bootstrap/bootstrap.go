package bootstrap

import (
	"PICs_Gallery/config"
	"PICs_Gallery/pkg/aggregator"
	"PICs_Gallery/pkg/counter"
	"PICs_Gallery/pkg/database"
	"PICs_Gallery/pkg/database/memory"
	"PICs_Gallery/pkg/database/mongo"
	"PICs_Gallery/pkg/database/rest"
	"PICs_Gallery/pkg/gallery"
	"PICs_Gallery/pkg/preference"
	"PICs_Gallery/pkg/registry"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// App 持有按配置组装好的全部组件。
type App struct {
	Config      *config.Config
	Store       database.Store
	Registry    *registry.Registry
	Counters    *counter.Sync
	Aggregator  *aggregator.Aggregator
	Preferences *preference.Manager
	Gallery     *gallery.Service

	closers []func() error
}

// OpenStore 根据 database.driver 创建数据存储。
func OpenStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	switch cfg.Database.Driver {
	case "rest", "":
		return rest.NewClient(cfg.Rest, slog.Default().With("component", "rest"))
	case "mongo":
		store, err := mongo.NewStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("无法连接到数据库: %w", err)
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("无法创建/验证数据库索引: %w", err)
		}
		return store, nil
	case "memory":
		if cfg.Database.SeedFile == "" {
			return memory.NewStore(), nil
		}
		return memory.LoadSeedFile(cfg.Database.SeedFile)
	default:
		return nil, fmt.Errorf("未知的数据库驱动: %s", cfg.Database.Driver)
	}
}

// OpenPreferenceStorage 根据 preferences.driver 创建设备本地存储，返回的关闭函数可能为 nil。
func OpenPreferenceStorage(cfg *config.Config) (preference.Storage, func() error, error) {
	switch cfg.Preferences.Driver {
	case "file", "":
		return preference.NewFileStorage(cfg.Preferences.Path), nil, nil
	case "badger":
		b, err := preference.OpenBadger(cfg.Preferences.Path)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case "memory":
		return preference.NewMemoryStorage(), nil, nil
	default:
		return nil, nil, fmt.Errorf("未知的偏好存储驱动: %s", cfg.Preferences.Driver)
	}
}

// New 按配置组装应用。
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	reg, err := registry.FromConfig(cfg.Gallery.Tables)
	if err != nil {
		return nil, fmt.Errorf("数据表登记无效: %w", err)
	}
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Assemble(cfg, reg, store)
}

// Assemble 用已有的存储组装其余组件，测试中可直接传入内存存储。
func Assemble(cfg *config.Config, reg *registry.Registry, store database.Store) (*App, error) {
	app := &App{Config: cfg, Store: store, Registry: reg}
	app.closers = append(app.closers, func() error { return store.Close(context.Background()) })

	storage, closeStorage, err := OpenPreferenceStorage(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if closeStorage != nil {
		app.closers = append(app.closers, closeStorage)
	}

	log := slog.Default()
	app.Counters = counter.NewSync(store, reg.TableNames(), counter.Options{
		MaxRetries: cfg.Gallery.ViewMaxRetries,
		Logger:     log.With("component", "counter"),
	})
	app.Aggregator = aggregator.New(store, reg, app.Counters, aggregator.Options{
		TTL:          cfg.Gallery.CacheTTL,
		Workers:      cfg.Gallery.FetchWorkers,
		SyntheticIDs: cfg.Gallery.SyntheticIDs,
		Logger:       log.With("component", "aggregator"),
	})
	app.Preferences = preference.NewManagerWithOptions(storage, preference.ManagerOptions{
		Capacity: cfg.Gallery.SessionCapacity,
		IdleTTL:  cfg.Gallery.SessionTTL,
		Logger:   log.With("component", "preference"),
	})
	app.Gallery = gallery.NewService(reg, app.Aggregator, app.Counters, app.Preferences, gallery.Options{
		PageSize:         cfg.Gallery.PageSize,
		DefaultAlgorithm: cfg.Gallery.DefaultAlgorithm,
		SessionCapacity:  cfg.Gallery.SessionCapacity,
		SessionTTL:       cfg.Gallery.SessionTTL,
		Logger:           log.With("component", "gallery"),
	})
	return app, nil
}

// Close 等待在途的计数写入，然后按相反顺序关闭资源。
func (a *App) Close() error {
	if a.Counters != nil {
		a.Counters.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

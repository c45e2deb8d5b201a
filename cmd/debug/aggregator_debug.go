//go:build ignore
// +build ignore

// ^^^ 在运行 go run aggregator_debug.go 之前，请注释掉上面这两行

package main

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/aggregator"
	"PICs_Gallery/pkg/counter"
	"PICs_Gallery/pkg/database/memory"
	"PICs_Gallery/pkg/registry"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"
)

const seedPath = "testdata/seed.yaml"

func main() {
	log.Println("======================================================")
	log.Println("===         Aggregator 模块调试程序启动            ===")
	log.Println("===   (内存存储 + 种子文件，其中一张表读取失败)     ===")
	log.Println("======================================================")

	store, err := memory.LoadSeedFile(seedPath)
	if err != nil {
		log.Fatalf("加载种子文件失败: %v", err)
	}
	store.FailTable("bangla_quotes_1", errors.New("模拟的网络错误"))

	reg := registry.Default()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cs := counter.NewSync(store, reg.TableNames(), counter.Options{Logger: logger})
	agg := aggregator.New(store, reg, cs, aggregator.Options{TTL: time.Minute, Logger: logger})

	ctx := context.Background()
	snap, err := agg.LoadAll(ctx)
	if err != nil {
		log.Fatalf("聚合失败: %v", err)
	}
	log.Printf("--- 第一次加载: %d 张图片，%d 张表失败 ---", len(snap.Photos), len(snap.Failed))
	for _, f := range snap.Failed {
		log.Printf("  失败: %v", f)
	}

	again, _ := agg.LoadAll(ctx)
	log.Printf("--- 第二次加载命中缓存: %t (代数 %d) ---", again == snap, again.Generation)

	if len(snap.Photos) > 0 {
		first := snap.Photos[0]
		cs.RecordClickRef(first.Ref())
		agg.Apply(first.CompositeKey, 1, 0)
		cs.Wait()
		after, _ := agg.LoadAll(ctx)
		log.Printf("--- 点击 %s 后快照计数: %d ---", first.CompositeKey, clicksOf(after.Photos, first.CompositeKey))
	}

	counts := make(map[string]int)
	for _, p := range snap.Photos {
		counts[p.Category]++
	}
	fmt.Println("\n--- 分类分布 ---")
	for c, n := range counts {
		fmt.Printf("  %-16s %d\n", c, n)
	}
}

func clicksOf(photos []models.Photo, key string) int64 {
	for _, p := range photos {
		if p.CompositeKey == key {
			return p.ClickCount
		}
	}
	return -1
}

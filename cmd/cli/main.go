package main

import (
	"PICs_Gallery/config"
	"PICs_Gallery/internal/bootstrap"
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/logger"
	"PICs_Gallery/pkg/maintenance"
	"PICs_Gallery/pkg/ordering"
	"PICs_Gallery/pkg/paginator"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func main() {
	// --- 1. 定义命令行参数 ---
	action := flag.String("action", "", "要执行的操作: list-tables, load, order, search, click, prefs, stats, manifest, backup-counters, dump-database")
	category := flag.String("category", "all", "用于 order 的分类 (all, popular 或具体分类)")
	algorithm := flag.String("algorithm", "", "用于 order 的排序算法: "+strings.Join(ordering.Names(), ", "))
	query := flag.String("query", "", "用于 search 操作的搜索关键词")
	device := flag.String("device", "cli", "设备ID，决定使用哪一份偏好")
	table := flag.String("table", "", "用于 click 的数据表")
	photoID := flag.String("id", "", "用于 click 的图片ID")
	output := flag.String("output", "backups", "维护操作的输出目录")
	page := flag.Int("page", 1, "分页页码")
	limit := flag.Int("limit", 20, "每页数量")

	flag.Parse()

	if *action == "" {
		fmt.Println("错误: 必须提供 -action 参数。")
		flag.Usage()
		os.Exit(1)
	}

	// --- 2. 初始化应用核心组件 ---
	if err := config.LoadConfig("."); err != nil {
		log.Fatalf("FATAL: 无法加载配置: %v", err)
	}
	if err := logger.InitLogger(); err != nil {
		log.Fatalf("FATAL: 无法初始化日志: %v", err)
	}

	ctx := context.Background()
	app, err := bootstrap.New(ctx, config.C)
	if err != nil {
		slog.Error("FATAL: 无法初始化图库服务", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	svc := app.Gallery
	maintenanceModule := maintenance.NewMaintenance(slog.Default(), config.C.Gallery.FetchWorkers)

	// --- 3. 根据 action 参数执行相应的功能 ---
	switch *action {
	case "list-tables":
		fmt.Println("--- 已登记的数据表 ---")
		for _, e := range svc.Tables() {
			fmt.Printf("  %-28s %-16s %-14s 权重 %.1f\n", e.TableName, e.DisplayName, e.Category, e.Weight)
		}

	case "load":
		start := time.Now()
		n, err := svc.Reload(ctx)
		if err != nil {
			slog.Error("聚合失败", "error", err)
			return
		}
		snap, _ := svc.Snapshot(ctx)
		fmt.Printf("共加载 %d 张图片，耗时 %s\n", n, time.Since(start).Round(time.Millisecond))
		for _, f := range snap.Failed {
			fmt.Printf("  读取失败: %s (%v)\n", f.Table, f.Err)
		}

	case "order":
		view, err := svc.Session(*device).View(ctx, *category, *algorithm, *page, *limit)
		if err != nil {
			slog.Error("排序失败", "error", err)
			return
		}
		fmt.Printf("--- 分类 %s，算法 %s，第 %d/%d 页，共 %d 张 ---\n",
			view.Category, view.Algorithm, view.CurrentPage, view.TotalPages, view.TotalItems)
		printPhotos(view.Photos)

	case "search":
		photos, err := svc.Search(ctx, *query)
		if err != nil {
			slog.Error("搜索失败", "error", err)
			return
		}
		p := paginator.Clamp(*page, len(photos), *limit)
		fmt.Printf("总共找到 %d 张匹配 '%s' 的图片 (正在显示第 %d 页，每页 %d 张):\n", len(photos), *query, p, *limit)
		printPhotos(paginator.Page(photos, p, *limit))

	case "click":
		if *table == "" || *photoID == "" {
			fmt.Println("错误: click 操作需要提供 -table 和 -id 参数。")
			return
		}
		if err := svc.Click(ctx, *device, models.PhotoRef{Table: *table, ID: *photoID}); err != nil {
			slog.Error("记录点击失败", "error", err)
			return
		}
		app.Counters.Wait()
		fmt.Printf("已记录点击 %s-%s\n", *table, *photoID)

	case "prefs":
		fmt.Printf("--- 设备 '%s' 的偏好 ---\n", *device)
		for _, p := range svc.Preferences(*device, *limit) {
			fmt.Printf("  %-28s 点击 %4d 次  权重 %.1f\n", p.Table, p.Count, p.Weight)
		}

	case "stats":
		st, err := svc.Stats(ctx, *device)
		if err != nil {
			slog.Error("统计失败", "error", err)
			return
		}
		fmt.Printf("共 %d 张图片 (快照时间 %s)\n", st.TotalPhotos, st.SnapshotAt.Format(time.RFC3339))
		fmt.Println("按数据表:")
		for _, c := range st.ByTable {
			fmt.Printf("  %-28s %d\n", c.Name, c.Count)
		}
		fmt.Println("按分类:")
		for _, c := range st.ByCategory {
			fmt.Printf("  %-28s %d\n", c.Name, c.Count)
		}
		if len(st.FailedTables) > 0 {
			fmt.Printf("读取失败的数据表: %s\n", strings.Join(st.FailedTables, ", "))
		}

	case "manifest":
		snap, err := svc.Snapshot(ctx)
		if err != nil {
			slog.Error("聚合失败", "error", err)
			return
		}
		out, _ := filepath.Abs(*output)
		res, err := maintenanceModule.GenerateManifest(ctx, snap.Photos, out)
		if err != nil {
			slog.Error("生成快照清单失败", "error", err)
			return
		}
		fmt.Printf("清单已写入 %s (%d 张，重复 %d 张)\n", res.Path, res.Photos, res.Duplicates)

	case "backup-counters":
		out, _ := filepath.Abs(*output)
		path, n, err := maintenanceModule.BackupCounters(ctx, app.Store, out)
		if err != nil {
			slog.Error("计数备份失败", "error", err)
			return
		}
		fmt.Printf("已备份 %d 条计数到 %s\n", n, path)

	case "dump-database":
		if config.C.Database.Driver != "mongo" {
			fmt.Println("错误: dump-database 只支持 mongo 驱动。")
			return
		}
		out, _ := filepath.Abs(*output)
		if err := maintenanceModule.BackupDatabase(ctx, config.C.Database.URI, config.C.Database.Name, out); err != nil {
			slog.Error("数据库备份失败", "error", err)
		}

	default:
		fmt.Printf("错误: 未知的 action '%s'\n", *action)
		flag.Usage()
	}
}

func printPhotos(photos []models.Photo) {
	for _, p := range photos {
		title := p.Title
		if title == "" {
			title = "(无标题)"
		}
		fmt.Printf("  %-32s %-14s 点击 %3d 浏览 %4d  %s\n", p.CompositeKey, p.Category, p.ClickCount, p.ViewCount, title)
	}
}

package maintenance

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/database"
	"PICs_Gallery/pkg/hasher"
	"PICs_Gallery/pkg/logger"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// Maintenance 提供离线维护操作：快照清单、计数备份和 mongodump 备份。
type Maintenance struct {
	logger     *slog.Logger
	numWorkers int
	now        func() time.Time
}

// NewMaintenance 创建一个新的维护模块实例
func NewMaintenance(log *slog.Logger, workerCount int) *Maintenance {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &Maintenance{
		logger:     logger.OrDefault(log).With("component", "maintenance"),
		numWorkers: workerCount,
		now:        time.Now,
	}
}

// ManifestResult 描述一次清单生成的结果。
type ManifestResult struct {
	Path       string
	Photos     int
	Duplicates int // 指纹与前面某张图片相同的条目数
}

type manifestLine struct {
	index       int
	fingerprint string
	line        string
}

// GenerateManifest 并发地为快照中的图片生成清单，每行 "指纹 *复合键 地址"，顺序与快照一致。
func (m *Maintenance) GenerateManifest(ctx context.Context, photos []models.Photo, outputPath string) (ManifestResult, error) {
	m.logger.Info("--- 开始生成快照清单 ---", "photos", len(photos))

	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return ManifestResult{}, fmt.Errorf("无法创建输出目录: %w", err)
	}
	manifestPath := filepath.Join(outputPath, fmt.Sprintf("manifest_%s.txt", m.now().Format("2006-01-02")))

	var wg sync.WaitGroup
	tasks := make(chan int, m.numWorkers)
	results := make(chan manifestLine, m.numWorkers)

	for i := 0; i < m.numWorkers; i++ {
		wg.Add(1)
		go m.manifestWorker(&wg, photos, tasks, results)
	}

	// 单独的协程收集结果，最后按原顺序写出
	lines := make([]manifestLine, len(photos))
	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		for r := range results {
			lines[r.index] = r
		}
	}()

	var dispatchErr error
dispatch:
	for i := range photos {
		select {
		case <-ctx.Done():
			dispatchErr = ctx.Err()
			break dispatch
		case tasks <- i:
		}
	}
	close(tasks)
	wg.Wait()
	close(results)
	collectWg.Wait()
	if dispatchErr != nil {
		return ManifestResult{}, fmt.Errorf("清单生成被中断: %w", dispatchErr)
	}

	var b strings.Builder
	seen := make(map[string]struct{}, len(lines))
	res := ManifestResult{Path: manifestPath, Photos: len(lines)}
	for _, l := range lines {
		if _, dup := seen[l.fingerprint]; dup {
			res.Duplicates++
		}
		seen[l.fingerprint] = struct{}{}
		b.WriteString(l.line)
	}
	if err := os.WriteFile(manifestPath, []byte(b.String()), 0644); err != nil {
		return ManifestResult{}, fmt.Errorf("无法写入清单文件: %w", err)
	}

	m.logger.Info("--- 快照清单生成完毕 ---", "path", manifestPath, "duplicates", res.Duplicates)
	return res, nil
}

func (m *Maintenance) manifestWorker(wg *sync.WaitGroup, photos []models.Photo, tasks <-chan int, results chan<- manifestLine) {
	defer wg.Done()
	for i := range tasks {
		p := photos[i]
		fp := hasher.Fingerprint(p.ImageURL)
		results <- manifestLine{
			index:       i,
			fingerprint: fp,
			line:        fmt.Sprintf("%s *%s %s\n", fp, p.CompositeKey, p.ImageURL),
		}
	}
}

// BackupCounters 把全部点击/浏览计数按复合键排序后写成 gzip 压缩的 JSON，返回文件路径和条数。
func (m *Maintenance) BackupCounters(ctx context.Context, store database.CounterStore, outputPath string) (string, int, error) {
	counters, err := store.FetchCounters(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("读取计数失败: %w", err)
	}
	records := make([]models.CounterRecord, 0, len(counters))
	for _, c := range counters {
		records = append(records, c)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key() < records[j].Key() })

	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return "", 0, fmt.Errorf("无法创建输出目录: %w", err)
	}
	archive := filepath.Join(outputPath, fmt.Sprintf("counters_backup_%s.json.gz", m.now().Format("2006-01-02_150405")))
	file, err := os.Create(archive)
	if err != nil {
		return "", 0, fmt.Errorf("无法创建备份文件: %w", err)
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	if err := json.NewEncoder(zw).Encode(records); err != nil {
		return "", 0, fmt.Errorf("写入备份失败: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", 0, fmt.Errorf("写入备份失败: %w", err)
	}
	m.logger.Info("计数备份成功", "path", archive, "records", len(records))
	return archive, len(records), nil
}

// BackupDatabase 调用 mongodump 工具来备份数据库
func (m *Maintenance) BackupDatabase(ctx context.Context, dbURI, dbName, outputPath string) error {
	m.logger.Info("--- 开始执行数据库备份 ---")

	if _, err := exec.LookPath("mongodump"); err != nil {
		return fmt.Errorf("在系统 PATH 中找不到 'mongodump' 命令，请安装 MongoDB Database Tools: %w", err)
	}

	archiveFile := filepath.Join(outputPath, fmt.Sprintf("db_backup_%s.gz", m.now().Format("2006-01-02_150405")))
	cmd := exec.CommandContext(ctx, "mongodump",
		"--uri", dbURI,
		"--db", dbName,
		"--archive="+archiveFile,
		"--gzip",
	)
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		m.logger.Debug("mongodump 输出", "output", string(out))
	}
	if err != nil {
		return fmt.Errorf("执行 mongodump 失败: %w", err)
	}

	m.logger.Info("--- 数据库备份成功 ---", "path", archiveFile)
	return nil
}

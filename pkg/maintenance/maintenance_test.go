package maintenance

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/database/memory"
	"PICs_Gallery/pkg/hasher"
	"PICs_Gallery/pkg/logger"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedMaintenance() *Maintenance {
	m := NewMaintenance(logger.Discard(), 3)
	m.now = func() time.Time { return time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC) }
	return m
}

func TestGenerateManifest(t *testing.T) {
	var photos []models.Photo
	for i := 1; i <= 20; i++ {
		photos = append(photos, models.Photo{
			CompositeKey: fmt.Sprintf("t1-%d", i),
			ImageURL:     fmt.Sprintf("https://e.com/%d.jpg", i),
		})
	}
	// 同一张图片出现在另一张表
	photos = append(photos, models.Photo{CompositeKey: "t2-1", ImageURL: "https://E.com/1.jpg"})

	dir := t.TempDir()
	res, err := fixedMaintenance().GenerateManifest(context.Background(), photos, dir)
	require.NoError(t, err)
	assert.Equal(t, 21, res.Photos)
	assert.Equal(t, 1, res.Duplicates)
	assert.True(t, strings.HasSuffix(res.Path, "manifest_2025-06-01.txt"))

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 21)
	for i, l := range lines {
		assert.Contains(t, l, "*"+photos[i].CompositeKey+" ")
	}
	assert.True(t, strings.HasPrefix(lines[0], hasher.Fingerprint("https://e.com/1.jpg")))
}

func TestGenerateManifest_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	photos := make([]models.Photo, 100)
	_, err := fixedMaintenance().GenerateManifest(ctx, photos, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackupCounters(t *testing.T) {
	store := memory.NewStore()
	store.SetCounter(models.CounterRecord{TableName: "b", PhotoID: "1", ClickCount: 3, ViewCount: 9})
	store.SetCounter(models.CounterRecord{TableName: "a", PhotoID: "2", ClickCount: 1})

	path, n, err := fixedMaintenance().BackupCounters(context.Background(), store, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	var got []models.CounterRecord
	require.NoError(t, json.NewDecoder(zr).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "a-2", got[0].Key())
	assert.Equal(t, int64(9), got[1].ViewCount)
}

func TestBackupCounters_StoreError(t *testing.T) {
	store := memory.NewStore()
	store.FailCounters(errors.New("down"))
	_, _, err := fixedMaintenance().BackupCounters(context.Background(), store, t.TempDir())
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	assert.Equal(t, ":8080", c.Server.Port)
	assert.Equal(t, "rest", c.Database.Driver)
	assert.Equal(t, 5*time.Minute, c.Gallery.CacheTTL)
	assert.Equal(t, 150, c.Gallery.PageSize)
	assert.Equal(t, "smartPersonalized", c.Gallery.DefaultAlgorithm)
	assert.Equal(t, 3, c.Gallery.ViewMaxRetries)
	assert.Equal(t, 10000, c.Gallery.SessionCapacity)
	assert.Equal(t, 30*time.Minute, c.Gallery.SessionTTL)
	assert.Equal(t, "file", c.Preferences.Driver)

	c.Gallery.PageSize = 20
	c.ApplyDefaults()
	assert.Equal(t, 20, c.Gallery.PageSize)
}

func TestLoadConfig(t *testing.T) {
	old := C
	t.Cleanup(func() { C = old })

	dir := t.TempDir()
	yaml := `
database:
  driver: memory
gallery:
  cacheTTL: 90s
  tables:
    - name: photography_1
      display: Photography 1
      category: photography
      weight: 1.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	require.NoError(t, LoadConfig(dir))

	assert.Equal(t, "memory", C.Database.Driver)
	assert.Equal(t, 90*time.Second, C.Gallery.CacheTTL)
	require.Len(t, C.Gallery.Tables, 1)
	assert.Equal(t, 1.5, C.Gallery.Tables[0].Weight)
	assert.Equal(t, 150, C.Gallery.PageSize)
}

func TestLoadConfig_Missing(t *testing.T) {
	assert.Error(t, LoadConfig(t.TempDir()))
}

func TestSave_RoundTrip(t *testing.T) {
	old := C
	t.Cleanup(func() { C = old })

	var c Config
	c.ApplyDefaults()
	c.Rest.URL = "https://example.supabase.co"
	c.Gallery.ViewFlushInterval = 45 * time.Second

	dir := t.TempDir()
	require.NoError(t, Save(&c, filepath.Join(dir, "config.yaml")))
	require.NoError(t, LoadConfig(dir))
	assert.Equal(t, "https://example.supabase.co", C.Rest.URL)
	assert.Equal(t, 45*time.Second, C.Gallery.ViewFlushInterval)
}

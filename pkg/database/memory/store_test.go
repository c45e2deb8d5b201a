package memory

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/database"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
tables:
  photography_1:
    - id: 1
      image_url: https://i.ibb.co/a.jpg
      title: first
    - id: 2
      image: //i.ibb.co/b.jpg
  bangla_quotes_1:
    - iid: q1
      img: https://i.ibb.co/q.jpg
counters:
  - table: photography_1
    id: "1"
    clicks: 7
    views: 30
`

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0644))

	s, err := LoadSeedFile(path)
	require.NoError(t, err)

	rows, err := s.FetchAll(context.Background(), "photography_1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "first", rows[0]["title"])

	counters, err := s.FetchCounters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), counters["photography_1-1"].ClickCount)
	assert.Equal(t, int64(30), counters["photography_1-1"].ViewCount)
}

func TestLoadSeedFile_Missing(t *testing.T) {
	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestFetchAll_ReturnsCopiesAndCounts(t *testing.T) {
	s := NewStore()
	s.AddRecord("t", models.RawRecord{"id": "1"})

	rows, err := s.FetchAll(context.Background(), "t")
	require.NoError(t, err)
	rows[0]["id"] = "mutated"

	again, err := s.FetchAll(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "1", again[0]["id"])
	assert.Equal(t, 2, s.FetchCalls("t"))
}

func TestFailTable(t *testing.T) {
	s := NewStore()
	boom := errors.New("down")
	s.FailTable("t", boom)
	_, err := s.FetchAll(context.Background(), "t")
	assert.ErrorIs(t, err, boom)

	s.FailTable("t", nil)
	_, err = s.FetchAll(context.Background(), "t")
	assert.NoError(t, err)
}

func TestUpdateCounter_NotFound(t *testing.T) {
	s := NewStore()
	err := s.UpdateCounter(context.Background(), models.CounterRecord{TableName: "t", PhotoID: "1"})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

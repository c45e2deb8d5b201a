package normalizer

import (
	"PICs_Gallery/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var photoEntry = models.TableEntry{TableName: "photography_1", DisplayName: "Photography 1", Category: "photography", Weight: 1.5}

func TestNormalize_Basic(t *testing.T) {
	raw := models.RawRecord{
		"iid":         "abc",
		"id":          float64(7),
		"image_url":   "http://i.ibb.co.com/x.jpg#1",
		"title":       "Sunset",
		"description": "over the river",
		"created_at":  "2025-03-01T10:00:00Z",
	}
	p, err := Normalizer{}.Normalize(raw, "photography_1", photoEntry, 0)
	require.NoError(t, err)

	assert.Equal(t, "abc", p.ID)
	assert.Equal(t, "photography_1-abc", p.CompositeKey)
	assert.Equal(t, "https://i.ibb.co/x.jpg", p.ImageURL)
	assert.Equal(t, p.ImageURL, p.ThumbnailURL)
	assert.Equal(t, "photography", p.Category)
	assert.Equal(t, "Photography 1", p.CategoryLabel)
	assert.Equal(t, 1.5, p.TableWeight)
	assert.Equal(t, "Sunset", p.Title)
	assert.Equal(t, "over the river", p.Description)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), p.CreatedAt)
}

func TestNormalize_FieldPriority(t *testing.T) {
	raw := models.RawRecord{
		"photo_id":      "p-1",
		"image_iid":     "later",
		"image":         "https://example.com/full.jpg",
		"img":           "https://example.com/ignored.jpg",
		"thumbnail_url": "//example.com/thumb.jpg",
	}
	p, err := Normalizer{}.Normalize(raw, "t", models.TableEntry{}, 3)
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, "https://example.com/full.jpg", p.ImageURL)
	assert.Equal(t, "https://example.com/thumb.jpg", p.ThumbnailURL)
	assert.Equal(t, models.DefaultCategory, p.Category)
	assert.Equal(t, "t", p.CategoryLabel)
	assert.Equal(t, 1.0, p.TableWeight)
	assert.Empty(t, p.Title)
}

func TestNormalize_NumericID(t *testing.T) {
	p, err := Normalizer{}.Normalize(models.RawRecord{"id": float64(42), "img": "https://e.com/a"}, "t", models.TableEntry{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "42", p.ID)

	p, err = Normalizer{}.Normalize(models.RawRecord{"ID": int32(9), "img": "https://e.com/a"}, "t", models.TableEntry{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "9", p.ID)
}

func TestNormalize_DropsWithoutImage(t *testing.T) {
	for _, raw := range []models.RawRecord{
		{"id": "1"},
		{"id": "1", "image_url": "", "image": "", "img": ""},
		{"id": "1", "image_url": "   "},
		{"id": "1", "image_url": nil, "thumbnail_url": "https://e.com/t.jpg"},
	} {
		_, err := Normalizer{SyntheticIDs: true}.Normalize(raw, "t", models.TableEntry{}, 0)
		assert.ErrorIs(t, err, ErrMalformedRecord)
	}
}

func TestNormalize_MissingID(t *testing.T) {
	raw := models.RawRecord{"image_url": "https://e.com/a.jpg"}

	_, err := Normalizer{}.Normalize(raw, "t", models.TableEntry{}, 5)
	assert.ErrorIs(t, err, ErrMalformedRecord)

	p, err := Normalizer{SyntheticIDs: true}.Normalize(raw, "t", models.TableEntry{}, 5)
	require.NoError(t, err)
	assert.Equal(t, "generated_5", p.ID)
	assert.Equal(t, "t-generated_5", p.CompositeKey)
}

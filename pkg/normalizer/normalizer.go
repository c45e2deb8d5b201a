package normalizer

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/sanitizer"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedRecord 表示原始记录无法归一化 (没有图片地址或没有ID)，调用方应直接丢弃。
var ErrMalformedRecord = errors.New("无法归一化的记录")

// 各字段的候选列名，按优先级排列。
var (
	IDFields        = []string{"iid", "id", "photo_id", "ID", "image_iid"}
	ImageFields     = []string{"image_url", "image", "img"}
	ThumbnailFields = []string{"thumbnail_url"}
	CreatedAtFields = []string{"created_at", "createdAt", "inserted_at"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalizer 把各数据表的原始记录转换为统一的 Photo。
type Normalizer struct {
	// SyntheticIDs 为 true 时，缺少ID的记录使用 "generated_<行号>" 作为ID，而不是被丢弃。
	SyntheticIDs bool
	Logger       *slog.Logger
}

// Normalize 归一化一条记录。index 是记录在本表结果中的行号，仅用于合成ID。
// 无法解析出图片地址或ID时返回 ErrMalformedRecord。
func (n Normalizer) Normalize(raw models.RawRecord, tableName string, entry models.TableEntry, index int) (models.Photo, error) {
	id := firstString(raw, IDFields)
	if id == "" {
		if !n.SyntheticIDs {
			return models.Photo{}, fmt.Errorf("%w: 表 %s 第 %d 行缺少ID", ErrMalformedRecord, tableName, index)
		}
		id = "generated_" + strconv.Itoa(index)
	}

	rawImage := firstString(raw, ImageFields)
	imageURL := sanitizer.Sanitize(rawImage)
	if imageURL == "" {
		return models.Photo{}, fmt.Errorf("%w: 表 %s 记录 %s 缺少图片地址", ErrMalformedRecord, tableName, id)
	}
	thumbnailURL := sanitizer.Sanitize(firstString(raw, ThumbnailFields))
	if thumbnailURL == "" {
		thumbnailURL = imageURL
	}
	if n.Logger != nil && rawImage != imageURL {
		n.Logger.Debug("图片地址已修正", "table", tableName, "from", rawImage, "to", imageURL)
	}

	category := entry.Category
	if category == "" {
		category = models.DefaultCategory
	}
	label := entry.DisplayName
	if label == "" {
		label = tableName
	}
	weight := entry.Weight
	if weight <= 0 {
		weight = 1
	}

	return models.Photo{
		ID:            id,
		SourceTable:   tableName,
		CompositeKey:  models.CompositeKey(tableName, id),
		ImageURL:      imageURL,
		ThumbnailURL:  thumbnailURL,
		Title:         text(raw["title"]),
		Description:   text(raw["description"]),
		Category:      category,
		CategoryLabel: label,
		TableWeight:   weight,
		CreatedAt:     firstTime(raw, CreatedAtFields),
	}, nil
}

// firstString 按顺序探测候选字段，返回第一个非空值。
func firstString(raw models.RawRecord, fields []string) string {
	for _, f := range fields {
		if s := idString(raw[f]); s != "" {
			return s
		}
	}
	return ""
}

// idString 把标识类字段转换为字符串，零值视为缺失。
func idString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == 0 {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return idString(float64(x))
	case int:
		return nonZeroInt(int64(x))
	case int32:
		return nonZeroInt(int64(x))
	case int64:
		return nonZeroInt(x)
	case uint64:
		if x == 0 {
			return ""
		}
		return strconv.FormatUint(x, 10)
	case bool:
		return ""
	case interface{ Hex() string }:
		return x.Hex()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func nonZeroInt(x int64) string {
	if x == 0 {
		return ""
	}
	return strconv.FormatInt(x, 10)
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func firstTime(raw models.RawRecord, fields []string) time.Time {
	for _, f := range fields {
		switch x := raw[f].(type) {
		case time.Time:
			return x
		case interface{ Time() time.Time }:
			return x.Time()
		case string:
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, x); err == nil {
					return t
				}
			}
		}
	}
	return time.Time{}
}

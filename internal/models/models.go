package models

import (
	"strings"
	"time"
)

// DefaultCategory 是未登记数据表的分类。
const DefaultCategory = "other"

// RawRecord 是数据表中的一行原始记录，字段名与类型因表而异。
type RawRecord map[string]any

// TableEntry 是数据表登记表中的一项，进程启动时加载，之后不再修改。
type TableEntry struct {
	TableName   string  `json:"tableName" yaml:"name"`
	DisplayName string  `json:"displayName" yaml:"display"`
	Category    string  `json:"category" yaml:"category"`
	Weight      float64 `json:"weight" yaml:"weight"`
}

// Photo 是归一化后的图片，创建后不再修改。
type Photo struct {
	ID            string    `json:"id"`
	SourceTable   string    `json:"sourceTable"`
	CompositeKey  string    `json:"compositeKey"`
	ImageURL      string    `json:"imageUrl"`
	ThumbnailURL  string    `json:"thumbnailUrl"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	CategoryLabel string    `json:"categoryLabel"`
	TableWeight   float64   `json:"tableWeight"`
	CreatedAt     time.Time `json:"createdAt"`

	// 计数只是加载时的快照，权威值在计数存储中。
	ClickCount int64 `json:"clickCount"`
	ViewCount  int64 `json:"viewCount"`
}

// WithCounts 返回带有新计数的副本。
func (p Photo) WithCounts(clicks, views int64) Photo {
	p.ClickCount = clicks
	p.ViewCount = views
	return p
}

// Ref 返回这张图片的身份引用。
func (p Photo) Ref() PhotoRef {
	return PhotoRef{Table: p.SourceTable, ID: p.ID}
}

// PhotoRef 用 (数据表, 图片ID) 定位一张图片。
type PhotoRef struct {
	Table string `json:"table"`
	ID    string `json:"id"`
}

// Key 返回 "table-id" 形式的复合键。
func (r PhotoRef) Key() string {
	return CompositeKey(r.Table, r.ID)
}

func CompositeKey(table, id string) string {
	return table + "-" + id
}

// ParseCompositeKey 根据已知的数据表名拆分复合键。
// 表名和ID都可能含有 "-"，所以按最长匹配的表名前缀拆分。
func ParseCompositeKey(key string, tables []string) (PhotoRef, bool) {
	best := ""
	for _, t := range tables {
		if len(t) > len(best) && strings.HasPrefix(key, t+"-") && len(key) > len(t)+1 {
			best = t
		}
	}
	if best == "" {
		return PhotoRef{}, false
	}
	return PhotoRef{Table: best, ID: key[len(best)+1:]}, true
}

// CounterRecord 是远端计数存储中的一条记录。
type CounterRecord struct {
	TableName  string    `json:"table_name" bson:"table_name"`
	PhotoID    string    `json:"photo_id" bson:"photo_id"`
	ClickCount int64     `json:"click_count" bson:"click_count"`
	ViewCount  int64     `json:"view_count" bson:"view_count"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

func (c CounterRecord) Key() string {
	return CompositeKey(c.TableName, c.PhotoID)
}

// PreferenceRecord 是设备本地保存的偏好记录。
type PreferenceRecord struct {
	TableClicks map[string]int64 `json:"tableClicks"`
	LastUpdated int64            `json:"lastUpdated"`
}

// TablePreference 是偏好排行中的一项。
type TablePreference struct {
	Table  string  `json:"table"`
	Count  int64   `json:"count"`
	Weight float64 `json:"weight"`
}

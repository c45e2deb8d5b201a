package gallery

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/ordering"
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mozillazg/go-unidecode"
)

// fold 把文本转为 ASCII 小写，用于不区分大小写和变音符号的匹配。
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(s)))
}

// Search 在标题和描述中做子串匹配，结果按创建时间降序。空查询返回全部图片。
func (s *Service) Search(ctx context.Context, query string) ([]models.Photo, error) {
	snap, err := s.aggregator.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	q := fold(query)
	matched := make([]models.Photo, 0)
	for _, p := range snap.Photos {
		if q == "" || strings.Contains(fold(p.Title), q) || strings.Contains(fold(p.Description), q) {
			matched = append(matched, p)
		}
	}
	return ordering.Order(matched, ordering.Chronological, ordering.Context{}), nil
}

// Count 是某个维度下的图片数。
type Count struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
	Count int    `json:"count"`
}

// Stats 描述当前快照的分布以及设备偏好。
type Stats struct {
	TotalPhotos  int                      `json:"totalPhotos"`
	ByTable      []Count                  `json:"byTable"`
	ByCategory   []Count                  `json:"byCategory"`
	TopPreferred []models.TablePreference `json:"topPreferred"`
	FailedTables []string                 `json:"failedTables"`
	SnapshotAt   time.Time                `json:"snapshotAt"`
}

// Stats 统计快照中每张表、每个分类的图片数。
func (s *Service) Stats(ctx context.Context, deviceID string) (Stats, error) {
	snap, err := s.aggregator.LoadAll(ctx)
	if err != nil {
		return Stats{}, err
	}
	tables := make(map[string]int)
	categories := make(map[string]int)
	for _, p := range snap.Photos {
		tables[p.SourceTable]++
		categories[p.Category]++
	}

	st := Stats{
		TotalPhotos:  len(snap.Photos),
		TopPreferred: s.Preferences(deviceID, 5),
		FailedTables: make([]string, 0, len(snap.Failed)),
		SnapshotAt:   snap.Timestamp,
	}
	for _, e := range s.registry.Entries() {
		st.ByTable = append(st.ByTable, Count{Name: e.TableName, Label: e.DisplayName, Count: tables[e.TableName]})
	}
	for name, n := range categories {
		st.ByCategory = append(st.ByCategory, Count{Name: name, Count: n})
	}
	sort.Slice(st.ByCategory, func(i, j int) bool {
		if st.ByCategory[i].Count != st.ByCategory[j].Count {
			return st.ByCategory[i].Count > st.ByCategory[j].Count
		}
		return st.ByCategory[i].Name < st.ByCategory[j].Name
	})
	for _, f := range snap.Failed {
		st.FailedTables = append(st.FailedTables, f.Table)
	}
	sort.Strings(st.FailedTables)
	return st, nil
}

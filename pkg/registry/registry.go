package registry

import (
	"PICs_Gallery/config"
	"PICs_Gallery/internal/models"
	"fmt"
	"sort"
)

// defaultTables 是内置的数据表登记，配置文件中没有 gallery.tables 时使用。
var defaultTables = []models.TableEntry{
	{TableName: "bangla_quotes_1", DisplayName: "Bangla Quotes 1", Category: "bangla", Weight: 1},
	{TableName: "bangla_quotes_2", DisplayName: "Bangla Quotes 2", Category: "bangla", Weight: 1},
	{TableName: "bangla_quotes_3", DisplayName: "Bangla Quotes 3", Category: "bangla", Weight: 1},
	{TableName: "bangla_quotes_4", DisplayName: "Bangla Quotes 4", Category: "bangla", Weight: 1},
	{TableName: "english_quote_1", DisplayName: "English Quotes 1", Category: "english", Weight: 1},
	{TableName: "english_quote_2", DisplayName: "English Quotes 2", Category: "english", Weight: 1},
	{TableName: "photography_1", DisplayName: "Photography 1", Category: "photography", Weight: 1.5},
	{TableName: "photography_2", DisplayName: "Photography 2", Category: "photography", Weight: 1.5},
	{TableName: "photography_3", DisplayName: "Photography 3", Category: "photography", Weight: 1.5},
	{TableName: "photography_4", DisplayName: "Photography 4", Category: "photography", Weight: 1.5},
	{TableName: "post_site", DisplayName: "Posts", Category: "photography", Weight: 1.2},
	{TableName: "dotted_illustration_1", DisplayName: "Dotted Illustration 1", Category: "illustrations", Weight: 1},
	{TableName: "dotted_illustration_2", DisplayName: "Dotted Illustration 2", Category: "illustrations", Weight: 1},
	{TableName: "illustration_1", DisplayName: "Illustration 1", Category: "illustrations", Weight: 1},
	{TableName: "illustration_2", DisplayName: "Illustration 2", Category: "illustrations", Weight: 1},
}

// Registry 是只读的数据表登记表，保留登记顺序。
type Registry struct {
	entries []models.TableEntry
	byName  map[string]models.TableEntry
}

// New 用给定的登记项构造 Registry。表名为空或重复时返回错误。
func New(entries []models.TableEntry) (*Registry, error) {
	r := &Registry{
		entries: make([]models.TableEntry, 0, len(entries)),
		byName:  make(map[string]models.TableEntry, len(entries)),
	}
	for _, e := range entries {
		if e.TableName == "" {
			return nil, fmt.Errorf("数据表登记缺少表名")
		}
		if _, dup := r.byName[e.TableName]; dup {
			return nil, fmt.Errorf("数据表 '%s' 重复登记", e.TableName)
		}
		if e.Category == "" {
			e.Category = models.DefaultCategory
		}
		if e.DisplayName == "" {
			e.DisplayName = e.TableName
		}
		if e.Weight <= 0 {
			e.Weight = 1
		}
		r.entries = append(r.entries, e)
		r.byName[e.TableName] = e
	}
	return r, nil
}

// Default 返回内置登记表。
func Default() *Registry {
	r, _ := New(defaultTables)
	return r
}

// FromConfig 从配置构造登记表，未配置时退回内置登记表。
func FromConfig(tables []config.TableConfig) (*Registry, error) {
	if len(tables) == 0 {
		return Default(), nil
	}
	entries := make([]models.TableEntry, 0, len(tables))
	for _, t := range tables {
		entries = append(entries, models.TableEntry{
			TableName:   t.Name,
			DisplayName: t.Display,
			Category:    t.Category,
			Weight:      t.Weight,
		})
	}
	return New(entries)
}

func (r *Registry) Entries() []models.TableEntry {
	out := make([]models.TableEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) Lookup(table string) (models.TableEntry, bool) {
	e, ok := r.byName[table]
	return e, ok
}

// Entry 总是返回一个登记项；未登记的表使用默认分类和权重 1。
func (r *Registry) Entry(table string) models.TableEntry {
	if e, ok := r.byName[table]; ok {
		return e
	}
	return models.TableEntry{TableName: table, DisplayName: table, Category: models.DefaultCategory, Weight: 1}
}

func (r *Registry) TableNames() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.TableName
	}
	return names
}

// Categories 返回去重并排序后的分类列表。
func (r *Registry) Categories() []string {
	seen := make(map[string]struct{})
	for _, e := range r.entries {
		seen[e.Category] = struct{}{}
	}
	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

func (r *Registry) Len() int { return len(r.entries) }

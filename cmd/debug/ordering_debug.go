//go:build ignore
// +build ignore

// ^^^ 在运行 go run ordering_debug.go 之前，请注释掉上面这两行

package main

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/ordering"
	"fmt"
	"log"
	"strings"
	"time"
)

// fakePrefs 偏好 photography_1
type fakePrefs struct{}

func (fakePrefs) GetWeight(table string) float64 {
	if table == "photography_1" {
		return 3
	}
	return 1
}

func (fakePrefs) GetTopPreferred(limit int) []models.TablePreference {
	return []models.TablePreference{{Table: "photography_1", Count: 25, Weight: 3}}
}

func main() {
	log.Println("======================================================")
	log.Println("===          Ordering 模块调试程序启动             ===")
	log.Println("===  (3 张表 x 12 张图片，打印每种算法的前 12 张)  ===")
	log.Println("======================================================")

	tables := []struct{ name, category string }{
		{"photography_1", "photography"},
		{"bangla_quotes_1", "bangla"},
		{"illustration_1", "illustrations"},
	}
	var photos []models.Photo
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for ti, t := range tables {
		for i := 1; i <= 12; i++ {
			photos = append(photos, models.Photo{
				ID:           fmt.Sprint(i),
				SourceTable:  t.name,
				CompositeKey: models.CompositeKey(t.name, fmt.Sprint(i)),
				Category:     t.category,
				TableWeight:  1 + float64(ti)*0.5,
				ClickCount:   int64((i * 7) % 13),
				ViewCount:    int64(i * 3),
				CreatedAt:    base.Add(time.Duration(ti*12+i) * time.Hour),
			})
		}
	}

	c := ordering.Context{Preferences: fakePrefs{}, Now: time.Now(), Rand: ordering.SeededRand(42)}
	for _, name := range ordering.Names() {
		out := ordering.Order(photos, name, c)
		var cats []string
		for _, p := range out[:12] {
			cats = append(cats, string(p.Category[0]))
		}
		fmt.Printf("%-18s %s\n", name, strings.Join(cats, " "))
	}
}

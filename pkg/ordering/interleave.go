package ordering

import (
	"PICs_Gallery/internal/models"
	"math/rand/v2"
)

type groupKey func(models.Photo) string

func byCategory(p models.Photo) string { return p.Category }

func byTable(p models.Photo) string { return p.SourceTable }

// byCategoryAndTable 以 (分类, 数据表) 作为联合分组键。
func byCategoryAndTable(p models.Photo) string { return p.Category + "\x00" + p.SourceTable }

// shuffledGroups 按 key 分组 (组的顺序为首次出现的顺序)，并把每组各自打乱。
func shuffledGroups(photos []models.Photo, key groupKey, rng *rand.Rand) [][]models.Photo {
	index := make(map[string]int)
	var groups [][]models.Photo
	for _, p := range photos {
		k := key(p)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], p)
	}
	for _, g := range groups {
		ShuffleInPlace(g, rng)
	}
	return groups
}

// interleave 轮流从每组取下一项，跳过已取完的组，直到所有组都取完。
// reshuffle 为 true 时每一轮都重新打乱组的访问顺序。
func interleave(groups [][]models.Photo, rng *rand.Rand, reshuffle bool) []models.Photo {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	out := make([]models.Photo, 0, total)
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	for round := 0; len(out) < total; round++ {
		if reshuffle {
			ShuffleInPlace(order, rng)
		}
		for _, gi := range order {
			if round < len(groups[gi]) {
				out = append(out, groups[gi][round])
			}
		}
	}
	return out
}

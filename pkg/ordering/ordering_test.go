package ordering

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/preference"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func photo(table, category, id string, clicks int64) models.Photo {
	return models.Photo{
		ID:           id,
		SourceTable:  table,
		CompositeKey: models.CompositeKey(table, id),
		Category:     category,
		TableWeight:  1,
		ClickCount:   clicks,
	}
}

// corpus 构造 tables 张表，每张 perTable 张图片，点击数各不相同。
func corpus(tables, perTable int) []models.Photo {
	var out []models.Photo
	for t := 0; t < tables; t++ {
		table := fmt.Sprintf("table_%d", t)
		category := fmt.Sprintf("cat_%d", t%2)
		for i := 0; i < perTable; i++ {
			out = append(out, photo(table, category, fmt.Sprint(i), int64(t*perTable+i)))
		}
	}
	return out
}

func keys(photos []models.Photo) []string {
	out := make([]string, len(photos))
	for i, p := range photos {
		out[i] = p.CompositeKey
	}
	return out
}

func prefsWith(clicks map[string]int) *preference.Store {
	s := preference.Load(nil, "", nil)
	for table, n := range clicks {
		for i := 0; i < n; i++ {
			_ = s.RecordClick(table)
		}
	}
	return s
}

func TestOrder_AllAlgorithmsArePermutations(t *testing.T) {
	input := corpus(5, 7)
	original := slices.Clone(input)
	ctx := Context{
		Preferences: prefsWith(map[string]int{"table_1": 12, "table_3": 3}),
		Now:         time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		Rand:        SeededRand(99),
	}
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			out := Order(input, name, ctx)
			require.Len(t, out, len(input))
			got, want := keys(out), keys(input)
			slices.Sort(got)
			slices.Sort(want)
			assert.Equal(t, want, got)
			assert.Equal(t, original, input, "input must not be modified")
		})
	}
}

func TestOrder_EmptyInput(t *testing.T) {
	for _, name := range Names() {
		out := Order(nil, name, Context{})
		assert.NotNil(t, out, name)
		assert.Empty(t, out, name)
	}
}

func TestOrder_UnknownNameFallsBack(t *testing.T) {
	assert.Equal(t, Default, Resolve("doesNotExist"))
	assert.Equal(t, Hybrid, Resolve(Hybrid))
	out := Order(corpus(2, 3), "doesNotExist", Context{Rand: SeededRand(1)})
	assert.Len(t, out, 6)
}

func TestNames(t *testing.T) {
	assert.Len(t, Names(), 12)
	assert.Contains(t, Names(), SmartPersonalized)
}

func TestBalanced_DistinctCategoriesFirst(t *testing.T) {
	input := []models.Photo{
		photo("a", "A", "1", 0), photo("a", "A", "2", 0), photo("a", "A", "3", 0),
		photo("b", "B", "1", 0),
	}
	for seed := int64(0); seed < 50; seed++ {
		out := Order(input, Balanced, Context{Rand: SeededRand(seed)})
		require.Len(t, out, 4)
		assert.NotEqual(t, out[0].Category, out[1].Category)
	}
}

func TestBalanced_TwoTablesAlternate(t *testing.T) {
	t1 := models.Photo{SourceTable: "T1", Category: "x", TableWeight: 1}
	t2 := models.Photo{SourceTable: "T2", Category: "y", TableWeight: 1.5}
	input := []models.Photo{}
	for i, base := range []models.Photo{t1, t1, t2, t2} {
		base.ID = fmt.Sprint(i)
		base.CompositeKey = models.CompositeKey(base.SourceTable, base.ID)
		input = append(input, base)
	}
	for seed := int64(0); seed < 50; seed++ {
		out := Order(input, Balanced, Context{Rand: SeededRand(seed)})
		cats := []string{out[0].Category, out[1].Category, out[2].Category, out[3].Category}
		assert.NotEqual(t, cats[0], cats[1])
		assert.NotEqual(t, cats[1], cats[2])
		assert.NotEqual(t, cats[2], cats[3])
	}
}

func TestTableBalanced_EachRoundVisitsEveryTable(t *testing.T) {
	input := corpus(3, 4)
	firstTables := map[string]int{}
	for seed := int64(0); seed < 60; seed++ {
		out := Order(input, TableBalanced, Context{Rand: SeededRand(seed)})
		for round := 0; round < 4; round++ {
			seen := map[string]bool{}
			for _, p := range out[round*3 : round*3+3] {
				seen[p.SourceTable] = true
			}
			assert.Len(t, seen, 3)
		}
		firstTables[out[0].SourceTable]++
	}
	// 访问顺序每轮重新打乱，不会总是同一张表打头
	assert.Greater(t, len(firstTables), 1)
}

func TestAdvancedMixed_GroupsByCategoryAndTable(t *testing.T) {
	input := []models.Photo{
		photo("t1", "x", "1", 0), photo("t1", "x", "2", 0),
		photo("t2", "x", "1", 0), photo("t2", "x", "2", 0),
	}
	out := Order(input, AdvancedMixed, Context{Rand: SeededRand(3)})
	assert.NotEqual(t, out[0].SourceTable, out[1].SourceTable)
	assert.NotEqual(t, out[2].SourceTable, out[3].SourceTable)
}

func TestPersonalized_PreferredTableLeadsMoreOften(t *testing.T) {
	input := []models.Photo{photo("fav", "x", "1", 0), photo("other", "y", "1", 0)}
	ctx := Context{Preferences: prefsWith(map[string]int{"fav": 60})}
	rng := SeededRand(11)
	favFirst := 0
	const trials = 3000
	for i := 0; i < trials; i++ {
		ctx.Rand = rng
		if Order(input, Personalized, ctx)[0].SourceTable == "fav" {
			favFirst++
		}
	}
	// 权重 5 对 1，期望约 5/6
	assert.Greater(t, favFirst, trials*3/4)
	assert.Less(t, favFirst, trials)
}

func TestPersonalized_OneItemPerTablePerRound(t *testing.T) {
	input := corpus(3, 3)
	ctx := Context{Preferences: prefsWith(map[string]int{"table_0": 25}), Rand: SeededRand(5)}
	out := Order(input, Personalized, ctx)
	for round := 0; round < 3; round++ {
		seen := map[string]bool{}
		for _, p := range out[round*3 : round*3+3] {
			assert.False(t, seen[p.SourceTable])
			seen[p.SourceTable] = true
		}
	}
}

func TestPoolCopies(t *testing.T) {
	assert.Equal(t, 1, poolCopies(1))
	assert.Equal(t, 2, poolCopies(1.2))
	assert.Equal(t, 2, poolCopies(1.5))
	assert.Equal(t, 2, poolCopies(2))
	assert.Equal(t, 3, poolCopies(3))
	assert.Equal(t, 5, poolCopies(5))
	assert.Equal(t, 1, poolCopies(0))
}

func TestSmartPersonalized_PopularFirst(t *testing.T) {
	input := corpus(4, 5) // 20 张，前 15% 即 3 张
	top := map[string]bool{"table_3-4": true, "table_3-3": true, "table_3-2": true}
	ctx := Context{Preferences: prefsWith(map[string]int{"table_0": 7})}
	for seed := int64(0); seed < 30; seed++ {
		ctx.Rand = SeededRand(seed)
		out := Order(input, SmartPersonalized, ctx)
		assert.True(t, top[out[0].CompositeKey], "got %s", out[0].CompositeKey)
	}
}

func TestSmartPersonalized_NoPreferences(t *testing.T) {
	input := corpus(3, 4)
	out := Order(input, SmartPersonalized, Context{Rand: SeededRand(8)})
	assert.Len(t, out, len(input))
}

func TestSuperAdvanced_PopularFirst(t *testing.T) {
	input := corpus(2, 5) // 10 张，前 20% 即 2 张
	for seed := int64(0); seed < 20; seed++ {
		out := Order(input, SuperAdvanced, Context{Rand: SeededRand(seed)})
		assert.Contains(t, []string{"table_1-4", "table_1-3"}, out[0].CompositeKey)
	}
}

func TestPopularity_StrongSignalWins(t *testing.T) {
	input := corpus(2, 5)
	input[3].ClickCount = 10000
	for seed := int64(0); seed < 20; seed++ {
		out := Order(input, Popularity, Context{Rand: SeededRand(seed)})
		assert.Equal(t, input[3].CompositeKey, out[0].CompositeKey)
	}
}

func TestTimeBased_StableWithinHour(t *testing.T) {
	input := corpus(3, 5)
	now := time.Date(2025, 6, 1, 9, 10, 0, 0, time.UTC)
	a := Order(input, TimeBased, Context{Now: now, Rand: SeededRand(1)})
	b := Order(input, TimeBased, Context{Now: now.Add(30 * time.Minute), Rand: SeededRand(2)})
	c := Order(input, TimeBased, Context{Now: now.Add(time.Hour)})
	assert.Equal(t, keys(a), keys(b))
	assert.NotEqual(t, keys(a), keys(c))
}

func TestChronological(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	input := corpus(1, 4)
	input[0].CreatedAt = base
	input[1].CreatedAt = base.Add(3 * time.Hour)
	input[2].CreatedAt = base.Add(time.Hour)
	out := Order(input, Chronological, Context{})
	assert.Equal(t, []string{"table_0-1", "table_0-2", "table_0-0", "table_0-3"}, keys(out))
}

func TestMostPopular_ClicksPlusTenthOfViews(t *testing.T) {
	a := photo("t", "x", "a", 1)
	b := photo("t", "x", "b", 0)
	b.ViewCount = 20
	c := photo("t", "x", "c", 0)
	out := Order([]models.Photo{c, a, b}, MostPopular, Context{})
	assert.Equal(t, []string{"t-b", "t-a", "t-c"}, keys(out))
}

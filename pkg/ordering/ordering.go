package ordering

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/metrics"
	"math/rand/v2"
	"sort"
	"time"
)

// 排序算法名称。
const (
	Random            = "random"
	Popularity        = "popularity"
	Balanced          = "balanced"
	TableBalanced     = "tableBalanced"
	AdvancedMixed     = "advancedMixed"
	Personalized      = "personalized"
	SmartPersonalized = "smartPersonalized"
	TimeBased         = "timeBased"
	Hybrid            = "hybrid"
	SuperAdvanced     = "superAdvanced"
	Chronological     = "chronological"
	MostPopular       = "mostPopular"

	// Default 是未知算法名时使用的算法。
	Default = SmartPersonalized
)

// Preferences 提供个性化排序需要的设备偏好。
type Preferences interface {
	GetWeight(table string) float64
	GetTopPreferred(limit int) []models.TablePreference
}

// Context 是一次排序调用的环境：设备偏好、当前时间和随机源。
// 零值可用：没有偏好，时间取 time.Now，随机源随机播种。
type Context struct {
	Preferences Preferences
	Now         time.Time
	Rand        *rand.Rand
}

func (c Context) weight(table string) float64 {
	if c.Preferences == nil {
		return 1
	}
	return c.Preferences.GetWeight(table)
}

func (c Context) topPreferred(limit int) []models.TablePreference {
	if c.Preferences == nil {
		return nil
	}
	return c.Preferences.GetTopPreferred(limit)
}

// Algorithm 对图片集合重新排序。实现不得修改输入，对空输入返回空结果。
type Algorithm func(photos []models.Photo, c Context, rng *rand.Rand) []models.Photo

var algorithms = map[string]Algorithm{
	Random:            randomOrder,
	Popularity:        popularityOrder,
	Balanced:          balancedOrder,
	TableBalanced:     tableBalancedOrder,
	AdvancedMixed:     advancedMixedOrder,
	Personalized:      personalizedOrder,
	SmartPersonalized: smartPersonalizedOrder,
	TimeBased:         timeBasedOrder,
	Hybrid:            hybridOrder,
	SuperAdvanced:     superAdvancedOrder,
	Chronological:     chronologicalOrder,
	MostPopular:       mostPopularOrder,
}

// Names 返回所有算法名，按字母排序。
func Names() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve 返回实际使用的算法名，未知名称退回 Default。
func Resolve(name string) string {
	if _, ok := algorithms[name]; ok {
		return name
	}
	return Default
}

// Order 用指定算法对 photos 排序并返回新切片。
func Order(photos []models.Photo, name string, c Context) []models.Photo {
	name = Resolve(name)
	if c.Now.IsZero() {
		c.Now = time.Now()
	}
	rng := c.Rand
	if rng == nil {
		rng = newRand()
	}
	start := time.Now()
	out := algorithms[name](photos, c, rng)
	metrics.OrderingDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if out == nil {
		out = []models.Photo{}
	}
	return out
}

func randomOrder(photos []models.Photo, _ Context, rng *rand.Rand) []models.Photo {
	return Shuffle(photos, rng)
}

// popularityOrder: 分数 = 0.3*点击 + 10*表权重 + [0,50) 随机数，降序。
// 随机项让热门排序不会一成不变。
func popularityOrder(photos []models.Photo, _ Context, rng *rand.Rand) []models.Photo {
	type scored struct {
		p     models.Photo
		score float64
	}
	list := make([]scored, len(photos))
	for i, p := range photos {
		list[i] = scored{p: p, score: 0.3*float64(p.ClickCount) + 10*p.TableWeight + rng.Float64()*50}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].score > list[j].score })
	out := make([]models.Photo, len(list))
	for i, s := range list {
		out[i] = s.p
	}
	return out
}

func balancedOrder(photos []models.Photo, _ Context, rng *rand.Rand) []models.Photo {
	return interleave(shuffledGroups(photos, byCategory, rng), rng, false)
}

func tableBalancedOrder(photos []models.Photo, _ Context, rng *rand.Rand) []models.Photo {
	return interleave(shuffledGroups(photos, byTable, rng), rng, true)
}

func advancedMixedOrder(photos []models.Photo, _ Context, rng *rand.Rand) []models.Photo {
	return interleave(shuffledGroups(photos, byCategoryAndTable, rng), rng, true)
}

// personalizedOrder 按表分组并各自打乱。每一轮构造一个表名池，每张表出现
// ceil(偏好权重) 次，打乱后按池的顺序每张表最多取一项，权重高的表更可能排在本轮前面。
func personalizedOrder(photos []models.Photo, c Context, rng *rand.Rand) []models.Photo {
	groups := shuffledGroups(photos, byTable, rng)
	copies := make([]int, len(groups))
	maxLen := 0
	for i, g := range groups {
		copies[i] = poolCopies(c.weight(g[0].SourceTable))
		if len(g) > maxLen {
			maxLen = len(g)
		}
	}

	out := make([]models.Photo, 0, len(photos))
	pool := make([]int, 0, len(groups))
	used := make([]bool, len(groups))
	for round := 0; round < maxLen; round++ {
		pool = pool[:0]
		for i := range groups {
			for k := 0; k < copies[i]; k++ {
				pool = append(pool, i)
			}
			used[i] = false
		}
		ShuffleInPlace(pool, rng)
		for _, gi := range pool {
			if used[gi] || round >= len(groups[gi]) {
				continue
			}
			used[gi] = true
			out = append(out, groups[gi][round])
		}
	}
	return out
}

// poolCopies 返回表名在本轮池中出现的次数，即权重向上取整，至少为 1。
func poolCopies(weight float64) int {
	n := int(weight)
	if float64(n) < weight {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// smartPersonalizedOrder:
//  1. 点击数前 15% 作为热门池；
//  2. 取设备最常点击的 3 张表；
//  3. 其余图片中，来自这些表的部分打乱后切出占其余总数 25% 的额外偏好池；
//  4. 剩下的做个性化排序；
//  5. 热门池和额外偏好池按固定间隔插回，插不完的追加到末尾。
func smartPersonalizedOrder(photos []models.Photo, c Context, rng *rand.Rand) []models.Photo {
	sorted := byClicksDesc(photos)
	popularCount := len(sorted) * 15 / 100
	popular, others := sorted[:popularCount], sorted[popularCount:]

	preferredTables := make(map[string]struct{})
	for _, p := range c.topPreferred(3) {
		preferredTables[p.Table] = struct{}{}
	}
	var preferred, regular []models.Photo
	for _, p := range others {
		if _, ok := preferredTables[p.SourceTable]; ok {
			preferred = append(preferred, p)
		} else {
			regular = append(regular, p)
		}
	}

	extraCount := len(others) * 25 / 100
	ShuffleInPlace(preferred, rng)
	if extraCount > len(preferred) {
		extraCount = len(preferred)
	}
	extra := preferred[:extraCount]
	remaining := make([]models.Photo, 0, len(others)-extraCount)
	remaining = append(remaining, preferred[extraCount:]...)
	remaining = append(remaining, regular...)

	base := personalizedOrder(remaining, c, rng)
	popularShuffled := Shuffle(popular, rng)
	extraShuffled := Shuffle(extra, rng)

	popularInterval := insertInterval(len(base), len(popularShuffled))
	extraInterval := insertInterval(len(base), len(extraShuffled))

	out := make([]models.Photo, 0, len(photos))
	pi, ei := 0, 0
	for i, p := range base {
		if i%popularInterval == 0 && pi < len(popularShuffled) {
			out = append(out, popularShuffled[pi])
			pi++
		}
		if i%extraInterval == extraInterval/2 && ei < len(extraShuffled) {
			out = append(out, extraShuffled[ei])
			ei++
		}
		out = append(out, p)
	}
	out = append(out, popularShuffled[pi:]...)
	out = append(out, extraShuffled[ei:]...)
	return out
}

func timeBasedOrder(photos []models.Photo, c Context, _ *rand.Rand) []models.Photo {
	return SeededShuffle(photos, TimeSeed(c.Now))
}

// hybridOrder: 点击数前 30% 保持原顺序，其余 70% 打乱，再整体做 advancedMixed 交错。
func hybridOrder(photos []models.Photo, c Context, rng *rand.Rand) []models.Photo {
	sorted := byClicksDesc(photos)
	topCount := len(sorted) * 30 / 100
	merged := make([]models.Photo, 0, len(sorted))
	merged = append(merged, sorted[:topCount]...)
	merged = append(merged, Shuffle(sorted[topCount:], rng)...)
	return advancedMixedOrder(merged, c, rng)
}

// superAdvancedOrder: 点击数前 20% 打乱后按固定间隔插入其余图片的 tableBalanced 结果中。
func superAdvancedOrder(photos []models.Photo, c Context, rng *rand.Rand) []models.Photo {
	sorted := byClicksDesc(photos)
	popularCount := len(sorted) * 20 / 100
	popular := Shuffle(sorted[:popularCount], rng)
	base := tableBalancedOrder(sorted[popularCount:], c, rng)

	interval := insertInterval(len(base), len(popular))
	out := make([]models.Photo, 0, len(photos))
	pi := 0
	for i, p := range base {
		if i%interval == 0 && pi < len(popular) {
			out = append(out, popular[pi])
			pi++
		}
		out = append(out, p)
	}
	return append(out, popular[pi:]...)
}

// chronologicalOrder 按创建时间降序，时间相同保持原顺序。
func chronologicalOrder(photos []models.Photo, _ Context, _ *rand.Rand) []models.Photo {
	out := clone(photos)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// mostPopularOrder 按 点击 + 0.1*浏览 降序，分数相同保持原顺序。
func mostPopularOrder(photos []models.Photo, _ Context, _ *rand.Rand) []models.Photo {
	out := clone(photos)
	score := func(p models.Photo) float64 { return float64(p.ClickCount) + 0.1*float64(p.ViewCount) }
	sort.SliceStable(out, func(i, j int) bool { return score(out[i]) > score(out[j]) })
	return out
}

func insertInterval(baseLen, poolLen int) int {
	if poolLen == 0 {
		return 1
	}
	if n := baseLen / poolLen; n > 0 {
		return n
	}
	return 1
}

func byClicksDesc(photos []models.Photo) []models.Photo {
	out := clone(photos)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClickCount > out[j].ClickCount })
	return out
}

func clone(photos []models.Photo) []models.Photo {
	out := make([]models.Photo, len(photos))
	copy(out, photos)
	return out
}

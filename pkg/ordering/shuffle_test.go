package ordering

import (
	"slices"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShuffle_FirstElementUniform(t *testing.T) {
	const (
		n      = 6
		trials = 60000
	)
	items := []int{0, 1, 2, 3, 4, 5}
	rng := SeededRand(20240601)
	var counts [n]int
	for i := 0; i < trials; i++ {
		counts[Shuffle(items, rng)[0]]++
	}

	expected := float64(trials) / n
	chi := 0.0
	for _, c := range counts {
		d := float64(c) - expected
		chi += d * d / expected
	}
	// 自由度 5，p=0.001 的临界值约为 20.5
	assert.Less(t, chi, 20.5, "counts=%v", counts)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, items, "input must not be modified")
}

func TestShuffle_IsPermutation(t *testing.T) {
	rng := SeededRand(7)
	f := func(in []int) bool {
		orig := slices.Clone(in)
		out := Shuffle(in, rng)
		if len(out) != len(in) || !slices.Equal(in, orig) {
			return false
		}
		a, b := slices.Clone(in), slices.Clone(out)
		slices.Sort(a)
		slices.Sort(b)
		return slices.Equal(a, b)
	}
	require.NoError(t, quick.Check(f, &quick.Config{MaxCount: 500}))
}

func TestShuffle_EmptyAndSingle(t *testing.T) {
	rng := SeededRand(1)
	assert.Empty(t, Shuffle([]int{}, rng))
	assert.Equal(t, []int{9}, Shuffle([]int{9}, rng))
}

func TestSeededShuffle_Reproducible(t *testing.T) {
	items := make([]int, 30)
	for i := range items {
		items[i] = i
	}
	a := SeededShuffle(items, 2025010113)
	b := SeededShuffle(items, 2025010113)
	c := SeededShuffle(items, 2025010114)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestTimeSeed(t *testing.T) {
	base := time.Date(2025, 3, 7, 13, 5, 0, 0, time.UTC)
	assert.Equal(t, int64(2025030713), TimeSeed(base))
	assert.Equal(t, TimeSeed(base), TimeSeed(base.Add(50*time.Minute)))
	assert.NotEqual(t, TimeSeed(base), TimeSeed(base.Add(time.Hour)))

	// 不同的 (日, 时) 组合不会相撞
	d1h2 := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	d2h1 := time.Date(2025, 3, 2, 1, 0, 0, 0, time.UTC)
	assert.NotEqual(t, TimeSeed(d1h2), TimeSeed(d2h1))
}

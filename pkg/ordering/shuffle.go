package ordering

import (
	"math/rand/v2"
	"time"
)

// Shuffle 返回 items 的一个均匀随机排列 (Fisher-Yates)，不修改输入。
func Shuffle[T any](items []T, rng *rand.Rand) []T {
	out := make([]T, len(items))
	copy(out, items)
	ShuffleInPlace(out, rng)
	return out
}

// ShuffleInPlace 从最后一个位置向前，每个位置 i 与 [0, i] 中均匀选出的位置交换。
func ShuffleInPlace[T any](items []T, rng *rand.Rand) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// SeededRand 返回由整数种子决定的伪随机数发生器，相同种子产生相同序列。
func SeededRand(seed int64) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// SeededShuffle 与 Shuffle 相同，但随机源由 seed 决定，可复现。
func SeededShuffle[T any](items []T, seed int64) []T {
	return Shuffle(items, SeededRand(seed))
}

// TimeSeed 把年、月、日、小时组合成一个整数种子：同一小时内不变，每小时变化。
func TimeSeed(t time.Time) int64 {
	return int64(t.Year())*1000000 + int64(t.Month())*10000 + int64(t.Day())*100 + int64(t.Hour())
}

// newRand 返回一个随机播种的发生器。*rand.Rand 不是并发安全的，每次排序单独创建。
func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

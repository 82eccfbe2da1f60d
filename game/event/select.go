package event

import (
	"math/rand/v2"
	"slices"

	"boardrush/game/board"
	"boardrush/game/content"
	"boardrush/game/domain"
)

// DuelQuestions は決闘1回あたりの問題数です。
const DuelQuestions = 3

// NewRand は試合シードから (turn, draw) ごとに決まった乱数列を作ります。
// 同じ入力なら全ピアで同じ結果になります。
func NewRand(seed uint64, turn uint32, draw uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(turn)<<32|draw))
}

// Difficulty はコマの進捗を3等分して難易度 1..3 を返します。
func Difficulty(progress int) int {
	if progress < 0 {
		progress = 0
	}
	tier := progress*content.MaxDifficulty/(board.FinishProgress+1) + 1
	return min(tier, content.MaxDifficulty)
}

// Select はカテゴリから未使用のコンテンツを1件選び、更新後の used を返します。
// 指定難易度が尽きていれば他の難易度から、カテゴリ全体が尽きていればそのカテゴリの used を空にして選び直します。
// プールが空なら false です。
func Select(table content.Table, category domain.EventType, difficulty int, used domain.UsedContent, rng *rand.Rand) (uint16, domain.UsedContent, bool) {
	return selectExcluding(table, category, difficulty, used, rng, nil)
}

func selectExcluding(table content.Table, category domain.EventType, difficulty int, used domain.UsedContent, rng *rand.Rand, exclude []uint16) (uint16, domain.UsedContent, bool) {
	pool := table.Pool(category)
	if len(pool) == 0 {
		return 0, used, false
	}
	candidates := func(u domain.UsedContent, matchDifficulty bool) []uint16 {
		var out []uint16
		for i, it := range pool {
			idx := uint16(i)
			if u.Has(category, idx) || slices.Contains(exclude, idx) {
				continue
			}
			if matchDifficulty && difficulty != 0 && it.Difficulty != difficulty {
				continue
			}
			out = append(out, idx)
		}
		return out
	}

	c := candidates(used, true)
	if len(c) == 0 {
		c = candidates(used, false)
	}
	if len(c) == 0 {
		// exhausted
		used = used.Reset(category)
		c = candidates(used, true)
		if len(c) == 0 {
			c = candidates(used, false)
		}
	}
	if len(c) == 0 {
		return 0, used, false
	}
	pick := c[rng.IntN(len(c))]
	return pick, used.With(category, pick), true
}

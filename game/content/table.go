package content

import (
	"errors"
	"fmt"
	"math"

	"boardrush/game/domain"
)

var (
	ErrInvalidItem = errors.New("invalid content item")
	ErrInvalidPack = errors.New("invalid content pack")
)

const (
	MinDifficulty = 1
	MaxDifficulty = 3
)

// Item はイベントで使う1件のコンテンツです。
// Quiz / Duel は Options と Answer（0始まり）を、Duel は正解時の Points を持ちます。
// Reward / Cost はトークン、XP は経験値です。
type Item struct {
	ID         string
	Category   domain.EventType
	Difficulty int
	Prompt     string
	Options    []string
	Answer     int
	Reward     int
	Cost       int
	Points     int
	XP         int
}

func (it Item) Validate() error {
	if !it.Category.Valid() {
		return fmt.Errorf("%w: %q has no category", ErrInvalidItem, it.ID)
	}
	if it.ID == "" {
		return fmt.Errorf("%w: empty id in %s", ErrInvalidItem, it.Category)
	}
	if it.Difficulty < MinDifficulty || it.Difficulty > MaxDifficulty {
		return fmt.Errorf("%w: %q difficulty %d", ErrInvalidItem, it.ID, it.Difficulty)
	}
	if it.Reward < 0 || it.Cost < 0 || it.Points < 0 || it.XP < 0 {
		return fmt.Errorf("%w: %q has negative amounts", ErrInvalidItem, it.ID)
	}
	switch it.Category {
	case domain.EventQuiz, domain.EventDuel:
		if len(it.Options) < 2 || it.Answer < 0 || it.Answer >= len(it.Options) {
			return fmt.Errorf("%w: %q answer %d of %d options", ErrInvalidItem, it.ID, it.Answer, len(it.Options))
		}
	}
	return nil
}

// Table は読み取り専用のコンテンツ表です。
type Table interface {
	// Pool はカテゴリ内の全件を宣言順で返します。インデックスが ContentRef になります。
	Pool(category domain.EventType) []Item
	// Items は難易度で絞り込みます。difficulty が0なら全件です。
	Items(category domain.EventType, difficulty int) []Item
	Lookup(category domain.EventType, index uint16) (Item, bool)
}

type MemoryTable struct {
	pools [domain.NumEventTypes][]Item
}

var _ Table = (*MemoryTable)(nil)

// NewMemoryTable validates items and groups them by category, keeping declaration order.
func NewMemoryTable(items []Item) (*MemoryTable, error) {
	t := &MemoryTable{}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidItem, it.ID)
		}
		seen[it.ID] = struct{}{}
		if len(t.pools[it.Category]) >= math.MaxUint16 {
			return nil, fmt.Errorf("%w: too many %s items", ErrInvalidPack, it.Category)
		}
		t.pools[it.Category] = append(t.pools[it.Category], it)
	}
	return t, nil
}

func (t *MemoryTable) Pool(category domain.EventType) []Item {
	if !category.Valid() {
		return nil
	}
	return t.pools[category]
}

func (t *MemoryTable) Items(category domain.EventType, difficulty int) []Item {
	var out []Item
	for _, it := range t.Pool(category) {
		if difficulty == 0 || it.Difficulty == difficulty {
			out = append(out, it)
		}
	}
	return out
}

func (t *MemoryTable) Lookup(category domain.EventType, index uint16) (Item, bool) {
	pool := t.Pool(category)
	if int(index) >= len(pool) {
		return Item{}, false
	}
	return pool[index], true
}

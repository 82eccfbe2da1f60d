package profile

import (
	"context"
	"slices"
	"sync"

	"boardrush/game/domain"
)

// MemoryStore はプロセス内の Store です。開発用とテスト用です。
type MemoryStore struct {
	mu       sync.RWMutex
	progress map[domain.PlayerID]Progress
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{progress: make(map[domain.PlayerID]Progress)}
}

func (s *MemoryStore) GetProgress(ctx context.Context, id domain.PlayerID) (Progress, error) {
	if err := ctx.Err(); err != nil {
		return Progress{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[id]
	if !ok {
		return Progress{PlayerID: id, Level: 1}, nil
	}
	p.Unlocked = slices.Clone(p.Unlocked)
	return p, nil
}

func (s *MemoryStore) ApplyRewards(ctx context.Context, id domain.PlayerID, delta Delta) error {
	if err := delta.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.progress[id]
	p.PlayerID = id
	p.XP += delta.XP
	p.Tokens += delta.Tokens
	if delta.Played {
		p.GamesPlayed++
	}
	if delta.Win {
		p.Wins++
	}
	p.Unlocked = mergeUnlocks(p.Unlocked, delta.Unlock)
	p.Level = LevelFor(p.XP)
	s.progress[id] = p
	return nil
}

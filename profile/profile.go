// Package profile は対局をまたいで残るプレイヤーの成長記録を扱います。
package profile

import (
	"context"
	"errors"
	"slices"

	"boardrush/game/domain"
	"boardrush/game/turn"
)

// LevelXP はレベルが1つ上がるのに必要な経験値です。
const LevelXP = 100

// UnlockChampion は初勝利で解放されるコンテンツです。
const UnlockChampion = "badge:champion"

var ErrInvalidDelta = errors.New("invalid progress delta")

//go:generate go tool mockgen -destination=./mocks/store_mock.go -package=mocks . Store

// Store はプレイヤーIDをキーにした成長記録の保存先です。
type Store interface {
	GetProgress(ctx context.Context, id domain.PlayerID) (Progress, error)
	ApplyRewards(ctx context.Context, id domain.PlayerID, delta Delta) error
}

type Progress struct {
	PlayerID    domain.PlayerID
	XP          int
	Level       int
	Tokens      int
	GamesPlayed int
	Wins        int
	Unlocked    []string
}

// Delta は1回の反映で加算する量です。Unlock は既に持っていれば無視されます。
type Delta struct {
	XP     int
	Tokens int
	Win    bool
	Played bool
	Unlock []string
}

func (d Delta) IsZero() bool {
	return d.XP == 0 && d.Tokens == 0 && !d.Win && !d.Played && len(d.Unlock) == 0
}

func (d Delta) Validate() error {
	if d.XP < 0 {
		return ErrInvalidDelta
	}
	return nil
}

func LevelFor(xp int) int {
	if xp < 0 {
		return 1
	}
	return 1 + xp/LevelXP
}

func mergeUnlocks(have, add []string) []string {
	out := slices.Clone(have)
	for _, u := range add {
		if u != "" && !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	slices.Sort(out)
	return out
}

// Deltas は状態機械の Effect を席ごとの Delta にまとめます。
// GameOver では名簿の全員に Played、勝者に Win と UnlockChampion を付けます。
func Deltas(roster []domain.Player, effects []turn.Effect) map[domain.PlayerID]Delta {
	out := make(map[domain.PlayerID]Delta)
	for _, e := range effects {
		switch e := e.(type) {
		case turn.RewardEffect:
			d := out[e.PlayerID]
			d.XP += e.XP
			d.Tokens += e.Tokens
			out[e.PlayerID] = d
		case turn.GameOverEffect:
			for _, p := range roster {
				if p.IsAI {
					continue
				}
				d := out[p.ID]
				d.Played = true
				if p.ID == e.Winner {
					d.Win = true
					d.Unlock = append(d.Unlock, UnlockChampion)
				}
				out[p.ID] = d
			}
		}
	}
	for id, d := range out {
		if d.IsZero() {
			delete(out, id)
		}
	}
	return out
}

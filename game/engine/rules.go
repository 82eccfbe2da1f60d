package engine

import (
	"errors"
	"fmt"

	"boardrush/game/domain"
)

var ErrInvalidRules = errors.New("invalid rules")

// Rules は試合ごとに変えられるルール値です。
type Rules struct {
	// DiceToExit はコマを Home から出すのに必要な出目です。
	DiceToExit int
	// TokensToFinish 個のコマをゴールさせた色が勝ちます。
	TokensToFinish int
	// AllowStacking が false のとき、周回路の1マスに同色のコマは1つまでです。
	AllowStacking bool
	// ExtraTurnOnSix が true なら6を出したプレイヤーはもう一度手番を得ます。
	ExtraTurnOnSix bool
}

func DefaultRules() Rules {
	return Rules{
		DiceToExit:     6,
		TokensToFinish: 2,
		AllowStacking:  true,
	}
}

func (r Rules) Validate() error {
	if r.DiceToExit < 1 || r.DiceToExit > 6 {
		return fmt.Errorf("%w: dice to exit %d", ErrInvalidRules, r.DiceToExit)
	}
	if r.TokensToFinish < 1 || r.TokensToFinish > domain.PawnsPerPlayer {
		return fmt.Errorf("%w: tokens to finish %d", ErrInvalidRules, r.TokensToFinish)
	}
	return nil
}

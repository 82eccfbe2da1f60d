package application

import (
	game "boardrush/game/domain"
	"boardrush/game/turn"
)

// BotController はボットの意思決定インターフェースです。
// 今の状態で self が出せる手があれば返します。状態は変更しません。
type BotController interface {
	Decide(s *game.GameState, self game.PlayerID) (turn.Payload, bool)
}

// BotFactory は AI の席ごとにコントローラを作ります。
type BotFactory func() BotController

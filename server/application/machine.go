package application

import (
	"fmt"
	"os"

	"boardrush/game/board"
	"boardrush/game/content"
	"boardrush/game/engine"
	"boardrush/game/event"
	"boardrush/game/turn"
	"boardrush/utils"
)

// MachineFromEnv は CONTENT_PACK と盤のルールの環境変数から状態機械を組み立てます。
// サーバーとボットは同じ設定で動かす必要があります。
func MachineFromEnv() (*turn.Machine, error) {
	table, err := content.Default()
	if path := os.Getenv("CONTENT_PACK"); path != "" {
		table, err = content.LoadLuaFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	rules := engine.DefaultRules()
	rules.TokensToFinish = utils.GetEnvInt("TOKENS_TO_FINISH", rules.TokensToFinish)
	rules.AllowStacking = utils.GetEnvBool("ALLOW_STACKING", rules.AllowStacking)
	rules.ExtraTurnOnSix = utils.GetEnvBool("EXTRA_TURN_ON_SIX", rules.ExtraTurnOnSix)
	return turn.NewMachine(board.Standard(), rules, table, event.DefaultRewards())
}

package domain

import (
	"context"
	"time"

	game "boardrush/game/domain"
)

// Application はルームのゲーム進行です。すべてのメソッドはルームのゴルーチンからだけ呼ばれます。
type Application interface {
	// Start はロビーの名簿で対局を始めます。
	Start(ctx context.Context, roster []game.Player) error
	Join(ctx context.Context, player game.PlayerID)
	Leave(ctx context.Context, player game.PlayerID)
	HandleMessage(ctx context.Context, sender game.PlayerID, data []byte) error
	Tick(ctx context.Context, now time.Time)
	Finished() bool
}

// Outbox はアプリケーションからの送信口です。実際の送信は次の tick でまとめて行われます。
type Outbox interface {
	EnqueueBroadcast(ctx context.Context, data []byte) error
	EnqueueSendTo(ctx context.Context, player game.PlayerID, data []byte) error
}

// ApplicationFactory はルームごとにアプリケーションを作ります。
type ApplicationFactory func(roomID RoomID, out Outbox) Application

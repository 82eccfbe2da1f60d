// Package client はリレーサーバーに接続して1席を遊ぶクライアント側のレプリカです。
// 受信したフレームと自分の手番の判断を netplay.Loop の1本のゴルーチンで処理します。
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	game "boardrush/game/domain"
	"boardrush/game/turn"
	"boardrush/netplay"
	"boardrush/server/application"
)

var ErrNoSeat = errors.New("player is not in the roster")

// Inbound はサーバーから届いた1フレームです。
type Inbound []byte

// Tick は意思決定のきっかけです。
type Tick struct{}

// SendFunc はサーバーへ1フレームを書き込みます。
type SendFunc func(ctx context.Context, data []byte) error

// Player は netplay.Handler です。
type Player struct {
	self    game.PlayerID
	machine *turn.Machine
	bot     application.BotController
	send    SendFunc

	start     *netplay.StartPayload
	replica   *netplay.Replica
	requested bool

	done     chan struct{}
	doneOnce sync.Once
}

var _ netplay.Handler = (*Player)(nil)

func NewPlayer(self game.PlayerID, machine *turn.Machine, bot application.BotController, send SendFunc) *Player {
	return &Player{
		self:    self,
		machine: machine,
		bot:     bot,
		send:    send,
		done:    make(chan struct{}),
	}
}

// Done は試合が終わると閉じます。
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Replica は同期が済むまで nil です。Loop のゴルーチンの外から触らないでください。
func (p *Player) Replica() *netplay.Replica {
	return p.replica
}

func (p *Player) Handle(ctx context.Context, req any) error {
	switch req := req.(type) {
	case Inbound:
		return p.handleFrame(ctx, req)
	case Tick:
		return p.act(ctx)
	default:
		return fmt.Errorf("client: unknown request %T", req)
	}
}

func (p *Player) handleFrame(ctx context.Context, data []byte) error {
	f, err := netplay.ParseFrame(data)
	if err != nil {
		return err
	}
	switch f.Payload.DataType {
	case netplay.DataTypeControl:
		return p.handleControl(ctx, f)
	case netplay.DataTypeAction:
		a, err := netplay.DecodeAction(f)
		if err != nil {
			return err
		}
		return p.receive(ctx, a)
	default:
		return fmt.Errorf("client: unknown data type %d", f.Payload.DataType)
	}
}

func (p *Player) handleControl(ctx context.Context, f *netplay.Frame) error {
	switch netplay.ControlSubType(f.Payload.SubType) {
	case netplay.ControlSubTypeAssign:
		if f.Sender() != p.self {
			return fmt.Errorf("%w: assigned %s", ErrNoSeat, f.Sender())
		}
		join := netplay.JoinPayload{}
		return p.send(ctx, netplay.EncodeControl(p.self, netplay.ControlSubTypeJoin, join.Encode()))
	case netplay.ControlSubTypePing:
		return p.send(ctx, netplay.EncodePongMessage(p.self))
	case netplay.ControlSubTypeStart:
		start, err := netplay.ParseStartPayload(f.Body)
		if err != nil {
			return err
		}
		p.start = start
		// 名簿が変わり得るので、次のチェックポイントで作り直します
		p.replica = nil
		p.requested = false
	case netplay.ControlSubTypeError:
		code, msg, err := netplay.ParseErrorMessage(f.Body)
		if err != nil {
			return err
		}
		slog.DebugContext(ctx, "server rejected a frame", "playerID", p.self, "code", code, "message", msg)
	}
	return nil
}

func (p *Player) receive(ctx context.Context, a turn.Action) error {
	if p.replica == nil {
		return p.bootstrap(ctx, a)
	}
	res, err := p.replica.Receive(a)
	if res.Adopted {
		p.requested = false
	}
	switch {
	case errors.Is(err, netplay.ErrSequenceGap):
		return p.requestCheckpoint(ctx)
	case errors.Is(err, netplay.ErrDesyncDetected):
		slog.WarnContext(ctx, "adopted checkpoint after desync", "playerID", p.self, "turn", p.replica.TurnNumber())
	case errors.Is(err, netplay.ErrDuplicate):
	case err != nil:
		slog.DebugContext(ctx, "ignored action", "playerID", p.self, "kind", a.Kind(), "err", err)
	}
	p.checkFinished()
	return nil
}

// bootstrap は Start の後の最初のチェックポイントからレプリカを作ります。
func (p *Player) bootstrap(ctx context.Context, a turn.Action) error {
	if p.start == nil {
		return nil
	}
	cp, ok := a.Payload.(turn.Checkpoint)
	if !ok || a.SenderID != p.start.AuthorityID {
		return p.requestCheckpoint(ctx)
	}
	decoded, err := netplay.DecodeCheckpoint(cp.Data)
	if err != nil {
		return err
	}
	replica, err := netplay.NewReplicaFromCheckpoint(netplay.Config{
		Self:        p.self,
		AuthorityID: p.start.AuthorityID,
		Machine:     p.machine,
		Roster:      p.start.Roster,
	}, decoded)
	if err != nil {
		return err
	}
	p.replica = replica
	p.requested = false
	slog.InfoContext(ctx, "synchronized", "playerID", p.self, "turn", replica.TurnNumber())
	p.checkFinished()
	return nil
}

func (p *Player) requestCheckpoint(ctx context.Context) error {
	if p.requested {
		return nil
	}
	p.requested = true
	return p.send(ctx, netplay.EncodeCheckpointRequest(p.self))
}

// act は自分が出せる手があれば1手だけ出します。
func (p *Player) act(ctx context.Context) error {
	if p.replica == nil || p.requested || p.replica.Phase() == game.PhaseGameOver {
		return nil
	}
	s := p.replica.State()
	payload, ok := p.bot.Decide(&s, p.self)
	if !ok {
		return nil
	}
	a, _, err := p.replica.Submit(p.self, payload)
	if err != nil {
		slog.DebugContext(ctx, "bot intent rejected locally", "playerID", p.self, "err", err)
		return nil
	}
	data, err := netplay.EncodeAction(a)
	if err != nil {
		return err
	}
	if err := p.send(ctx, data); err != nil {
		return err
	}
	p.checkFinished()
	return nil
}

func (p *Player) checkFinished() {
	if p.replica != nil && p.replica.Phase() == game.PhaseGameOver {
		p.doneOnce.Do(func() { close(p.done) })
	}
}

package application

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	game "boardrush/game/domain"
	"boardrush/game/turn"
	"boardrush/netplay"
	"boardrush/profile"
	"boardrush/server/domain"
)

var (
	ErrAlreadyStarted = errors.New("game already started")
	ErrNotStarted     = errors.New("game not started")
)

const tracerName = "boardrush/server/application"

const (
	DefaultTurnTimeout        = 45 * time.Second
	DefaultForfeitGrace       = 60 * time.Second
	DefaultCheckpointInterval = 10 * time.Second
	DefaultBotDelay           = 700 * time.Millisecond
)

// Config はルームごとのゲーム進行の設定です。
type Config struct {
	Machine  *turn.Machine
	Profiles profile.Store
	Bots     BotFactory

	TurnTimeout        time.Duration
	ForfeitGrace       time.Duration
	CheckpointInterval time.Duration
	BotDelay           time.Duration
}

// GameApplication はルームの中で動く権威レプリカです。
// 受け取ったアクションを自分のレプリカで検証してから全員に配り、タイムアウト・切断・AI の席を代行します。
type GameApplication struct {
	roomID domain.RoomID
	out    domain.Outbox
	cfg    Config
	tracer trace.Tracer
	seed   func() (uint64, error)

	authorityID game.PlayerID
	replica     *netplay.Replica
	liveness    *netplay.Liveness
	roster      []game.Player
	bots        map[game.PlayerID]BotController
	present     map[game.PlayerID]bool

	nextBotAt      time.Time
	lastCheckpoint time.Time
	finished       bool
	now            func() time.Time
}

var _ domain.Application = (*GameApplication)(nil)

func NewGameApplication(roomID domain.RoomID, out domain.Outbox, cfg Config) *GameApplication {
	return &GameApplication{
		roomID:      roomID,
		out:         out,
		cfg:         cfg,
		tracer:      otel.Tracer(tracerName),
		seed:        randomSeed,
		authorityID: game.NewPlayerID(),
		bots:        make(map[game.PlayerID]BotController),
		present:     make(map[game.PlayerID]bool),
		now:         time.Now,
	}
}

// Factory は SimpleRoomManager に渡すファクトリです。
func Factory(cfg Config) domain.ApplicationFactory {
	return func(roomID domain.RoomID, out domain.Outbox) domain.Application {
		return NewGameApplication(roomID, out, cfg)
	}
}

func randomSeed() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (app *GameApplication) AuthorityID() game.PlayerID {
	return app.authorityID
}

func (app *GameApplication) Finished() bool {
	return app.finished
}

// State は進行中の状態のコピーです。開始前は false を返します。
func (app *GameApplication) State() (game.GameState, bool) {
	if app.replica == nil {
		return game.GameState{}, false
	}
	return app.replica.State(), true
}

func (app *GameApplication) Start(ctx context.Context, roster []game.Player) error {
	ctx, span := app.tracer.Start(ctx, "GameApplication.Start", trace.WithAttributes(
		attribute.String("room.id", app.roomID.String()),
		attribute.Int("room.players", len(roster)),
	))
	defer span.End()

	if app.replica != nil {
		return ErrAlreadyStarted
	}
	seed, err := app.seed()
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	state, err := app.cfg.Machine.NewGame(roster, seed)
	if err != nil {
		return err
	}

	var hosted []game.PlayerID
	for _, p := range roster {
		if p.IsAI {
			hosted = append(hosted, p.ID)
			app.bots[p.ID] = app.cfg.Bots()
		}
	}
	replica, err := netplay.NewReplica(netplay.Config{
		Self:        app.authorityID,
		AuthorityID: app.authorityID,
		Hosted:      hosted,
		Machine:     app.cfg.Machine,
		Roster:      roster,
	}, state)
	if err != nil {
		return err
	}
	app.replica = replica
	app.roster = replica.Roster()
	app.liveness = netplay.NewLiveness(app.cfg.TurnTimeout, app.cfg.ForfeitGrace)

	now := app.now()
	app.liveness.Observe(state.TurnNumber, state.Phase, now)
	app.lastCheckpoint = now
	app.nextBotAt = now.Add(app.cfg.BotDelay)

	slog.InfoContext(ctx, "game started", "roomID", app.roomID, "players", len(roster), "bots", len(hosted), "seed", seed)

	if err := app.out.EnqueueBroadcast(ctx, netplay.EncodeStartMessage(app.authorityID, app.roster)); err != nil {
		return err
	}
	// ロビーで接続していない人間の席は切断扱いで始める
	for _, p := range app.roster {
		if p.IsAI || app.present[p.ID] {
			continue
		}
		app.liveness.Disconnected(p.ID, now)
		app.submit(ctx, app.authorityID, turn.Presence{PlayerID: p.ID, Connected: false})
	}
	app.broadcastCheckpoint(ctx)
	return nil
}

func (app *GameApplication) Join(ctx context.Context, player game.PlayerID) {
	app.present[player] = true
	if app.replica == nil {
		return
	}
	app.liveness.Reconnected(player)

	state := app.replica.State()
	if seat, ok := state.SeatOf(player); ok && state.Players[seat].Status == game.StatusDisconnected && !app.finished {
		app.submit(ctx, app.authorityID, turn.Presence{PlayerID: player, Connected: true})
	}
	// 再接続したクライアントは名簿と最新のチェックポイントから作り直す
	if err := app.out.EnqueueSendTo(ctx, player, netplay.EncodeStartMessage(app.authorityID, app.roster)); err != nil {
		slog.WarnContext(ctx, "failed to send start", "roomID", app.roomID, "playerID", player, "err", err)
	}
	app.sendCheckpoint(ctx, player)
}

func (app *GameApplication) Leave(ctx context.Context, player game.PlayerID) {
	delete(app.present, player)
	if app.replica == nil || app.finished {
		return
	}
	state := app.replica.State()
	seat, ok := state.SeatOf(player)
	if !ok || state.Players[seat].Status != game.StatusActive {
		return
	}
	app.liveness.Disconnected(player, app.now())
	app.submit(ctx, app.authorityID, turn.Presence{PlayerID: player, Connected: false})
}

func (app *GameApplication) HandleMessage(ctx context.Context, sender game.PlayerID, data []byte) error {
	ctx, span := app.tracer.Start(ctx, "GameApplication.HandleMessage", trace.WithAttributes(
		attribute.String("room.id", app.roomID.String()),
		attribute.String("player.id", sender.String()),
	))
	defer span.End()

	if app.replica == nil {
		app.sendError(ctx, sender, netplay.ErrorCodeNotStarted, ErrNotStarted.Error())
		return nil
	}
	frame, err := netplay.ParseFrame(data)
	if err != nil {
		app.sendError(ctx, sender, netplay.ErrorCodeBadFrame, err.Error())
		return err
	}
	if frame.Sender() != sender {
		return fmt.Errorf("%w: frame from %s relayed for %s", netplay.ErrUnauthorized, frame.Sender(), sender)
	}
	if frame.IsControl(netplay.ControlSubTypeCheckpointRequest) {
		slog.DebugContext(ctx, "checkpoint requested", "roomID", app.roomID, "playerID", sender)
		app.sendCheckpoint(ctx, sender)
		return nil
	}
	if frame.Payload.DataType != netplay.DataTypeAction {
		return nil
	}

	a, err := netplay.DecodeAction(frame)
	if err != nil {
		app.sendError(ctx, sender, netplay.ErrorCodeBadFrame, err.Error())
		return err
	}
	span.SetAttributes(attribute.String("action.kind", a.Kind().String()), attribute.Int("action.seq", int(a.Sequence)))

	res, err := app.replica.Receive(a)
	switch {
	case errors.Is(err, netplay.ErrDuplicate):
		slog.DebugContext(ctx, "duplicate action ignored", "roomID", app.roomID, "playerID", sender, "seq", a.Sequence)
		return nil
	case err != nil:
		// 拒否した送信者は楽観適用した状態を持っているので作り直させる
		span.SetStatus(codes.Error, err.Error())
		slog.WarnContext(ctx, "action rejected", "roomID", app.roomID, "playerID", sender, "kind", a.Kind(), "seq", a.Sequence, "err", err)
		if !errors.Is(err, netplay.ErrUnauthorized) {
			app.sendError(ctx, sender, netplay.ErrorCodeRejected, err.Error())
		}
		app.sendCheckpoint(ctx, sender)
		return nil
	}

	if err := app.out.EnqueueBroadcast(ctx, data); err != nil {
		slog.WarnContext(ctx, "failed to broadcast action", "roomID", app.roomID, "err", err)
	}
	app.liveness.Touch(app.now())
	app.execute(ctx, res.Effects)
	return nil
}

func (app *GameApplication) Tick(ctx context.Context, now time.Time) {
	if app.replica == nil || app.finished {
		return
	}
	app.liveness.Observe(app.replica.TurnNumber(), app.replica.Phase(), now)

	for _, id := range app.liveness.Expired(now) {
		slog.InfoContext(ctx, "forfeit after grace period", "roomID", app.roomID, "playerID", id)
		app.submit(ctx, app.authorityID, turn.Forfeit{PlayerID: id})
		if app.finished {
			return
		}
	}

	if app.liveness.TurnExpired(now) {
		slog.InfoContext(ctx, "turn timed out", "roomID", app.roomID, "turn", app.replica.TurnNumber())
		app.submit(ctx, app.authorityID, turn.AdvanceTurn{Timeout: true})
		app.liveness.Observe(app.replica.TurnNumber(), app.replica.Phase(), now)
	}

	if !app.finished && !now.Before(app.nextBotAt) {
		app.driveBots(ctx, now)
	}

	if app.cfg.CheckpointInterval > 0 && now.Sub(app.lastCheckpoint) >= app.cfg.CheckpointInterval {
		app.broadcastCheckpoint(ctx)
	}
}

// driveBots は AI の席を1手だけ進めます。人間が追える速さにするため BotDelay ごとに1手です。
func (app *GameApplication) driveBots(ctx context.Context, now time.Time) {
	state := app.replica.State()
	for _, p := range app.roster {
		bot, ok := app.bots[p.ID]
		if !ok {
			continue
		}
		payload, ok := bot.Decide(&state, p.ID)
		if !ok {
			continue
		}
		if app.submit(ctx, p.ID, payload) {
			app.nextBotAt = now.Add(app.cfg.BotDelay)
			return
		}
	}
}

// submit は権威として（または AI の席として）アクションを適用し、配信します。
func (app *GameApplication) submit(ctx context.Context, sender game.PlayerID, p turn.Payload) bool {
	a, res, err := app.replica.Submit(sender, p)
	if err != nil {
		slog.WarnContext(ctx, "authority action rejected", "roomID", app.roomID, "sender", sender, "kind", p.Kind(), "err", err)
		return false
	}
	data, err := netplay.EncodeAction(a)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode action", "roomID", app.roomID, "kind", p.Kind(), "err", err)
		return false
	}
	if err := app.out.EnqueueBroadcast(ctx, data); err != nil {
		slog.WarnContext(ctx, "failed to broadcast action", "roomID", app.roomID, "err", err)
	}
	app.liveness.Touch(app.now())
	app.execute(ctx, res.Effects)
	return true
}

// execute は遷移の Effect を実行します。報酬はプロフィールに書き込み、GameOver でルームを終わらせます。
func (app *GameApplication) execute(ctx context.Context, effects []turn.Effect) {
	if len(effects) == 0 {
		return
	}
	for id, delta := range profile.Deltas(app.roster, effects) {
		if app.isAI(id) {
			continue
		}
		if err := app.cfg.Profiles.ApplyRewards(ctx, id, delta); err != nil {
			slog.ErrorContext(ctx, "failed to apply rewards", "roomID", app.roomID, "playerID", id, "err", err)
		}
	}
	for _, e := range effects {
		switch e := e.(type) {
		case turn.GameOverEffect:
			app.finished = true
			slog.InfoContext(ctx, "game over", "roomID", app.roomID, "winner", e.Winner, "turn", app.replica.TurnNumber())
			app.broadcastCheckpoint(ctx)
		case turn.ForfeitEffect:
			delete(app.bots, e.PlayerID)
		case turn.TurnStartedEffect:
			slog.DebugContext(ctx, "turn started", "roomID", app.roomID, "turn", e.Turn, "playerID", e.PlayerID)
		}
	}
}

func (app *GameApplication) isAI(id game.PlayerID) bool {
	for _, p := range app.roster {
		if p.ID == id {
			return p.IsAI
		}
	}
	return false
}

func (app *GameApplication) checkpointFrame(ctx context.Context) ([]byte, bool) {
	data, err := netplay.EncodeAction(app.replica.CheckpointAction())
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode checkpoint", "roomID", app.roomID, "err", err)
		return nil, false
	}
	return data, true
}

func (app *GameApplication) broadcastCheckpoint(ctx context.Context) {
	data, ok := app.checkpointFrame(ctx)
	if !ok {
		return
	}
	app.lastCheckpoint = app.now()
	if err := app.out.EnqueueBroadcast(ctx, data); err != nil {
		slog.WarnContext(ctx, "failed to broadcast checkpoint", "roomID", app.roomID, "err", err)
	}
}

func (app *GameApplication) sendCheckpoint(ctx context.Context, player game.PlayerID) {
	data, ok := app.checkpointFrame(ctx)
	if !ok {
		return
	}
	if err := app.out.EnqueueSendTo(ctx, player, data); err != nil {
		slog.WarnContext(ctx, "failed to send checkpoint", "roomID", app.roomID, "playerID", player, "err", err)
	}
}

func (app *GameApplication) sendError(ctx context.Context, player game.PlayerID, code netplay.ErrorCode, message string) {
	if err := app.out.EnqueueSendTo(ctx, player, netplay.EncodeErrorMessage(app.authorityID, code, message)); err != nil {
		slog.WarnContext(ctx, "failed to send error", "roomID", app.roomID, "playerID", player, "err", err)
	}
}

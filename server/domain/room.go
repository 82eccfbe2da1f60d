package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jinzhu/copier"

	game "boardrush/game/domain"
	"boardrush/netplay"
)

var (
	ErrRoomBusy         = errors.New("room control channel is full")
	ErrRoomFull         = errors.New("room is full")
	ErrRoomNotInLobby   = errors.New("room is not in the lobby")
	ErrNotHost          = errors.New("only the host can do this")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrNotMember        = errors.New("player is not a member of the room")
)

// DefaultLobbyIdleTimeout は誰も接続していないロビーを閉じるまでの時間です。
const DefaultLobbyIdleTimeout = 10 * time.Minute

type RoomStatus uint8

const (
	RoomLobby RoomStatus = iota
	RoomInProgress
	RoomFinished
)

func (s RoomStatus) String() string {
	switch s {
	case RoomLobby:
		return "lobby"
	case RoomInProgress:
		return "in-progress"
	case RoomFinished:
		return "finished"
	default:
		return fmt.Sprintf("RoomStatus(%d)", s)
	}
}

// Room はロビーの名簿と、対局中のメッセージ配送ループを持ちます。
// 名簿とステータスは HTTP ハンドラからも読むので mu で守ります。members と application はループ専用です。
type Room struct {
	ID   RoomID
	Code string

	mu      sync.RWMutex
	hostID  game.PlayerID
	players []game.Player
	status  RoomStatus

	members map[game.PlayerID]SessionID
	// emptySince はロビーから接続が消えた時刻です。ループ専用です。
	emptySince time.Time
	lobbyIdle  time.Duration

	pubsub      PubSub
	application Application

	sendCh chan roomSend

	tickInterval time.Duration
	now          func() time.Time
}

var _ Outbox = (*Room)(nil)

func NewRoom(id RoomID, code string, host game.Player, pubsub PubSub, factory ApplicationFactory) *Room {
	host.Color = game.Color(0)
	r := &Room{
		ID:           id,
		Code:         code,
		hostID:       host.ID,
		players:      []game.Player{host},
		members:      make(map[game.PlayerID]SessionID),
		pubsub:       pubsub,
		sendCh:       make(chan roomSend, 1024),
		lobbyIdle:    DefaultLobbyIdleTimeout,
		tickInterval: time.Second / 20,
		now:          time.Now,
	}
	r.application = factory(id, r)
	return r
}

// SetLobbyIdleTimeout は Run の前に呼びます。
func (r *Room) SetLobbyIdleTimeout(d time.Duration) {
	r.lobbyIdle = d
}

func (r *Room) HostID() game.PlayerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hostID
}

func (r *Room) Status() RoomStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Room) Players() []game.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.players)
}

func (r *Room) Player(id game.PlayerID) (game.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		if p.ID == id {
			return p, true
		}
	}
	return game.Player{}, false
}

// AddPlayer はロビーに参加させます。色は参加順に割り当て、後から変わりません。
func (r *Room) AddPlayer(p game.Player) (game.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.players {
		if existing.ID == p.ID {
			return existing, nil
		}
	}
	if r.status != RoomLobby {
		return game.Player{}, ErrRoomNotInLobby
	}
	if len(r.players) >= game.MaxPlayers {
		return game.Player{}, ErrRoomFull
	}
	p.Color = game.Color(len(r.players))
	r.players = append(r.players, p)
	return p, nil
}

// AddBot はホストの依頼で AI の席を追加します。
func (r *Room) AddBot(by game.PlayerID, name string) (game.Player, error) {
	if by != r.HostID() {
		return game.Player{}, ErrNotHost
	}
	if name == "" {
		name = fmt.Sprintf("Bot %d", len(r.Players()))
	}
	return r.AddPlayer(game.Player{ID: game.NewPlayerID(), Name: name, StartupName: name + " Labs", IsAI: true})
}

// Start はホストの依頼で対局を始めます。実際の開始はルームのループで行います。
func (r *Room) Start(ctx context.Context, by game.PlayerID) error {
	r.mu.Lock()
	switch {
	case by != r.hostID:
		r.mu.Unlock()
		return ErrNotHost
	case r.status != RoomLobby:
		r.mu.Unlock()
		return ErrRoomNotInLobby
	case len(r.players) < game.MinPlayers:
		r.mu.Unlock()
		return ErrNotEnoughPlayers
	}
	if err := game.ValidateRoster(r.players); err != nil {
		r.mu.Unlock()
		return err
	}
	r.status = RoomInProgress
	r.mu.Unlock()

	r.pubsub.Publish(ctx, RoomControlTopic(r.ID), Message{Kind: MessageStart, PlayerID: by})
	return nil
}

func (r *Room) setStatus(s RoomStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = s
}

// RoomView は HTTP で返すロビーの様子です。
type RoomView struct {
	ID      string       `json:"roomId"`
	Code    string       `json:"code"`
	HostID  string       `json:"hostId"`
	Status  string       `json:"status"`
	Players []PlayerView `json:"players"`
}

type PlayerView struct {
	ID          string `json:"playerId"`
	Color       string `json:"color"`
	Name        string `json:"name"`
	StartupName string `json:"startupName"`
	IsAI        bool   `json:"isAI"`
}

var viewConverters = copier.Option{
	Converters: []copier.TypeConverter{
		{
			SrcType: game.PlayerID{},
			DstType: "",
			Fn: func(src any) (any, error) {
				return src.(game.PlayerID).String(), nil
			},
		},
		{
			SrcType: game.Color(0),
			DstType: "",
			Fn: func(src any) (any, error) {
				return src.(game.Color).String(), nil
			},
		},
	},
}

func (r *Room) View() (RoomView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v := RoomView{
		ID:     r.ID.String(),
		Code:   r.Code,
		HostID: r.hostID.String(),
		Status: r.status.String(),
	}
	if err := copier.CopyWithOption(&v.Players, &r.players, viewConverters); err != nil {
		return RoomView{}, err
	}
	return v, nil
}

func (r *Room) EnqueueBroadcast(ctx context.Context, data []byte) error {
	return r.enqueueSend(ctx, roomSend{kind: roomSendBroadcast, data: data})
}

func (r *Room) EnqueueSendTo(ctx context.Context, player game.PlayerID, data []byte) error {
	return r.enqueueSend(ctx, roomSend{kind: roomSendTo, player: player, data: data})
}

func (r *Room) enqueueSend(ctx context.Context, msg roomSend) error {
	select {
	case <-ctx.Done():
		return nil
	case r.sendCh <- msg:
		return nil
	default:
		return ErrRoomBusy
	}
}

func (r *Room) broadcast(ctx context.Context, data []byte) {
	for _, sessionID := range r.members {
		r.pubsub.Publish(ctx, SessionTopic(sessionID), Message{Data: data})
	}
}

func (r *Room) sendTo(ctx context.Context, player game.PlayerID, data []byte) {
	sessionID, ok := r.members[player]
	if !ok {
		slog.DebugContext(ctx, "room: send to absent player dropped", "roomID", r.ID, "playerID", player)
		return
	}
	r.pubsub.Publish(ctx, SessionTopic(sessionID), Message{Data: data})
}

// Run はルームのループです。対局が終わって全員が抜けるか、ロビーが lobbyIdle の間ずっと空だったか、
// ctx が終わると戻ります。
func (r *Room) Run(ctx context.Context) error {
	// room宛のメッセージを購読
	msgCh := r.pubsub.Subscribe(RoomTopic(r.ID))
	defer r.pubsub.Unsubscribe(RoomTopic(r.ID), msgCh)

	// room制御用トピックを購読（join/leave/start）
	ctrlCh := r.pubsub.Subscribe(RoomControlTopic(r.ID))
	defer r.pubsub.Unsubscribe(RoomControlTopic(r.ID), ctrlCh)

	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if done := r.tick(ctx, msgCh, ctrlCh); done {
				slog.InfoContext(ctx, "room closed", "roomID", r.ID, "code", r.Code)
				return nil
			}
		}
	}
}

func (r *Room) tick(ctx context.Context, msgCh, ctrlCh <-chan Message) bool {
	// 制御メッセージを処理（join/leave/start）
CTRL_LOOP:
	for {
		select {
		case ctrl := <-ctrlCh:
			r.handleControlMessage(ctx, ctrl)
		default:
			break CTRL_LOOP
		}
	}
	// 受信メッセージを処理
RECEIVE_LOOP:
	for {
		select {
		case msg := <-msgCh:
			if _, ok := r.members[msg.PlayerID]; !ok {
				continue
			}
			if err := r.application.HandleMessage(ctx, msg.PlayerID, msg.Data); err != nil {
				slog.WarnContext(ctx, "room handle message failed", "roomID", r.ID, "err", err)
			}
		default:
			break RECEIVE_LOOP
		}
	}
	now := r.now()
	r.application.Tick(ctx, now)
	// アプリケーションがこの tick までに積んだ送信を流す
SEND_LOOP:
	for {
		select {
		case msg := <-r.sendCh:
			r.handleSendMessage(ctx, msg)
		default:
			break SEND_LOOP
		}
	}

	if r.application.Finished() && r.Status() != RoomFinished {
		r.setStatus(RoomFinished)
		slog.InfoContext(ctx, "room finished", "roomID", r.ID)
	}
	if r.lobbyAbandoned(now) {
		r.setStatus(RoomFinished)
		slog.InfoContext(ctx, "room abandoned in lobby", "roomID", r.ID, "code", r.Code)
	}
	return r.Status() == RoomFinished && len(r.members) == 0
}

func (r *Room) lobbyAbandoned(now time.Time) bool {
	if r.Status() != RoomLobby || len(r.members) > 0 {
		r.emptySince = time.Time{}
		return false
	}
	if r.emptySince.IsZero() {
		r.emptySince = now
	}
	return now.Sub(r.emptySince) >= r.lobbyIdle
}

func (r *Room) handleControlMessage(ctx context.Context, msg Message) {
	switch msg.Kind {
	case MessageJoin:
		if _, ok := r.Player(msg.PlayerID); !ok {
			slog.WarnContext(ctx, "room: join from non-member", "roomID", r.ID, "playerID", msg.PlayerID)
			r.pubsub.Publish(ctx, SessionTopic(msg.SessionID), Message{
				Data: netplay.EncodeErrorMessage(msg.PlayerID, netplay.ErrorCodeUnauthorized, ErrNotMember.Error()),
			})
			return
		}
		r.members[msg.PlayerID] = msg.SessionID
		slog.InfoContext(ctx, "room: player joined", "roomID", r.ID, "playerID", msg.PlayerID, "sessionID", msg.SessionID)
		r.application.Join(ctx, msg.PlayerID)
	case MessageLeave:
		// 再接続済みなら古いセッションの離脱は無視する
		if current, ok := r.members[msg.PlayerID]; !ok || current != msg.SessionID {
			return
		}
		delete(r.members, msg.PlayerID)
		slog.InfoContext(ctx, "room: player left", "roomID", r.ID, "playerID", msg.PlayerID)
		r.application.Leave(ctx, msg.PlayerID)
	case MessageStart:
		if err := r.application.Start(ctx, r.Players()); err != nil {
			slog.ErrorContext(ctx, "room: start failed", "roomID", r.ID, "err", err)
			r.setStatus(RoomLobby)
		}
	default:
		slog.WarnContext(ctx, "room: unknown control message", "kind", msg.Kind)
	}
}

func (r *Room) handleSendMessage(ctx context.Context, msg roomSend) {
	switch msg.kind {
	case roomSendBroadcast:
		r.broadcast(ctx, msg.data)
	case roomSendTo:
		r.sendTo(ctx, msg.player, msg.data)
	default:
	}
}

type roomSendKind uint8

const (
	roomSendBroadcast roomSendKind = iota
	roomSendTo
)

type roomSend struct {
	kind   roomSendKind
	player game.PlayerID
	data   []byte
}

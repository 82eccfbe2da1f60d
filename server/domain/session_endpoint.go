package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"boardrush/netplay"
)

var (
	// ErrBackpressure は書き込みチャネルが満杯の場合に返されるエラーです。
	ErrBackpressure = errors.New("write channel is full, apply backpressure")
	// ErrInitializationFailed はセッションエンドポイントの初期化に失敗した場合に返されるエラーです。
	ErrInitializationFailed = errors.New("failed to initialize session endpoint")
)

// EndpointConfig は死活監視の設定です。ゼロ値なら既定値を使います。
type EndpointConfig struct {
	PingInterval time.Duration
	IdleTimeout  time.Duration
}

const (
	DefaultPingInterval = 5 * time.Second
	DefaultIdleTimeout  = 30 * time.Second
)

func (c EndpointConfig) withDefaults() EndpointConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}

// SessionEndpoint は1本の接続とルームの間を取り持ちます。
// 受け取ったフレームの送信者がセッションのプレイヤーと一致することだけを確かめ、ゲームの検証はルームに任せます。
type SessionEndpoint struct {
	ctx    context.Context
	cancel context.CancelFunc

	session     *Session
	connection  *Connection
	pubsub      PubSub
	roomManager RoomManager
	cfg         EndpointConfig

	ctrlCh  chan endpointEvent // 制御用チャネル
	writeCh chan []byte        // 書き込み用チャネル

	// lifecycle
	joined atomic.Bool
	closed atomic.Bool
}

func NewSessionEndpoint(session *Session, connection *Connection, pubsub PubSub, roomManager RoomManager, cfg EndpointConfig) (*SessionEndpoint, error) {
	if session == nil || connection == nil || pubsub == nil || roomManager == nil {
		return nil, ErrInitializationFailed
	}
	if session.RoomID().IsEmpty() || session.PlayerID().IsZero() {
		return nil, fmt.Errorf("%w: session has no room or player", ErrInitializationFailed)
	}
	ctx, cancel := context.WithCancel(context.Background())
	se := &SessionEndpoint{
		ctx:         ctx,
		cancel:      cancel,
		session:     session,
		connection:  connection,
		pubsub:      pubsub,
		roomManager: roomManager,
		cfg:         cfg.withDefaults(),
		ctrlCh:      make(chan endpointEvent, 16),
		writeCh:     make(chan []byte, 1024),
	}
	return se, nil
}

// Run は接続が閉じるまでブロックします。
func (se *SessionEndpoint) Run(ctx context.Context) error {
	room, err := se.roomManager.GetRoom(ctx, se.session.RoomID())
	if err != nil {
		se.close()
		return err
	}
	if _, ok := room.Player(se.session.PlayerID()); !ok {
		se.close()
		return fmt.Errorf("%w: %s", ErrNotMember, se.session.PlayerID())
	}

	// 自分宛のメッセージを購読
	sessionTopic := SessionTopic(se.session.ID())
	msgCh := se.pubsub.Subscribe(sessionTopic)
	defer se.pubsub.Unsubscribe(sessionTopic, msgCh)

	heartbeat := NewHeartbeatService(se.cfg.PingInterval, se.session, se.writeCh)

	eg, egCtx := errgroup.WithContext(se.ctx)
	eg.Go(func() error {
		se.ownerLoop(egCtx)
		return nil
	})
	eg.Go(func() error {
		se.readLoop(egCtx)
		return nil
	})
	eg.Go(func() error {
		se.writeLoop(egCtx)
		return nil
	})
	eg.Go(func() error {
		se.subscribeLoop(egCtx, msgCh)
		return nil
	})
	eg.Go(func() error {
		heartbeat.Run(egCtx)
		return nil
	})

	// プレイヤーID通知を送信
	if err := se.Send(netplay.EncodeAssignMessage(se.session.PlayerID())); err != nil {
		se.close()
		return err
	}

	return eg.Wait()
}

func (se *SessionEndpoint) Send(data []byte) error {
	select {
	case se.writeCh <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (se *SessionEndpoint) Close(ctx context.Context) {
	se.sendCtrlEvent(ctx, endpointEvent{kind: evClose, err: nil})
}

func (se *SessionEndpoint) ForceClose() {
	se.close()
}

// ownerLoop は論理セッションの状態を監視し、必要に応じて接続の管理を行います。
func (se *SessionEndpoint) ownerLoop(ctx context.Context) {
	ticker := time.NewTicker(se.cfg.IdleTimeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-se.ctrlCh:
			se.handleControlEvent(ctx, ev)
		case <-ticker.C:
			if idle, reason := se.session.IsIdle(se.cfg.IdleTimeout); idle {
				se.handleControlEvent(ctx, endpointEvent{kind: evIdle, reason: reason})
			}
		}
	}
}

func (se *SessionEndpoint) readLoop(ctx context.Context) {
	for {
		data, err := se.connection.Read(ctx)
		if err != nil {
			se.sendCtrlEvent(ctx, endpointEvent{kind: evReadError, err: err})
			return
		}
		se.session.TouchRead()
		se.handleData(ctx, data)
	}
}

func (se *SessionEndpoint) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-se.writeCh:
			if err := se.connection.Write(ctx, data); err != nil {
				se.sendCtrlEvent(ctx, endpointEvent{kind: evWriteError, err: err})
				return
			}
			se.session.TouchWrite()
		}
	}
}

// subscribeLoop はpubsubからのメッセージをwriteChに転送します。
func (se *SessionEndpoint) subscribeLoop(ctx context.Context, msgCh <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			select {
			case se.writeCh <- msg.Data:
			default:
				slog.WarnContext(ctx, "subscribeLoop: writeCh full, message dropped", "sessionID", se.session.ID())
			}
		}
	}
}

func (se *SessionEndpoint) close() {
	if !se.closed.CompareAndSwap(false, true) {
		return
	}
	// ルームの名簿からは外れず、切断扱いになるだけです。
	if se.joined.Load() {
		se.publishLeave(context.Background())
	}
	se.cancel()
	se.session.Close()
	se.connection.Close()
}

func (se *SessionEndpoint) sendError(ctx context.Context, code netplay.ErrorCode, message string) {
	if err := se.Send(netplay.EncodeErrorMessage(se.session.PlayerID(), code, message)); err != nil {
		slog.WarnContext(ctx, "failed to queue error message", "sessionID", se.session.ID(), "err", err)
	}
}

func (se *SessionEndpoint) handleData(ctx context.Context, data []byte) {
	frame, err := netplay.ParseFrame(data)
	if err != nil {
		slog.WarnContext(ctx, "failed to parse frame", "sessionID", se.session.ID(), "err", err)
		se.sendError(ctx, netplay.ErrorCodeBadFrame, err.Error())
		return
	}
	if frame.Sender() != se.session.PlayerID() {
		slog.WarnContext(ctx, "sender mismatch", "expected", se.session.PlayerID(), "got", frame.Sender())
		se.sendError(ctx, netplay.ErrorCodeUnauthorized, "sender does not match session")
		return
	}

	switch frame.Payload.DataType {
	case netplay.DataTypeControl:
		se.handleControlMessage(ctx, netplay.ControlSubType(frame.Payload.SubType), frame, data)
	case netplay.DataTypeAction:
		se.forward(ctx, data)
	default:
		slog.WarnContext(ctx, "unknown data type", "dataType", frame.Payload.DataType)
	}
}

// forward はアクションをルームに転送します。Join 前のものは捨てます。
func (se *SessionEndpoint) forward(ctx context.Context, data []byte) {
	if !se.joined.Load() {
		se.sendError(ctx, netplay.ErrorCodeNotStarted, "join the room first")
		return
	}
	se.pubsub.Publish(ctx, RoomTopic(se.session.RoomID()), Message{
		Kind:      MessageData,
		SessionID: se.session.ID(),
		PlayerID:  se.session.PlayerID(),
		Data:      data,
	})
}

func (se *SessionEndpoint) handleControlMessage(ctx context.Context, subType netplay.ControlSubType, frame *netplay.Frame, data []byte) {
	switch subType {
	case netplay.ControlSubTypePong:
		se.sendCtrlEvent(ctx, endpointEvent{kind: evPong})
	case netplay.ControlSubTypePing:
		if err := se.Send(netplay.EncodePongMessage(se.session.PlayerID())); err != nil {
			slog.WarnContext(ctx, "failed to queue pong", "sessionID", se.session.ID(), "err", err)
		}
	case netplay.ControlSubTypeJoin:
		payload, err := netplay.ParseJoinPayload(frame.Body)
		if err != nil {
			slog.WarnContext(ctx, "failed to parse join message", "err", err)
			se.sendError(ctx, netplay.ErrorCodeBadFrame, err.Error())
			return
		}
		// 空のIDならトークンのルームに入る
		if roomID := RoomID(payload.RoomID); !roomID.IsEmpty() && roomID != se.session.RoomID() {
			se.sendError(ctx, netplay.ErrorCodeUnauthorized, "token is not valid for this room")
			return
		}
		if !se.joined.CompareAndSwap(false, true) {
			return
		}
		slog.InfoContext(ctx, "session joined room", "sessionID", se.session.ID(), "roomID", se.session.RoomID())
		se.pubsub.Publish(ctx, RoomControlTopic(se.session.RoomID()), Message{
			Kind:      MessageJoin,
			SessionID: se.session.ID(),
			PlayerID:  se.session.PlayerID(),
		})
	case netplay.ControlSubTypeLeave:
		slog.InfoContext(ctx, "session left room", "sessionID", se.session.ID(), "roomID", se.session.RoomID())
		se.sendCtrlEvent(ctx, endpointEvent{kind: evClose})
	case netplay.ControlSubTypeCheckpointRequest:
		se.forward(ctx, data)
	default:
		slog.WarnContext(ctx, "unexpected control message", "subType", subType)
	}
}

func (se *SessionEndpoint) publishLeave(ctx context.Context) {
	se.pubsub.Publish(ctx, RoomControlTopic(se.session.RoomID()), Message{
		Kind:      MessageLeave,
		SessionID: se.session.ID(),
		PlayerID:  se.session.PlayerID(),
	})
}

// handleControlEvent は制御チャネルからのイベントを処理し論理セッションの状態を更新する唯一の関数です。
func (se *SessionEndpoint) handleControlEvent(ctx context.Context, ev endpointEvent) {
	switch ev.kind {
	case evClose:
		if ev.err != nil {
			slog.InfoContext(ctx, "closing session", "sessionID", se.session.ID(), "reason", ev.err)
		}
		se.close()
	case evIdle:
		slog.InfoContext(ctx, "session idle, closing", "sessionID", se.session.ID(), "reason", ev.reason)
		se.close()
	case evPong:
		se.session.TouchPong()
	case evReadError, evWriteError:
		slog.DebugContext(ctx, "connection error", "sessionID", se.session.ID(), "err", ev.err)
		se.close()
	default:
		slog.WarnContext(ctx, "unknown endpoint event kind", "kind", ev.kind)
	}
}

func (se *SessionEndpoint) sendCtrlEvent(ctx context.Context, ev endpointEvent) {
	select {
	case se.ctrlCh <- ev:
	case <-ctx.Done():
	}
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	game "boardrush/game/domain"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomCodeExhausted  = errors.New("could not allocate a unique room code")
	ErrRoomManagerStopped = errors.New("room manager is stopped")
)

const roomCodeAttempts = 16

//go:generate go tool mockgen -destination=./mocks/room_manager_mock.go -package=mocks . RoomManager

// RoomManager はルームの生成と検索を行います。
type RoomManager interface {
	CreateRoom(ctx context.Context, host game.Player) (*Room, error)
	JoinByCode(ctx context.Context, code string, player game.Player) (*Room, game.Player, error)
	GetRoom(ctx context.Context, id RoomID) (*Room, error)
	FindByCode(ctx context.Context, code string) (*Room, error)
	RemoveRoom(ctx context.Context, id RoomID) error
}

// SimpleRoomManager はプロセス内でルームを保持し、それぞれのループをゴルーチンで回します。
// ループが終わったルームは一覧から外れます。
type SimpleRoomManager struct {
	ctx     context.Context
	pubsub  PubSub
	factory ApplicationFactory

	mu      sync.RWMutex
	rooms   map[RoomID]*Room
	byCode  map[string]RoomID
	cancels map[RoomID]context.CancelFunc
	wg      sync.WaitGroup

	generateCode func() (string, error)
	lobbyIdle    time.Duration
}

var _ RoomManager = (*SimpleRoomManager)(nil)

func NewSimpleRoomManager(ctx context.Context, pubsub PubSub, factory ApplicationFactory) *SimpleRoomManager {
	return &SimpleRoomManager{
		ctx:          ctx,
		pubsub:       pubsub,
		factory:      factory,
		rooms:        make(map[RoomID]*Room),
		byCode:       make(map[string]RoomID),
		cancels:      make(map[RoomID]context.CancelFunc),
		generateCode: GenerateRoomCode,
		lobbyIdle:    DefaultLobbyIdleTimeout,
	}
}

// SetLobbyIdleTimeout は以後作るルームに適用されます。
func (m *SimpleRoomManager) SetLobbyIdleTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lobbyIdle = d
}

func (m *SimpleRoomManager) CreateRoom(ctx context.Context, host game.Player) (*Room, error) {
	if m.ctx.Err() != nil {
		return nil, ErrRoomManagerStopped
	}
	m.mu.Lock()
	code, err := m.uniqueCode()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	room := NewRoom(NewRoomID(), code, host, m.pubsub, m.factory)
	room.SetLobbyIdleTimeout(m.lobbyIdle)
	roomCtx, cancel := context.WithCancel(m.ctx)
	m.rooms[room.ID] = room
	m.byCode[code] = room.ID
	m.cancels[room.ID] = cancel
	m.mu.Unlock()

	slog.InfoContext(ctx, "room created", "roomID", room.ID, "code", code, "hostID", host.ID)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.remove(room)
		if err := room.Run(roomCtx); err != nil {
			slog.ErrorContext(roomCtx, "room stopped with error", "roomID", room.ID, "err", err)
		}
	}()
	return room, nil
}

// JoinByCode はコードのルームのロビーにプレイヤーを加えます。
func (m *SimpleRoomManager) JoinByCode(ctx context.Context, code string, player game.Player) (*Room, game.Player, error) {
	room, err := m.FindByCode(ctx, code)
	if err != nil {
		return nil, game.Player{}, err
	}
	joined, err := room.AddPlayer(player)
	if err != nil {
		return nil, game.Player{}, err
	}
	slog.InfoContext(ctx, "player joined lobby", "roomID", room.ID, "playerID", joined.ID, "color", joined.Color)
	return room, joined, nil
}

// RemoveRoom はルームのループを止めます。一覧からはループの終了時に外れます。
func (m *SimpleRoomManager) RemoveRoom(_ context.Context, id RoomID) error {
	m.mu.RLock()
	cancel, ok := m.cancels[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	cancel()
	return nil
}

// uniqueCode は mu を持った状態で呼びます。
func (m *SimpleRoomManager) uniqueCode() (string, error) {
	for range roomCodeAttempts {
		code, err := m.generateCode()
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := m.byCode[code]; !taken {
			return code, nil
		}
	}
	return "", ErrRoomCodeExhausted
}

func (m *SimpleRoomManager) remove(room *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[room.ID]; ok {
		cancel()
	}
	delete(m.rooms, room.ID)
	delete(m.byCode, room.Code)
	delete(m.cancels, room.ID)
}

func (m *SimpleRoomManager) GetRoom(_ context.Context, id RoomID) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return room, nil
}

func (m *SimpleRoomManager) FindByCode(_ context.Context, code string) (*Room, error) {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return m.rooms[id], nil
}

func (m *SimpleRoomManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Wait は全ルームのループが終わるまで待ちます。ctx のキャンセル後に呼びます。
func (m *SimpleRoomManager) Wait() {
	m.wg.Wait()
}

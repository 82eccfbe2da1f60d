package domain

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	game "boardrush/game/domain"
)

// SessionID は1接続ごとに振られるIDです。同じプレイヤーでも再接続すると変わります。
type SessionID [16]byte

func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

func (id SessionID) IsEmpty() bool {
	return id == SessionID{}
}

// RoomID はルームの内部IDです。参加者に見せるのは Room.Code の方です。
type RoomID [16]byte

func NewRoomID() RoomID {
	return RoomID(uuid.New())
}

func ParseRoomID(s string) (RoomID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RoomID{}, err
	}
	return RoomID(u), nil
}

func (id RoomID) String() string {
	return uuid.UUID(id).String()
}

func (id RoomID) IsEmpty() bool {
	return id == RoomID{}
}

// Session は1接続の論理的な接続状態を表す構造体です。
type Session struct {
	id       SessionID
	playerID game.PlayerID
	roomID   RoomID

	// activity
	lastRead  atomic.Int64
	lastWrite atomic.Int64
	lastPong  atomic.Int64

	// lifecycle
	closed atomic.Bool
}

func NewSession(playerID game.PlayerID, roomID RoomID) *Session {
	s := &Session{
		id:       NewSessionID(),
		playerID: playerID,
		roomID:   roomID,
	}
	now := time.Now().UnixNano()
	s.lastRead.Store(now)
	s.lastWrite.Store(now)
	s.lastPong.Store(now)
	return s
}

func (s *Session) ID() SessionID           { return s.id }
func (s *Session) PlayerID() game.PlayerID { return s.playerID }
func (s *Session) RoomID() RoomID          { return s.roomID }

func (s *Session) TouchRead() {
	s.lastRead.Store(time.Now().UnixNano())
}

func (s *Session) TouchWrite() {
	s.lastWrite.Store(time.Now().UnixNano())
}

func (s *Session) TouchPong() {
	s.lastPong.Store(time.Now().UnixNano())
}

// Close は最初の呼び出しでだけ true を返します。
func (s *Session) Close() bool {
	return s.closed.CompareAndSwap(false, true)
}

func (s *Session) IsIdle(timeout time.Duration) (bool, IdleReason) {
	if timeout <= 0 {
		return false, IdleDisabled
	}
	var reason IdleReason
	if s.IsReadIdle(timeout) {
		reason |= IdleRead
	}
	if s.IsWriteIdle(timeout) {
		reason |= IdleWrite
	}
	if s.IsPongIdle(timeout) {
		reason |= IdlePong
	}
	return reason != IdleNone, reason
}

func (s *Session) IsReadIdle(timeout time.Duration) bool {
	return isIdleSince(unixNanoToTime(s.lastRead.Load()), timeout)
}

func (s *Session) IsWriteIdle(timeout time.Duration) bool {
	return isIdleSince(unixNanoToTime(s.lastWrite.Load()), timeout)
}

func (s *Session) IsPongIdle(timeout time.Duration) bool {
	return isIdleSince(unixNanoToTime(s.lastPong.Load()), timeout)
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

func isIdleSince(last time.Time, timeout time.Duration) bool {
	return time.Since(last) > timeout
}

func unixNanoToTime(nano int64) time.Time {
	return time.Unix(0, nano)
}

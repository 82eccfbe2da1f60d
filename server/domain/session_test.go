package domain

import (
	"testing"
	"time"

	game "boardrush/game/domain"
)

// TestNewSession_InitializesTimestamps は NewSession がタイムスタンプを初期化することを確認します。
func TestNewSession_InitializesTimestamps(t *testing.T) {
	s := NewSession(game.NewPlayerID(), NewRoomID())

	if s.lastRead.Load() == 0 {
		t.Errorf("lastRead is not initialized")
	}
	if s.lastWrite.Load() == 0 {
		t.Errorf("lastWrite is not initialized")
	}
	if s.lastPong.Load() == 0 {
		t.Errorf("lastPong is not initialized")
	}
	if s.ID().IsEmpty() {
		t.Errorf("session id is empty")
	}
}

func TestSession_IsIdle(t *testing.T) {
	s := NewSession(game.NewPlayerID(), NewRoomID())

	if idle, reason := s.IsIdle(0); idle || reason != IdleDisabled {
		t.Fatalf("IsIdle(0) = %v, %v", idle, reason)
	}
	if idle, _ := s.IsIdle(time.Hour); idle {
		t.Fatalf("fresh session reported idle")
	}

	old := time.Now().Add(-time.Minute).UnixNano()
	s.lastRead.Store(old)
	s.lastPong.Store(old)
	idle, reason := s.IsIdle(30 * time.Second)
	if !idle || !reason.Has(IdleRead) || !reason.Has(IdlePong) || reason.Has(IdleWrite) {
		t.Fatalf("IsIdle = %v, %v", idle, reason)
	}
	if reason.String() != "read|pong" {
		t.Fatalf("reason = %q", reason.String())
	}
}

func TestSession_CloseOnce(t *testing.T) {
	s := NewSession(game.NewPlayerID(), NewRoomID())
	if !s.Close() {
		t.Fatal("first Close returned false")
	}
	if s.Close() {
		t.Fatal("second Close returned true")
	}
	if !s.IsClosed() {
		t.Fatal("session not closed")
	}
}

func TestRoomID_ParseRoundTrip(t *testing.T) {
	id := NewRoomID()
	got, err := ParseRoomID(id.String())
	if err != nil || got != id {
		t.Fatalf("ParseRoomID = %v, %v", got, err)
	}
	if _, err := ParseRoomID("nope"); err == nil {
		t.Fatal("expected error")
	}
}

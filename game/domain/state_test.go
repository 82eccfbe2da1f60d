package domain

import (
	"reflect"
	"testing"
)

func testState() GameState {
	players := []Player{
		{ID: NewPlayerID(), Color: ColorRed, Name: "a"},
		{ID: NewPlayerID(), Color: ColorGreen, Name: "b"},
		{ID: NewPlayerID(), Color: ColorYellow, Name: "c"},
	}
	s := GameState{Players: players, Winner: -1, TurnNumber: 1}
	for _, p := range players {
		for id := uint8(1); id <= PawnsPerPlayer; id++ {
			s.Pawns = append(s.Pawns, Pawn{ID: id, Owner: p.Color, Pos: Home()})
		}
	}
	return s
}

func TestGameStateCloneIsDeep(t *testing.T) {
	s := testState()
	s.Event = &EventInstance{Type: EventDuel, Owner: 0, Opponent: 1, Content: []uint16{1, 2, 3}}
	s.Used = s.Used.With(EventQuiz, 4)

	c := s.Clone()
	if !reflect.DeepEqual(s, c) {
		t.Fatalf("clone differs: %+v vs %+v", s, c)
	}

	c.Players[0].TokenBalance = 99
	c.Pawns[0].Pos = OnCircuit(3)
	c.Event.Content[0] = 42
	c.Used[EventQuiz][0] = 7

	if s.Players[0].TokenBalance != 0 {
		t.Fatalf("players shared")
	}
	if s.Pawns[0].Pos != Home() {
		t.Fatalf("pawns shared")
	}
	if s.Event.Content[0] != 1 {
		t.Fatalf("event content shared")
	}
	if !s.Used.Has(EventQuiz, 4) {
		t.Fatalf("used set shared")
	}
}

func TestUsedContentWithKeepsOrderAndIsPure(t *testing.T) {
	var u UsedContent
	u1 := u.With(EventQuiz, 5)
	u2 := u1.With(EventQuiz, 1).With(EventQuiz, 3).With(EventQuiz, 3)

	if u.Len(EventQuiz) != 0 || u[EventQuiz] != nil {
		t.Fatalf("original mutated: %v", u[EventQuiz])
	}
	if u1.Len(EventQuiz) != 1 {
		t.Fatalf("u1 mutated: %v", u1[EventQuiz])
	}
	if want := []uint16{1, 3, 5}; !reflect.DeepEqual(u2[EventQuiz], want) {
		t.Fatalf("got %v, want %v", u2[EventQuiz], want)
	}
	if r := u2.Reset(EventQuiz); r[EventQuiz] != nil || u2.Len(EventQuiz) != 3 {
		t.Fatalf("reset not pure")
	}
}

func TestNextActiveSkipsInactive(t *testing.T) {
	s := testState()
	s.Players[1].Status = StatusForfeited

	next, ok := s.NextActive(0)
	if !ok || next != 2 {
		t.Fatalf("next = %d, %v", next, ok)
	}

	s.Players[2].Status = StatusDisconnected
	next, ok = s.NextActive(0)
	if ok || next != 0 {
		t.Fatalf("expected no other active seat, got %d, %v", next, ok)
	}

	count, last := s.InGameCount()
	if count != 2 || last != 2 {
		t.Fatalf("in game = %d last = %d", count, last)
	}
}

func TestValidateRoster(t *testing.T) {
	id := NewPlayerID()
	tests := []struct {
		name    string
		players []Player
		wantErr bool
	}{
		{"single player", []Player{{ID: id, Color: ColorRed}}, true},
		{"duplicate color", []Player{{ID: id, Color: ColorRed}, {ID: NewPlayerID(), Color: ColorRed}}, true},
		{"duplicate id", []Player{{ID: id, Color: ColorRed}, {ID: id, Color: ColorBlue}}, true},
		{"zero id", []Player{{Color: ColorRed}, {ID: id, Color: ColorBlue}}, true},
		{"ok", []Player{{ID: id, Color: ColorRed}, {ID: NewPlayerID(), Color: ColorBlue}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoster(tt.players)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

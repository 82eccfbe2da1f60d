package domain

import (
	"fmt"
	"slices"
)

// Phase はターン状態機械のフェーズです。
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseRolling
	PhaseMoving
	PhaseEvent
	PhaseEnding
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRolling:
		return "rolling"
	case PhaseMoving:
		return "moving"
	case PhaseEvent:
		return "event"
	case PhaseEnding:
		return "ending"
	case PhaseGameOver:
		return "game_over"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// EventType はマスに紐づくイベント種別です。コンテンツのカテゴリも兼ねます。
type EventType uint8

const (
	EventNone EventType = iota
	EventQuiz
	EventFunding
	EventDuel
	EventOpportunity
	EventChallenge
)

// NumEventTypes counts EventNone as well, so it can size arrays indexed by EventType.
const NumEventTypes = 6

func (t EventType) Valid() bool {
	return t > EventNone && t < NumEventTypes
}

func (t EventType) String() string {
	switch t {
	case EventNone:
		return "none"
	case EventQuiz:
		return "quiz"
	case EventFunding:
		return "funding"
	case EventDuel:
		return "duel"
	case EventOpportunity:
		return "opportunity"
	case EventChallenge:
		return "challenge"
	default:
		return fmt.Sprintf("event(%d)", uint8(t))
	}
}

// ParseEventType は String の逆変換です。
func ParseEventType(s string) (EventType, bool) {
	for t := EventQuiz; t < NumEventTypes; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return EventNone, false
}

type ResolutionState uint8

const (
	ResolutionPending ResolutionState = iota
	ResolutionResolved
)

// EventInstance は進行中のイベントです。Owner / Opponent は席番号で、決闘以外の Opponent は -1 です。
// Content はカテゴリ内プールのインデックスで、決闘なら問題数ぶん並びます。
type EventInstance struct {
	Type       EventType
	Owner      int
	Opponent   int
	Content    []uint16
	Submitted  [2]bool
	Scores     [2]int
	Resolution ResolutionState
}

// Participant returns 0 for the owner and 1 for the duel opponent.
func (e *EventInstance) Participant(seat int) (int, bool) {
	switch {
	case seat == e.Owner:
		return 0, true
	case e.Opponent >= 0 && seat == e.Opponent:
		return 1, true
	default:
		return 0, false
	}
}

func (e *EventInstance) Clone() *EventInstance {
	if e == nil {
		return nil
	}
	c := *e
	c.Content = slices.Clone(e.Content)
	return &c
}

// UsedContent は試合中に出題済みのプールインデックスをカテゴリごとに保持します。
// 各スライスは昇順で、空のカテゴリは nil です。With / Reset は元の値を変更しません。
type UsedContent [NumEventTypes][]uint16

func (u UsedContent) Has(t EventType, index uint16) bool {
	_, found := slices.BinarySearch(u[t], index)
	return found
}

func (u UsedContent) Len(t EventType) int {
	return len(u[t])
}

func (u UsedContent) With(t EventType, index uint16) UsedContent {
	pos, found := slices.BinarySearch(u[t], index)
	if found {
		return u
	}
	next := make([]uint16, 0, len(u[t])+1)
	next = append(next, u[t][:pos]...)
	next = append(next, index)
	next = append(next, u[t][pos:]...)
	u[t] = next
	return u
}

func (u UsedContent) Reset(t EventType) UsedContent {
	u[t] = nil
	return u
}

func (u UsedContent) Clone() UsedContent {
	var c UsedContent
	for t := range u {
		if len(u[t]) > 0 {
			c[t] = slices.Clone(u[t])
		}
	}
	return c
}

// GameState は1試合の正準状態です。Pawns は席順に PawnsPerPlayer 個ずつ並びます。
// Winner は GameOver になるまで -1 です。
type GameState struct {
	Players    []Player
	Pawns      []Pawn
	Current    int
	Dice       int
	Phase      Phase
	TurnNumber uint32
	Finished   [NumColors]int
	Winner     int
	Seed       uint64
	Event      *EventInstance
	Used       UsedContent
}

// Clone returns a deep copy; the reducer never mutates its input.
func (s GameState) Clone() GameState {
	c := s
	c.Players = slices.Clone(s.Players)
	c.Pawns = slices.Clone(s.Pawns)
	c.Event = s.Event.Clone()
	c.Used = s.Used.Clone()
	return c
}

func (s *GameState) CurrentPlayer() Player {
	return s.Players[s.Current]
}

func (s *GameState) SeatOf(id PlayerID) (int, bool) {
	for i, p := range s.Players {
		if p.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *GameState) SeatByColor(c Color) (int, bool) {
	for i, p := range s.Players {
		if p.Color == c {
			return i, true
		}
	}
	return -1, false
}

// PawnsOf returns the seat's pawns as a subslice of s.Pawns.
func (s *GameState) PawnsOf(seat int) []Pawn {
	return s.Pawns[seat*PawnsPerPlayer : (seat+1)*PawnsPerPlayer]
}

func (s *GameState) PawnIndex(c Color, pawnID uint8) (int, bool) {
	seat, ok := s.SeatByColor(c)
	if !ok || pawnID < 1 || pawnID > PawnsPerPlayer {
		return -1, false
	}
	return seat*PawnsPerPlayer + int(pawnID) - 1, true
}

// NextActive は from の次の席から順に、接続中かつ棄権していない席を探します。
func (s *GameState) NextActive(from int) (int, bool) {
	n := len(s.Players)
	for step := 1; step < n; step++ {
		seat := (from + step) % n
		if s.Players[seat].Status == StatusActive {
			return seat, true
		}
	}
	return from, false
}

// InGameCount は棄権していないプレイヤー数です（切断中も含む）。
func (s *GameState) InGameCount() (int, int) {
	count, last := 0, -1
	for i, p := range s.Players {
		if p.InGame() {
			count++
			last = i
		}
	}
	return count, last
}

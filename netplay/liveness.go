package netplay

import (
	"slices"
	"time"

	"boardrush/game/domain"
)

// Liveness は手番の制限時間と切断からの猶予時間を追跡します。時刻は呼び出し側から渡します。
type Liveness struct {
	turnTimeout time.Duration
	grace       time.Duration

	turn         uint32
	phase        domain.Phase
	lastActivity time.Time

	disconnected map[domain.PlayerID]time.Time
}

func NewLiveness(turnTimeout, grace time.Duration) *Liveness {
	return &Liveness{
		turnTimeout:  turnTimeout,
		grace:        grace,
		disconnected: make(map[domain.PlayerID]time.Time),
	}
}

// Observe は状態を見て、ターンかフェーズが変わっていれば手番タイマーを戻します。
func (l *Liveness) Observe(turnNumber uint32, phase domain.Phase, now time.Time) {
	if turnNumber != l.turn || phase != l.phase || l.lastActivity.IsZero() {
		l.turn = turnNumber
		l.phase = phase
		l.lastActivity = now
	}
}

// Touch restarts the turn timer, e.g. after a duel submission that kept the phase.
func (l *Liveness) Touch(now time.Time) {
	l.lastActivity = now
}

// TurnExpired は現在の手番が制限時間を過ぎたかどうかです。0以下の制限時間は無効です。
func (l *Liveness) TurnExpired(now time.Time) bool {
	if l.turnTimeout <= 0 || l.lastActivity.IsZero() {
		return false
	}
	return now.Sub(l.lastActivity) >= l.turnTimeout
}

func (l *Liveness) Disconnected(id domain.PlayerID, now time.Time) {
	if _, ok := l.disconnected[id]; !ok {
		l.disconnected[id] = now
	}
}

func (l *Liveness) Reconnected(id domain.PlayerID) {
	delete(l.disconnected, id)
}

func (l *Liveness) IsDisconnected(id domain.PlayerID) bool {
	_, ok := l.disconnected[id]
	return ok
}

// Expired は猶予時間を過ぎた切断プレイヤーを返し、追跡から外します。順序はID順です。
func (l *Liveness) Expired(now time.Time) []domain.PlayerID {
	var out []domain.PlayerID
	for id, at := range l.disconnected {
		if now.Sub(at) >= l.grace {
			out = append(out, id)
		}
	}
	slices.SortFunc(out, func(a, b domain.PlayerID) int {
		return slices.Compare(a[:], b[:])
	})
	for _, id := range out {
		delete(l.disconnected, id)
	}
	return out
}

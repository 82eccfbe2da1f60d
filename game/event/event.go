package event

import (
	"errors"
	"fmt"

	"boardrush/game/content"
	"boardrush/game/domain"
)

var (
	ErrNotParticipant   = errors.New("not an event participant")
	ErrAlreadySubmitted = errors.New("already submitted")
	ErrBadAnswers       = errors.New("answer count does not match questions")
	ErrUnknownContent   = errors.New("unknown content")
)

// Choice values for opportunity and challenge events.
const (
	ChoiceDecline uint8 = 0
	ChoiceAccept  uint8 = 1
)

// Rewards は決闘など、コンテンツ側に持たない報酬値です。
type Rewards struct {
	DuelWinTokens  int
	DuelWinXP      int
	DuelDrawTokens int
	DuelDrawXP     int
	DuelLossXP     int
	QuizMissXP     int
}

func DefaultRewards() Rewards {
	return Rewards{
		DuelWinTokens:  20,
		DuelWinXP:      30,
		DuelDrawTokens: 10,
		DuelDrawXP:     15,
		DuelLossXP:     5,
		QuizMissXP:     2,
	}
}

// Submission は1参加者の回答です。Choice は単発イベント、Answers は決闘で使います。
type Submission struct {
	Choice  uint8
	Answers []uint8
}

type Reward struct {
	Seat   int
	Tokens int
	XP     int
}

// Outcome は Resolve の結果です。Done が false の間は他の参加者の提出待ちです。
type Outcome struct {
	Done    bool
	Rewards []Reward
	Winner  int
	Draw    bool
	Scores  [2]int
}

// Open はマスのイベントから EventInstance を作ります。
// 決闘の相手は owner の次の有効な席です。相手がいない場合やプールが空の場合は false を返し、
// イベントは報酬なしで終わります。
func Open(table content.Table, s *domain.GameState, t domain.EventType, owner int, difficulty int) (*domain.EventInstance, domain.UsedContent, bool) {
	used := s.Used
	ev := &domain.EventInstance{Type: t, Owner: owner, Opponent: -1}

	count := 1
	if t == domain.EventDuel {
		opponent, ok := s.NextActive(owner)
		if !ok {
			return nil, used, false
		}
		ev.Opponent = opponent
		count = DuelQuestions
	}

	for draw := range count {
		rng := NewRand(s.Seed, s.TurnNumber, uint64(draw))
		idx, next, ok := selectExcluding(table, t, difficulty, used, rng, ev.Content)
		if !ok {
			break
		}
		used = next
		ev.Content = append(ev.Content, idx)
	}
	if len(ev.Content) == 0 {
		return nil, s.Used, false
	}
	return ev, used, true
}

// Resolve は seat の提出を記録した新しい EventInstance と結果を返します。入力は変更しません。
func Resolve(table content.Table, rewards Rewards, ev *domain.EventInstance, seat int, sub Submission) (*domain.EventInstance, Outcome, error) {
	slot, ok := ev.Participant(seat)
	if !ok {
		return ev, Outcome{}, fmt.Errorf("%w: seat %d", ErrNotParticipant, seat)
	}
	if ev.Submitted[slot] {
		return ev, Outcome{}, fmt.Errorf("%w: seat %d", ErrAlreadySubmitted, seat)
	}

	if ev.Type == domain.EventDuel {
		return resolveDuel(table, rewards, ev, slot, sub)
	}

	item, ok := table.Lookup(ev.Type, ev.Content[0])
	if !ok {
		return ev, Outcome{}, fmt.Errorf("%w: %s[%d]", ErrUnknownContent, ev.Type, ev.Content[0])
	}
	r := Reward{Seat: seat}
	switch ev.Type {
	case domain.EventQuiz:
		if int(sub.Choice) == item.Answer {
			r.Tokens, r.XP = item.Reward, item.XP
		} else {
			r.XP = rewards.QuizMissXP
		}
	case domain.EventFunding:
		r.Tokens, r.XP = item.Reward, item.XP
	case domain.EventOpportunity:
		if sub.Choice == ChoiceAccept {
			r.Tokens, r.XP = item.Reward-item.Cost, item.XP
		}
	case domain.EventChallenge:
		if sub.Choice == ChoiceAccept {
			r.Tokens, r.XP = item.Reward, item.XP
		} else {
			r.Tokens = -item.Cost
		}
	}

	next := ev.Clone()
	next.Submitted[slot] = true
	next.Resolution = domain.ResolutionResolved
	return next, Outcome{Done: true, Rewards: []Reward{r}, Winner: -1}, nil
}

func resolveDuel(table content.Table, rewards Rewards, ev *domain.EventInstance, slot int, sub Submission) (*domain.EventInstance, Outcome, error) {
	if len(sub.Answers) != len(ev.Content) {
		return ev, Outcome{}, fmt.Errorf("%w: got %d, want %d", ErrBadAnswers, len(sub.Answers), len(ev.Content))
	}
	score := 0
	for i, idx := range ev.Content {
		item, ok := table.Lookup(domain.EventDuel, idx)
		if !ok {
			return ev, Outcome{}, fmt.Errorf("%w: duel[%d]", ErrUnknownContent, idx)
		}
		if int(sub.Answers[i]) == item.Answer {
			score += item.Points
		}
	}
	next := ev.Clone()
	next.Submitted[slot] = true
	next.Scores[slot] = score
	return next, duelOutcome(rewards, next), nil
}

// Abandon は棄権した決闘相手を0点の提出済みとして扱います。
func Abandon(rewards Rewards, ev *domain.EventInstance, seat int) (*domain.EventInstance, Outcome) {
	slot, ok := ev.Participant(seat)
	if !ok || ev.Submitted[slot] {
		return ev, Outcome{Winner: -1}
	}
	next := ev.Clone()
	next.Submitted[slot] = true
	next.Scores[slot] = 0
	return next, duelOutcome(rewards, next)
}

func duelOutcome(rewards Rewards, ev *domain.EventInstance) Outcome {
	out := Outcome{Winner: -1, Scores: ev.Scores}
	if !ev.Submitted[0] || !ev.Submitted[1] {
		return out
	}
	ev.Resolution = domain.ResolutionResolved
	out.Done = true
	seats := [2]int{ev.Owner, ev.Opponent}
	switch {
	case ev.Scores[0] == ev.Scores[1]:
		out.Draw = true
		for _, seat := range seats {
			out.Rewards = append(out.Rewards, Reward{Seat: seat, Tokens: rewards.DuelDrawTokens, XP: rewards.DuelDrawXP})
		}
	default:
		win, lose := 0, 1
		if ev.Scores[1] > ev.Scores[0] {
			win, lose = 1, 0
		}
		out.Winner = seats[win]
		out.Rewards = append(out.Rewards,
			Reward{Seat: seats[win], Tokens: rewards.DuelWinTokens, XP: rewards.DuelWinXP},
			Reward{Seat: seats[lose], XP: rewards.DuelLossXP},
		)
	}
	return out
}

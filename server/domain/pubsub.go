package domain

import (
	"context"
	"log/slog"
	"sync"

	game "boardrush/game/domain"
)

type Topic string

func RoomTopic(id RoomID) Topic {
	return Topic("room:" + id.String())
}

func RoomControlTopic(id RoomID) Topic {
	return Topic("room:" + id.String() + ":ctrl")
}

func SessionTopic(id SessionID) Topic {
	return Topic("session:" + id.String())
}

type MessageKind uint8

const (
	MessageData MessageKind = iota
	MessageJoin
	MessageLeave
	MessageStart
)

// Message は pubsub で流れる1件です。Data はワイヤ形式のフレームそのままです。
type Message struct {
	Kind      MessageKind
	SessionID SessionID
	PlayerID  game.PlayerID
	Data      []byte
}

//go:generate go tool mockgen -destination=./mocks/pubsub_mock.go -package=mocks . PubSub

type PubSub interface {
	Subscribe(topic Topic) <-chan Message
	Unsubscribe(topic Topic, ch <-chan Message)
	Publish(ctx context.Context, topic Topic, msg Message)
}

// SimplePubSub はプロセス内の PubSub です。購読者のバッファが満杯のときはそのメッセージを捨てます。
type SimplePubSub struct {
	mu         sync.RWMutex
	subs       map[Topic][]chan Message
	bufferSize int
}

var _ PubSub = (*SimplePubSub)(nil)

func NewSimplePubSub() *SimplePubSub {
	return &SimplePubSub{
		subs:       make(map[Topic][]chan Message),
		bufferSize: 256,
	}
}

func (p *SimplePubSub) Subscribe(topic Topic) <-chan Message {
	ch := make(chan Message, p.bufferSize)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[topic] = append(p.subs[topic], ch)
	return ch
}

// Unsubscribe は購読を外してチャネルを閉じます。
func (p *SimplePubSub) Unsubscribe(topic Topic, ch <-chan Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := p.subs[topic]
	for i, c := range subs {
		if c == ch {
			close(c)
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(p.subs, topic)
		return
	}
	p.subs[topic] = subs
}

func (p *SimplePubSub) Publish(ctx context.Context, topic Topic, msg Message) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.subs[topic] {
		select {
		case ch <- msg:
		default:
			slog.WarnContext(ctx, "pubsub: subscriber full, message dropped", "topic", topic)
		}
	}
}

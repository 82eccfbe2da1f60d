package domain_test

import (
	"context"
	"testing"
	"time"

	domain "boardrush/server/domain"
)

func TestSimplePubSub_PublishSubscribe(t *testing.T) {
	ps := domain.NewSimplePubSub()
	topic := domain.RoomTopic(domain.NewRoomID())
	a := ps.Subscribe(topic)
	b := ps.Subscribe(topic)
	other := ps.Subscribe(domain.RoomControlTopic(domain.NewRoomID()))

	ps.Publish(context.Background(), topic, domain.Message{Data: []byte("hi")})
	for _, ch := range []<-chan domain.Message{a, b} {
		if msg := waitMessage(t, ch); string(msg.Data) != "hi" {
			t.Fatalf("got %q", msg.Data)
		}
	}
	select {
	case msg := <-other:
		t.Fatalf("other topic received %+v", msg)
	default:
	}

	ps.Unsubscribe(topic, a)
	if _, ok := <-a; ok {
		t.Fatal("unsubscribed channel should be closed")
	}
	ps.Publish(context.Background(), topic, domain.Message{Data: []byte("again")})
	if msg := waitMessage(t, b); string(msg.Data) != "again" {
		t.Fatalf("got %q", msg.Data)
	}
}

func TestSimplePubSub_DropsWhenSubscriberIsFull(t *testing.T) {
	ps := domain.NewSimplePubSub()
	topic := domain.SessionTopic(domain.NewSessionID())
	_ = ps.Subscribe(topic)

	done := make(chan struct{})
	go func() {
		for range 1000 {
			ps.Publish(context.Background(), topic, domain.Message{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

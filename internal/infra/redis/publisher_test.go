package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"teamquiz-service/internal/domain"
)

func TestPublisherPublishesToRoomChannel(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	defer client.Close()
	pub := NewPublisher(client, "", time.Minute)

	ctx := context.Background()
	sub := client.Subscribe(ctx, pub.Channel(42))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := domain.Event{ID: "ev-1", Type: domain.EventAnswerUpdated, RoomID: 42, QuestionNumber: 3, Recalculated: true}
	if err := pub.Publish(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got domain.Event
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if got.ID != "ev-1" || !got.Recalculated || got.QuestionNumber != 3 {
			t.Fatalf("unexpected event %+v", got)
		}
		if msg.Channel != "quiz:room:42:events" {
			t.Fatalf("unexpected channel %s", msg.Channel)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestPublisherKeepsLastEventWithTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	defer client.Close()
	pub := NewPublisher(client, "test:", time.Minute)
	ctx := context.Background()

	if _, ok, err := pub.LastEvent(ctx, 1); err != nil || ok {
		t.Fatalf("expected no last event, got ok=%v err=%v", ok, err)
	}

	_ = pub.Publish(ctx, domain.Event{ID: "a", RoomID: 1})
	_ = pub.Publish(ctx, domain.Event{ID: "b", RoomID: 1})

	ev, ok, err := pub.LastEvent(ctx, 1)
	if err != nil || !ok || ev.ID != "b" {
		t.Fatalf("expected last event b, got %+v ok=%v err=%v", ev, ok, err)
	}
	ttl := mr.TTL("test:1:last-event")
	if ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("ttl out of range: %s", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := pub.LastEvent(ctx, 1); ok {
		t.Fatalf("expected last event to expire")
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

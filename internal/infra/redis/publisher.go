package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"teamquiz-service/internal/domain"
)

// DefaultChannelPrefix namespaces every key and channel the publisher writes.
const DefaultChannelPrefix = "quiz:room:"

// Publisher fans events out over Redis pub/sub.
// Events are sent as: PUBLISH {prefix}{roomID}:events {json}
// The latest event is kept as: SET {prefix}{roomID}:last-event {json} EX ttl
type Publisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPublisher(client *redis.Client, prefix string, ttl time.Duration) *Publisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Publisher{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *Publisher) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pipe := p.client.Pipeline()
	pipe.Publish(ctx, p.Channel(ev.RoomID), payload)
	pipe.Set(ctx, p.lastEventKey(ev.RoomID), payload, p.ttlWithJitter())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// LastEvent returns the most recent event published for the room.
func (p *Publisher) LastEvent(ctx context.Context, roomID int64) (domain.Event, bool, error) {
	raw, err := p.client.Get(ctx, p.lastEventKey(roomID)).Bytes()
	if err == redis.Nil {
		return domain.Event{}, false, nil
	}
	if err != nil {
		return domain.Event{}, false, err
	}
	var ev domain.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return domain.Event{}, false, err
	}
	return ev, true, nil
}

// Channel is the pub/sub channel of a room.
func (p *Publisher) Channel(roomID int64) string {
	return p.prefix + strconv.FormatInt(roomID, 10) + ":events"
}

func (p *Publisher) lastEventKey(roomID int64) string {
	return p.prefix + strconv.FormatInt(roomID, 10) + ":last-event"
}

func (p *Publisher) ttlWithJitter() time.Duration {
	if p.ttl <= 0 {
		return 0
	}
	jitterMax := int64(p.ttl) / 10
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ttl + time.Duration(p.rnd.Int63n(jitterMax+1))
}

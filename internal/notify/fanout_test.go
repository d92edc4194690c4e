package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"teamquiz-service/internal/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (r *recordingSink) Publish(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func TestFanoutDeliversToAllSinksDespiteFailure(t *testing.T) {
	boom := errors.New("redis down")
	failing := &recordingSink{err: boom}
	healthy := &recordingSink{}
	f := NewFanout(failing, nil, healthy)

	err := f.Publish(context.Background(), domain.Event{Type: domain.EventAnswerDeleted, RoomID: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined sink error, got %v", err)
	}
	if len(healthy.events) != 1 || len(failing.events) != 1 {
		t.Fatalf("expected every sink to be called, got %d and %d", len(healthy.events), len(failing.events))
	}
}

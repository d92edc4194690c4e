package notify

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"teamquiz-service/internal/domain"
)

// Publisher is satisfied by every event sink (hub, Redis, Postgres).
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Fanout delivers each event to all sinks concurrently. A failing sink does
// not stop delivery to the others.
type Fanout struct {
	sinks []Publisher
}

func NewFanout(sinks ...Publisher) *Fanout {
	out := make([]Publisher, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Fanout{sinks: out}
}

// Publish returns the joined errors of all failing sinks.
func (f *Fanout) Publish(ctx context.Context, ev domain.Event) error {
	errs := make([]error, len(f.sinks))
	var g errgroup.Group
	for i, sink := range f.sinks {
		i, sink := i, sink
		g.Go(func() error {
			errs[i] = sink.Publish(ctx, ev)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

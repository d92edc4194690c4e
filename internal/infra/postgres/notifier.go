package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"teamquiz-service/internal/domain"
)

// DefaultNotifyChannel is the LISTEN/NOTIFY channel events are sent on.
const DefaultNotifyChannel = "quiz_events"

// Notifier forwards events to other instances through pg_notify.
type Notifier struct {
	pool    *pgxpool.Pool
	channel string
}

func NewNotifier(pool *pgxpool.Pool, channel string) *Notifier {
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	return &Notifier{pool: pool, channel: channel}
}

func (n *Notifier) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := n.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, n.channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

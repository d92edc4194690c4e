package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"teamquiz-service/internal/domain"
)

// DefaultScoreTable is used for rooms created without a table.
var DefaultScoreTable = []int{10, 7, 5, 3, 2, 1}

// Options tunes a ScoringService. Zero values fall back to defaults.
type Options struct {
	ScoreTable     []int
	TotalQuestions int
	Location       *time.Location
}

// ScoringService contains the answer submission and scoring use cases.
type ScoringService struct {
	store     Store
	publisher Publisher
	auth      Authenticator
	opts      Options
	now       func() time.Time
	sf        singleflight.Group
}

func NewScoringService(store Store, publisher Publisher, auth Authenticator, opts Options) *ScoringService {
	return NewScoringServiceWithClock(store, publisher, auth, opts, time.Now)
}

// NewScoringServiceWithClock is used by tests for deterministic timestamps.
func NewScoringServiceWithClock(store Store, publisher Publisher, auth Authenticator, opts Options, now func() time.Time) *ScoringService {
	if len(opts.ScoreTable) == 0 {
		opts.ScoreTable = DefaultScoreTable
	}
	if opts.TotalQuestions <= 0 {
		opts.TotalQuestions = 12
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &ScoringService{
		store:     store,
		publisher: publisher,
		auth:      auth,
		opts:      opts,
		now:       now,
	}
}

// ResolveRoom looks a room up by join code first, then by numeric id.
func (s *ScoringService) ResolveRoom(ctx context.Context, ref string) (domain.Room, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	room, err := s.store.RoomByCode(ctx, ref)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, domain.ErrRoomNotFound) {
		return domain.Room{}, err
	}
	id, convErr := strconv.ParseInt(ref, 10, 64)
	if convErr != nil {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return s.store.RoomByID(ctx, id)
}

func (s *ScoringService) requireAdmin(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrUnauthenticated
	}
	if !s.auth.IsAdmin(ctx, token) {
		return domain.ErrAdminRequired
	}
	return nil
}

// adminRoom checks admin rights before resolving the room.
func (s *ScoringService) adminRoom(ctx context.Context, token, roomRef string) (domain.Room, error) {
	if err := s.requireAdmin(ctx, token); err != nil {
		return domain.Room{}, err
	}
	return s.ResolveRoom(ctx, roomRef)
}

// publish delivers ev after a committed mutation. Delivery errors are logged
// and dropped.
func (s *ScoringService) publish(ctx context.Context, ev domain.Event) {
	if s.publisher == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.At = s.now()
	if err := s.publisher.Publish(ctx, ev); err != nil {
		log.Printf("notify: publish %s for room %d question %d failed: %v", ev.Type, ev.RoomID, ev.QuestionNumber, err)
	}
}

func userActor(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func snapshotTable(room domain.Room) []int {
	return append([]int(nil), room.ScoreTable...)
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"teamquiz-service/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type staticUsers map[string]domain.User

func (s staticUsers) UserByToken(_ context.Context, roomID int64, token string) (domain.User, error) {
	u, ok := s[token]
	if !ok || u.RoomID != roomID {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func TestIsAdmin(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewJWTAuthenticator(testSecret, staticUsers{})
	a.now = func() time.Time { return now }

	token, err := IssueAdminToken(testSecret, time.Hour, now)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if !a.IsAdmin(context.Background(), token) {
		t.Fatalf("expected fresh token to be admin")
	}

	a.now = func() time.Time { return now.Add(2 * time.Hour) }
	if a.IsAdmin(context.Background(), token) {
		t.Fatalf("expired token must be rejected")
	}

	forged, _ := IssueAdminToken("another-secret-another-secret!!", time.Hour, now)
	a.now = func() time.Time { return now }
	if a.IsAdmin(context.Background(), forged) {
		t.Fatalf("token signed with another secret must be rejected")
	}
	if a.IsAdmin(context.Background(), "not-a-jwt") {
		t.Fatalf("garbage must be rejected")
	}
}

func TestCurrentUser(t *testing.T) {
	a := NewJWTAuthenticator(testSecret, staticUsers{"tok": {ID: 7, RoomID: 1, TeamID: 2}})

	u, err := a.CurrentUser(context.Background(), 1, "tok")
	if err != nil || u.ID != 7 || u.TeamID != 2 {
		t.Fatalf("unexpected user %+v err %v", u, err)
	}
	if _, err := a.CurrentUser(context.Background(), 2, "tok"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("token from another room must not resolve, got %v", err)
	}
	if _, err := a.CurrentUser(context.Background(), 1, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for empty token, got %v", err)
	}
}

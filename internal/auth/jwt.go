package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"teamquiz-service/internal/domain"
)

const adminRole = "admin"

// UserLookup resolves participant session tokens.
type UserLookup interface {
	UserByToken(ctx context.Context, roomID int64, token string) (domain.User, error)
}

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthenticator recognizes admins by an HS256 token and participants by
// their room session token.
type JWTAuthenticator struct {
	secret []byte
	users  UserLookup
	now    func() time.Time
}

func NewJWTAuthenticator(secret string, users UserLookup) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret), users: users, now: time.Now}
}

// IsAdmin reports whether token is a valid, unexpired admin token.
func (a *JWTAuthenticator) IsAdmin(_ context.Context, token string) bool {
	claims := &adminClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		a.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return false
	}
	return claims.Role == adminRole
}

func (a *JWTAuthenticator) keyFunc(*jwt.Token) (interface{}, error) {
	return a.secret, nil
}

// CurrentUser resolves a participant session token within a room.
func (a *JWTAuthenticator) CurrentUser(ctx context.Context, roomID int64, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrUnauthenticated
	}
	return a.users.UserByToken(ctx, roomID, token)
}

// IssueAdminToken mints an admin token valid for ttl.
func IssueAdminToken(secret string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret not configured")
	}
	claims := adminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminRole,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

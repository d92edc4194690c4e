package app

import (
	"context"
	"time"

	"teamquiz-service/internal/domain"
)

// AnswerFilter narrows ListAnswers. Results are in submission order.
type AnswerFilter struct {
	RoomID         int64
	QuestionNumber *int
	// UserID restricts the result to one participant; zero matches everyone.
	UserID int64
}

// Store abstracts the persistent store (in-memory, Postgres).
type Store interface {
	RoomByCode(ctx context.Context, code string) (domain.Room, error)
	RoomByID(ctx context.Context, id int64) (domain.Room, error)
	CreateRoom(ctx context.Context, room domain.Room) (domain.Room, error)
	// UpdateRoom persists the mutable room settings: activity, resubmission
	// default and score table.
	UpdateRoom(ctx context.Context, room domain.Room) (domain.Room, error)
	// DeleteRoom removes the room with its users, questions, team starts and
	// answers.
	DeleteRoom(ctx context.Context, id int64) error

	Teams(ctx context.Context) ([]domain.Team, error)
	Team(ctx context.Context, id int64) (domain.Team, error)
	SeedTeams(ctx context.Context, teams []domain.Team) error

	// UpsertUser creates the user or rebinds team and token of an existing
	// (room, username) pair.
	UpsertUser(ctx context.Context, user domain.User) (domain.User, error)
	UserByToken(ctx context.Context, roomID int64, token string) (domain.User, error)
	RoomUsers(ctx context.Context, roomID int64) ([]domain.User, error)

	// EnsureQuestion is insert-or-ignore; it never fails on a concurrent create.
	EnsureQuestion(ctx context.Context, roomID int64, number int) (domain.Question, error)
	Question(ctx context.Context, roomID int64, number int) (domain.Question, error)

	Answer(ctx context.Context, roomID, answerID int64) (domain.Answer, error)
	ListAnswers(ctx context.Context, filter AnswerFilter) ([]domain.Answer, error)

	// InQuestionTx runs fn as one transaction that holds the question row
	// exclusively. Nothing fn wrote survives if it returns an error.
	InQuestionTx(ctx context.Context, roomID int64, number int, fn func(ctx context.Context, tx QuestionTx) error) error
}

// QuestionTx is the view of one locked question and its answers.
type QuestionTx interface {
	Question() domain.Question
	SaveQuestion(ctx context.Context, q domain.Question) (domain.Question, error)

	TeamStarts(ctx context.Context) (map[int64]time.Time, error)
	CreateTeamStart(ctx context.Context, teamID int64, at time.Time) (domain.QuestionTeamStart, error)

	SubmittedOn(ctx context.Context, userID int64, day domain.Day) (bool, error)
	InsertAnswer(ctx context.Context, a domain.Answer) (domain.Answer, error)
	// Answers returns every answer of the question ordered by id.
	Answers(ctx context.Context) ([]domain.Answer, error)
	UpdateAnswer(ctx context.Context, a domain.Answer) error
	DeleteAnswer(ctx context.Context, answerID int64) error
	// SaveScores persists score and elapsed time of the given answers.
	SaveScores(ctx context.Context, answers []domain.Answer) error
}

// Publisher delivers events to observers. Failures never fail a mutation.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Authenticator is the auth collaborator.
type Authenticator interface {
	IsAdmin(ctx context.Context, token string) bool
	CurrentUser(ctx context.Context, roomID int64, token string) (domain.User, error)
}

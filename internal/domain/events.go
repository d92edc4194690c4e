package domain

import "time"

// EventType names a notification published after a mutation.
type EventType string

const (
	EventAnswerSubmitted   EventType = "answer-submitted"
	EventAnswerUpdated     EventType = "answer-updated"
	EventAnswerDeleted     EventType = "answer-deleted"
	EventQuestionFinalized EventType = "question-finalized"
	EventQuestionStarted   EventType = "question-started"
)

// ActorAdmin identifies administrative mutations.
const ActorAdmin = "admin"

// Event describes what changed. Observers refetch the question when
// Recalculated is set and patch AnswerIDs otherwise.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	Actor          string    `json:"actor"`
	RoomID         int64     `json:"roomId"`
	QuestionNumber int       `json:"questionNumber"`
	AnswerIDs      []int64   `json:"answerIds,omitempty"`
	TeamID         int64     `json:"teamId,omitempty"`
	Recalculated   bool      `json:"recalculated"`
	At             time.Time `json:"at"`
}

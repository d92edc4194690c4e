package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
)

var (
	// ErrRoomNotFound is returned when neither a join code nor an id matches.
	ErrRoomNotFound = newError(ErrNotFound, "room not found")
	// ErrQuestionNotFound indicates a question number outside the room's range or never created.
	ErrQuestionNotFound = newError(ErrNotFound, "question not found")
	// ErrAnswerNotFound indicates the answer does not exist in the given room.
	ErrAnswerNotFound = newError(ErrNotFound, "answer not found")
	// ErrUserNotFound is returned when a session token matches no user of the room.
	ErrUserNotFound = newError(ErrNotFound, "user not found")
	ErrTeamNotFound = newError(ErrNotFound, "team not found")

	ErrUnauthenticated = newError(ErrForbidden, "authentication token required")
	ErrAdminRequired   = newError(ErrForbidden, "admin privileges required")

	ErrAlreadyAnswered  = newError(ErrConflict, "question already answered today; resubmission is disabled")
	ErrTeamStartExists  = newError(ErrConflict, "team has already been started for this question")
	ErrRoomCodeTaken    = newError(ErrConflict, "room code already in use")
	ErrUsernameRequired = newError(ErrValidation, "username is required")

	ErrAnswerTextRequired     = newError(ErrValidation, "answer_text is required for free_text questions")
	ErrSelectedChoiceRequired = newError(ErrValidation, "selected_choice is required for multiple_choice questions")
	ErrInvalidAnswerType      = newError(ErrValidation, `answer_type must be "free_text" or "multiple_choice"`)
	ErrChoicesNotAllowed      = newError(ErrValidation, "choices can only be set on multiple_choice questions")
	ErrMalformedExpected      = newError(ErrValidation, "expected answer of a multiple_choice question must be a choice index")
	ErrPracticeNotScored      = newError(ErrValidation, "practice question cannot be finalized")
	ErrEmptyScoreTable        = newError(ErrValidation, "score table is empty")
	ErrNegativeScore          = newError(ErrValidation, "score table entries and scores must be non-negative")
	ErrNothingToEdit          = newError(ErrValidation, "score or elapsed_time_ms is required")
)

// Error is a domain error tagged with one of the kinds above.
type Error struct {
	kind error
	msg  string
}

func newError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// UnjudgedError is returned by finalize while answers still have unknown correctness.
type UnjudgedError struct {
	Count int
}

func (e *UnjudgedError) Error() string {
	return fmt.Sprintf("%d answer(s) have not been judged yet", e.Count)
}

func (e *UnjudgedError) Unwrap() error { return ErrValidation }

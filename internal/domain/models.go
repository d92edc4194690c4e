package domain

import "time"

// PracticeQuestion is never judged, scored or finalized.
const PracticeQuestion = 0

// AnswerType selects how a question is answered and judged.
type AnswerType string

const (
	FreeText       AnswerType = "free_text"
	MultipleChoice AnswerType = "multiple_choice"
)

// Valid reports whether t is a known answer type.
func (t AnswerType) Valid() bool {
	return t == FreeText || t == MultipleChoice
}

// Correctness is the tri-state judgment of an answer.
type Correctness int

const (
	Unknown Correctness = iota
	Correct
	Incorrect
)

func (c Correctness) String() string {
	switch c {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return "unknown"
	}
}

// CorrectnessOf converts an explicit admin verdict.
func CorrectnessOf(correct bool) Correctness {
	if correct {
		return Correct
	}
	return Incorrect
}

// Bool maps Unknown to nil, which is how correctness is serialized and stored.
func (c Correctness) Bool() *bool {
	switch c {
	case Correct:
		v := true
		return &v
	case Incorrect:
		v := false
		return &v
	default:
		return nil
	}
}

// CorrectnessFromBool is the inverse of Correctness.Bool.
func CorrectnessFromBool(v *bool) Correctness {
	if v == nil {
		return Unknown
	}
	return CorrectnessOf(*v)
}

// Day is a server-local calendar day formatted as 2006-01-02.
type Day string

// Room is one competition instance.
type Room struct {
	ID                int64     `json:"id"`
	Code              string    `json:"room_code"`
	IsActive          bool      `json:"is_active"`
	TotalQuestions    int       `json:"total_questions"`
	AllowResubmission bool      `json:"allow_resubmission"`
	ScoreTable        []int     `json:"score_table"`
	CreatedAt         time.Time `json:"created_at"`
}

// ValidQuestion reports whether number lies in 0..TotalQuestions.
func (r Room) ValidQuestion(number int) bool {
	return number >= 0 && number <= r.TotalQuestions
}

// Team is part of the process-wide catalog shared by all rooms.
type Team struct {
	ID           int64  `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Color        string `json:"color" yaml:"color"`
	DisplayOrder int    `json:"display_order" yaml:"display_order"`
}

// User is a participant inside exactly one room.
type User struct {
	ID           int64     `json:"id"`
	RoomID       int64     `json:"room_id"`
	Username     string    `json:"username"`
	TeamID       int64     `json:"team_id"`
	SessionToken string    `json:"session_token,omitempty"`
	JoinedAt     time.Time `json:"joined_at"`
}

// Question is identified by (RoomID, Number).
type Question struct {
	ID                int64      `json:"id"`
	RoomID            int64      `json:"room_id"`
	Number            int        `json:"question_number"`
	AnswerType        AnswerType `json:"answer_type"`
	Choices           []string   `json:"choices,omitempty"`
	ExpectedAnswer    *string    `json:"correct_answer,omitempty"`
	AllowResubmission *bool      `json:"allow_resubmission"`
	GlobalStartTime   *time.Time `json:"global_start_time"`
	Finalized         bool       `json:"is_finalized"`
	FinalizedAt       *time.Time `json:"finalized_at"`
}

// QuestionTeamStart overrides the global start instant for one team.
type QuestionTeamStart struct {
	ID         int64     `json:"id"`
	QuestionID int64     `json:"question_id"`
	TeamID     int64     `json:"team_id"`
	StartTime  time.Time `json:"start_time"`
}

// Answer is one submission by one user for one question.
// TeamID is the submitter's team at submission time.
type Answer struct {
	ID             int64       `json:"id"`
	RoomID         int64       `json:"room_id"`
	UserID         int64       `json:"user_id"`
	TeamID         int64       `json:"team_id"`
	QuestionNumber int         `json:"question_number"`
	AnswerText     string      `json:"answer_text"`
	SelectedChoice *int        `json:"selected_choice,omitempty"`
	ElapsedMS      *int64      `json:"elapsed_time_ms"`
	Correctness    Correctness `json:"-"`
	Score          int         `json:"score"`
	SubmittedAt    time.Time   `json:"submitted_at"`
	SubmissionDay  Day         `json:"submission_date"`
}

// Submission is the user-supplied content of an answer.
type Submission struct {
	AnswerText     string
	SelectedChoice *int
}

// FinalizeResult reports a successful finalize.
type FinalizeResult struct {
	QuestionNumber int       `json:"question_number"`
	RankedCount    int       `json:"correct_answers_count"`
	FinalizedAt    time.Time `json:"finalized_at"`
}

// TeamScore aggregates a team's score within a room.
type TeamScore struct {
	TeamID       int64  `json:"team_id"`
	TeamName     string `json:"team_name"`
	TeamColor    string `json:"team_color"`
	TotalScore   int    `json:"total_score"`
	CorrectCount int    `json:"correct_count"`
	AnswerCount  int    `json:"answer_count"`
}

// UserScore aggregates one participant's score within a room.
type UserScore struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	TeamID       int64  `json:"team_id"`
	TotalScore   int    `json:"total_score"`
	CorrectCount int    `json:"correct_count"`
	AnswerCount  int    `json:"answer_count"`
}

// Scoreboard is the ordered standings of a room.
type Scoreboard struct {
	RoomID    int64       `json:"room_id"`
	Teams     []TeamScore `json:"team_scores"`
	Users     []UserScore `json:"user_scores"`
	UpdatedAt time.Time   `json:"updated_at"`
}

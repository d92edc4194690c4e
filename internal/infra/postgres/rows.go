package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"teamquiz-service/internal/domain"
)

type roomRow struct {
	bun.BaseModel `bun:"table:rooms,alias:r"`

	ID                int64     `bun:"id,pk,autoincrement"`
	Code              string    `bun:"room_code,notnull"`
	IsActive          bool      `bun:"is_active,notnull"`
	TotalQuestions    int       `bun:"total_questions,notnull"`
	AllowResubmission bool      `bun:"allow_resubmission,notnull"`
	ScoreTable        []int     `bun:"score_table,type:jsonb,notnull"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
}

func (r roomRow) toDomain() domain.Room {
	return domain.Room{
		ID:                r.ID,
		Code:              r.Code,
		IsActive:          r.IsActive,
		TotalQuestions:    r.TotalQuestions,
		AllowResubmission: r.AllowResubmission,
		ScoreTable:        append([]int{}, r.ScoreTable...),
		CreatedAt:         r.CreatedAt,
	}
}

type teamRow struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	ID           int64  `bun:"id,pk"`
	Name         string `bun:"name,notnull"`
	Color        string `bun:"color,notnull"`
	DisplayOrder int    `bun:"display_order,notnull"`
}

func (t teamRow) toDomain() domain.Team {
	return domain.Team{ID: t.ID, Name: t.Name, Color: t.Color, DisplayOrder: t.DisplayOrder}
}

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	RoomID       int64     `bun:"room_id,notnull"`
	Username     string    `bun:"username,notnull"`
	TeamID       int64     `bun:"team_id,notnull"`
	SessionToken string    `bun:"session_token,notnull"`
	JoinedAt     time.Time `bun:"joined_at,notnull"`
}

func (u userRow) toDomain() domain.User {
	return domain.User{
		ID:           u.ID,
		RoomID:       u.RoomID,
		Username:     u.Username,
		TeamID:       u.TeamID,
		SessionToken: u.SessionToken,
		JoinedAt:     u.JoinedAt,
	}
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID                int64      `bun:"id,pk,autoincrement"`
	RoomID            int64      `bun:"room_id,notnull"`
	Number            int        `bun:"question_number,notnull"`
	AnswerType        string     `bun:"answer_type,notnull"`
	Choices           []string   `bun:"choices,type:jsonb"`
	ExpectedAnswer    *string    `bun:"correct_answer"`
	AllowResubmission *bool      `bun:"allow_resubmission"`
	GlobalStartTime   *time.Time `bun:"global_start_time"`
	Finalized         bool       `bun:"is_finalized,notnull"`
	FinalizedAt       *time.Time `bun:"finalized_at"`
}

func (q questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:                q.ID,
		RoomID:            q.RoomID,
		Number:            q.Number,
		AnswerType:        domain.AnswerType(q.AnswerType),
		Choices:           q.Choices,
		ExpectedAnswer:    q.ExpectedAnswer,
		AllowResubmission: q.AllowResubmission,
		GlobalStartTime:   q.GlobalStartTime,
		Finalized:         q.Finalized,
		FinalizedAt:       q.FinalizedAt,
	}
}

func questionRowFrom(q domain.Question) questionRow {
	return questionRow{
		ID:                q.ID,
		RoomID:            q.RoomID,
		Number:            q.Number,
		AnswerType:        string(q.AnswerType),
		Choices:           q.Choices,
		ExpectedAnswer:    q.ExpectedAnswer,
		AllowResubmission: q.AllowResubmission,
		GlobalStartTime:   q.GlobalStartTime,
		Finalized:         q.Finalized,
		FinalizedAt:       q.FinalizedAt,
	}
}

type teamStartRow struct {
	bun.BaseModel `bun:"table:question_team_starts,alias:qts"`

	ID         int64     `bun:"id,pk,autoincrement"`
	QuestionID int64     `bun:"question_id,notnull"`
	TeamID     int64     `bun:"team_id,notnull"`
	StartTime  time.Time `bun:"start_time,notnull"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID             int64     `bun:"id,pk,autoincrement"`
	RoomID         int64     `bun:"room_id,notnull"`
	UserID         int64     `bun:"user_id,notnull"`
	TeamID         int64     `bun:"team_id,notnull"`
	QuestionNumber int       `bun:"question_number,notnull"`
	AnswerText     string    `bun:"answer_text,notnull"`
	SelectedChoice *int      `bun:"selected_choice"`
	ElapsedMS      *int64    `bun:"elapsed_time_ms"`
	IsCorrect      *bool     `bun:"is_correct"`
	Score          int       `bun:"score,notnull"`
	SubmittedAt    time.Time `bun:"submitted_at,notnull"`
	SubmissionDay  string    `bun:"submission_date,notnull"`
}

func (a answerRow) toDomain() domain.Answer {
	return domain.Answer{
		ID:             a.ID,
		RoomID:         a.RoomID,
		UserID:         a.UserID,
		TeamID:         a.TeamID,
		QuestionNumber: a.QuestionNumber,
		AnswerText:     a.AnswerText,
		SelectedChoice: a.SelectedChoice,
		ElapsedMS:      a.ElapsedMS,
		Correctness:    domain.CorrectnessFromBool(a.IsCorrect),
		Score:          a.Score,
		SubmittedAt:    a.SubmittedAt,
		SubmissionDay:  domain.Day(a.SubmissionDay),
	}
}

func answerRowFrom(a domain.Answer) answerRow {
	return answerRow{
		ID:             a.ID,
		RoomID:         a.RoomID,
		UserID:         a.UserID,
		TeamID:         a.TeamID,
		QuestionNumber: a.QuestionNumber,
		AnswerText:     a.AnswerText,
		SelectedChoice: a.SelectedChoice,
		ElapsedMS:      a.ElapsedMS,
		IsCorrect:      a.Correctness.Bool(),
		Score:          a.Score,
		SubmittedAt:    a.SubmittedAt,
		SubmissionDay:  string(a.SubmissionDay),
	}
}

func answersToDomain(rows []answerRow) []domain.Answer {
	out := make([]domain.Answer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

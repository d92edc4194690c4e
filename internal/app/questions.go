package app

import (
	"context"
	"time"

	"teamquiz-service/internal/domain"
	"teamquiz-service/internal/scoring"
)

// QuestionPatch carries the admin-editable settings of a question. A Set*
// flag distinguishes "leave as is" from "clear".
type QuestionPatch struct {
	AnswerType *domain.AnswerType

	SetChoices bool
	Choices    []string

	SetExpectedAnswer bool
	ExpectedAnswer    *string

	SetAllowResubmission bool
	AllowResubmission    *bool
}

// GetQuestion returns the question, creating it lazily within the room's range.
func (s *ScoringService) GetQuestion(ctx context.Context, roomRef string, number int) (domain.Question, error) {
	room, err := s.ResolveRoom(ctx, roomRef)
	if err != nil {
		return domain.Question{}, err
	}
	if !room.ValidQuestion(number) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return s.store.EnsureQuestion(ctx, room.ID, number)
}

// UpdateQuestion applies patch. Existing judgments are not re-derived.
func (s *ScoringService) UpdateQuestion(ctx context.Context, token, roomRef string, number int, patch QuestionPatch) (domain.Question, error) {
	room, err := s.adminRoom(ctx, token, roomRef)
	if err != nil {
		return domain.Question{}, err
	}
	if !room.ValidQuestion(number) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if _, err := s.store.EnsureQuestion(ctx, room.ID, number); err != nil {
		return domain.Question{}, err
	}

	var updated domain.Question
	err = s.store.InQuestionTx(ctx, room.ID, number, func(ctx context.Context, tx QuestionTx) error {
		q := tx.Question()
		if patch.AnswerType != nil {
			if !patch.AnswerType.Valid() {
				return domain.ErrInvalidAnswerType
			}
			q.AnswerType = *patch.AnswerType
		}
		if patch.SetChoices {
			if q.AnswerType != domain.MultipleChoice {
				return domain.ErrChoicesNotAllowed
			}
			q.Choices = append([]string(nil), patch.Choices...)
		}
		if patch.SetExpectedAnswer {
			q.ExpectedAnswer = patch.ExpectedAnswer
		}
		if patch.SetAllowResubmission {
			q.AllowResubmission = patch.AllowResubmission
		}
		if err := scoring.ValidateExpected(q.AnswerType, q.ExpectedAnswer); err != nil {
			return err
		}
		saved, err := tx.SaveQuestion(ctx, q)
		updated = saved
		return err
	})
	if err != nil {
		return domain.Question{}, err
	}
	return updated, nil
}

// StartQuestion sets the global start instant. Restarting overwrites it.
func (s *ScoringService) StartQuestion(ctx context.Context, token, roomRef string, number int, at *time.Time) (domain.Question, error) {
	room, err := s.adminRoom(ctx, token, roomRef)
	if err != nil {
		return domain.Question{}, err
	}
	if !room.ValidQuestion(number) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if _, err := s.store.EnsureQuestion(ctx, room.ID, number); err != nil {
		return domain.Question{}, err
	}
	start := s.now()
	if at != nil {
		start = *at
	}

	var updated domain.Question
	err = s.store.InQuestionTx(ctx, room.ID, number, func(ctx context.Context, tx QuestionTx) error {
		q := tx.Question()
		q.GlobalStartTime = &start
		saved, err := tx.SaveQuestion(ctx, q)
		updated = saved
		return err
	})
	if err != nil {
		return domain.Question{}, err
	}

	s.publish(ctx, domain.Event{
		Type:           domain.EventQuestionStarted,
		Actor:          domain.ActorAdmin,
		RoomID:         room.ID,
		QuestionNumber: number,
	})
	return updated, nil
}

// StartTeam records a team-specific start. A second start for the same
// team is a conflict.
func (s *ScoringService) StartTeam(ctx context.Context, token, roomRef string, number int, teamID int64) (domain.QuestionTeamStart, error) {
	room, err := s.adminRoom(ctx, token, roomRef)
	if err != nil {
		return domain.QuestionTeamStart{}, err
	}
	if !room.ValidQuestion(number) {
		return domain.QuestionTeamStart{}, domain.ErrQuestionNotFound
	}
	if _, err := s.store.Team(ctx, teamID); err != nil {
		return domain.QuestionTeamStart{}, err
	}
	if _, err := s.store.EnsureQuestion(ctx, room.ID, number); err != nil {
		return domain.QuestionTeamStart{}, err
	}
	now := s.now()

	var created domain.QuestionTeamStart
	err = s.store.InQuestionTx(ctx, room.ID, number, func(ctx context.Context, tx QuestionTx) error {
		starts, err := tx.TeamStarts(ctx)
		if err != nil {
			return err
		}
		if _, ok := starts[teamID]; ok {
			return domain.ErrTeamStartExists
		}
		created, err = tx.CreateTeamStart(ctx, teamID, now)
		return err
	})
	if err != nil {
		return domain.QuestionTeamStart{}, err
	}

	s.publish(ctx, domain.Event{
		Type:           domain.EventQuestionStarted,
		Actor:          domain.ActorAdmin,
		RoomID:         room.ID,
		QuestionNumber: number,
		TeamID:         teamID,
	})
	return created, nil
}

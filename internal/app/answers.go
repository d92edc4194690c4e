package app

import (
	"context"
	"strconv"
	"time"

	"teamquiz-service/internal/domain"
	"teamquiz-service/internal/scoring"
)

// SubmitRequest is the content of one submission.
type SubmitRequest struct {
	QuestionNumber int
	AnswerText     string
	SelectedChoice *int
}

// ManualEdit overrides an answer's score and/or elapsed time directly.
type ManualEdit struct {
	Score     *int
	ElapsedMS *int64
}

// SubmitAnswer records an answer for the user identified by token. The gate
// check and the insert run in one question transaction.
func (s *ScoringService) SubmitAnswer(ctx context.Context, roomRef, token string, req SubmitRequest) (domain.Answer, error) {
	now := s.now()

	room, err := s.ResolveRoom(ctx, roomRef)
	if err != nil {
		return domain.Answer{}, err
	}
	if token == "" {
		return domain.Answer{}, domain.ErrUnauthenticated
	}
	user, err := s.auth.CurrentUser(ctx, room.ID, token)
	if err != nil {
		return domain.Answer{}, err
	}
	if !room.ValidQuestion(req.QuestionNumber) {
		return domain.Answer{}, domain.ErrQuestionNotFound
	}
	if _, err := s.store.EnsureQuestion(ctx, room.ID, req.QuestionNumber); err != nil {
		return domain.Answer{}, err
	}

	submission := domain.Submission{AnswerText: req.AnswerText, SelectedChoice: req.SelectedChoice}
	today := scoring.DayOf(now, s.opts.Location)

	var created domain.Answer
	err = s.store.InQuestionTx(ctx, room.ID, req.QuestionNumber, func(ctx context.Context, tx QuestionTx) error {
		q := tx.Question()
		if err := scoring.ValidateSubmission(q, submission); err != nil {
			return err
		}

		submitted := false
		if q.Number != domain.PracticeQuestion && !scoring.AllowResubmission(room, q) {
			found, err := tx.SubmittedOn(ctx, user.ID, today)
			if err != nil {
				return err
			}
			submitted = found
		}
		if !scoring.MaySubmit(room, q, submitted) {
			return domain.ErrAlreadyAnswered
		}

		starts, err := tx.TeamStarts(ctx)
		if err != nil {
			return err
		}
		var teamStart *time.Time
		if at, ok := starts[user.TeamID]; ok {
			teamStart = &at
		}
		start := scoring.ResolveStart(q.GlobalStartTime, teamStart)

		text := req.AnswerText
		if q.AnswerType == domain.MultipleChoice {
			text = strconv.Itoa(*req.SelectedChoice)
		}
		created, err = tx.InsertAnswer(ctx, domain.Answer{
			RoomID:         room.ID,
			UserID:         user.ID,
			TeamID:         user.TeamID,
			QuestionNumber: q.Number,
			AnswerText:     text,
			SelectedChoice: req.SelectedChoice,
			ElapsedMS:      scoring.Elapsed(now, start),
			Correctness:    scoring.Judge(q, submission),
			Score:          0,
			SubmittedAt:    now,
			SubmissionDay:  today,
		})
		return err
	})
	if err != nil {
		return domain.Answer{}, err
	}

	s.publish(ctx, domain.Event{
		Type:           domain.EventAnswerSubmitted,
		Actor:          userActor(user.ID),
		RoomID:         room.ID,
		QuestionNumber: created.QuestionNumber,
		AnswerIDs:      []int64{created.ID},
		TeamID:         user.TeamID,
	})
	return created, nil
}

// SetCorrectness stores an admin verdict and reassigns the question's scores.
func (s *ScoringService) SetCorrectness(ctx context.Context, token, roomRef string, answerID int64, correct bool) (domain.Answer, error) {
	room, err := s.adminRoom(ctx, token, roomRef)
	if err != nil {
		return domain.Answer{}, err
	}
	existing, err := s.store.Answer(ctx, room.ID, answerID)
	if err != nil {
		return domain.Answer{}, err
	}
	table := snapshotTable(room)

	var updated domain.Answer
	err = s.store.InQuestionTx(ctx, room.ID, existing.QuestionNumber, func(ctx context.Context, tx QuestionTx) error {
		a, err := findAnswer(ctx, tx, answerID)
		if err != nil {
			return err
		}
		a.Correctness = domain.CorrectnessOf(correct)
		if err := tx.UpdateAnswer(ctx, a); err != nil {
			return err
		}
		_, answers, err := s.reassign(ctx, tx, table)
		if err != nil {
			return err
		}
		updated = pick(answers, answerID)
		return nil
	})
	if err != nil {
		return domain.Answer{}, err
	}

	s.publish(ctx, domain.Event{
		Type:           domain.EventAnswerUpdated,
		Actor:          domain.ActorAdmin,
		RoomID:         room.ID,
		QuestionNumber: updated.QuestionNumber,
		AnswerIDs:      []int64{answerID},
		Recalculated:   true,
	})
	return updated, nil
}

// ManualEdit writes score and/or elapsed time as given. It bypasses ranking
// until the next full reassignment of the question.
func (s *ScoringService) ManualEdit(ctx context.Context, token, roomRef string, answerID int64, edit ManualEdit) (domain.Answer, error) {
	room, err := s.adminRoom(ctx, token, roomRef)
	if err != nil {
		return domain.Answer{}, err
	}
	if edit.Score == nil && edit.ElapsedMS == nil {
		return domain.Answer{}, domain.ErrNothingToEdit
	}
	if (edit.Score != nil && *edit.Score < 0) || (edit.ElapsedMS != nil && *edit.ElapsedMS < 0) {
		return domain.Answer{}, domain.ErrNegativeScore
	}
	existing, err := s.store.Answer(ctx, room.ID, answerID)
	if err != nil {
		return domain.Answer{}, err
	}

	var updated domain.Answer
	err = s.store.InQuestionTx(ctx, room.ID, existing.QuestionNumber, func(ctx context.Context, tx QuestionTx) error {
		a, err := findAnswer(ctx, tx, answerID)
		if err != nil {
			return err
		}
		if edit.Score != nil {
			a.Score = *edit.Score
		}
		if edit.ElapsedMS != nil {
			ms := *edit.ElapsedMS
			a.ElapsedMS = &ms
		}
		if err := tx.UpdateAnswer(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return domain.Answer{}, err
	}

	s.publish(ctx, domain.Event{
		Type:           domain.EventAnswerUpdated,
		Actor:          domain.ActorAdmin,
		RoomID:         room.ID,
		QuestionNumber: updated.QuestionNumber,
		AnswerIDs:      []int64{answerID},
	})
	return updated, nil
}

// DeleteAnswer removes an answer, which also reopens the resubmission gate,
// and reassigns the question's scores.
func (s *ScoringService) DeleteAnswer(ctx context.Context, token, roomRef string, answerID int64) error {
	room, err := s.adminRoom(ctx, token, roomRef)
	if err != nil {
		return err
	}
	existing, err := s.store.Answer(ctx, room.ID, answerID)
	if err != nil {
		return err
	}
	table := snapshotTable(room)

	err = s.store.InQuestionTx(ctx, room.ID, existing.QuestionNumber, func(ctx context.Context, tx QuestionTx) error {
		if _, err := findAnswer(ctx, tx, answerID); err != nil {
			return err
		}
		if err := tx.DeleteAnswer(ctx, answerID); err != nil {
			return err
		}
		_, _, err := s.reassign(ctx, tx, table)
		return err
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.Event{
		Type:           domain.EventAnswerDeleted,
		Actor:          domain.ActorAdmin,
		RoomID:         room.ID,
		QuestionNumber: existing.QuestionNumber,
		AnswerIDs:      []int64{answerID},
		Recalculated:   true,
	})
	return nil
}

// ListAnswers returns a room's answers in submission order.
func (s *ScoringService) ListAnswers(ctx context.Context, token, roomRef string, questionNumber *int) ([]domain.Answer, error) {
	room, err := s.adminRoom(ctx, token, roomRef)
	if err != nil {
		return nil, err
	}
	return s.store.ListAnswers(ctx, AnswerFilter{RoomID: room.ID, QuestionNumber: questionNumber})
}

// MyAnswers returns the answers of the participant identified by token.
func (s *ScoringService) MyAnswers(ctx context.Context, roomRef, token string, questionNumber *int) ([]domain.Answer, error) {
	room, err := s.ResolveRoom(ctx, roomRef)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	user, err := s.auth.CurrentUser(ctx, room.ID, token)
	if err != nil {
		return nil, err
	}
	return s.store.ListAnswers(ctx, AnswerFilter{RoomID: room.ID, QuestionNumber: questionNumber, UserID: user.ID})
}

func findAnswer(ctx context.Context, tx QuestionTx, answerID int64) (domain.Answer, error) {
	answers, err := tx.Answers(ctx)
	if err != nil {
		return domain.Answer{}, err
	}
	for _, a := range answers {
		if a.ID == answerID {
			return a, nil
		}
	}
	return domain.Answer{}, domain.ErrAnswerNotFound
}

func pick(answers []domain.Answer, id int64) domain.Answer {
	for _, a := range answers {
		if a.ID == id {
			return a
		}
	}
	return domain.Answer{}
}

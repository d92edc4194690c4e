package app

import (
	"context"
	"time"

	"teamquiz-service/internal/domain"
	"teamquiz-service/internal/scoring"
)

// reassign runs one rank pass over the locked question. Unclocked answers
// are re-resolved against the current starts first. All of the question's
// scores are written in the same transaction, so readers never observe a
// partially reset question.
func (s *ScoringService) reassign(ctx context.Context, tx QuestionTx, table []int) (int, []domain.Answer, error) {
	q := tx.Question()
	answers, err := tx.Answers(ctx)
	if err != nil {
		return 0, nil, err
	}
	starts, err := tx.TeamStarts(ctx)
	if err != nil {
		return 0, nil, err
	}

	for i, a := range answers {
		var teamStart *time.Time
		if at, ok := starts[a.TeamID]; ok {
			teamStart = &at
		}
		if ms, ok := scoring.Backfill(a, scoring.ResolveStart(q.GlobalStartTime, teamStart)); ok {
			answers[i].ElapsedMS = ms
		}
	}

	assignment := scoring.Rank(q.Number, answers, table)
	for i := range answers {
		answers[i].Score = assignment.Scores[answers[i].ID]
	}
	if err := tx.SaveScores(ctx, answers); err != nil {
		return 0, nil, err
	}
	return len(assignment.Ranked), answers, nil
}

// ReapplyScores re-runs the rank pass for one question and returns how many
// answers were ranked.
func (s *ScoringService) ReapplyScores(ctx context.Context, token, roomRef string, number int) (int, error) {
	room, err := s.adminRoom(ctx, token, roomRef)
	if err != nil {
		return 0, err
	}
	if !room.ValidQuestion(number) {
		return 0, domain.ErrQuestionNotFound
	}
	if _, err := s.store.EnsureQuestion(ctx, room.ID, number); err != nil {
		return 0, err
	}
	table := snapshotTable(room)

	var ranked int
	err = s.store.InQuestionTx(ctx, room.ID, number, func(ctx context.Context, tx QuestionTx) error {
		n, _, err := s.reassign(ctx, tx, table)
		ranked = n
		return err
	})
	if err != nil {
		return 0, err
	}

	s.publish(ctx, domain.Event{
		Type:           domain.EventAnswerUpdated,
		Actor:          domain.ActorAdmin,
		RoomID:         room.ID,
		QuestionNumber: number,
		Recalculated:   true,
	})
	return ranked, nil
}

// FinalizeQuestion locks in the current judgments as the official result.
// It mutates nothing while any answer is still unjudged.
func (s *ScoringService) FinalizeQuestion(ctx context.Context, token, roomRef string, number int) (domain.FinalizeResult, error) {
	room, err := s.adminRoom(ctx, token, roomRef)
	if err != nil {
		return domain.FinalizeResult{}, err
	}
	if _, err := s.store.Question(ctx, room.ID, number); err != nil {
		return domain.FinalizeResult{}, err
	}
	table := snapshotTable(room)

	var result domain.FinalizeResult
	err = s.store.InQuestionTx(ctx, room.ID, number, func(ctx context.Context, tx QuestionTx) error {
		answers, err := tx.Answers(ctx)
		if err != nil {
			return err
		}
		if err := scoring.CheckFinalizable(tx.Question(), answers, table); err != nil {
			return err
		}
		ranked, _, err := s.reassign(ctx, tx, table)
		if err != nil {
			return err
		}

		q := tx.Question()
		at := s.now()
		q.Finalized = true
		q.FinalizedAt = &at
		if _, err := tx.SaveQuestion(ctx, q); err != nil {
			return err
		}
		result = domain.FinalizeResult{QuestionNumber: number, RankedCount: ranked, FinalizedAt: at}
		return nil
	})
	if err != nil {
		return domain.FinalizeResult{}, err
	}

	s.publish(ctx, domain.Event{
		Type:           domain.EventQuestionFinalized,
		Actor:          domain.ActorAdmin,
		RoomID:         room.ID,
		QuestionNumber: number,
		Recalculated:   true,
	})
	return result, nil
}

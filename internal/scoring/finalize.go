package scoring

import "teamquiz-service/internal/domain"

// CountUnjudged returns how many answers still have unknown correctness.
func CountUnjudged(answers []domain.Answer) int {
	n := 0
	for _, a := range answers {
		if a.Correctness == domain.Unknown {
			n++
		}
	}
	return n
}

// CheckFinalizable guards the Open -> Finalized transition. Re-finalizing a
// finalized question is allowed and simply re-runs scoring.
func CheckFinalizable(q domain.Question, answers []domain.Answer, table []int) error {
	if q.Number == domain.PracticeQuestion {
		return domain.ErrPracticeNotScored
	}
	if n := CountUnjudged(answers); n > 0 {
		return &domain.UnjudgedError{Count: n}
	}
	if len(table) == 0 {
		return domain.ErrEmptyScoreTable
	}
	return nil
}

// ValidateScoreTable rejects negative entries.
func ValidateScoreTable(table []int) error {
	for _, v := range table {
		if v < 0 {
			return domain.ErrNegativeScore
		}
	}
	return nil
}

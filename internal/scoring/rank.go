package scoring

import (
	"sort"

	"teamquiz-service/internal/domain"
)

// Assignment is the outcome of one rank pass over a question.
type Assignment struct {
	// Ranked holds answer ids in finishing order.
	Ranked []int64
	// Scores has an entry for every answer of the question.
	Scores map[int64]int
}

// PointsFor maps a 0-based rank to points; ranks beyond the table earn 0.
func PointsFor(table []int, rank int) int {
	if rank < 0 || rank >= len(table) {
		return 0
	}
	return table[rank]
}

// Rank orders the correct, clocked answers by elapsed time, ties broken by
// submission order (id), and assigns points from table. Unclocked answers
// are never ranked. The practice question ranks nobody.
func Rank(questionNumber int, answers []domain.Answer, table []int) Assignment {
	out := Assignment{Scores: make(map[int64]int, len(answers))}
	ranked := make([]domain.Answer, 0, len(answers))
	for _, a := range answers {
		out.Scores[a.ID] = 0
		if questionNumber == domain.PracticeQuestion {
			continue
		}
		if a.Correctness == domain.Correct && a.ElapsedMS != nil {
			ranked = append(ranked, a)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		ti, tj := *ranked[i].ElapsedMS, *ranked[j].ElapsedMS
		if ti != tj {
			return ti < tj
		}
		return ranked[i].ID < ranked[j].ID
	})

	out.Ranked = make([]int64, 0, len(ranked))
	for r, a := range ranked {
		out.Scores[a.ID] = PointsFor(table, r)
		out.Ranked = append(out.Ranked, a.ID)
	}
	return out
}

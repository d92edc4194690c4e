package scoring

import "teamquiz-service/internal/domain"

// AllowResubmission resolves the effective policy: the question override wins
// over the room default.
func AllowResubmission(room domain.Room, q domain.Question) bool {
	if q.AllowResubmission != nil {
		return *q.AllowResubmission
	}
	return room.AllowResubmission
}

// MaySubmit is a daily quota, not a lifetime one. submittedToday must only
// count answers that still exist, so deleting an answer reopens the gate.
func MaySubmit(room domain.Room, q domain.Question, submittedToday bool) bool {
	if q.Number == domain.PracticeQuestion {
		return true
	}
	if AllowResubmission(room, q) {
		return true
	}
	return !submittedToday
}

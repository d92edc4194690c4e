package scoring

import (
	"time"

	"teamquiz-service/internal/domain"
)

// ResolveStart returns the authoritative start for a team: the team override
// when present, else the question's global start, else nil.
func ResolveStart(global, teamStart *time.Time) *time.Time {
	if teamStart != nil {
		return teamStart
	}
	return global
}

// ElapsedMillis is max(0, now-start) truncated to milliseconds.
func ElapsedMillis(now, start time.Time) int64 {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}

// Elapsed returns nil for an unclocked answer.
func Elapsed(now time.Time, start *time.Time) *int64 {
	if start == nil {
		return nil
	}
	ms := ElapsedMillis(now, *start)
	return &ms
}

// Backfill clocks an unclocked answer against a start that appeared later.
// Starts after the submission instant leave the answer unclocked.
func Backfill(a domain.Answer, start *time.Time) (*int64, bool) {
	if a.ElapsedMS != nil || start == nil || start.After(a.SubmittedAt) {
		return nil, false
	}
	return Elapsed(a.SubmittedAt, start), true
}

// DayOf is the calendar-day marker of t in loc.
func DayOf(t time.Time, loc *time.Location) domain.Day {
	if loc == nil {
		loc = time.Local
	}
	return domain.Day(t.In(loc).Format("2006-01-02"))
}

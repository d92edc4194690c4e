package scoring

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"teamquiz-service/internal/domain"
)

// Normalize trims and lower-cases free text before comparison. No width or
// compatibility folding is applied. A Caser is stateful, so one is built per call.
func Normalize(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// AcceptedAnswers splits a comma separated expected answer into normalized,
// non-empty candidates.
func AcceptedAnswers(expected string) []string {
	parts := strings.Split(expected, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if n := Normalize(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Judge auto-judges a submission. Admin overrides are applied by the caller
// and never re-derived here.
func Judge(q domain.Question, s domain.Submission) domain.Correctness {
	if q.Number == domain.PracticeQuestion || q.ExpectedAnswer == nil {
		return domain.Unknown
	}
	expected := strings.TrimSpace(*q.ExpectedAnswer)
	if expected == "" {
		return domain.Unknown
	}

	switch q.AnswerType {
	case domain.MultipleChoice:
		want, err := strconv.Atoi(expected)
		if err != nil || s.SelectedChoice == nil {
			return domain.Unknown
		}
		return domain.CorrectnessOf(*s.SelectedChoice == want)
	case domain.FreeText:
		got := Normalize(s.AnswerText)
		if got == "" {
			return domain.Unknown
		}
		for _, candidate := range AcceptedAnswers(expected) {
			if candidate == got {
				return domain.Correct
			}
		}
		return domain.Incorrect
	}
	return domain.Unknown
}

// ValidateExpected rejects expected answers that could never be judged.
func ValidateExpected(t domain.AnswerType, expected *string) error {
	if expected == nil || t != domain.MultipleChoice {
		return nil
	}
	raw := strings.TrimSpace(*expected)
	if raw == "" {
		return nil
	}
	if n, err := strconv.Atoi(raw); err != nil || n < 0 {
		return domain.ErrMalformedExpected
	}
	return nil
}

// ValidateSubmission checks the content required by the question's answer type.
func ValidateSubmission(q domain.Question, s domain.Submission) error {
	switch q.AnswerType {
	case domain.MultipleChoice:
		if s.SelectedChoice == nil || *s.SelectedChoice < 0 {
			return domain.ErrSelectedChoiceRequired
		}
	default:
		if strings.TrimSpace(s.AnswerText) == "" {
			return domain.ErrAnswerTextRequired
		}
	}
	return nil
}

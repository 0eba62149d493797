// Package scoring grades exam answers. Everything here is pure and deterministic.
package scoring

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/victornm/examiner/internal/domain"
)

const passPercentage = 50

type Result struct {
	Score int
	Total int
	// Correct[i] tells whether questions[i] was answered correctly.
	Correct []bool
}

// Score counts the questions whose selection matches the correct set exactly.
// A missing entry in answers is treated as an empty selection.
func Score(questions []domain.Question, answers map[string][]string) Result {
	r := Result{
		Total:   len(questions),
		Correct: make([]bool, len(questions)),
	}

	for i, q := range questions {
		if IsCorrect(q, answers[q.ID]) {
			r.Correct[i] = true
			r.Score++
		}
	}

	return r
}

// IsCorrect applies the same rule to single and multiple questions: the selection must have
// the size of the correct set and contain only correct options.
func IsCorrect(q domain.Question, selected []string) bool {
	if len(selected) != len(q.CorrectOptionIDs) {
		return false
	}

	for _, id := range selected {
		if !slices.Contains(q.CorrectOptionIDs, id) {
			return false
		}
	}

	return true
}

// Percentage returns score/total as a whole percent, rounded half away from zero.
func Percentage(score, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(int64(score)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(0)
}

func Passed(score, total int) bool {
	return Percentage(score, total).GreaterThanOrEqual(decimal.NewFromInt(passPercentage))
}

func Feedback(percentage decimal.Decimal) string {
	switch {
	case percentage.GreaterThanOrEqual(decimal.NewFromInt(80)):
		return "Excellent Job!"
	case percentage.GreaterThanOrEqual(decimal.NewFromInt(passPercentage)):
		return "Good Effort!"
	default:
		return "Keep Practicing!"
	}
}

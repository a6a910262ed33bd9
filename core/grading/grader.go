// Package grading scores submitted answers against question definitions.
// It is deliberately pure: no I/O, no clock, no randomness.
package grading

import (
	"math"
	"strings"

	"github.com/trezcool/elimu/core/catalog"
)

type (
	// QuestionResult is the per-question outcome of a grading pass.
	QuestionResult struct {
		Index     int                  `json:"index"`
		Kind      catalog.QuestionKind `json:"kind"`
		Answer    string               `json:"answer"`
		Points    int                  `json:"points"`
		Earned    int                  `json:"earned"`
		IsCorrect bool                 `json:"is_correct"`
		// PendingReview marks essay answers awaiting an instructor verdict.
		PendingReview bool `json:"pending_review,omitempty"`
	}

	Result struct {
		Score   int              `json:"score"` // percentage 0..100
		Passed  bool             `json:"passed"`
		Results []QuestionResult `json:"results"`
		// PendingReview is set when any question needs human grading;
		// Score/Passed then only reflect the auto-gradable portion.
		PendingReview bool `json:"pending_review,omitempty"`
	}
)

// Grade scores answers against questions. Missing answers count as wrong;
// surplus answers are ignored. Choice/boolean answers match their key
// case-insensitively after trimming. Essays earn 0 and are flagged for
// review; the final verdict on them belongs to an instructor.
func Grade(questions []catalog.Question, answers []string, passingScore int) Result {
	res := Result{Results: make([]QuestionResult, 0, len(questions))}

	var total, earned int
	for i, q := range questions {
		total += q.Points

		var answer string
		if i < len(answers) {
			answer = answers[i]
		}

		qr := QuestionResult{
			Index:  i,
			Kind:   q.Kind,
			Answer: answer,
			Points: q.Points,
		}
		switch q.Kind {
		case catalog.MultipleChoice, catalog.TrueFalse:
			if answersMatch(answer, q.Answer) {
				qr.IsCorrect = true
				qr.Earned = q.Points
				earned += q.Points
			}
		case catalog.Essay:
			qr.PendingReview = true
			res.PendingReview = true
		}
		res.Results = append(res.Results, qr)
	}

	if total > 0 {
		res.Score = int(math.Round(float64(earned) / float64(total) * 100))
	}
	res.Passed = res.Score >= passingScore && !res.PendingReview
	return res
}

func answersMatch(given, key string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(key))
}

package enrollment

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core/grading"
)

// Status is the enrollment's explicit state machine. A repeat penalty is a
// first-class state, not a flag layered on top of progress counters:
// submitting a final assessment while repeat_required is unrepresentable.
type Status string

const (
	StatusEnrolled       Status = "enrolled"
	StatusInProgress     Status = "in_progress"
	StatusPendingReview  Status = "pending_review"
	StatusRepeatRequired Status = "repeat_required"
	StatusCompleted      Status = "completed"
)

// GradedBy identifies which grading path produced a verdict.
type GradedBy string

const (
	GradedAuto       GradedBy = "auto"
	GradedInstructor GradedBy = "instructor"
)

// LessonProgress tracks one lesson within an enrollment.
type LessonProgress struct {
	Completed   bool      `json:"completed"`
	Attempts    int       `json:"attempts"` // lesson quiz attempts
	Passed      bool      `json:"passed"`
	LastScore   int       `json:"last_score"`
	CompletedAt null.Time `json:"completed_at"`
}

// AttemptResult records one final-assessment submission. The full history is
// retained across repeat cycles for audit; a forced repeat never erases it.
type AttemptResult struct {
	Attempt       int                      `json:"attempt"` // 1-based within its cycle
	Cycle         int                      `json:"cycle"`   // repeat cycle the attempt belongs to
	Score         int                      `json:"score"`
	Passed        bool                     `json:"passed"`
	GradedBy      GradedBy                 `json:"graded_by"`
	GradedByID    int                      `json:"graded_by_id,omitempty"` // instructor id for manual grades
	Feedback      string                   `json:"feedback,omitempty"`
	PendingReview bool                     `json:"pending_review,omitempty"`
	Answers       []string                 `json:"answers"`
	Results       []grading.QuestionResult `json:"results"`
	SubmittedAt   time.Time                `json:"submitted_at"`
	GradedAt      null.Time                `json:"graded_at"`
}

// Enrollment is a student's journey through one module. One per
// (student, module) pair; never deleted, only reset in place when a repeat
// is forced.
type Enrollment struct {
	ID        int    `json:"id"`
	StudentID int    `json:"student_id"`
	ModuleID  int    `json:"module_id"`
	Status    Status `json:"status"`

	Lessons []LessonProgress `json:"lessons"`
	// ProgressPct is always derived from lesson completion, never set directly.
	ProgressPct int `json:"progress_pct"`

	FinalAttempts int             `json:"final_attempts"` // within the current cycle
	FinalScore    int             `json:"final_score"`
	FinalPassed   bool            `json:"final_passed"`
	Results       []AttemptResult `json:"results"`

	RepeatCount         int    `json:"repeat_count"`
	CertificateEarned   bool   `json:"certificate_earned"`
	CertificatePublicID string `json:"certificate_public_id,omitempty"`

	Version   int       `json:"-"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (e *Enrollment) CompletedLessons() int {
	var n int
	for _, lp := range e.Lessons {
		if lp.Completed {
			n++
		}
	}
	return n
}

func (e *Enrollment) AllLessonsCompleted() bool {
	return len(e.Lessons) > 0 && e.CompletedLessons() == len(e.Lessons)
}

// recomputeProgress re-derives the aggregate percentage. Called after every
// lesson mutation; the stored value is never trusted as an input.
func (e *Enrollment) recomputeProgress() {
	if len(e.Lessons) == 0 {
		e.ProgressPct = 0
		return
	}
	e.ProgressPct = int(math.Round(float64(e.CompletedLessons()) / float64(len(e.Lessons)) * 100))
}

// completeLesson marks a lesson done at most once; reports whether anything
// changed. Completing the last outstanding lesson satisfies a pending repeat
// requirement.
func (e *Enrollment) completeLesson(idx int, now time.Time) bool {
	lp := &e.Lessons[idx]
	if lp.Completed {
		return false
	}
	lp.Completed = true
	lp.CompletedAt = null.TimeFrom(now)
	e.recomputeProgress()

	switch e.Status {
	case StatusEnrolled:
		e.Status = StatusInProgress
	case StatusRepeatRequired:
		if e.AllLessonsCompleted() {
			e.Status = StatusInProgress
		}
	}
	return true
}

// resetForRepeat rolls back all lesson progress and the attempt counter:
// the student must relearn the module before retrying the final assessment.
// Attempt history and the repeat counter survive the rollback.
func (e *Enrollment) resetForRepeat() {
	e.Status = StatusRepeatRequired
	e.RepeatCount++
	e.FinalAttempts = 0
	for i := range e.Lessons {
		e.Lessons[i] = LessonProgress{}
	}
	e.recomputeProgress()
}

// pendingResult returns the submission awaiting instructor review, if any.
func (e *Enrollment) pendingResult() *AttemptResult {
	for i := len(e.Results) - 1; i >= 0; i-- {
		if e.Results[i].PendingReview {
			return &e.Results[i]
		}
	}
	return nil
}

func (e *Enrollment) String() string {
	return fmt.Sprintf("enrollment %d (student %d, module %d, %s)", e.ID, e.StudentID, e.ModuleID, e.Status)
}

// Payloads

type EnrollRequest struct {
	ModuleID int `json:"module_id" validate:"required"`
}

func (r *EnrollRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

type SubmitAssessmentRequest struct {
	Answers []string `json:"answers" validate:"required"`
}

func (r *SubmitAssessmentRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

type GradeEssayRequest struct {
	Passed   bool   `json:"passed"`
	Feedback string `json:"feedback" validate:"required"`
	// Score overrides the auto-graded portion when provided.
	Score *int `json:"score" validate:"omitempty,percent"`
}

func (r *GradeEssayRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

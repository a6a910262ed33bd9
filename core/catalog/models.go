package catalog

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/elimu/core"
)

// Level is a curriculum tier within a category.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Levels in unlock order.
var Levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}

func (l Level) Valid() bool {
	return l == LevelBeginner || l == LevelIntermediate || l == LevelAdvanced
}

// Next returns the level unlocked after completing l. Advanced has no successor.
func (l Level) Next() (Level, bool) {
	switch l {
	case LevelBeginner:
		return LevelIntermediate, true
	case LevelIntermediate:
		return LevelAdvanced, true
	}
	return "", false
}

// Previous returns the level that must be completed before l is unlocked.
func (l Level) Previous() (Level, bool) {
	switch l {
	case LevelIntermediate:
		return LevelBeginner, true
	case LevelAdvanced:
		return LevelIntermediate, true
	}
	return "", false
}

// AccessKind is a category's access/payment policy.
type AccessKind string

const (
	AccessFree       AccessKind = "free"       // fellows cohort only
	AccessPaid       AccessKind = "paid"       // fellows free; others purchase
	AccessRestricted AccessKind = "restricted" // fellows free; others purchase or role exemption
)

type Category struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Access    AccessKind `json:"access"`
	Price     int64      `json:"price"` // cents
	FellowIDs []int      `json:"fellow_ids"`
	CreatedAt time.Time  `json:"created_at"` // UTC
	UpdatedAt time.Time  `json:"updated_at"` // UTC
}

func (c Category) IsFellow(studentID int) bool {
	for _, id := range c.FellowIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// QuestionKind enumerates the supported question types. Each kind carries its
// own grading data: choice/boolean kinds have an answer key, essays do not.
type QuestionKind uint8

const (
	MultipleChoice QuestionKind = iota + 1
	TrueFalse
	Essay
)

var questionKindNames = map[QuestionKind]string{
	MultipleChoice: "multiple-choice",
	TrueFalse:      "true-false",
	Essay:          "essay",
}

func (k QuestionKind) Valid() bool {
	_, ok := questionKindNames[k]
	return ok
}

func (k QuestionKind) String() string {
	if s, ok := questionKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("QuestionKind(%d)", uint8(k))
}

func (k QuestionKind) MarshalJSON() ([]byte, error) {
	s, ok := questionKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown question kind %d", uint8(k))
	}
	return []byte(`"` + s + `"`), nil
}

func (k *QuestionKind) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	for kind, name := range questionKindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown question kind %q", s)
}

type Question struct {
	Kind    QuestionKind `json:"kind"`
	Prompt  string       `json:"prompt"`
	Choices []string     `json:"choices,omitempty"`
	// Answer is the correct-answer key; empty for essays.
	Answer string `json:"answer,omitempty"`
	Points int    `json:"points"`
}

// Assessment is a graded question set: either a lesson quiz or a module's
// final assessment.
type Assessment struct {
	Questions    []Question `json:"questions"`
	PassingScore int        `json:"passing_score"` // percentage 0..100
	// MaxAttempts limits submissions; 0 means unlimited.
	MaxAttempts int `json:"max_attempts"`
}

func (a Assessment) TotalPoints() int {
	var total int
	for _, q := range a.Questions {
		total += q.Points
	}
	return total
}

// HasEssay reports whether any question requires human grading.
func (a Assessment) HasEssay() bool {
	for _, q := range a.Questions {
		if q.Kind == Essay {
			return true
		}
	}
	return false
}

type Lesson struct {
	Title      string      `json:"title"`
	Content    string      `json:"content"`
	Assessment *Assessment `json:"assessment,omitempty"`
}

// ModuleStatus is the module approval lifecycle state.
type ModuleStatus string

const (
	StatusDraft     ModuleStatus = "draft"
	StatusSubmitted ModuleStatus = "submitted"
	StatusApproved  ModuleStatus = "approved"
	StatusRejected  ModuleStatus = "rejected"
	StatusPublished ModuleStatus = "published"
	StatusArchived  ModuleStatus = "archived"
)

var statusTransitions = map[ModuleStatus][]ModuleStatus{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusApproved, StatusRejected},
	StatusRejected:  {StatusSubmitted},
	StatusApproved:  {StatusPublished},
	StatusPublished: {StatusArchived},
}

func (s ModuleStatus) CanTransitionTo(next ModuleStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Module struct {
	ID              int          `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	CategoryID      int          `json:"category_id"`
	Level           Level        `json:"level"`
	Lessons         []Lesson     `json:"lessons"`
	Final           *Assessment  `json:"final_assessment,omitempty"`
	Status          ModuleStatus `json:"status"`
	InstructorIDs   []int        `json:"instructor_ids"`
	EnrollmentCount int          `json:"enrollment_count"`
	CreatedAt       time.Time    `json:"created_at"` // UTC
	UpdatedAt       time.Time    `json:"updated_at"` // UTC
}

func (m Module) IsPublished() bool {
	return m.Status == StatusPublished
}

func (m Module) HasInstructor(id int) bool {
	for _, iid := range m.InstructorIDs {
		if iid == id {
			return true
		}
	}
	return false
}

// NewModule contains information needed to create a Module draft.
type NewModule struct {
	Title       string      `json:"title" validate:"required"`
	Description string      `json:"description"`
	CategoryID  int         `json:"category_id" validate:"required"`
	Level       Level       `json:"level" validate:"required"`
	Lessons     []Lesson    `json:"lessons"`
	Final       *Assessment `json:"final_assessment"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)

	if err := validate.Struct(nm); err != nil {
		return err
	}
	if !nm.Level.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "level", Error: "unknown level"})
	}
	for i, l := range nm.Lessons {
		if l.Assessment != nil {
			if err := validateAssessment(*l.Assessment, fmt.Sprintf("lessons[%d].assessment", i)); err != nil {
				return err
			}
		}
	}
	if nm.Final != nil {
		return validateAssessment(*nm.Final, "final_assessment")
	}
	return nil
}

func validateAssessment(a Assessment, field string) error {
	fldErr := func(msg string) error {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: msg})
	}
	if a.PassingScore < 0 || a.PassingScore > 100 {
		return fldErr("passing score must be between 0 and 100")
	}
	if a.MaxAttempts < 0 {
		return fldErr("max attempts cannot be negative")
	}
	for _, q := range a.Questions {
		if !q.Kind.Valid() {
			return fldErr("unknown question kind")
		}
		if q.Points <= 0 {
			return fldErr("question points must be positive")
		}
		switch q.Kind {
		case MultipleChoice:
			if q.Answer == "" || len(q.Choices) < 2 {
				return fldErr("multiple-choice questions need an answer key and at least 2 choices")
			}
		case TrueFalse:
			if q.Answer == "" {
				return fldErr("true-false questions need an answer key")
			}
		case Essay:
			if q.Answer != "" {
				return fldErr("essay questions cannot have an answer key")
			}
		}
	}
	return nil
}

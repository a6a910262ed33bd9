package testutil

import (
	"context"
	"net/mail"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/user"
)

// NewConfig returns a Config suitable for tests: no env/file lookups and
// WorkDir anchored at the repository root so email templates resolve.
func NewConfig() *core.Config {
	conf := &core.Config{
		AppName:          "Elimu",
		Env:              "TEST",
		Debug:            true,
		TestMode:         true,
		Build:            "test",
		SecretKey:        "test-secret-key",
		FrontendBaseURL:  "http://localhost:3000",
		WorkDir:          rootDir(),
		DefaultFromEmail: mail.Address{Name: "Elimu", Address: "noreply@test.cd"},
		AdminEmail:       mail.Address{Name: "Elimu Admin", Address: "admin@test.cd"},
	}
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 5 * time.Minute
	return conf
}

func rootDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Dir(filepath.Dir(file)) // tests/ -> repo root
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCategory(
	t *testing.T,
	repo catalog.Repository,
	name string,
	access catalog.AccessKind,
	price int64,
	fellowIDs ...int,
) catalog.Category {
	t.Helper()

	now := time.Now().UTC()
	cat, err := repo.CreateCategory(context.Background(), catalog.Category{
		Name:      name,
		Access:    access,
		Price:     price,
		FellowIDs: fellowIDs,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCategory() failed: %v", err)
	}
	return cat
}

func CreateModule(
	t *testing.T,
	repo catalog.Repository,
	title string,
	categoryID int,
	level catalog.Level,
	status catalog.ModuleStatus,
	lessons []catalog.Lesson,
	final *catalog.Assessment,
	instructorIDs ...int,
) catalog.Module {
	t.Helper()

	now := time.Now().UTC()
	mod, err := repo.CreateModule(context.Background(), catalog.Module{
		Title:         title,
		CategoryID:    categoryID,
		Level:         level,
		Lessons:       lessons,
		Final:         final,
		Status:        status,
		InstructorIDs: instructorIDs,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("CreateModule() failed: %v", err)
	}
	return mod
}

// SimpleLessons returns n lessons without quizzes.
func SimpleLessons(n int) []catalog.Lesson {
	lessons := make([]catalog.Lesson, n)
	for i := range lessons {
		lessons[i] = catalog.Lesson{Title: "Lesson", Content: "..."}
	}
	return lessons
}

// AutoGradedFinal returns a two-question final assessment (no essays) worth
// 50% per question.
func AutoGradedFinal(passingScore, maxAttempts int) *catalog.Assessment {
	return &catalog.Assessment{
		Questions: []catalog.Question{
			{Kind: catalog.MultipleChoice, Prompt: "2+2 ?", Choices: []string{"3", "4"}, Answer: "4", Points: 5},
			{Kind: catalog.TrueFalse, Prompt: "The sky is blue.", Answer: "true", Points: 5},
		},
		PassingScore: passingScore,
		MaxAttempts:  maxAttempts,
	}
}

// EssayFinal returns a final assessment with one auto-graded question and one
// essay, forcing the instructor-review path.
func EssayFinal(passingScore, maxAttempts int) *catalog.Assessment {
	return &catalog.Assessment{
		Questions: []catalog.Question{
			{Kind: catalog.TrueFalse, Prompt: "Water is wet.", Answer: "true", Points: 5},
			{Kind: catalog.Essay, Prompt: "Discuss.", Points: 5},
		},
		PassingScore: passingScore,
		MaxAttempts:  maxAttempts,
	}
}

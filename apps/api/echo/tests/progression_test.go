package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	. "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/progression"
	"github.com/trezcool/elimu/core/user"
	testutil "github.com/trezcool/elimu/tests"
)

func Test_progressionApi(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	instructor := testutil.CreateUser(t, usrRepo, "Prof", "prof", "prof@test.cd", "", []string{user.RoleInstructor}, true)

	cat := testutil.CreateCategory(t, catRepo, "General Studies", catalog.AccessFree, 0, student.ID)
	beginner := testutil.CreateModule(t, catRepo, "Go Basics", cat.ID, catalog.LevelBeginner, catalog.StatusPublished,
		testutil.SimpleLessons(1), testutil.AutoGradedFinal(70, 0))
	testutil.CreateModule(t, catRepo, "Go Patterns", cat.ID, catalog.LevelIntermediate, catalog.StatusPublished,
		testutil.SimpleLessons(1), testutil.AutoGradedFinal(70, 0))

	token := getToken(t, student)
	base := fmt.Sprintf("/v1/progression/categories/%d", cat.ID)

	t.Run("Auth required", func(t *testing.T) {
		tt := httpTest{method: http.MethodGet, path: base, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		request, rec := newRequest(tt.method, tt.path)
		app.ServeHTTP(rec, request)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Student required", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodGet, path: base, token: getToken(t, instructor),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied),
		}
		request, rec := newAuthRequest(tt.method, tt.path, tt.token)
		app.ServeHTTP(rec, request)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Fresh progression", func(t *testing.T) {
		request, rec := newAuthRequest(http.MethodGet, base, token)
		app.ServeHTTP(rec, request)
		checkCode(t, rec, http.StatusOK)

		var prog progression.StudentProgression
		unmarchallObj(t, rec, &prog)
		if prog.CurrentLevel != catalog.LevelBeginner || len(prog.Levels) != 3 {
			t.Fatalf("failed! prog = %+v", prog)
		}
		if prog.Levels[0].TotalModules != 1 || !prog.Levels[0].IsUnlocked {
			t.Errorf("failed! beginner = %+v", prog.Levels[0])
		}
		if prog.Levels[1].IsUnlocked {
			t.Errorf("failed! intermediate unlocked too early: %+v", prog.Levels[1])
		}
	})

	t.Run("Level statuses", func(t *testing.T) {
		request, rec := newAuthRequest(http.MethodGet, base+"/levels", token)
		app.ServeHTTP(rec, request)
		checkCode(t, rec, http.StatusOK)

		var statuses []progression.LevelAccessStatus
		unmarchallObj(t, rec, &statuses)
		if len(statuses) != 3 {
			t.Fatalf("failed! len(statuses) = %v; want 3", len(statuses))
		}
		if !statuses[0].IsUnlocked || statuses[1].IsUnlocked || statuses[2].IsUnlocked {
			t.Errorf("failed! statuses = %+v", statuses)
		}
		if statuses[1].LockedReason == "" {
			t.Errorf("failed! locked levels must carry a reason")
		}
	})

	t.Run("Check level", func(t *testing.T) {
		tests := []struct {
			level     string
			wantCode  int
			canAccess bool
		}{
			{level: "beginner", wantCode: http.StatusOK, canAccess: true},
			{level: "intermediate", wantCode: http.StatusOK, canAccess: false},
			{level: "bogus", wantCode: http.StatusNotFound},
		}
		for _, tt := range tests {
			request, rec := newAuthRequest(http.MethodGet, base+"/levels/"+tt.level, token)
			app.ServeHTTP(rec, request)
			checkCode(t, rec, tt.wantCode)
			if tt.wantCode == http.StatusOK {
				var resp LevelAccessResponse
				unmarchallObj(t, rec, &resp)
				if resp.CanAccess != tt.canAccess {
					t.Errorf("failed! can_access(%v) = %v; want %v", tt.level, resp.CanAccess, tt.canAccess)
				}
			}
		}
	})

	// completing the only beginner module unlocks intermediate
	enr, err := enrollSvc.Enroll(ctx, student, beginner.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if _, err = enrollSvc.CompleteLesson(ctx, student, enr.ID, 0); err != nil {
		t.Fatalf("CompleteLesson() failed: %v", err)
	}
	if _, _, err = enrollSvc.SubmitFinalAssessment(ctx, student, enr.ID, []string{"4", "true"}); err != nil {
		t.Fatalf("SubmitFinalAssessment() failed: %v", err)
	}

	t.Run("Unlock after completion", func(t *testing.T) {
		request, rec := newAuthRequest(http.MethodGet, base+"/levels/intermediate", token)
		app.ServeHTTP(rec, request)
		checkCode(t, rec, http.StatusOK)

		var resp LevelAccessResponse
		unmarchallObj(t, rec, &resp)
		if !resp.CanAccess {
			t.Errorf("failed! intermediate should be unlocked")
		}

		request, rec = newAuthRequest(http.MethodGet, base, token)
		app.ServeHTTP(rec, request)
		checkCode(t, rec, http.StatusOK)

		var prog progression.StudentProgression
		unmarchallObj(t, rec, &prog)
		if prog.CurrentLevel != catalog.LevelIntermediate {
			t.Errorf("failed! current_level = %v; want %v", prog.CurrentLevel, catalog.LevelIntermediate)
		}
		if !prog.Levels[0].IsCompleted || prog.Levels[0].CompletedModules != 1 {
			t.Errorf("failed! beginner = %+v", prog.Levels[0])
		}
	})
}

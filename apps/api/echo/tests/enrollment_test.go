package tests

import (
	"fmt"
	"net/http"
	"testing"

	. "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/user"
	emailsvc "github.com/trezcool/elimu/services/email"
	testutil "github.com/trezcool/elimu/tests"
)

// lessonsWithQuiz returns 2 lessons: the first carries a single true/false
// quiz (answer "true", 100% to pass), the second is reading only.
func lessonsWithQuiz() []catalog.Lesson {
	return []catalog.Lesson{
		{
			Title:   "Intro",
			Content: "...",
			Assessment: &catalog.Assessment{
				Questions:    []catalog.Question{{Kind: catalog.TrueFalse, Prompt: "Go has goroutines.", Answer: "true", Points: 5}},
				PassingScore: 100,
			},
		},
		{Title: "Deep dive", Content: "..."},
	}
}

func enrollBody(t *testing.T, moduleID int) []byte {
	return marchallObj(t, enrollment.EnrollRequest{ModuleID: moduleID})
}

func answersBody(t *testing.T, answers ...string) []byte {
	return marchallObj(t, enrollment.SubmitAssessmentRequest{Answers: answers})
}

func Test_enrollmentApi_enroll(t *testing.T) {
	resetDB(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, usrRepo, "Out Sider", "outsider", "out@test.cd", "", []string{user.RoleStudent}, true)
	instructor := testutil.CreateUser(t, usrRepo, "Prof", "prof", "prof@test.cd", "", []string{user.RoleInstructor}, true)

	cat := testutil.CreateCategory(t, catRepo, "General Studies", catalog.AccessFree, 0, student.ID)
	mod := testutil.CreateModule(t, catRepo, "Go Basics", cat.ID, catalog.LevelBeginner, catalog.StatusPublished,
		lessonsWithQuiz(), testutil.AutoGradedFinal(70, 2))
	draft := testutil.CreateModule(t, catRepo, "WIP", cat.ID, catalog.LevelBeginner, catalog.StatusDraft,
		lessonsWithQuiz(), testutil.AutoGradedFinal(70, 2))
	locked := testutil.CreateModule(t, catRepo, "Go Advanced", cat.ID, catalog.LevelAdvanced, catalog.StatusPublished,
		lessonsWithQuiz(), testutil.AutoGradedFinal(70, 2))

	studentToken := getToken(t, student)

	tests := []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/enrollments", body: enrollBody(t, mod.ID), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Student required", method: http.MethodPost, path: "/v1/enrollments", body: enrollBody(t, mod.ID),
			token: getToken(t, instructor), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied),
		},
		{
			name: "module_id required", method: http.MethodPost, path: "/v1/enrollments", body: marchallObj(t, enrollment.EnrollRequest{}),
			token: studentToken, wantCode: http.StatusBadRequest,
		},
		{
			name: "Unknown module", method: http.MethodPost, path: "/v1/enrollments", body: enrollBody(t, 99),
			token: studentToken, wantCode: http.StatusNotFound,
		},
		{
			name: "Unpublished module", method: http.MethodPost, path: "/v1/enrollments", body: enrollBody(t, draft.ID),
			token: studentToken, wantCode: http.StatusForbidden,
		},
		{
			name: "Not a fellow", method: http.MethodPost, path: "/v1/enrollments", body: enrollBody(t, mod.ID),
			token: getToken(t, outsider), wantCode: http.StatusForbidden,
		},
		{
			name: "Locked level", method: http.MethodPost, path: "/v1/enrollments", body: enrollBody(t, locked.ID),
			token: studentToken, wantCode: http.StatusConflict,
		},
		{name: "OK", method: http.MethodPost, path: "/v1/enrollments", body: enrollBody(t, mod.ID), token: studentToken, wantCode: http.StatusCreated},
		{name: "Idempotent", method: http.MethodPost, path: "/v1/enrollments", body: enrollBody(t, mod.ID), token: studentToken, wantCode: http.StatusCreated},
	}

	var firstID int
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, request)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var enr enrollment.Enrollment
				unmarchallObj(t, rec, &enr)
				if enr.Status != enrollment.StatusEnrolled {
					t.Errorf("failed! status = %v; want %v", enr.Status, enrollment.StatusEnrolled)
				}
				if len(enr.Lessons) != 2 || enr.ProgressPct != 0 {
					t.Errorf("failed! lessons = %v, progress = %v; want 2, 0", len(enr.Lessons), enr.ProgressPct)
				}
				if firstID == 0 {
					firstID = enr.ID
				} else if enr.ID != firstID {
					t.Errorf("failed! re-enrolling created a new enrollment: %v != %v", enr.ID, firstID)
				}
			}
		})
	}
}

func Test_enrollmentApi_paymentRequired(t *testing.T) {
	resetDB(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	cat := testutil.CreateCategory(t, catRepo, "Paid Studies", catalog.AccessPaid, 5000)
	mod := testutil.CreateModule(t, catRepo, "Go Basics", cat.ID, catalog.LevelBeginner, catalog.StatusPublished,
		lessonsWithQuiz(), testutil.AutoGradedFinal(70, 2))

	token := getToken(t, student)

	t.Run("Payment required", func(t *testing.T) {
		request, rec := newAuthRequest(http.MethodPost, "/v1/enrollments", token, enrollBody(t, mod.ID))
		app.ServeHTTP(rec, request)
		checkCode(t, rec, http.StatusPaymentRequired)

		var resp struct {
			Error      string `json:"error"`
			CategoryID int    `json:"category_id"`
			Price      int64  `json:"price"`
		}
		unmarchallObj(t, rec, &resp)
		if resp.CategoryID != cat.ID || resp.Price != 5000 {
			t.Errorf("failed! category_id = %v, price = %v; want %v, 5000", resp.CategoryID, resp.Price, cat.ID)
		}
	})

	t.Run("OK after purchase", func(t *testing.T) {
		payments.RecordPurchase(student.ID, cat.ID, 5000)
		request, rec := newAuthRequest(http.MethodPost, "/v1/enrollments", token, enrollBody(t, mod.ID))
		app.ServeHTTP(rec, request)
		checkCode(t, rec, http.StatusCreated)
	})
}

// Test_enrollmentApi_gradingFlow walks the whole journey: enroll, fail the
// final twice until a repeat is forced, relearn, pass, get certified.
func Test_enrollmentApi_gradingFlow(t *testing.T) {
	resetDB(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	cat := testutil.CreateCategory(t, catRepo, "General Studies", catalog.AccessFree, 0, student.ID)
	mod := testutil.CreateModule(t, catRepo, "Go Basics", cat.ID, catalog.LevelBeginner, catalog.StatusPublished,
		lessonsWithQuiz(), testutil.AutoGradedFinal(70, 2))

	token := getToken(t, student)

	do := func(t *testing.T, method, path string, body []byte, wantCode int) *enrollment.Enrollment {
		t.Helper()
		request, rec := newAuthRequest(method, path, token, body)
		app.ServeHTTP(rec, request)
		checkCode(t, rec, wantCode)
		if wantCode >= http.StatusBadRequest {
			return nil
		}
		var enr enrollment.Enrollment
		unmarchallObj(t, rec, &enr)
		return &enr
	}
	submit := func(t *testing.T, path string, body []byte, wantCode int) *AssessmentResponse {
		t.Helper()
		request, rec := newAuthRequest(http.MethodPost, path, token, body)
		app.ServeHTTP(rec, request)
		checkCode(t, rec, wantCode)
		if wantCode >= http.StatusBadRequest {
			return nil
		}
		var resp AssessmentResponse
		unmarchallObj(t, rec, &resp)
		return &resp
	}

	enr := do(t, http.MethodPost, "/v1/enrollments", enrollBody(t, mod.ID), http.StatusCreated)
	base := fmt.Sprintf("/v1/enrollments/%d", enr.ID)

	// the final is gated on lesson completion
	do(t, http.MethodPost, base+"/final-assessment", answersBody(t, "4", "true"), http.StatusConflict)

	// lesson 0: failing its quiz does not complete it
	res := submit(t, base+"/lessons/0/assessment", answersBody(t, "false"), http.StatusOK)
	if res.Result.Passed || res.Enrollment.Lessons[0].Completed {
		t.Fatalf("failed quiz should not complete the lesson: %+v", res)
	}
	if res.Enrollment.Status != enrollment.StatusInProgress {
		t.Errorf("status = %v; want %v", res.Enrollment.Status, enrollment.StatusInProgress)
	}

	// lesson 0: passing the quiz completes it
	res = submit(t, base+"/lessons/0/assessment", answersBody(t, "true"), http.StatusOK)
	if !res.Result.Passed || !res.Enrollment.Lessons[0].Completed || res.Enrollment.ProgressPct != 50 {
		t.Fatalf("passing quiz should complete the lesson: %+v", res)
	}

	// lesson 1 has no quiz
	do(t, http.MethodPost, base+"/lessons/1/assessment", answersBody(t, "true"), http.StatusConflict)
	// unknown lesson
	do(t, http.MethodPost, base+"/lessons/9/complete", nil, http.StatusNotFound)

	cur := do(t, http.MethodPost, base+"/lessons/1/complete", nil, http.StatusOK)
	if cur.ProgressPct != 100 || !cur.AllLessonsCompleted() {
		t.Fatalf("all lessons should be completed: %+v", cur)
	}
	// completing again changes nothing
	cur = do(t, http.MethodPost, base+"/lessons/1/complete", nil, http.StatusOK)
	if cur.ProgressPct != 100 {
		t.Fatalf("re-completing a lesson must be a no-op: %+v", cur)
	}

	// first final attempt fails (0%)
	res = submit(t, base+"/final-assessment", answersBody(t, "3", "false"), http.StatusOK)
	if res.Result.Passed || res.Enrollment.FinalAttempts != 1 {
		t.Fatalf("first attempt should fail: %+v", res)
	}
	if res.Enrollment.Status != enrollment.StatusInProgress {
		t.Errorf("status = %v; want %v", res.Enrollment.Status, enrollment.StatusInProgress)
	}

	// second failure exhausts attempts and forces a repeat
	res = submit(t, base+"/final-assessment", answersBody(t, "3", "false"), http.StatusOK)
	enr2 := res.Enrollment
	if enr2.Status != enrollment.StatusRepeatRequired {
		t.Fatalf("status = %v; want %v", enr2.Status, enrollment.StatusRepeatRequired)
	}
	if enr2.RepeatCount != 1 || enr2.FinalAttempts != 0 || enr2.ProgressPct != 0 {
		t.Fatalf("repeat should reset progress and attempts: %+v", enr2)
	}
	if len(enr2.Results) != 2 {
		t.Fatalf("attempt history must survive the repeat: %v results", len(enr2.Results))
	}

	// no final while the repeat is pending
	do(t, http.MethodPost, base+"/final-assessment", answersBody(t, "4", "true"), http.StatusConflict)

	// relearn
	submit(t, base+"/lessons/0/assessment", answersBody(t, "true"), http.StatusOK)
	cur = do(t, http.MethodPost, base+"/lessons/1/complete", nil, http.StatusOK)
	if cur.Status != enrollment.StatusInProgress {
		t.Fatalf("relearning should clear the repeat: %+v", cur)
	}

	// pass
	res = submit(t, base+"/final-assessment", answersBody(t, "4", "true"), http.StatusOK)
	enr3 := res.Enrollment
	if !res.Result.Passed || enr3.Status != enrollment.StatusCompleted {
		t.Fatalf("passing attempt should complete the module: %+v", res)
	}
	if !enr3.CertificateEarned || enr3.CertificatePublicID == "" || enr3.FinalScore != 100 {
		t.Fatalf("completion should mint a certificate: %+v", enr3)
	}

	// no more submissions once completed
	do(t, http.MethodPost, base+"/final-assessment", answersBody(t, "4", "true"), http.StatusConflict)

	// remaining attempts surface on retrieval; history covers both cycles
	request, rec := newAuthRequest(http.MethodGet, base, token)
	app.ServeHTTP(rec, request)
	checkCode(t, rec, http.StatusOK)
	var resp EnrollmentResponse
	unmarchallObj(t, rec, &resp)
	if resp.RemainingAttempts != 1 {
		t.Errorf("remaining_attempts = %v; want 1", resp.RemainingAttempts)
	}
	if len(resp.Results) != 3 {
		t.Errorf("results = %v; want 3", len(resp.Results))
	}

	// side effects: student notified, certificate email sent
	var completed, certified bool
	for _, n := range notifier.Sent() {
		switch n.Kind {
		case core.NotifModuleCompleted:
			completed = n.UserID == student.ID
		case core.NotifCertificateIssued:
			certified = n.UserID == student.ID
		}
	}
	if !completed || !certified {
		t.Errorf("missing completion notifications: %+v", notifier.Sent())
	}
	var emailed bool
	for _, msg := range emailsvc.SentMessages {
		if msg.TemplateName == "module-completed" {
			emailed = true
		}
	}
	if !emailed {
		t.Errorf("missing module-completed email: %+v", emailsvc.SentMessages)
	}
}

func Test_enrollmentApi_essayGrading(t *testing.T) {
	resetDB(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	instructor := testutil.CreateUser(t, usrRepo, "Prof", "prof", "prof@test.cd", "", []string{user.RoleInstructor}, true)
	stranger := testutil.CreateUser(t, usrRepo, "Other Prof", "prof2", "prof2@test.cd", "", []string{user.RoleInstructor}, true)

	cat := testutil.CreateCategory(t, catRepo, "General Studies", catalog.AccessFree, 0, student.ID)
	mod := testutil.CreateModule(t, catRepo, "Go Essays", cat.ID, catalog.LevelBeginner, catalog.StatusPublished,
		testutil.SimpleLessons(1), testutil.EssayFinal(70, 2), instructor.ID)

	studentToken := getToken(t, student)

	// enroll & learn
	request, rec := newAuthRequest(http.MethodPost, "/v1/enrollments", studentToken, enrollBody(t, mod.ID))
	app.ServeHTTP(rec, request)
	checkCode(t, rec, http.StatusCreated)
	var enr enrollment.Enrollment
	unmarchallObj(t, rec, &enr)
	base := fmt.Sprintf("/v1/enrollments/%d", enr.ID)

	request, rec = newAuthRequest(http.MethodPost, base+"/lessons/0/complete", studentToken)
	app.ServeHTTP(rec, request)
	checkCode(t, rec, http.StatusOK)

	// essay submission parks the enrollment for review
	request, rec = newAuthRequest(http.MethodPost, base+"/final-assessment", studentToken, answersBody(t, "true", "Concurrency is not parallelism."))
	app.ServeHTTP(rec, request)
	checkCode(t, rec, http.StatusOK)
	var resp AssessmentResponse
	unmarchallObj(t, rec, &resp)
	if !resp.Result.PendingReview || resp.Result.Passed {
		t.Fatalf("essay submission cannot auto-pass: %+v", resp.Result)
	}
	if resp.Enrollment.Status != enrollment.StatusPendingReview {
		t.Fatalf("status = %v; want %v", resp.Enrollment.Status, enrollment.StatusPendingReview)
	}

	// the admin inbox gets a copy of the review request
	var adminCopied bool
	for _, msg := range emailsvc.SentMessages {
		if msg.TemplateName != "essay-submitted" {
			continue
		}
		for _, to := range msg.To {
			if to.Address == conf.AdminEmail.Address {
				adminCopied = true
			}
		}
	}
	if !adminCopied {
		t.Errorf("admin inbox not copied on essay submission: %+v", emailsvc.SentMessages)
	}

	// duplicate submission while parked
	request, rec = newAuthRequest(http.MethodPost, base+"/final-assessment", studentToken, answersBody(t, "true", "again"))
	app.ServeHTTP(rec, request)
	checkCode(t, rec, http.StatusConflict)

	gradeBody := func(passed bool, feedback string, score *int) []byte {
		return marchallObj(t, enrollment.GradeEssayRequest{Passed: passed, Feedback: feedback, Score: score})
	}
	score := 90
	badScore := 150

	tests := []httpTest{
		{
			name: "Score must be a percentage", method: http.MethodPost, path: base + "/grade",
			body: gradeBody(true, "ok", &badScore), token: getToken(t, instructor),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"score": "must be a percentage between 0 and 100"}),
		},
		{
			name: "Students cannot grade", method: http.MethodPost, path: base + "/grade",
			body: gradeBody(true, "ok", nil), token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied),
		},
		{
			name: "Unassigned instructor cannot grade", method: http.MethodPost, path: base + "/grade",
			body: gradeBody(true, "ok", nil), token: getToken(t, stranger), wantCode: http.StatusForbidden,
		},
		{
			name: "Feedback required", method: http.MethodPost, path: base + "/grade",
			body: gradeBody(true, "", nil), token: getToken(t, instructor), wantCode: http.StatusBadRequest,
		},
		{
			name: "OK", method: http.MethodPost, path: base + "/grade",
			body: gradeBody(true, "Well argued.", &score), token: getToken(t, instructor), wantCode: http.StatusOK,
		},
		{
			name: "Nothing left to grade", method: http.MethodPost, path: base + "/grade",
			body: gradeBody(true, "again", nil), token: getToken(t, instructor), wantCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, request)
			checkCodeAndData(t, tt, rec)

			if tt.name == "OK" {
				var graded enrollment.Enrollment
				unmarchallObj(t, rec, &graded)
				if graded.Status != enrollment.StatusCompleted || graded.FinalScore != 90 {
					t.Errorf("failed! status = %v, score = %v; want %v, 90", graded.Status, graded.FinalScore, enrollment.StatusCompleted)
				}
				last := graded.Results[len(graded.Results)-1]
				if last.GradedBy != enrollment.GradedInstructor || last.GradedByID != instructor.ID || last.Feedback != "Well argued." {
					t.Errorf("failed! result = %+v", last)
				}
			}
		})
	}
}

func Test_enrollmentApi_ownership(t *testing.T) {
	resetDB(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	cat := testutil.CreateCategory(t, catRepo, "General Studies", catalog.AccessFree, 0, student.ID, other.ID)
	mod := testutil.CreateModule(t, catRepo, "Go Basics", cat.ID, catalog.LevelBeginner, catalog.StatusPublished,
		testutil.SimpleLessons(1), testutil.AutoGradedFinal(70, 0))

	request, rec := newAuthRequest(http.MethodPost, "/v1/enrollments", getToken(t, student), enrollBody(t, mod.ID))
	app.ServeHTTP(rec, request)
	checkCode(t, rec, http.StatusCreated)
	var enr enrollment.Enrollment
	unmarchallObj(t, rec, &enr)
	base := fmt.Sprintf("/v1/enrollments/%d", enr.ID)

	tests := []httpTest{
		{name: "Owner can read", method: http.MethodGet, path: base, token: getToken(t, student), wantCode: http.StatusOK},
		{name: "Admin can read", method: http.MethodGet, path: base, token: getToken(t, admin), wantCode: http.StatusOK},
		{name: "Others cannot read", method: http.MethodGet, path: base, token: getToken(t, other), wantCode: http.StatusForbidden},
		{
			name: "Others cannot mutate", method: http.MethodPost, path: base + "/lessons/0/complete",
			token: getToken(t, other), wantCode: http.StatusForbidden,
		},
		{name: "Unknown enrollment", method: http.MethodGet, path: "/v1/enrollments/999", token: getToken(t, student), wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, request)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Mine only lists mine", func(t *testing.T) {
		request, rec := newAuthRequest(http.MethodGet, "/v1/enrollments", getToken(t, other))
		app.ServeHTTP(rec, request)
		checkCode(t, rec, http.StatusOK)
		var enrs []enrollment.Enrollment
		unmarchallObj(t, rec, &enrs)
		if len(enrs) != 0 {
			t.Errorf("failed! len(enrs) = %v; want 0", len(enrs))
		}
	})
}

package tests

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/certificate"
	"github.com/trezcool/elimu/core/user"
	testutil "github.com/trezcool/elimu/tests"
)

func Test_certificateApi(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, usrRepo, "Jane Doe", "jdoe", "jdoe@test.cd", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	cat := testutil.CreateCategory(t, catRepo, "General Studies", catalog.AccessFree, 0, student.ID, other.ID)
	mod := testutil.CreateModule(t, catRepo, "Go Basics", cat.ID, catalog.LevelBeginner, catalog.StatusPublished,
		testutil.SimpleLessons(1), testutil.AutoGradedFinal(70, 0))

	// earn a certificate
	enr, err := enrollSvc.Enroll(ctx, student, mod.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if _, err = enrollSvc.CompleteLesson(ctx, student, enr.ID, 0); err != nil {
		t.Fatalf("CompleteLesson() failed: %v", err)
	}
	enr, _, err = enrollSvc.SubmitFinalAssessment(ctx, student, enr.ID, []string{"4", "true"})
	if err != nil {
		t.Fatalf("SubmitFinalAssessment() failed: %v", err)
	}
	if !enr.CertificateEarned || enr.CertificatePublicID == "" {
		t.Fatalf("no certificate earned: %+v", enr)
	}

	// an enrollment with no certificate yet
	bare, err := enrollSvc.Enroll(ctx, other, mod.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	base := fmt.Sprintf("/v1/certificates/enrollments/%d", enr.ID)

	t.Run("Public verification", func(t *testing.T) {
		request, rec := newRequest(http.MethodGet, "/v1/certificates/verify/"+enr.CertificatePublicID)
		app.ServeHTTP(rec, request)
		checkCode(t, rec, http.StatusOK)

		var cert certificate.Certificate
		unmarchallObj(t, rec, &cert)
		if cert.StudentName != student.Name || cert.ModuleName != mod.Title || cert.EnrollmentID != enr.ID {
			t.Errorf("failed! cert = %+v", cert)
		}
		if cert.Number == "" || cert.Score != 100 {
			t.Errorf("failed! cert = %+v", cert)
		}
	})

	t.Run("Unknown public id", func(t *testing.T) {
		request, rec := newRequest(http.MethodGet, "/v1/certificates/verify/nope")
		app.ServeHTTP(rec, request)
		checkCode(t, rec, http.StatusNotFound)
	})

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: base, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Owner can read", method: http.MethodGet, path: base, token: getToken(t, student), wantCode: http.StatusOK},
		{name: "Admin can read", method: http.MethodGet, path: base, token: getToken(t, admin), wantCode: http.StatusOK},
		{name: "Others cannot read", method: http.MethodGet, path: base, token: getToken(t, other), wantCode: http.StatusForbidden},
		{
			name: "No certificate yet", method: http.MethodGet, path: fmt.Sprintf("/v1/certificates/enrollments/%d", bare.ID),
			token: getToken(t, other), wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, request)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Download", func(t *testing.T) {
		request, rec := newAuthRequest(http.MethodGet, base+"/download", getToken(t, student))
		app.ServeHTTP(rec, request)
		checkCode(t, rec, http.StatusOK)

		if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("failed! content type = %v", ct)
		}
		if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.HasPrefix(cd, "attachment") {
			t.Errorf("failed! content disposition = %v", cd)
		}
		if body := rec.Body.String(); !strings.Contains(body, student.Name) || !strings.Contains(body, mod.Title) {
			t.Errorf("failed! document does not mention the student or module")
		}
	})
}

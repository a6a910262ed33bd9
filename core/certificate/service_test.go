package certificate_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/certificate"
	inmemdb "github.com/trezcool/elimu/storage/database/inmem"
)

func TestService_Issue(t *testing.T) {
	ctx := context.Background()
	svc := certificate.NewService(inmemdb.NewCertificateRepository(inmemdb.NewDB()))

	in := certificate.IssueInput{
		StudentID:      1,
		ModuleID:       2,
		EnrollmentID:   3,
		StudentName:    "Jane Doe",
		ModuleName:     "Go Basics",
		Level:          catalog.LevelBeginner,
		CategoryName:   "General Studies",
		InstructorName: "Prof",
		Score:          88,
	}
	cert, err := svc.Issue(ctx, in)
	require.NoError(t, err)
	assert.NotZero(t, cert.ID)
	assert.NotEmpty(t, cert.PublicID)
	assert.True(t, strings.HasPrefix(cert.Number, "CERT-"), "number = %v", cert.Number)
	assert.Equal(t, "Jane Doe", cert.StudentName)
	assert.Equal(t, 88, cert.Score)
	assert.False(t, cert.IssuedAt.IsZero())

	// single issuance per enrollment
	_, err = svc.Issue(ctx, in)
	assert.Equal(t, certificate.ErrAlreadyIssued, errors.Cause(err))

	// a different enrollment gets its own record
	in.EnrollmentID = 4
	other, err := svc.Issue(ctx, in)
	require.NoError(t, err)
	assert.NotEqual(t, cert.PublicID, other.PublicID)
	assert.NotEqual(t, cert.Number, other.Number)
}

func TestService_lookups(t *testing.T) {
	ctx := context.Background()
	svc := certificate.NewService(inmemdb.NewCertificateRepository(inmemdb.NewDB()))

	cert, err := svc.Issue(ctx, certificate.IssueInput{
		StudentID: 1, ModuleID: 2, EnrollmentID: 3,
		StudentName: "Jane Doe", ModuleName: "Go Basics",
		Level: catalog.LevelBeginner, CategoryName: "General Studies", Score: 100,
	})
	require.NoError(t, err)

	got, err := svc.VerifyByPublicID(ctx, cert.PublicID)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, got.ID)

	_, err = svc.VerifyByPublicID(ctx, "nope")
	assert.Equal(t, certificate.ErrNotFound, errors.Cause(err))

	got, err = svc.GetByEnrollment(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, got.ID)

	_, err = svc.GetByEnrollment(ctx, 99)
	assert.Equal(t, certificate.ErrNotFound, errors.Cause(err))
}

package certificate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/catalog"
)

var (
	// errors
	ErrNotFound      = errors.New("certificate not found")
	ErrAlreadyIssued = errors.New("a certificate was already issued for this enrollment")
)

type (
	Repository interface {
		CreateCertificate(ctx context.Context, cert Certificate) (Certificate, error)
		GetByEnrollmentID(ctx context.Context, enrollmentID int) (Certificate, error)
		GetByPublicID(ctx context.Context, publicID string) (Certificate, error)
	}

	// IssueInput carries the references and display snapshots for a mint.
	IssueInput struct {
		StudentID      int
		ModuleID       int
		EnrollmentID   int
		StudentName    string
		ModuleName     string
		Level          catalog.Level
		CategoryName   string
		InstructorName string
		Score          int
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Issue mints a certificate. Certificates are single-issuance per
// enrollment: a second call for the same enrollment fails; records are never
// mutated after creation.
func (svc *Service) Issue(ctx context.Context, in IssueInput) (Certificate, error) {
	if _, err := svc.repo.GetByEnrollmentID(ctx, in.EnrollmentID); err == nil {
		return Certificate{}, ErrAlreadyIssued
	} else if errors.Cause(err) != ErrNotFound {
		return Certificate{}, err
	}

	now := time.Now().UTC()
	publicID := uuid.New().String()
	cert := Certificate{
		StudentID:      in.StudentID,
		ModuleID:       in.ModuleID,
		EnrollmentID:   in.EnrollmentID,
		StudentName:    in.StudentName,
		ModuleName:     in.ModuleName,
		Level:          in.Level,
		CategoryName:   in.CategoryName,
		InstructorName: in.InstructorName,
		Score:          in.Score,
		Number:         newCertNumber(now),
		PublicID:       publicID,
		IssuedAt:       now,
	}
	return svc.repo.CreateCertificate(ctx, cert)
}

// VerifyByPublicID looks up a certificate by its public verification id.
func (svc *Service) VerifyByPublicID(ctx context.Context, publicID string) (Certificate, error) {
	return svc.repo.GetByPublicID(ctx, publicID)
}

func (svc *Service) GetByEnrollment(ctx context.Context, enrollmentID int) (Certificate, error) {
	return svc.repo.GetByEnrollmentID(ctx, enrollmentID)
}

// newCertNumber builds a globally unique, human-quotable certificate number.
func newCertNumber(t time.Time) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("CERT-%d-%s", t.Year(), suffix)
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/certificate"
)

type CertificateRepository struct {
	db *sqlx.DB
}

var _ certificate.Repository = (*CertificateRepository)(nil)

func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

type certificateRow struct {
	ID             int       `db:"id"`
	StudentID      int       `db:"student_id"`
	ModuleID       int       `db:"module_id"`
	EnrollmentID   int       `db:"enrollment_id"`
	StudentName    string    `db:"student_name"`
	ModuleName     string    `db:"module_name"`
	Level          string    `db:"level"`
	CategoryName   string    `db:"category_name"`
	InstructorName string    `db:"instructor_name"`
	Score          int       `db:"score"`
	Number         string    `db:"number"`
	PublicID       string    `db:"public_id"`
	IssuedAt       time.Time `db:"issued_at"`
}

func (r certificateRow) toCertificate() certificate.Certificate {
	return certificate.Certificate{
		ID:             r.ID,
		StudentID:      r.StudentID,
		ModuleID:       r.ModuleID,
		EnrollmentID:   r.EnrollmentID,
		StudentName:    r.StudentName,
		ModuleName:     r.ModuleName,
		Level:          catalog.Level(r.Level),
		CategoryName:   r.CategoryName,
		InstructorName: r.InstructorName,
		Score:          r.Score,
		Number:         r.Number,
		PublicID:       r.PublicID,
		IssuedAt:       r.IssuedAt.UTC(),
	}
}

func (repo *CertificateRepository) CreateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	const query = `
	INSERT INTO module_certificate (student_id, module_id, enrollment_id, student_name, module_name,
	                                level, category_name, instructor_name, score, number, public_id, issued_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING id`

	err := repo.db.QueryRowxContext(
		ctx, query,
		cert.StudentID, cert.ModuleID, cert.EnrollmentID, cert.StudentName, cert.ModuleName,
		string(cert.Level), cert.CategoryName, cert.InstructorName, cert.Score, cert.Number,
		cert.PublicID, cert.IssuedAt,
	).Scan(&cert.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return certificate.Certificate{}, certificate.ErrAlreadyIssued
		}
		return certificate.Certificate{}, errors.Wrap(err, "creating certificate")
	}
	return cert, nil
}

func (repo *CertificateRepository) GetByEnrollmentID(ctx context.Context, enrollmentID int) (certificate.Certificate, error) {
	var row certificateRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM module_certificate WHERE enrollment_id = $1`, enrollmentID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return certificate.Certificate{}, certificate.ErrNotFound
		}
		return certificate.Certificate{}, errors.Wrap(err, "getting certificate")
	}
	return row.toCertificate(), nil
}

func (repo *CertificateRepository) GetByPublicID(ctx context.Context, publicID string) (certificate.Certificate, error) {
	var row certificateRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM module_certificate WHERE public_id = $1`, publicID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return certificate.Certificate{}, certificate.ErrNotFound
		}
		return certificate.Certificate{}, errors.Wrap(err, "getting certificate")
	}
	return row.toCertificate(), nil
}

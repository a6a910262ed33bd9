package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/enrollment"
)

type EnrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*EnrollmentRepository)(nil)

func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

type enrollmentRow struct {
	ID                  int            `db:"id"`
	StudentID           int            `db:"student_id"`
	ModuleID            int            `db:"module_id"`
	Status              string         `db:"status"`
	Lessons             types.JSONText `db:"lessons"`
	ProgressPct         int            `db:"progress_pct"`
	FinalAttempts       int            `db:"final_attempts"`
	FinalScore          int            `db:"final_score"`
	FinalPassed         bool           `db:"final_passed"`
	Results             types.JSONText `db:"results"`
	RepeatCount         int            `db:"repeat_count"`
	CertificateEarned   bool           `db:"certificate_earned"`
	CertificatePublicID string         `db:"certificate_public_id"`
	Version             int            `db:"version"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r enrollmentRow) toEnrollment() (enrollment.Enrollment, error) {
	enr := enrollment.Enrollment{
		ID:                  r.ID,
		StudentID:           r.StudentID,
		ModuleID:            r.ModuleID,
		Status:              enrollment.Status(r.Status),
		ProgressPct:         r.ProgressPct,
		FinalAttempts:       r.FinalAttempts,
		FinalScore:          r.FinalScore,
		FinalPassed:         r.FinalPassed,
		RepeatCount:         r.RepeatCount,
		CertificateEarned:   r.CertificateEarned,
		CertificatePublicID: r.CertificatePublicID,
		Version:             r.Version,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
	if err := fromJSON(r.Lessons, &enr.Lessons); err != nil {
		return enrollment.Enrollment{}, err
	}
	if err := fromJSON(r.Results, &enr.Results); err != nil {
		return enrollment.Enrollment{}, err
	}
	return enr, nil
}

func (repo *EnrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	lessons, results, err := enrollmentJSON(e)
	if err != nil {
		return enrollment.Enrollment{}, err
	}

	const query = `
	INSERT INTO module_enrollment (student_id, module_id, status, lessons, progress_pct, final_attempts,
	                               final_score, final_passed, results, repeat_count, certificate_earned,
	                               certificate_public_id, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	RETURNING id`

	err = repo.db.QueryRowxContext(
		ctx, query,
		e.StudentID, e.ModuleID, string(e.Status), lessons, e.ProgressPct, e.FinalAttempts,
		e.FinalScore, e.FinalPassed, results, e.RepeatCount, e.CertificateEarned,
		e.CertificatePublicID, e.Version, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return enrollment.Enrollment{}, enrollment.ErrExists
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	return e, nil
}

func (repo *EnrollmentRepository) GetEnrollmentByID(ctx context.Context, id int) (enrollment.Enrollment, error) {
	var row enrollmentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM module_enrollment WHERE id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return enrollment.Enrollment{}, enrollment.ErrNotFound
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return row.toEnrollment()
}

func (repo *EnrollmentRepository) GetByStudentAndModule(ctx context.Context, studentID, moduleID int) (enrollment.Enrollment, error) {
	const query = `SELECT * FROM module_enrollment WHERE student_id = $1 AND module_id = $2`

	var row enrollmentRow
	if err := repo.db.GetContext(ctx, &row, query, studentID, moduleID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return enrollment.Enrollment{}, enrollment.ErrNotFound
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return row.toEnrollment()
}

func (repo *EnrollmentRepository) QueryEnrollmentsByStudent(ctx context.Context, studentID int) ([]enrollment.Enrollment, error) {
	var rows []enrollmentRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM module_enrollment WHERE student_id = $1 ORDER BY id`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	enrs := make([]enrollment.Enrollment, 0, len(rows))
	for _, row := range rows {
		enr, err := row.toEnrollment()
		if err != nil {
			return nil, err
		}
		enrs = append(enrs, enr)
	}
	return enrs, nil
}

func (repo *EnrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	lessons, results, err := enrollmentJSON(e)
	if err != nil {
		return enrollment.Enrollment{}, err
	}

	const query = `
	UPDATE module_enrollment
	SET status = $3, lessons = $4, progress_pct = $5, final_attempts = $6, final_score = $7,
	    final_passed = $8, results = $9, repeat_count = $10, certificate_earned = $11,
	    certificate_public_id = $12, version = version + 1, updated_at = $13
	WHERE id = $1 AND version = $2`

	res, err := repo.db.ExecContext(
		ctx, query,
		e.ID, e.Version, string(e.Status), lessons, e.ProgressPct, e.FinalAttempts, e.FinalScore,
		e.FinalPassed, results, e.RepeatCount, e.CertificateEarned, e.CertificatePublicID, e.UpdatedAt,
	)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if n == 0 {
		// Stale version or missing row; callers retry off the conflict.
		return enrollment.Enrollment{}, core.ErrWriteConflict
	}
	e.Version++
	return e, nil
}

func (repo *EnrollmentRepository) CountCompletedByLevel(ctx context.Context, studentID, categoryID int) (map[catalog.Level]int, error) {
	const query = `
	SELECT m.level, COUNT(*) AS count
	FROM module_enrollment e
	JOIN module m ON m.id = e.module_id
	WHERE e.student_id = $1 AND m.category_id = $2 AND e.status = $3
	GROUP BY m.level`

	var rows []struct {
		Level string `db:"level"`
		Count int    `db:"count"`
	}
	if err := repo.db.SelectContext(ctx, &rows, query, studentID, categoryID, string(enrollment.StatusCompleted)); err != nil {
		return nil, errors.Wrap(err, "counting completed enrollments")
	}

	counts := make(map[catalog.Level]int, len(rows))
	for _, row := range rows {
		counts[catalog.Level(row.Level)] = row.Count
	}
	return counts, nil
}

func enrollmentJSON(e enrollment.Enrollment) (lessons, results types.JSONText, err error) {
	lp := e.Lessons
	if lp == nil {
		lp = []enrollment.LessonProgress{}
	}
	if lessons, err = toJSON(lp); err != nil {
		return
	}
	res := e.Results
	if res == nil {
		res = []enrollment.AttemptResult{}
	}
	results, err = toJSON(res)
	return
}

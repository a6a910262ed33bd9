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
	"github.com/trezcool/elimu/core/progression"
)

type ProgressionRepository struct {
	db *sqlx.DB
}

var _ progression.Repository = (*ProgressionRepository)(nil)

func NewProgressionRepository(db *sqlx.DB) *ProgressionRepository {
	return &ProgressionRepository{db: db}
}

type progressionRow struct {
	ID           int            `db:"id"`
	StudentID    int            `db:"student_id"`
	CategoryID   int            `db:"category_id"`
	CurrentLevel string         `db:"current_level"`
	Levels       types.JSONText `db:"levels"`
	Version      int            `db:"version"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r progressionRow) toProgression() (progression.StudentProgression, error) {
	prog := progression.StudentProgression{
		ID:           r.ID,
		StudentID:    r.StudentID,
		CategoryID:   r.CategoryID,
		CurrentLevel: catalog.Level(r.CurrentLevel),
		Version:      r.Version,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if err := fromJSON(r.Levels, &prog.Levels); err != nil {
		return progression.StudentProgression{}, err
	}
	return prog, nil
}

func (repo *ProgressionRepository) GetByStudentAndCategory(ctx context.Context, studentID, categoryID int) (progression.StudentProgression, error) {
	const query = `SELECT * FROM student_progression WHERE student_id = $1 AND category_id = $2`

	var row progressionRow
	if err := repo.db.GetContext(ctx, &row, query, studentID, categoryID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return progression.StudentProgression{}, progression.ErrNotFound
		}
		return progression.StudentProgression{}, errors.Wrap(err, "getting progression")
	}
	return row.toProgression()
}

func (repo *ProgressionRepository) CreateProgression(ctx context.Context, p progression.StudentProgression) (progression.StudentProgression, error) {
	levels, err := toJSON(p.Levels)
	if err != nil {
		return progression.StudentProgression{}, err
	}

	const query = `
	INSERT INTO student_progression (student_id, category_id, current_level, levels, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`

	err = repo.db.QueryRowxContext(
		ctx, query,
		p.StudentID, p.CategoryID, string(p.CurrentLevel), levels, p.Version, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a concurrent init race; callers re-get the winner's row.
			return progression.StudentProgression{}, core.ErrWriteConflict
		}
		return progression.StudentProgression{}, errors.Wrap(err, "creating progression")
	}
	return p, nil
}

func (repo *ProgressionRepository) UpdateProgression(ctx context.Context, p progression.StudentProgression) (progression.StudentProgression, error) {
	levels, err := toJSON(p.Levels)
	if err != nil {
		return progression.StudentProgression{}, err
	}

	const query = `
	UPDATE student_progression
	SET current_level = $3, levels = $4, version = version + 1, updated_at = $5
	WHERE id = $1 AND version = $2`

	res, err := repo.db.ExecContext(ctx, query, p.ID, p.Version, string(p.CurrentLevel), levels, p.UpdatedAt)
	if err != nil {
		return progression.StudentProgression{}, errors.Wrap(err, "updating progression")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return progression.StudentProgression{}, errors.Wrap(err, "updating progression")
	}
	if n == 0 {
		return progression.StudentProgression{}, core.ErrWriteConflict
	}
	p.Version++
	return p, nil
}

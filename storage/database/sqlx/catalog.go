package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/catalog"
)

type CatalogRepository struct {
	db *sqlx.DB
}

var _ catalog.Repository = (*CatalogRepository)(nil)

func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

type categoryRow struct {
	ID        int            `db:"id"`
	Name      string         `db:"name"`
	Access    string         `db:"access"`
	Price     int64          `db:"price"`
	FellowIDs types.JSONText `db:"fellow_ids"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r categoryRow) toCategory() (catalog.Category, error) {
	cat := catalog.Category{
		ID:        r.ID,
		Name:      r.Name,
		Access:    catalog.AccessKind(r.Access),
		Price:     r.Price,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if err := fromJSON(r.FellowIDs, &cat.FellowIDs); err != nil {
		return catalog.Category{}, err
	}
	return cat, nil
}

type moduleRow struct {
	ID              int             `db:"id"`
	Title           string          `db:"title"`
	Description     string          `db:"description"`
	CategoryID      int             `db:"category_id"`
	Level           string          `db:"level"`
	Lessons         types.JSONText  `db:"lessons"`
	Final           *types.JSONText `db:"final_assessment"`
	Status          string          `db:"status"`
	InstructorIDs   types.JSONText  `db:"instructor_ids"`
	EnrollmentCount int             `db:"enrollment_count"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (r moduleRow) toModule() (catalog.Module, error) {
	mod := catalog.Module{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		CategoryID:      r.CategoryID,
		Level:           catalog.Level(r.Level),
		Status:          catalog.ModuleStatus(r.Status),
		EnrollmentCount: r.EnrollmentCount,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if err := fromJSON(r.Lessons, &mod.Lessons); err != nil {
		return catalog.Module{}, err
	}
	if r.Final != nil {
		if err := fromJSON(*r.Final, &mod.Final); err != nil {
			return catalog.Module{}, err
		}
	}
	if err := fromJSON(r.InstructorIDs, &mod.InstructorIDs); err != nil {
		return catalog.Module{}, err
	}
	return mod, nil
}

func (repo *CatalogRepository) CreateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	fellows, err := toJSON(orEmptyInts(cat.FellowIDs))
	if err != nil {
		return catalog.Category{}, err
	}

	const query = `
	INSERT INTO category (name, access, price, fellow_ids, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	err = repo.db.QueryRowxContext(
		ctx, query,
		cat.Name, string(cat.Access), cat.Price, fellows, cat.CreatedAt, cat.UpdatedAt,
	).Scan(&cat.ID)
	if err != nil {
		return catalog.Category{}, errors.Wrap(err, "creating category")
	}
	return cat, nil
}

func (repo *CatalogRepository) GetCategoryByID(ctx context.Context, id int) (catalog.Category, error) {
	var row categoryRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM category WHERE id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return catalog.Category{}, catalog.ErrCategoryNotFound
		}
		return catalog.Category{}, errors.Wrap(err, "getting category")
	}
	return row.toCategory()
}

func (repo *CatalogRepository) QueryAllCategories(ctx context.Context) ([]catalog.Category, error) {
	var rows []categoryRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM category ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}

	cats := make([]catalog.Category, 0, len(rows))
	for _, row := range rows {
		cat, err := row.toCategory()
		if err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

func (repo *CatalogRepository) CreateModule(ctx context.Context, mod catalog.Module) (catalog.Module, error) {
	lessons, final, instructors, err := moduleJSON(mod)
	if err != nil {
		return catalog.Module{}, err
	}

	const query = `
	INSERT INTO module (title, description, category_id, level, lessons, final_assessment, status, instructor_ids, enrollment_count, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id`

	err = repo.db.QueryRowxContext(
		ctx, query,
		mod.Title, mod.Description, mod.CategoryID, string(mod.Level), lessons, final,
		string(mod.Status), instructors, mod.EnrollmentCount, mod.CreatedAt, mod.UpdatedAt,
	).Scan(&mod.ID)
	if err != nil {
		return catalog.Module{}, errors.Wrap(err, "creating module")
	}
	return mod, nil
}

func (repo *CatalogRepository) GetModuleByID(ctx context.Context, id int) (catalog.Module, error) {
	var row moduleRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM module WHERE id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return catalog.Module{}, catalog.ErrModuleNotFound
		}
		return catalog.Module{}, errors.Wrap(err, "getting module")
	}
	return row.toModule()
}

func (repo *CatalogRepository) UpdateModule(ctx context.Context, mod catalog.Module) (catalog.Module, error) {
	lessons, final, instructors, err := moduleJSON(mod)
	if err != nil {
		return catalog.Module{}, err
	}

	const query = `
	UPDATE module
	SET title = $2, description = $3, category_id = $4, level = $5, lessons = $6,
	    final_assessment = $7, status = $8, instructor_ids = $9, updated_at = $10
	WHERE id = $1`

	res, err := repo.db.ExecContext(
		ctx, query,
		mod.ID, mod.Title, mod.Description, mod.CategoryID, string(mod.Level),
		lessons, final, string(mod.Status), instructors, mod.UpdatedAt,
	)
	if err != nil {
		return catalog.Module{}, errors.Wrap(err, "updating module")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Module{}, catalog.ErrModuleNotFound
	}
	return mod, nil
}

func (repo *CatalogRepository) QueryModulesByCategory(ctx context.Context, categoryID int, statuses ...catalog.ModuleStatus) ([]catalog.Module, error) {
	query := `SELECT * FROM module WHERE category_id = $1`
	args := []interface{}{categoryID}
	if len(statuses) > 0 {
		strs := make([]string, 0, len(statuses))
		for _, status := range statuses {
			strs = append(strs, string(status))
		}
		query += ` AND status = ANY($2)`
		args = append(args, pqStringArray(strs))
	}
	query += ` ORDER BY id`

	var rows []moduleRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}

	mods := make([]catalog.Module, 0, len(rows))
	for _, row := range rows {
		mod, err := row.toModule()
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

func (repo *CatalogRepository) CountPublishedByLevel(ctx context.Context, categoryID int) (map[catalog.Level]int, error) {
	const query = `
	SELECT level, COUNT(*) AS count FROM module
	WHERE category_id = $1 AND status = $2
	GROUP BY level`

	var rows []struct {
		Level string `db:"level"`
		Count int    `db:"count"`
	}
	if err := repo.db.SelectContext(ctx, &rows, query, categoryID, string(catalog.StatusPublished)); err != nil {
		return nil, errors.Wrap(err, "counting published modules")
	}

	counts := make(map[catalog.Level]int, len(rows))
	for _, row := range rows {
		counts[catalog.Level(row.Level)] = row.Count
	}
	return counts, nil
}

func (repo *CatalogRepository) IncrementEnrollmentCount(ctx context.Context, moduleID int) error {
	_, err := repo.db.ExecContext(ctx, `UPDATE module SET enrollment_count = enrollment_count + 1 WHERE id = $1`, moduleID)
	return errors.Wrap(err, "incrementing enrollment count")
}

// moduleJSON serializes the jsonb columns; final is nil when the module has
// no final assessment so the column stays NULL.
func moduleJSON(mod catalog.Module) (lessons types.JSONText, final interface{}, instructors types.JSONText, err error) {
	if lessons, err = toJSON(orEmptyLessons(mod.Lessons)); err != nil {
		return
	}
	if mod.Final != nil {
		if final, err = toJSON(mod.Final); err != nil {
			return
		}
	}
	instructors, err = toJSON(orEmptyInts(mod.InstructorIDs))
	return
}

func orEmptyInts(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}

func orEmptyLessons(lessons []catalog.Lesson) []catalog.Lesson {
	if lessons == nil {
		return []catalog.Lesson{}
	}
	return lessons
}

package inmemdb

import (
	"context"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/progression"
)

type progressionRepository struct {
	db *DB
}

func NewProgressionRepository(db *DB) progression.Repository {
	return &progressionRepository{db: db}
}

func (repo *progressionRepository) GetByStudentAndCategory(_ context.Context, studentID, categoryID int) (progression.StudentProgression, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.progressions {
		if p.StudentID == studentID && p.CategoryID == categoryID {
			return clone(*p), nil
		}
	}
	return progression.StudentProgression{}, progression.ErrNotFound
}

func (repo *progressionRepository) CreateProgression(_ context.Context, p progression.StudentProgression) (progression.StudentProgression, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.progressions {
		if existing.StudentID == p.StudentID && existing.CategoryID == p.CategoryID {
			return progression.StudentProgression{}, core.ErrWriteConflict
		}
	}
	p.ID = repo.db.nextPK()
	stored := clone(p)
	repo.db.progressions[p.ID] = &stored
	return clone(stored), nil
}

func (repo *progressionRepository) UpdateProgression(_ context.Context, p progression.StudentProgression) (progression.StudentProgression, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.progressions[p.ID]
	if !ok {
		return progression.StudentProgression{}, core.ErrWriteConflict
	}
	if orig.Version != p.Version {
		return progression.StudentProgression{}, core.ErrWriteConflict
	}
	p.Version++
	p.CreatedAt = orig.CreatedAt
	stored := clone(p)
	repo.db.progressions[p.ID] = &stored
	return clone(stored), nil
}

// clone copies the levels slice so callers cannot mutate stored state.
func clone(p progression.StudentProgression) progression.StudentProgression {
	levels := make([]progression.LevelProgress, len(p.Levels))
	copy(levels, p.Levels)
	p.Levels = levels
	return p
}

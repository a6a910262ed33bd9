package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/elimu/core/catalog"
)

type catalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) CreateCategory(_ context.Context, cat catalog.Category) (catalog.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cat.ID = repo.db.nextPK()
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *catalogRepository) GetCategoryByID(_ context.Context, id int) (catalog.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cat, ok := repo.db.categories[id]; ok {
		return *cat, nil
	}
	return catalog.Category{}, catalog.ErrCategoryNotFound
}

func (repo *catalogRepository) QueryAllCategories(_ context.Context) ([]catalog.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	cats := make([]catalog.Category, 0, len(repo.db.categories))
	for _, cat := range repo.db.categories {
		cats = append(cats, *cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].ID < cats[j].ID })
	return cats, nil
}

func (repo *catalogRepository) CreateModule(_ context.Context, mod catalog.Module) (catalog.Module, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	mod.ID = repo.db.nextPK()
	repo.db.modules[mod.ID] = &mod
	return mod, nil
}

func (repo *catalogRepository) GetModuleByID(_ context.Context, id int) (catalog.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if mod, ok := repo.db.modules[id]; ok {
		return *mod, nil
	}
	return catalog.Module{}, catalog.ErrModuleNotFound
}

func (repo *catalogRepository) UpdateModule(_ context.Context, mod catalog.Module) (catalog.Module, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.modules[mod.ID]
	if !ok {
		return catalog.Module{}, catalog.ErrModuleNotFound
	}
	mod.CreatedAt = orig.CreatedAt
	mod.EnrollmentCount = orig.EnrollmentCount
	repo.db.modules[mod.ID] = &mod
	return mod, nil
}

func (repo *catalogRepository) QueryModulesByCategory(_ context.Context, categoryID int, statuses ...catalog.ModuleStatus) ([]catalog.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[catalog.ModuleStatus]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}

	mods := make([]catalog.Module, 0)
	for _, mod := range repo.db.modules {
		if mod.CategoryID != categoryID {
			continue
		}
		if len(wanted) > 0 && !wanted[mod.Status] {
			continue
		}
		mods = append(mods, *mod)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].ID < mods[j].ID })
	return mods, nil
}

func (repo *catalogRepository) CountPublishedByLevel(_ context.Context, categoryID int) (map[catalog.Level]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := make(map[catalog.Level]int)
	for _, mod := range repo.db.modules {
		if mod.CategoryID == categoryID && mod.Status == catalog.StatusPublished {
			counts[mod.Level]++
		}
	}
	return counts, nil
}

func (repo *catalogRepository) IncrementEnrollmentCount(_ context.Context, moduleID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	mod, ok := repo.db.modules[moduleID]
	if !ok {
		return catalog.ErrModuleNotFound
	}
	mod.EnrollmentCount++
	return nil
}

package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/grading"
)

type enrollmentRepository struct {
	db *DB
}

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.enrollments {
		if existing.StudentID == e.StudentID && existing.ModuleID == e.ModuleID {
			return enrollment.Enrollment{}, enrollment.ErrExists
		}
	}
	e.ID = repo.db.nextPK()
	stored := cloneEnrollment(e)
	repo.db.enrollments[e.ID] = &stored
	return cloneEnrollment(stored), nil
}

func (repo *enrollmentRepository) GetEnrollmentByID(_ context.Context, id int) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.enrollments[id]; ok {
		return cloneEnrollment(*e), nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) GetByStudentAndModule(_ context.Context, studentID, moduleID int) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.StudentID == studentID && e.ModuleID == moduleID {
			return cloneEnrollment(*e), nil
		}
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollmentsByStudent(_ context.Context, studentID int) ([]enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrs := make([]enrollment.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if e.StudentID == studentID {
			enrs = append(enrs, cloneEnrollment(*e))
		}
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].ID < enrs[j].ID })
	return enrs, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.enrollments[e.ID]
	if !ok {
		return enrollment.Enrollment{}, core.ErrWriteConflict
	}
	if orig.Version != e.Version {
		return enrollment.Enrollment{}, core.ErrWriteConflict
	}
	e.Version++
	e.CreatedAt = orig.CreatedAt
	stored := cloneEnrollment(e)
	repo.db.enrollments[e.ID] = &stored
	return cloneEnrollment(stored), nil
}

func (repo *enrollmentRepository) CountCompletedByLevel(_ context.Context, studentID, categoryID int) (map[catalog.Level]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := make(map[catalog.Level]int)
	for _, e := range repo.db.enrollments {
		if e.StudentID != studentID || e.Status != enrollment.StatusCompleted {
			continue
		}
		mod, ok := repo.db.modules[e.ModuleID]
		if !ok || mod.CategoryID != categoryID {
			continue
		}
		counts[mod.Level]++
	}
	return counts, nil
}

// cloneEnrollment copies the lesson and result slices (and their nested
// slices) so callers holding a stale copy cannot mutate stored state.
func cloneEnrollment(e enrollment.Enrollment) enrollment.Enrollment {
	lessons := make([]enrollment.LessonProgress, len(e.Lessons))
	copy(lessons, e.Lessons)
	e.Lessons = lessons

	results := make([]enrollment.AttemptResult, len(e.Results))
	copy(results, e.Results)
	for i := range results {
		answers := make([]string, len(results[i].Answers))
		copy(answers, results[i].Answers)
		results[i].Answers = answers

		qrs := make([]grading.QuestionResult, len(results[i].Results))
		copy(qrs, results[i].Results)
		results[i].Results = qrs
	}
	e.Results = results
	return e
}

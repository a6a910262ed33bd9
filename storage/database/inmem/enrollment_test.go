package inmemdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/grading"
	inmemdb "github.com/trezcool/elimu/storage/database/inmem"
)

func TestEnrollmentRepository_staleCopyCannotMutateStore(t *testing.T) {
	repo := inmemdb.NewEnrollmentRepository(inmemdb.NewDB())
	ctx := context.Background()

	enr, err := repo.CreateEnrollment(ctx, enrollment.Enrollment{
		StudentID: 1,
		ModuleID:  1,
		Status:    enrollment.StatusEnrolled,
		Lessons:   []enrollment.LessonProgress{{}, {}},
		Results: []enrollment.AttemptResult{{
			Attempt: 1,
			Score:   40,
			Answers: []string{"3"},
			Results: []grading.QuestionResult{{Index: 0}},
		}},
	})
	require.NoError(t, err)

	// advance the stored version past the stale copy
	stale := enr
	fresh, err := repo.GetEnrollmentByID(ctx, enr.ID)
	require.NoError(t, err)
	fresh.Status = enrollment.StatusInProgress
	_, err = repo.UpdateEnrollment(ctx, fresh)
	require.NoError(t, err)

	// in-place writes through the stale copy's slices, then a rejected write
	stale.Lessons[0].Completed = true
	stale.Results[0].Score = 100
	stale.Results[0].Answers[0] = "4"
	stale.Results[0].Results[0].IsCorrect = true
	_, err = repo.UpdateEnrollment(ctx, stale)
	require.Equal(t, core.ErrWriteConflict, err)

	got, err := repo.GetEnrollmentByID(ctx, enr.ID)
	require.NoError(t, err)
	assert.False(t, got.Lessons[0].Completed, "rejected write must not leak through aliased lessons")
	assert.Equal(t, 40, got.Results[0].Score)
	assert.Equal(t, "3", got.Results[0].Answers[0])
	assert.False(t, got.Results[0].Results[0].IsCorrect)
}

func TestEnrollmentRepository_queryCopiesAreIndependent(t *testing.T) {
	repo := inmemdb.NewEnrollmentRepository(inmemdb.NewDB())
	ctx := context.Background()

	enr, err := repo.CreateEnrollment(ctx, enrollment.Enrollment{
		StudentID: 1,
		ModuleID:  1,
		Status:    enrollment.StatusEnrolled,
		Lessons:   []enrollment.LessonProgress{{}},
	})
	require.NoError(t, err)

	enrs, err := repo.QueryEnrollmentsByStudent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, enrs, 1)
	enrs[0].Lessons[0].Completed = true

	got, err := repo.GetEnrollmentByID(ctx, enr.ID)
	require.NoError(t, err)
	assert.False(t, got.Lessons[0].Completed)
}

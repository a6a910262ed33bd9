package progression

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
)

var ErrNotFound = errors.New("progression not found")

// conflictRetries bounds the versioned-write retry loop.
const conflictRetries = 3

type (
	Repository interface {
		GetByStudentAndCategory(ctx context.Context, studentID, categoryID int) (StudentProgression, error)
		CreateProgression(ctx context.Context, p StudentProgression) (StudentProgression, error)
		// UpdateProgression compares-and-swaps on Version and returns
		// core.ErrWriteConflict when the row changed underneath.
		UpdateProgression(ctx context.Context, p StudentProgression) (StudentProgression, error)
	}

	// CompletionCounter reports completed enrollments per module level for a
	// student within a category, straight from the enrollment records. It
	// lets a progression heal when a completion event was lost.
	// The enrollment repositories satisfy it.
	CompletionCounter interface {
		CountCompletedByLevel(ctx context.Context, studentID, categoryID int) (map[catalog.Level]int, error)
	}

	Service struct {
		repo    Repository
		catRepo catalog.Repository
		counter CompletionCounter // may be nil
	}
)

func NewService(repo Repository, catRepo catalog.Repository, counter CompletionCounter) *Service {
	return &Service{repo: repo, catRepo: catRepo, counter: counter}
}

// Initialize lazily creates the progression record for (student, category).
// Idempotent: an existing record is returned unchanged.
func (svc *Service) Initialize(ctx context.Context, studentID, categoryID int) (StudentProgression, error) {
	if p, err := svc.repo.GetByStudentAndCategory(ctx, studentID, categoryID); err == nil {
		return p, nil
	} else if errors.Cause(err) != ErrNotFound {
		return StudentProgression{}, err
	}

	counts, err := svc.catRepo.CountPublishedByLevel(ctx, categoryID)
	if err != nil {
		return StudentProgression{}, errors.Wrap(err, "counting published modules")
	}

	now := time.Now().UTC()
	p := StudentProgression{
		StudentID:    studentID,
		CategoryID:   categoryID,
		CurrentLevel: catalog.LevelBeginner,
		Levels:       make([]LevelProgress, 0, len(catalog.Levels)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, level := range catalog.Levels {
		lp := LevelProgress{Level: level, TotalModules: counts[level]}
		if level == catalog.LevelBeginner {
			lp.IsUnlocked = true
			lp.UnlockedAt = null.TimeFrom(now)
		}
		p.Levels = append(p.Levels, lp)
	}

	created, err := svc.repo.CreateProgression(ctx, p)
	if errors.Cause(err) == core.ErrWriteConflict {
		// Lost a concurrent init race; the winner's record is authoritative.
		return svc.repo.GetByStudentAndCategory(ctx, studentID, categoryID)
	}
	return created, err
}

// CanAccessLevel reports whether the student may enroll at the given level of
// the category. Beginner is always accessible; a missing progression record
// means nothing above beginner has been unlocked yet.
func (svc *Service) CanAccessLevel(ctx context.Context, studentID, categoryID int, level catalog.Level) (bool, error) {
	if level == catalog.LevelBeginner {
		return true, nil
	}
	p, err := svc.repo.GetByStudentAndCategory(ctx, studentID, categoryID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return p.IsLevelUnlocked(level), nil
}

// recountLevels refreshes per-level module totals from the published catalog
// and, when a completion counter is wired, heals completed counts from the
// enrollment records. Modules published after the record was created would
// otherwise stay invisible to it, and a lost completion event would stay
// lost. Counts only grow: a later archive never re-locks a level the student
// already completed.
func (svc *Service) recountLevels(ctx context.Context, p *StudentProgression) error {
	counts, err := svc.catRepo.CountPublishedByLevel(ctx, p.CategoryID)
	if err != nil {
		return errors.Wrap(err, "counting published modules")
	}
	var completed map[catalog.Level]int
	if svc.counter != nil && p.StudentID != 0 {
		if completed, err = svc.counter.CountCompletedByLevel(ctx, p.StudentID, p.CategoryID); err != nil {
			return errors.Wrap(err, "counting completed modules")
		}
	}
	for i := range p.Levels {
		lp := &p.Levels[i]
		if total := counts[lp.Level]; total > lp.TotalModules {
			lp.TotalModules = total
		}
		if done := completed[lp.Level]; done > lp.CompletedModules {
			lp.CompletedModules = done
		}
	}
	return nil
}

// OnModuleCompleted records a module completion and returns the level newly
// unlocked by it, if any. Advanced has no successor.
func (svc *Service) OnModuleCompleted(ctx context.Context, studentID int, mod catalog.Module) (*catalog.Level, error) {
	var unlocked *catalog.Level
	for attempt := 0; ; attempt++ {
		p, err := svc.Initialize(ctx, studentID, mod.CategoryID)
		if err != nil {
			return nil, err
		}
		if err = svc.recountLevels(ctx, &p); err != nil {
			return nil, err
		}

		unlocked = nil
		now := time.Now().UTC()
		lp := p.levelProgress(mod.Level)
		if lp == nil {
			return nil, errors.Errorf("no progress record for level %q", mod.Level)
		}
		if svc.counter == nil {
			// no counter to reconcile against; count the event itself
			lp.CompletedModules++
		}
		// sweep every level so a previously lost completion can still finish
		// its level and unlock the next tier
		for i := range p.Levels {
			cur := &p.Levels[i]
			if cur.IsCompleted || cur.TotalModules == 0 || cur.CompletedModules < cur.TotalModules {
				continue
			}
			cur.IsCompleted = true
			cur.CompletedAt = null.TimeFrom(now)
			if next, ok := cur.Level.Next(); ok {
				np := p.levelProgress(next)
				if np != nil && !np.IsUnlocked {
					np.IsUnlocked = true
					np.UnlockedAt = null.TimeFrom(now)
					p.CurrentLevel = next
					unlocked = &next
				}
			}
		}
		p.UpdatedAt = now

		if _, err = svc.repo.UpdateProgression(ctx, p); err != nil {
			if errors.Cause(err) == core.ErrWriteConflict && attempt < conflictRetries {
				continue
			}
			return nil, err
		}
		return unlocked, nil
	}
}

// GetLevelAccessStatus projects unlocked/completed state for all levels.
// Read-only: a missing record is projected without being created.
func (svc *Service) GetLevelAccessStatus(ctx context.Context, studentID, categoryID int) ([]LevelAccessStatus, error) {
	p, err := svc.repo.GetByStudentAndCategory(ctx, studentID, categoryID)
	switch {
	case err == nil:
		if err = svc.recountLevels(ctx, &p); err != nil {
			return nil, err
		}
	case errors.Cause(err) == ErrNotFound:
		// project the default (nothing completed) state
		counts, err := svc.catRepo.CountPublishedByLevel(ctx, categoryID)
		if err != nil {
			return nil, errors.Wrap(err, "counting published modules")
		}
		p = StudentProgression{Levels: make([]LevelProgress, 0, len(catalog.Levels))}
		for _, level := range catalog.Levels {
			p.Levels = append(p.Levels, LevelProgress{
				Level:        level,
				TotalModules: counts[level],
				IsUnlocked:   level == catalog.LevelBeginner,
			})
		}
	default:
		return nil, err
	}

	statuses := make([]LevelAccessStatus, 0, len(p.Levels))
	for _, lp := range p.Levels {
		st := LevelAccessStatus{
			Level:            lp.Level,
			IsUnlocked:       lp.IsUnlocked || lp.Level == catalog.LevelBeginner,
			IsCompleted:      lp.IsCompleted,
			TotalModules:     lp.TotalModules,
			CompletedModules: lp.CompletedModules,
		}
		if !st.IsUnlocked {
			if prev, ok := lp.Level.Previous(); ok {
				st.LockedReason = fmt.Sprintf("complete all %s modules to unlock %s", prev, lp.Level)
			}
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// GetForCategory returns the raw progression record, lazily creating it.
func (svc *Service) GetForCategory(ctx context.Context, studentID, categoryID int) (StudentProgression, error) {
	return svc.Initialize(ctx, studentID, categoryID)
}

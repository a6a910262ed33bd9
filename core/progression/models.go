package progression

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core/catalog"
)

// LevelProgress tracks a student's standing within one curriculum tier of a
// category.
type LevelProgress struct {
	Level            catalog.Level `json:"level"`
	TotalModules     int           `json:"total_modules"`
	CompletedModules int           `json:"completed_modules"`
	IsUnlocked       bool          `json:"is_unlocked"`
	IsCompleted      bool          `json:"is_completed"`
	UnlockedAt       null.Time     `json:"unlocked_at"`
	CompletedAt      null.Time     `json:"completed_at"`
}

// StudentProgression is the per-(student, category) unlock state.
// Beginner is always unlocked; a level completes when all its published
// modules are completed, which unlocks the next tier. Unlocks are monotonic.
type StudentProgression struct {
	ID           int             `json:"id"`
	StudentID    int             `json:"student_id"`
	CategoryID   int             `json:"category_id"`
	CurrentLevel catalog.Level   `json:"current_level"`
	Levels       []LevelProgress `json:"levels"`
	Version      int             `json:"-"`
	CreatedAt    time.Time       `json:"created_at"` // UTC
	UpdatedAt    time.Time       `json:"updated_at"` // UTC
}

func (p *StudentProgression) levelProgress(level catalog.Level) *LevelProgress {
	for i := range p.Levels {
		if p.Levels[i].Level == level {
			return &p.Levels[i]
		}
	}
	return nil
}

// IsLevelUnlocked reports the unlock flag; beginner is always unlocked.
func (p *StudentProgression) IsLevelUnlocked(level catalog.Level) bool {
	if level == catalog.LevelBeginner {
		return true
	}
	if lp := p.levelProgress(level); lp != nil {
		return lp.IsUnlocked
	}
	return false
}

// LevelAccessStatus is a read-only projection of one level's state, with a
// human-readable reason when the level is still locked.
type LevelAccessStatus struct {
	Level            catalog.Level `json:"level"`
	IsUnlocked       bool          `json:"is_unlocked"`
	IsCompleted      bool          `json:"is_completed"`
	TotalModules     int           `json:"total_modules"`
	CompletedModules int           `json:"completed_modules"`
	LockedReason     string        `json:"locked_reason,omitempty"`
}

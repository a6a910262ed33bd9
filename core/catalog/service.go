package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

var (
	// errors
	ErrModuleNotFound   = errors.New("module not found")
	ErrCategoryNotFound = errors.New("category not found")
)

type (
	Repository interface {
		CreateCategory(ctx context.Context, cat Category) (Category, error)
		GetCategoryByID(ctx context.Context, id int) (Category, error)
		QueryAllCategories(ctx context.Context) ([]Category, error)

		CreateModule(ctx context.Context, mod Module) (Module, error)
		GetModuleByID(ctx context.Context, id int) (Module, error)
		UpdateModule(ctx context.Context, mod Module) (Module, error)
		// QueryModulesByCategory filters on statuses when provided.
		QueryModulesByCategory(ctx context.Context, categoryID int, statuses ...ModuleStatus) ([]Module, error)
		CountPublishedByLevel(ctx context.Context, categoryID int) (map[Level]int, error)
		IncrementEnrollmentCount(ctx context.Context, moduleID int) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CreateCategory(ctx context.Context, cat Category) (Category, error) {
	now := time.Now().UTC()
	cat.CreatedAt = now
	cat.UpdatedAt = now
	if cat.Access == "" {
		cat.Access = AccessPaid
	}
	return svc.repo.CreateCategory(ctx, cat)
}

func (svc *Service) GetCategory(ctx context.Context, id int) (Category, error) {
	return svc.repo.GetCategoryByID(ctx, id)
}

func (svc *Service) QueryCategories(ctx context.Context) ([]Category, error) {
	return svc.repo.QueryAllCategories(ctx)
}

// CreateModule creates a draft authored by the given instructor.
func (svc *Service) CreateModule(ctx context.Context, instructor user.User, nm NewModule) (Module, error) {
	if _, err := svc.repo.GetCategoryByID(ctx, nm.CategoryID); err != nil {
		return Module{}, err
	}
	now := time.Now().UTC()
	mod := Module{
		Title:         nm.Title,
		Description:   nm.Description,
		CategoryID:    nm.CategoryID,
		Level:         nm.Level,
		Lessons:       nm.Lessons,
		Final:         nm.Final,
		Status:        StatusDraft,
		InstructorIDs: []int{instructor.ID},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateModule(ctx, mod)
}

func (svc *Service) GetModule(ctx context.Context, id int) (Module, error) {
	return svc.repo.GetModuleByID(ctx, id)
}

func (svc *Service) QueryPublished(ctx context.Context, categoryID int) ([]Module, error) {
	return svc.repo.QueryModulesByCategory(ctx, categoryID, StatusPublished)
}

// Submit moves a draft (or rejected) module into the approval queue.
// A module must have at least one lesson and a final assessment with at
// least one question before it can be submitted.
func (svc *Service) Submit(ctx context.Context, actor user.User, moduleID int) (Module, error) {
	mod, err := svc.repo.GetModuleByID(ctx, moduleID)
	if err != nil {
		return Module{}, err
	}
	if !mod.HasInstructor(actor.ID) && !actor.IsAdmin() {
		return Module{}, core.NewForbiddenError("only an assigned instructor can submit this module")
	}
	if len(mod.Lessons) == 0 || mod.Final == nil || len(mod.Final.Questions) == 0 {
		return Module{}, core.NewInvalidStateError("module needs at least one lesson and a final assessment with at least one question")
	}
	return svc.transition(ctx, mod, StatusSubmitted)
}

func (svc *Service) Approve(ctx context.Context, moduleID int) (Module, error) {
	return svc.adminTransition(ctx, moduleID, StatusApproved)
}

func (svc *Service) Reject(ctx context.Context, moduleID int) (Module, error) {
	return svc.adminTransition(ctx, moduleID, StatusRejected)
}

func (svc *Service) Publish(ctx context.Context, moduleID int) (Module, error) {
	return svc.adminTransition(ctx, moduleID, StatusPublished)
}

func (svc *Service) Archive(ctx context.Context, moduleID int) (Module, error) {
	return svc.adminTransition(ctx, moduleID, StatusArchived)
}

func (svc *Service) adminTransition(ctx context.Context, moduleID int, next ModuleStatus) (Module, error) {
	mod, err := svc.repo.GetModuleByID(ctx, moduleID)
	if err != nil {
		return Module{}, err
	}
	return svc.transition(ctx, mod, next)
}

func (svc *Service) transition(ctx context.Context, mod Module, next ModuleStatus) (Module, error) {
	if !mod.Status.CanTransitionTo(next) {
		return Module{}, core.NewInvalidStateError(
			fmt.Sprintf("module cannot move from %q to %q", mod.Status, next))
	}
	mod.Status = next
	mod.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateModule(ctx, mod)
}

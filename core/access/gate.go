// Package access decides whether a student may enroll in a module.
// The decision is pure over current state: category policy (payment,
// fellows cohort, role exemptions) then level-unlock gating.
package access

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/progression"
	"github.com/trezcool/elimu/core/user"
)

type DecisionKind uint8

const (
	Allowed DecisionKind = iota + 1
	PaymentRequired
	LevelLocked
	Denied
)

// Decision is the outcome of a CanEnroll check. Only the fields relevant to
// its Kind are set.
type Decision struct {
	Kind          DecisionKind
	Price         int64 // cents; PaymentRequired
	CategoryID    int   // PaymentRequired
	RequiredLevel catalog.Level
	Reason        string // Denied, LevelLocked
}

func allowed() Decision        { return Decision{Kind: Allowed} }
func denied(r string) Decision { return Decision{Kind: Denied, Reason: r} }

type Gate struct {
	catRepo  catalog.Repository
	payments core.PaymentChecker
	prog     *progression.Service
}

func NewGate(catRepo catalog.Repository, payments core.PaymentChecker, prog *progression.Service) *Gate {
	return &Gate{catRepo: catRepo, payments: payments, prog: prog}
}

// CanEnroll checks category access then level unlock. No side effects.
func (g *Gate) CanEnroll(ctx context.Context, usr user.User, mod catalog.Module) (Decision, error) {
	if usr.IsAdmin() {
		return allowed(), nil
	}
	if !mod.IsPublished() {
		return denied("module is not published"), nil
	}

	cat, err := g.catRepo.GetCategoryByID(ctx, mod.CategoryID)
	if err != nil {
		return Decision{}, errors.Wrap(err, "loading category")
	}

	if d := g.checkCategory(usr, mod, cat); d.Kind != Allowed {
		return d, nil
	}
	return g.checkLevel(ctx, usr, mod)
}

func (g *Gate) checkCategory(usr user.User, mod catalog.Module, cat catalog.Category) Decision {
	// instructors assigned to the module are exempt from payment
	if mod.HasInstructor(usr.ID) {
		return allowed()
	}

	switch cat.Access {
	case catalog.AccessFree:
		// free categories are reserved for the assigned cohort
		if cat.IsFellow(usr.ID) {
			return allowed()
		}
		return denied("this category is reserved for assigned fellows")

	case catalog.AccessPaid, catalog.AccessRestricted:
		if cat.IsFellow(usr.ID) {
			return allowed()
		}
		ok, err := g.payments.HasAccess(usr.ID, cat.ID)
		if err == nil && ok {
			return allowed()
		}
		price, perr := g.payments.Price(cat.ID)
		if perr != nil {
			price = cat.Price
		}
		return Decision{Kind: PaymentRequired, Price: price, CategoryID: cat.ID}

	default:
		return denied("unknown category access policy")
	}
}

func (g *Gate) checkLevel(ctx context.Context, usr user.User, mod catalog.Module) (Decision, error) {
	if mod.Level == catalog.LevelBeginner {
		return allowed(), nil
	}
	ok, err := g.prog.CanAccessLevel(ctx, usr.ID, mod.CategoryID, mod.Level)
	if err != nil {
		return Decision{}, errors.Wrap(err, "checking level access")
	}
	if !ok {
		prev, _ := mod.Level.Previous()
		return Decision{
			Kind:          LevelLocked,
			RequiredLevel: mod.Level,
			Reason:        "complete all " + string(prev) + " modules first",
		}, nil
	}
	return allowed(), nil
}

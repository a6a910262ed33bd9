package access_test

import (
	"context"
	"testing"

	"github.com/trezcool/elimu/core/access"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/progression"
	"github.com/trezcool/elimu/core/user"
	inmemdb "github.com/trezcool/elimu/storage/database/inmem"
	testutil "github.com/trezcool/elimu/tests"
)

func TestGate_CanEnroll(t *testing.T) {
	ctx := context.Background()

	db := inmemdb.NewDB()
	catRepo := inmemdb.NewCatalogRepository(db)
	usrRepo := inmemdb.NewUserRepository(db)
	payments := inmemdb.NewPaymentChecker(db)
	progSvc := progression.NewService(inmemdb.NewProgressionRepository(db), catRepo, inmemdb.NewEnrollmentRepository(db))
	gate := access.NewGate(catRepo, payments, progSvc)

	fellow := testutil.CreateUser(t, usrRepo, "Fellow", "fellow", "fellow@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, usrRepo, "Out Sider", "outsider", "out@test.cd", "", []string{user.RoleStudent}, true)
	buyer := testutil.CreateUser(t, usrRepo, "Buyer", "buyer", "buyer@test.cd", "", []string{user.RoleStudent}, true)
	instructor := testutil.CreateUser(t, usrRepo, "Prof", "prof", "prof@test.cd", "", []string{user.RoleInstructor}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	freeCat := testutil.CreateCategory(t, catRepo, "Free Studies", catalog.AccessFree, 0, fellow.ID)
	paidCat := testutil.CreateCategory(t, catRepo, "Paid Studies", catalog.AccessPaid, 5000, fellow.ID)
	restrictedCat := testutil.CreateCategory(t, catRepo, "Restricted Studies", catalog.AccessRestricted, 9000)

	freeMod := testutil.CreateModule(t, catRepo, "Free Basics", freeCat.ID, catalog.LevelBeginner, catalog.StatusPublished,
		testutil.SimpleLessons(1), testutil.AutoGradedFinal(70, 0), instructor.ID)
	draftMod := testutil.CreateModule(t, catRepo, "WIP", freeCat.ID, catalog.LevelBeginner, catalog.StatusDraft,
		testutil.SimpleLessons(1), testutil.AutoGradedFinal(70, 0))
	paidMod := testutil.CreateModule(t, catRepo, "Paid Basics", paidCat.ID, catalog.LevelBeginner, catalog.StatusPublished,
		testutil.SimpleLessons(1), testutil.AutoGradedFinal(70, 0), instructor.ID)
	restrictedMod := testutil.CreateModule(t, catRepo, "Restricted Basics", restrictedCat.ID, catalog.LevelBeginner, catalog.StatusPublished,
		testutil.SimpleLessons(1), testutil.AutoGradedFinal(70, 0))
	lockedMod := testutil.CreateModule(t, catRepo, "Free Patterns", freeCat.ID, catalog.LevelIntermediate, catalog.StatusPublished,
		testutil.SimpleLessons(1), testutil.AutoGradedFinal(70, 0))

	payments.RecordPurchase(buyer.ID, paidCat.ID, 5000)

	tests := []struct {
		name     string
		usr      user.User
		mod      catalog.Module
		wantKind access.DecisionKind
	}{
		{name: "admins bypass everything", usr: admin, mod: draftMod, wantKind: access.Allowed},
		{name: "unpublished modules are invisible", usr: fellow, mod: draftMod, wantKind: access.Denied},
		{name: "free: fellows allowed", usr: fellow, mod: freeMod, wantKind: access.Allowed},
		{name: "free: outsiders denied", usr: outsider, mod: freeMod, wantKind: access.Denied},
		{name: "paid: fellows exempt", usr: fellow, mod: paidMod, wantKind: access.Allowed},
		{name: "paid: purchase unlocks", usr: buyer, mod: paidMod, wantKind: access.Allowed},
		{name: "paid: others must pay", usr: outsider, mod: paidMod, wantKind: access.PaymentRequired},
		{name: "restricted: others must pay", usr: outsider, mod: restrictedMod, wantKind: access.PaymentRequired},
		{name: "assigned instructors are exempt", usr: instructor, mod: paidMod, wantKind: access.Allowed},
		{name: "locked level", usr: fellow, mod: lockedMod, wantKind: access.LevelLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := gate.CanEnroll(ctx, tt.usr, tt.mod)
			if err != nil {
				t.Fatalf("CanEnroll() error: %v", err)
			}
			if d.Kind != tt.wantKind {
				t.Errorf("CanEnroll() kind = %v; want %v (reason %q)", d.Kind, tt.wantKind, d.Reason)
			}
			switch tt.wantKind {
			case access.PaymentRequired:
				if d.CategoryID != tt.mod.CategoryID || d.Price <= 0 {
					t.Errorf("CanEnroll() = %+v; want price and category set", d)
				}
			case access.LevelLocked:
				if d.RequiredLevel != tt.mod.Level || d.Reason == "" {
					t.Errorf("CanEnroll() = %+v; want required level and reason set", d)
				}
			case access.Denied:
				if d.Reason == "" {
					t.Errorf("CanEnroll() = %+v; want a denial reason", d)
				}
			}
		})
	}
}

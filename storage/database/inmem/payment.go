package inmemdb

import (
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
)

type PaymentChecker struct {
	db *DB
}

func NewPaymentChecker(db *DB) *PaymentChecker {
	return &PaymentChecker{db: db}
}

var _ core.PaymentChecker = (*PaymentChecker)(nil)

func (pc *PaymentChecker) HasAccess(studentID, categoryID int) (bool, error) {
	pc.db.mutex.RLock()
	defer pc.db.mutex.RUnlock()

	for _, p := range pc.db.purchases {
		if p.studentID == studentID && p.categoryID == categoryID {
			return true, nil
		}
	}
	return false, nil
}

func (pc *PaymentChecker) Price(categoryID int) (int64, error) {
	pc.db.mutex.RLock()
	defer pc.db.mutex.RUnlock()

	cat, ok := pc.db.categories[categoryID]
	if !ok {
		return 0, catalog.ErrCategoryNotFound
	}
	return cat.Price, nil
}

// RecordPurchase marks a category as paid for by a student.
func (pc *PaymentChecker) RecordPurchase(studentID, categoryID int, amount int64) {
	pc.db.mutex.Lock()
	defer pc.db.mutex.Unlock()

	for _, p := range pc.db.purchases {
		if p.studentID == studentID && p.categoryID == categoryID {
			return
		}
	}
	pc.db.purchases = append(pc.db.purchases, purchase{studentID: studentID, categoryID: categoryID, amount: amount})
}

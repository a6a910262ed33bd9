package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
)

// PaymentRepository backs core.PaymentChecker with the category_purchase
// ledger. Recording a purchase is idempotent per (student, category).
type PaymentRepository struct {
	db *sqlx.DB
}

var _ core.PaymentChecker = (*PaymentRepository)(nil)

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (repo *PaymentRepository) HasAccess(studentID, categoryID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM category_purchase WHERE student_id = $1 AND category_id = $2)`

	var exists bool
	if err := repo.db.QueryRowxContext(context.Background(), query, studentID, categoryID).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "checking category purchase")
	}
	return exists, nil
}

func (repo *PaymentRepository) Price(categoryID int) (int64, error) {
	var price int64
	err := repo.db.QueryRowxContext(context.Background(), `SELECT price FROM category WHERE id = $1`, categoryID).Scan(&price)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return 0, catalog.ErrCategoryNotFound
		}
		return 0, errors.Wrap(err, "getting category price")
	}
	return price, nil
}

// RecordPurchase marks a category as paid for by a student.
func (repo *PaymentRepository) RecordPurchase(ctx context.Context, studentID, categoryID int, amount int64) error {
	const query = `
	INSERT INTO category_purchase (student_id, category_id, amount, created_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (student_id, category_id) DO NOTHING`

	_, err := repo.db.ExecContext(ctx, query, studentID, categoryID, amount, time.Now().UTC())
	return errors.Wrap(err, "recording category purchase")
}

package postgres

import (
	"context"
	"database/sql"

	"billing-service/internal/models"
	"billing-service/internal/store"

	"github.com/jmoiron/sqlx"
)

// GetDiscountByCode retrieves a discount by its case-normalized code.
func (s *Store) GetDiscountByCode(ctx context.Context, code string) (*models.Discount, error) {
	var discount models.Discount
	err := s.db.GetContext(ctx, &discount,
		"SELECT * FROM discounts WHERE upper(code) = upper($1)", code)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

// CountCustomerRedemptions counts non-cancelled orders carrying the code
// for one customer.
func (s *Store) CountCustomerRedemptions(ctx context.Context, code string, customerID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT count(*) FROM orders
		WHERE customer_id = $1
		  AND upper(discount_code) = upper($2)
		  AND status <> $3`,
		customerID, code, models.OrderStatusCancelled)
	return count, err
}

// redeemDiscount advances the usage counter only while it is still under
// the limit. A zero-row result means a concurrent checkout consumed the
// last use after the pre-check passed.
func redeemDiscount(ctx context.Context, tx *sqlx.Tx, discountID int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE discounts
		SET current_uses = current_uses + 1
		WHERE id = $1
		  AND (max_uses_total IS NULL OR current_uses < max_uses_total)`,
		discountID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrDiscountExhausted
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"billing-service/internal/models"
	"billing-service/internal/store"
)

// NextOrderNumber allocates the next order number from the global sequence.
// nextval never rolls back, so numbers consumed by failed checkouts become
// gaps rather than being reused.
func (s *Store) NextOrderNumber(ctx context.Context) (string, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT nextval('order_number_seq')"); err != nil {
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}
	return fmt.Sprintf("ORD%06d", n), nil
}

const insertOrderQuery = `
	INSERT INTO orders (
		order_number, customer_id, status, payment_status,
		billing_first_name, billing_last_name, billing_email, billing_phone,
		billing_street, billing_city, billing_zip, billing_country,
		billing_company_name, billing_ico, billing_dic, billing_ic_dph,
		shipping_first_name, shipping_last_name, shipping_street,
		shipping_city, shipping_zip, shipping_country, shipping_phone,
		shipping_method_id, shipping_method_name,
		payment_method_id, payment_method_name,
		subtotal, vat_total, shipping_cost, discount_amount, total, currency,
		discount_id, discount_code, customer_note
	) VALUES (
		:order_number, :customer_id, :status, :payment_status,
		:billing_first_name, :billing_last_name, :billing_email, :billing_phone,
		:billing_street, :billing_city, :billing_zip, :billing_country,
		:billing_company_name, :billing_ico, :billing_dic, :billing_ic_dph,
		:shipping_first_name, :shipping_last_name, :shipping_street,
		:shipping_city, :shipping_zip, :shipping_country, :shipping_phone,
		:shipping_method_id, :shipping_method_name,
		:payment_method_id, :payment_method_name,
		:subtotal, :vat_total, :shipping_cost, :discount_amount, :total, :currency,
		:discount_id, :discount_code, :customer_note
	)
	RETURNING id, created_at`

const insertOrderItemQuery = `
	INSERT INTO order_items (
		order_id, product_id, product_sku, product_name, quantity,
		price_without_vat, price_with_vat, vat_rate, vat_mode, line_total
	) VALUES (
		:order_id, :product_id, :product_sku, :product_name, :quantity,
		:price_without_vat, :price_with_vat, :vat_rate, :vat_mode, :line_total
	)
	RETURNING id`

// CreateOrder persists the order and its items in one transaction, together
// with the conditional stock decrement and discount redemption. Either
// everything commits or nothing does.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range items {
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock_quantity = CASE WHEN track_stock THEN stock_quantity - $1 ELSE stock_quantity END
			WHERE id = $2 AND (NOT track_stock OR stock_quantity >= $1)`,
			items[i].Quantity, items[i].ProductID)
		if err != nil {
			return fmt.Errorf("failed to reserve stock: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			var exists bool
			if err := tx.GetContext(ctx, &exists,
				"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", items[i].ProductID); err != nil {
				return err
			}
			if !exists {
				return store.ErrNotFound
			}
			return store.ErrInsufficientStock
		}
	}

	if order.DiscountID != nil {
		if err := redeemDiscount(ctx, tx, *order.DiscountID); err != nil {
			return err
		}
	}

	stmt, err := tx.PrepareNamedContext(ctx, insertOrderQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if err := stmt.QueryRowxContext(ctx, order).Scan(&order.ID, &order.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemStmt, err := tx.PrepareNamedContext(ctx, insertOrderItemQuery)
	if err != nil {
		return err
	}
	defer itemStmt.Close()

	for i := range items {
		items[i].OrderID = order.ID
		if err := itemStmt.QueryRowxContext(ctx, items[i]).Scan(&items[i].ID); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID.
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves all items for an order in insertion order.
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// FindOrderByVariableSymbol resolves an order by the digit projection of
// its order number.
func (s *Store) FindOrderByVariableSymbol(ctx context.Context, vs string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		`SELECT * FROM orders WHERE regexp_replace(order_number, '[^0-9]', '', 'g') = $1`, vs)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus moves the order from one status to another with a
// compare-and-set; two staff members racing on the same order cannot both
// win.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, from, to string, shippedAt, deliveredAt *time.Time, trackingNumber *string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders
		SET status = $3,
		    shipped_at = COALESCE($4, shipped_at),
		    delivered_at = COALESCE($5, delivered_at),
		    tracking_number = COALESCE($6, tracking_number)
		WHERE id = $1 AND status = $2
		RETURNING *`,
		orderID, from, to, shippedAt, deliveredAt, trackingNumber)
	if err == sql.ErrNoRows {
		return nil, s.orderConflictOrMissing(ctx, orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdatePaymentStatus toggles the payment status with a compare-and-set.
func (s *Store) UpdatePaymentStatus(ctx context.Context, orderID int64, from, to string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders
		SET payment_status = $3
		WHERE id = $1 AND payment_status = $2
		RETURNING *`,
		orderID, from, to)
	if err == sql.ErrNoRows {
		return nil, s.orderConflictOrMissing(ctx, orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) orderConflictOrMissing(ctx context.Context, orderID int64) error {
	var exists bool
	if err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", orderID); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

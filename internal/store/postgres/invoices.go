package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"billing-service/internal/models"
	"billing-service/internal/store"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// NextInvoiceNumber allocates the next number from the single global
// invoice sequence. Never per-year, never reset; gaps from failed
// generations are acceptable, reuse is not.
func (s *Store) NextInvoiceNumber(ctx context.Context) (string, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT nextval('invoice_number_seq')"); err != nil {
		return "", fmt.Errorf("failed to allocate invoice number: %w", err)
	}
	return fmt.Sprintf("FV%06d", n), nil
}

const insertInvoiceQuery = `
	INSERT INTO invoices (
		invoice_number, order_id, customer_id, invoice_type, status,
		issue_date, due_date, delivery_date,
		seller_name, seller_ico, seller_dic, seller_ic_dph, seller_street,
		seller_city, seller_zip, seller_country, seller_bank_account, seller_bank_name,
		buyer_name, buyer_ico, buyer_dic, buyer_ic_dph,
		buyer_street, buyer_city, buyer_zip, buyer_country,
		subtotal, vat_total, shipping_cost, discount_amount, total, currency,
		payment_method, variable_symbol, note
	) VALUES (
		:invoice_number, :order_id, :customer_id, :invoice_type, :status,
		:issue_date, :due_date, :delivery_date,
		:seller_name, :seller_ico, :seller_dic, :seller_ic_dph, :seller_street,
		:seller_city, :seller_zip, :seller_country, :seller_bank_account, :seller_bank_name,
		:buyer_name, :buyer_ico, :buyer_dic, :buyer_ic_dph,
		:buyer_street, :buyer_city, :buyer_zip, :buyer_country,
		:subtotal, :vat_total, :shipping_cost, :discount_amount, :total, :currency,
		:payment_method, :variable_symbol, :note
	)
	RETURNING id, created_at`

const insertInvoiceItemQuery = `
	INSERT INTO invoice_items (
		invoice_id, product_name, product_sku, quantity, unit,
		price_without_vat, price_with_vat, vat_rate, vat_mode, line_total
	) VALUES (
		:invoice_id, :product_name, :product_sku, :quantity, :unit,
		:price_without_vat, :price_with_vat, :vat_rate, :vat_mode, :line_total
	)
	RETURNING id`

// CreateInvoice persists the invoice with its items and links the order's
// invoice_id, all in one transaction. The unique index on invoices.order_id
// closes the check-then-act race: the loser of two concurrent generations
// gets ErrInvoiceExists, not a second row.
func (s *Store) CreateInvoice(ctx context.Context, invoice *models.Invoice, items []models.InvoiceItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, insertInvoiceQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if err := stmt.QueryRowxContext(ctx, invoice).Scan(&invoice.ID, &invoice.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return store.ErrInvoiceExists
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	itemStmt, err := tx.PrepareNamedContext(ctx, insertInvoiceItemQuery)
	if err != nil {
		return err
	}
	defer itemStmt.Close()

	for i := range items {
		items[i].InvoiceID = invoice.ID
		if err := itemStmt.QueryRowxContext(ctx, items[i]).Scan(&items[i].ID); err != nil {
			return fmt.Errorf("failed to insert invoice item: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET invoice_id = $2 WHERE id = $1",
		invoice.OrderID, invoice.ID); err != nil {
		return fmt.Errorf("failed to link order invoice: %w", err)
	}

	return tx.Commit()
}

// GetInvoiceByID retrieves an invoice by ID.
func (s *Store) GetInvoiceByID(ctx context.Context, id int64) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.GetContext(ctx, &invoice, "SELECT * FROM invoices WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetInvoiceByOrderID retrieves the invoice linked to an order.
func (s *Store) GetInvoiceByOrderID(ctx context.Context, orderID int64) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.GetContext(ctx, &invoice, "SELECT * FROM invoices WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetInvoiceItems retrieves all items for an invoice in document order.
func (s *Store) GetInvoiceItems(ctx context.Context, invoiceID int64) ([]models.InvoiceItem, error) {
	var items []models.InvoiceItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM invoice_items WHERE invoice_id = $1 ORDER BY id", invoiceID)
	return items, err
}

// MarkInvoicePaid sets the invoice paid and couples the linked order's
// payment status in the same transaction.
func (s *Store) MarkInvoicePaid(ctx context.Context, invoiceID int64, paidAt time.Time) (*models.Invoice, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var invoice models.Invoice
	err = tx.GetContext(ctx, &invoice, `
		UPDATE invoices
		SET status = $2, paid_at = $3
		WHERE id = $1 AND status = $4
		RETURNING *`,
		invoiceID, models.InvoiceStatusPaid, paidAt, models.InvoiceStatusIssued)
	if err == sql.ErrNoRows {
		return nil, s.invoiceConflictOrMissing(ctx, invoiceID)
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET payment_status = $2 WHERE id = $1",
		invoice.OrderID, models.PaymentStatusPaid); err != nil {
		return nil, fmt.Errorf("failed to update order payment status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// CancelInvoice sets the invoice cancelled and records the reason note.
func (s *Store) CancelInvoice(ctx context.Context, invoiceID int64, note string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.GetContext(ctx, &invoice, `
		UPDATE invoices
		SET status = $2, note = $3
		WHERE id = $1 AND status = $4
		RETURNING *`,
		invoiceID, models.InvoiceStatusCancelled, note, models.InvoiceStatusIssued)
	if err == sql.ErrNoRows {
		return nil, s.invoiceConflictOrMissing(ctx, invoiceID)
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListPaidInvoices returns paid invoices issued inside [from, to].
func (s *Store) ListPaidInvoices(ctx context.Context, from, to time.Time) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := s.db.SelectContext(ctx, &invoices, `
		SELECT * FROM invoices
		WHERE status = $1 AND issue_date >= $2 AND issue_date <= $3
		ORDER BY invoice_number`,
		models.InvoiceStatusPaid, from, to)
	return invoices, err
}

func (s *Store) invoiceConflictOrMissing(ctx context.Context, invoiceID int64) error {
	var exists bool
	if err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM invoices WHERE id = $1)", invoiceID); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

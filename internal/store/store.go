// Package store defines the persistence contract for the checkout and
// invoicing pipeline. Implementations must provide the atomicity guarantees
// documented on each method; the services never compensate for partial
// writes.
package store

import (
	"context"
	"errors"
	"time"

	"billing-service/internal/models"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock aborts an order whose tracked line cannot be
	// covered by current stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDiscountExhausted is returned when the conditional redemption
	// update finds the usage counter already at its limit.
	ErrDiscountExhausted = errors.New("discount usage limit reached")
	// ErrInvoiceExists is returned when an invoice for the order already
	// exists; callers resolve it to the existing row, not an error.
	ErrInvoiceExists = errors.New("invoice already exists for order")
	// ErrConflict is returned when a compare-and-set status update loses a
	// race with a concurrent staff action.
	ErrConflict = errors.New("concurrent modification")
)

// Repository is the persistent store behind the order finalization and
// financial document pipeline.
type Repository interface {
	// Catalog lookups (read-only collaborator surface).
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error)
	GetShippingMethodByID(ctx context.Context, id int64) (*models.ShippingMethod, error)
	GetPaymentMethodByID(ctx context.Context, id int64) (*models.PaymentMethod, error)

	// Discounts. Code lookup is case-insensitive. CountCustomerRedemptions
	// counts non-cancelled orders carrying the code for one customer.
	GetDiscountByCode(ctx context.Context, code string) (*models.Discount, error)
	CountCustomerRedemptions(ctx context.Context, code string, customerID int64) (int, error)

	// NextOrderNumber allocates the next order number. Allocation is its
	// own atomic step: a number consumed by a checkout that later fails is
	// a gap, never reused.
	NextOrderNumber(ctx context.Context) (string, error)

	// CreateOrder persists the order with its items as one atomic unit.
	// Inside the same unit it decrements stock for tracked products
	// (ErrInsufficientStock) and, when order.DiscountID is set, performs
	// the conditional usage increment (ErrDiscountExhausted). Any failure
	// leaves no partial state.
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error

	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	// FindOrderByVariableSymbol resolves an order by the digit projection
	// of its order number (bank payment reconciliation).
	FindOrderByVariableSymbol(ctx context.Context, vs string) (*models.Order, error)

	// UpdateOrderStatus is a compare-and-set on the current status; a
	// mismatch returns ErrConflict. Optional timestamps are stamped in the
	// same write.
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to string, shippedAt, deliveredAt *time.Time, trackingNumber *string) (*models.Order, error)
	// UpdatePaymentStatus is a compare-and-set on the payment status.
	UpdatePaymentStatus(ctx context.Context, orderID int64, from, to string) (*models.Order, error)

	// NextInvoiceNumber allocates from the single global invoice sequence;
	// same gap semantics as order numbers.
	NextInvoiceNumber(ctx context.Context) (string, error)

	// CreateInvoice persists the invoice with its items and sets the
	// order's invoice_id, all in one atomic unit. The storage layer
	// enforces one invoice per order; a duplicate is ErrInvoiceExists
	// regardless of how the race interleaved.
	CreateInvoice(ctx context.Context, invoice *models.Invoice, items []models.InvoiceItem) error

	GetInvoiceByID(ctx context.Context, id int64) (*models.Invoice, error)
	GetInvoiceByOrderID(ctx context.Context, orderID int64) (*models.Invoice, error)
	GetInvoiceItems(ctx context.Context, invoiceID int64) ([]models.InvoiceItem, error)

	// MarkInvoicePaid sets the invoice paid and the linked order's payment
	// status to paid in one atomic unit (the two must never diverge).
	// Only issued invoices transition; anything else is ErrConflict.
	MarkInvoicePaid(ctx context.Context, invoiceID int64, paidAt time.Time) (*models.Invoice, error)
	// CancelInvoice sets the invoice cancelled and records the note. Only
	// issued invoices transition.
	CancelInvoice(ctx context.Context, invoiceID int64, note string) (*models.Invoice, error)

	// ListPaidInvoices returns paid invoices with an issue date inside
	// [from, to], ordered by invoice number.
	ListPaidInvoices(ctx context.Context, from, to time.Time) ([]models.Invoice, error)
}

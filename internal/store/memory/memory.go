// Package memory is an in-memory store.Repository used by unit tests and
// local development. A single mutex stands in for the database's
// transactional guarantees, so the conditional-update and atomicity
// semantics match the Postgres implementation.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"billing-service/internal/models"
	"billing-service/internal/store"
)

type Store struct {
	mu sync.Mutex

	products        map[int64]models.Product
	shippingMethods map[int64]models.ShippingMethod
	paymentMethods  map[int64]models.PaymentMethod
	discounts       map[int64]*models.Discount

	ordersByID      map[int64]*models.Order
	orderItems      map[int64][]models.OrderItem
	invoicesByID    map[int64]*models.Invoice
	invoicesByOrder map[int64]int64
	invoiceItems    map[int64][]models.InvoiceItem

	nextID           int64
	orderNumberSeq   int64
	invoiceNumberSeq int64
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		products:        make(map[int64]models.Product),
		shippingMethods: make(map[int64]models.ShippingMethod),
		paymentMethods:  make(map[int64]models.PaymentMethod),
		discounts:       make(map[int64]*models.Discount),
		ordersByID:      make(map[int64]*models.Order),
		orderItems:      make(map[int64][]models.OrderItem),
		invoicesByID:    make(map[int64]*models.Invoice),
		invoicesByOrder: make(map[int64]int64),
		invoiceItems:    make(map[int64][]models.InvoiceItem),
	}
}

func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

// AddProduct seeds a catalog product, assigning an ID when missing.
func (s *Store) AddProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.allocID()
	}
	s.products[p.ID] = p
	return p
}

// AddShippingMethod seeds a shipping method.
func (s *Store) AddShippingMethod(m models.ShippingMethod) models.ShippingMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.allocID()
	}
	s.shippingMethods[m.ID] = m
	return m
}

// AddPaymentMethod seeds a payment method.
func (s *Store) AddPaymentMethod(m models.PaymentMethod) models.PaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.allocID()
	}
	s.paymentMethods[m.ID] = m
	return m
}

// AddDiscount seeds a discount.
func (s *Store) AddDiscount(d models.Discount) models.Discount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.allocID()
	}
	copied := d
	s.discounts[d.ID] = &copied
	return d
}

func (s *Store) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make(map[int64]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) GetShippingMethodByID(_ context.Context, id int64) (*models.ShippingMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.shippingMethods[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) GetPaymentMethodByID(_ context.Context, id int64) (*models.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.paymentMethods[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) GetDiscountByCode(_ context.Context, code string) (*models.Discount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.discounts {
		if strings.EqualFold(d.Code, code) {
			copied := *d
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CountCustomerRedemptions(_ context.Context, code string, customerID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, o := range s.ordersByID {
		if o.CustomerID == nil || *o.CustomerID != customerID {
			continue
		}
		if o.DiscountCode == nil || !strings.EqualFold(*o.DiscountCode, code) {
			continue
		}
		if o.Status == models.OrderStatusCancelled {
			continue
		}
		count++
	}
	return count, nil
}

func (s *Store) NextOrderNumber(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderNumberSeq++
	return fmt.Sprintf("ORD%06d", s.orderNumberSeq), nil
}

func (s *Store) CreateOrder(_ context.Context, order *models.Order, items []models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before mutating so a failure leaves no partial
	// state, mirroring the database transaction.
	for _, item := range items {
		p, ok := s.products[item.ProductID]
		if !ok {
			return store.ErrNotFound
		}
		if p.TrackStock && p.StockQuantity < item.Quantity {
			return store.ErrInsufficientStock
		}
	}

	var discount *models.Discount
	if order.DiscountID != nil {
		d, ok := s.discounts[*order.DiscountID]
		if !ok {
			return store.ErrNotFound
		}
		if d.MaxUsesTotal != nil && d.CurrentUses >= *d.MaxUsesTotal {
			return store.ErrDiscountExhausted
		}
		discount = d
	}

	for _, item := range items {
		p := s.products[item.ProductID]
		if p.TrackStock {
			p.StockQuantity -= item.Quantity
			s.products[item.ProductID] = p
		}
	}
	if discount != nil {
		discount.CurrentUses++
	}

	order.ID = s.allocID()
	order.CreatedAt = time.Now().UTC()
	copied := *order
	s.ordersByID[order.ID] = &copied

	stored := make([]models.OrderItem, len(items))
	for i := range items {
		items[i].ID = s.allocID()
		items[i].OrderID = order.ID
		stored[i] = items[i]
	}
	s.orderItems[order.ID] = stored

	return nil
}

func (s *Store) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.ordersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (s *Store) GetOrderItems(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.orderItems[orderID]
	out := make([]models.OrderItem, len(items))
	copy(out, items)
	return out, nil
}

func digitsOf(str string) string {
	var b strings.Builder
	for _, r := range str {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Store) FindOrderByVariableSymbol(_ context.Context, vs string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.ordersByID {
		if digitsOf(o.OrderNumber) == vs {
			copied := *o
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateOrderStatus(_ context.Context, orderID int64, from, to string, shippedAt, deliveredAt *time.Time, trackingNumber *string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.ordersByID[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if o.Status != from {
		return nil, store.ErrConflict
	}
	o.Status = to
	if shippedAt != nil {
		o.ShippedAt = shippedAt
	}
	if deliveredAt != nil {
		o.DeliveredAt = deliveredAt
	}
	if trackingNumber != nil {
		o.TrackingNumber = trackingNumber
	}
	copied := *o
	return &copied, nil
}

func (s *Store) UpdatePaymentStatus(_ context.Context, orderID int64, from, to string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.ordersByID[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if o.PaymentStatus != from {
		return nil, store.ErrConflict
	}
	o.PaymentStatus = to
	copied := *o
	return &copied, nil
}

func (s *Store) NextInvoiceNumber(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoiceNumberSeq++
	return fmt.Sprintf("FV%06d", s.invoiceNumberSeq), nil
}

func (s *Store) CreateInvoice(_ context.Context, invoice *models.Invoice, items []models.InvoiceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoicesByOrder[invoice.OrderID]; exists {
		return store.ErrInvoiceExists
	}

	invoice.ID = s.allocID()
	invoice.CreatedAt = time.Now().UTC()
	copied := *invoice
	s.invoicesByID[invoice.ID] = &copied
	s.invoicesByOrder[invoice.OrderID] = invoice.ID

	stored := make([]models.InvoiceItem, len(items))
	for i := range items {
		items[i].ID = s.allocID()
		items[i].InvoiceID = invoice.ID
		stored[i] = items[i]
	}
	s.invoiceItems[invoice.ID] = stored

	if o, ok := s.ordersByID[invoice.OrderID]; ok {
		id := invoice.ID
		o.InvoiceID = &id
	}

	return nil
}

func (s *Store) GetInvoiceByID(_ context.Context, id int64) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoicesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (s *Store) GetInvoiceByOrderID(_ context.Context, orderID int64) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.invoicesByOrder[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *s.invoicesByID[id]
	return &copied, nil
}

func (s *Store) GetInvoiceItems(_ context.Context, invoiceID int64) ([]models.InvoiceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.invoiceItems[invoiceID]
	out := make([]models.InvoiceItem, len(items))
	copy(out, items)
	return out, nil
}

func (s *Store) MarkInvoicePaid(_ context.Context, invoiceID int64, paidAt time.Time) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoicesByID[invoiceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if inv.Status != models.InvoiceStatusIssued {
		return nil, store.ErrConflict
	}
	inv.Status = models.InvoiceStatusPaid
	inv.PaidAt = &paidAt

	if o, ok := s.ordersByID[inv.OrderID]; ok {
		o.PaymentStatus = models.PaymentStatusPaid
	}

	copied := *inv
	return &copied, nil
}

func (s *Store) CancelInvoice(_ context.Context, invoiceID int64, note string) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoicesByID[invoiceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if inv.Status != models.InvoiceStatusIssued {
		return nil, store.ErrConflict
	}
	inv.Status = models.InvoiceStatusCancelled
	inv.Note = &note
	copied := *inv
	return &copied, nil
}

func (s *Store) ListPaidInvoices(_ context.Context, from, to time.Time) ([]models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Invoice
	for _, inv := range s.invoicesByID {
		if inv.Status != models.InvoiceStatusPaid {
			continue
		}
		if inv.IssueDate.Before(from) || inv.IssueDate.After(to) {
			continue
		}
		result = append(result, *inv)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].InvoiceNumber < result[j].InvoiceNumber
	})
	return result, nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"billing-service/config"
	"billing-service/internal/export"
	"billing-service/internal/models"
	"billing-service/internal/money"
	"billing-service/internal/store"
	"billing-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// paymentTermDays is the fixed term between issue and due date.
const paymentTermDays = 14

// reverseChargeNote is stamped on invoices for EU VAT-registered buyers.
const reverseChargeNote = "VAT exempt, reverse charge applies (Article 196 of Council Directive 2006/112/EC)."

// DocumentRenderer turns a stored invoice into its downloadable document.
// Rendering must be deterministic: the same invoice always yields the same
// bytes.
type DocumentRenderer interface {
	Render(invoice *models.Invoice, items []models.InvoiceItem) ([]byte, error)
}

// DocumentCache stores rendered documents under an opaque key. Get returns
// (nil, nil) on a miss. A nil cache disables caching.
type DocumentCache interface {
	GetDocument(ctx context.Context, key string) ([]byte, error)
	SetDocument(ctx context.Context, key string, data []byte) error
}

// InvoiceService owns financial document generation and lifecycle.
type InvoiceService struct {
	repo      store.Repository
	renderer  DocumentRenderer
	cache     DocumentCache
	publisher EventPublisher
	business  config.BusinessConfig
	seller    config.SellerConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewInvoiceService creates a new invoice service.
func NewInvoiceService(repo store.Repository, renderer DocumentRenderer, cache DocumentCache, publisher EventPublisher, business config.BusinessConfig, seller config.SellerConfig) *InvoiceService {
	return &InvoiceService{
		repo:      repo,
		renderer:  renderer,
		cache:     cache,
		publisher: publisher,
		business:  business,
		seller:    seller,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// variableSymbol is the digit projection of an order number, used by banks
// to match incoming payments.
func variableSymbol(orderNumber string) string {
	var b strings.Builder
	for _, r := range orderNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Generate issues the invoice for an order, or returns the existing one.
// Generation is idempotent under any interleaving: the storage layer keeps
// at most one invoice per order, and a lost race resolves to the winner's
// document instead of an error. The bool reports whether this call issued
// a new invoice.
func (s *InvoiceService) Generate(ctx context.Context, orderID int64) (*models.Invoice, []models.InvoiceItem, bool, error) {
	ctx, span := util.StartSpan(ctx, "InvoiceService.Generate")
	defer span.End()

	if existing, err := s.repo.GetInvoiceByOrderID(ctx, orderID); err == nil {
		items, err := s.repo.GetInvoiceItems(ctx, existing.ID)
		if err != nil {
			return nil, nil, false, err
		}
		return existing, items, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, false, err
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, false, err
	}
	orderItems, err := s.repo.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, nil, false, err
	}

	number, err := s.repo.NextInvoiceNumber(ctx)
	if err != nil {
		return nil, nil, false, err
	}

	issueDate := s.now()
	deliveryDate := issueDate
	if order.ShippedAt != nil {
		deliveryDate = *order.ShippedAt
	}
	invoice := &models.Invoice{
		InvoiceNumber: number,
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Type:          models.InvoiceTypeInvoice,
		Status:        models.InvoiceStatusIssued,

		IssueDate:    issueDate,
		DueDate:      issueDate.AddDate(0, 0, paymentTermDays),
		DeliveryDate: deliveryDate,

		SellerName:        s.seller.Name,
		SellerICO:         s.seller.ICO,
		SellerDIC:         s.seller.DIC,
		SellerICDPH:       s.seller.ICDPH,
		SellerStreet:      s.seller.Street,
		SellerCity:        s.seller.City,
		SellerZIP:         s.seller.ZIP,
		SellerCountry:     s.seller.Country,
		SellerBankAccount: s.seller.BankAccount,
		SellerBankName:    s.seller.BankName,

		BuyerName:    order.BuyerName(),
		BuyerICO:     order.BillingICO,
		BuyerDIC:     order.BillingDIC,
		BuyerICDPH:   order.BillingICDPH,
		BuyerStreet:  order.BillingStreet,
		BuyerCity:    order.BillingCity,
		BuyerZIP:     order.BillingZIP,
		BuyerCountry: order.BillingCountry,

		Subtotal:       order.Subtotal,
		VATTotal:       order.VATTotal,
		ShippingCost:   order.ShippingCost,
		DiscountAmount: order.DiscountAmount,
		Total:          order.Total,
		Currency:       order.Currency,

		PaymentMethod:  order.PaymentMethodName,
		VariableSymbol: variableSymbol(order.OrderNumber),
	}
	if order.BillingICDPH != nil && *order.BillingICDPH != "" {
		note := reverseChargeNote
		invoice.Note = &note
	}

	items := make([]models.InvoiceItem, 0, len(orderItems)+1)
	for _, it := range orderItems {
		items = append(items, models.InvoiceItem{
			ProductName:     it.ProductName,
			ProductSKU:      it.ProductSKU,
			Quantity:        it.Quantity,
			Unit:            "pcs",
			PriceWithoutVAT: it.PriceWithoutVAT,
			PriceWithVAT:    it.PriceWithVAT,
			VATRate:         it.VATRate,
			VATMode:         it.VATMode,
			LineTotal:       it.LineTotal,
		})
	}
	if order.ShippingCost.IsPositive() {
		// The shipping line carries the shipping method's own VAT rate.
		// The method may have been retired since checkout; fall back to
		// the default rate then.
		shippingVAT := s.business.DefaultVATRate
		if method, err := s.repo.GetShippingMethodByID(ctx, order.ShippingMethodID); err == nil {
			shippingVAT = method.VATRate
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, nil, false, err
		}
		items = append(items, models.InvoiceItem{
			ProductName:     order.ShippingMethodName,
			ProductSKU:      models.ShippingSKU,
			Quantity:        1,
			Unit:            "pcs",
			PriceWithoutVAT: money.Round(money.VATExclusive(order.ShippingCost, shippingVAT)),
			PriceWithVAT:    order.ShippingCost,
			VATRate:         shippingVAT,
			VATMode:         "standard",
			LineTotal:       order.ShippingCost,
		})
	}

	if err := s.repo.CreateInvoice(ctx, invoice, items); err != nil {
		if errors.Is(err, store.ErrInvoiceExists) {
			// Lost the race. The allocated number stays a gap; serve the
			// winner's invoice.
			winner, err := s.repo.GetInvoiceByOrderID(ctx, orderID)
			if err != nil {
				return nil, nil, false, err
			}
			winnerItems, err := s.repo.GetInvoiceItems(ctx, winner.ID)
			if err != nil {
				return nil, nil, false, err
			}
			return winner, winnerItems, false, nil
		}
		return nil, nil, false, err
	}

	util.InvoicesIssuedTotal.Inc()
	s.logger.Info("Invoice issued",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", invoice.Total.StringFixed(2)))

	if s.publisher != nil {
		s.publisher.PublishInvoiceIssued(ctx, invoice)
	}
	return invoice, items, true, nil
}

// Get returns an invoice with its lines.
func (s *InvoiceService) Get(ctx context.Context, id int64) (*models.Invoice, []models.InvoiceItem, error) {
	invoice, err := s.repo.GetInvoiceByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.repo.GetInvoiceItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return invoice, items, nil
}

// MarkPaid settles an issued invoice and its order in one step. A nil
// paidAt means the payment is recorded as of now; staff pass an explicit
// timestamp when back-filling bank-statement dates.
func (s *InvoiceService) MarkPaid(ctx context.Context, invoiceID int64, paidAt *time.Time) (*models.Invoice, error) {
	ctx, span := util.StartSpan(ctx, "InvoiceService.MarkPaid")
	defer span.End()

	when := s.now()
	if paidAt != nil {
		when = *paidAt
	}
	invoice, err := s.repo.MarkInvoicePaid(ctx, invoiceID, when)
	if err != nil {
		return nil, err
	}

	util.InvoicesPaidTotal.Inc()
	s.logger.Info("Invoice paid", zap.String("invoice_number", invoice.InvoiceNumber))

	if s.publisher != nil {
		s.publisher.PublishInvoicePaid(ctx, invoice)
	}
	return invoice, nil
}

// Cancel voids an issued invoice, keeping it on record with the reason.
func (s *InvoiceService) Cancel(ctx context.Context, invoiceID int64, reason string) (*models.Invoice, error) {
	ctx, span := util.StartSpan(ctx, "InvoiceService.Cancel")
	defer span.End()

	invoice, err := s.repo.CancelInvoice(ctx, invoiceID, "Cancelled: "+reason)
	if err != nil {
		return nil, err
	}

	util.InvoicesCancelledTotal.Inc()
	s.logger.Info("Invoice cancelled", zap.String("invoice_number", invoice.InvoiceNumber))
	return invoice, nil
}

// Document returns the rendered invoice document, serving from the cache
// when possible. Invoices are immutable after issue, so cached bytes never
// go stale within the TTL.
func (s *InvoiceService) Document(ctx context.Context, invoiceID int64) (*models.Invoice, []byte, error) {
	ctx, span := util.StartSpan(ctx, "InvoiceService.Document")
	defer span.End()

	invoice, items, err := s.Get(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}

	// The status is part of the key so a cancellation invalidates the
	// cached rendering.
	cacheKey := invoice.InvoiceNumber + ":" + invoice.Status
	if s.cache != nil {
		if data, err := s.cache.GetDocument(ctx, cacheKey); err == nil && data != nil {
			util.InvoiceDocumentCacheHits.WithLabelValues("hit").Inc()
			return invoice, data, nil
		}
		util.InvoiceDocumentCacheHits.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	data, err := s.renderer.Render(invoice, items)
	if err != nil {
		return nil, nil, err
	}
	util.InvoiceRenderLatency.Observe(time.Since(start).Seconds())

	if s.cache != nil {
		if err := s.cache.SetDocument(ctx, cacheKey, data); err != nil {
			s.logger.Warn("Document cache write failed",
				zap.String("invoice_number", invoice.InvoiceNumber),
				zap.Error(err))
		}
	}
	return invoice, data, nil
}

// DocumentByOrder resolves the order's invoice and returns its rendered
// document.
func (s *InvoiceService) DocumentByOrder(ctx context.Context, orderID int64) (*models.Invoice, []byte, error) {
	invoice, err := s.repo.GetInvoiceByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return s.Document(ctx, invoice.ID)
}

// ExportPeriod produces the bookkeeping export of paid invoices whose issue
// date falls inside [from, to].
func (s *InvoiceService) ExportPeriod(ctx context.Context, from, to time.Time) ([]byte, error) {
	ctx, span := util.StartSpan(ctx, "InvoiceService.ExportPeriod")
	defer span.End()

	invoices, err := s.repo.ListPaidInvoices(ctx, from, to)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Export generated",
		zap.Int("invoices", len(invoices)),
		zap.String("total", periodTotal(invoices).StringFixed(2)))

	return export.Marshal(from, to, invoices)
}

// periodTotal sums invoice totals for logging and export checks.
func periodTotal(invoices []models.Invoice) decimal.Decimal {
	sum := decimal.Zero
	for _, inv := range invoices {
		sum = sum.Add(inv.Total)
	}
	return sum
}

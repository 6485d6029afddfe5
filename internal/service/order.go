package service

import (
	"context"
	"errors"
	"time"

	"billing-service/config"
	"billing-service/internal/models"
	"billing-service/internal/money"
	"billing-service/internal/store"
	"billing-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Checkout validation errors.
var (
	ErrEmptyCart          = errors.New("cart has no items")
	ErrInvalidQuantity    = errors.New("item quantity must be positive")
	ErrProductUnavailable = errors.New("product is not available")
	ErrShippingMethod     = errors.New("shipping method is not available")
	ErrPaymentMethod      = errors.New("payment method is not available")
	ErrInvalidStatus      = errors.New("unknown status value")
	ErrIllegalTransition  = errors.New("status transition not allowed")
)

// EventPublisher emits domain events after successful state changes. A nil
// publisher disables publishing (tests, offline tooling).
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order)
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous string)
	PublishInvoiceIssued(ctx context.Context, invoice *models.Invoice)
	PublishInvoicePaid(ctx context.Context, invoice *models.Invoice)
}

// Address is the client-supplied postal block snapshotted onto the order.
type Address struct {
	FirstName   string  `json:"first_name" binding:"required"`
	LastName    string  `json:"last_name" binding:"required"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Street      string  `json:"street" binding:"required"`
	City        string  `json:"city" binding:"required"`
	ZIP         string  `json:"zip" binding:"required"`
	Country     string  `json:"country" binding:"required"`
	CompanyName *string `json:"company_name,omitempty"`
	ICO         *string `json:"ico,omitempty"`
	DIC         *string `json:"dic,omitempty"`
	ICDPH       *string `json:"ic_dph,omitempty"`
}

// CreateOrderRequest is the checkout payload. Prices never travel in it;
// everything monetary is recomputed server-side from the catalog.
type CreateOrderRequest struct {
	CustomerID       *int64     `json:"customer_id,omitempty"`
	Items            []CartLine `json:"items" binding:"required"`
	Billing          Address    `json:"billing_address" binding:"required"`
	Shipping         *Address   `json:"shipping_address,omitempty"`
	ShippingMethodID int64      `json:"shipping_method_id" binding:"required"`
	PaymentMethodID  int64      `json:"payment_method_id" binding:"required"`
	DiscountCode     *string    `json:"discount_code,omitempty"`
	CustomerNote     *string    `json:"customer_note,omitempty"`
}

// OrderWithItems pairs an order with its line snapshots for API responses.
type OrderWithItems struct {
	Order *models.Order      `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// OrderService owns checkout finalization and order lifecycle transitions.
type OrderService struct {
	repo      store.Repository
	discounts *DiscountService
	publisher EventPublisher
	business  config.BusinessConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(repo store.Repository, discounts *DiscountService, publisher EventPublisher, business config.BusinessConfig) *OrderService {
	return &OrderService{
		repo:      repo,
		discounts: discounts,
		publisher: publisher,
		business:  business,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// CreateOrder finalizes a checkout: reprices the cart from the catalog,
// splits VAT, applies shipping and discount, allocates the order number and
// persists the order atomically. The returned order carries the exact
// amounts the invoice will later copy.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderWithItems, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if len(req.Items) == 0 {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, ErrEmptyCart
	}
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			util.OrdersFailedTotal.WithLabelValues("validation").Inc()
			return nil, ErrInvalidQuantity
		}
	}

	ids := make([]int64, len(req.Items))
	for i, line := range req.Items {
		ids[i] = line.ProductID
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("storage").Inc()
		return nil, err
	}

	// Reprice every line at full precision. Gross accumulates VAT-inclusive
	// totals, net the VAT-exclusive base; their difference is the item VAT.
	var (
		items         = make([]models.OrderItem, 0, len(req.Items))
		grossSubtotal = decimal.Zero
		netSubtotal   = decimal.Zero
	)
	for _, line := range req.Items {
		p, ok := products[line.ProductID]
		if !ok || !p.IsActive {
			util.OrdersFailedTotal.WithLabelValues("validation").Inc()
			return nil, ErrProductUnavailable
		}

		unitGross := p.EffectivePrice()
		unitNet := money.VATExclusive(unitGross, p.VATRate)
		lineGross := money.LineTotal(unitGross, line.Quantity)

		grossSubtotal = grossSubtotal.Add(lineGross)
		netSubtotal = netSubtotal.Add(money.VATExclusive(lineGross, p.VATRate))

		items = append(items, models.OrderItem{
			ProductID:       p.ID,
			ProductSKU:      p.SKU,
			ProductName:     p.Name,
			Quantity:        line.Quantity,
			PriceWithoutVAT: money.Round(unitNet),
			PriceWithVAT:    unitGross,
			VATRate:         p.VATRate,
			VATMode:         p.VATMode,
			LineTotal:       money.Round(lineGross),
		})
	}

	shipping, err := s.repo.GetShippingMethodByID(ctx, req.ShippingMethodID)
	if err != nil || !shipping.IsActive {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, ErrShippingMethod
	}
	payment, err := s.repo.GetPaymentMethodByID(ctx, req.PaymentMethodID)
	if err != nil || !payment.IsActive {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, ErrPaymentMethod
	}

	shippingCost := shipping.Price
	if shipping.FreeShippingOver != nil && grossSubtotal.GreaterThanOrEqual(*shipping.FreeShippingOver) {
		shippingCost = decimal.Zero
	}

	var applied *AppliedDiscount
	if req.DiscountCode != nil && *req.DiscountCode != "" {
		applied, err = s.discounts.evaluate(ctx, *req.DiscountCode, req.Items, products, money.Round(grossSubtotal), req.CustomerID)
		if err != nil {
			if IsRejection(err) {
				util.DiscountValidationsTotal.WithLabelValues(ReasonCode(err)).Inc()
				util.OrdersFailedTotal.WithLabelValues("discount").Inc()
			} else {
				util.OrdersFailedTotal.WithLabelValues("storage").Inc()
			}
			return nil, err
		}
		util.DiscountValidationsTotal.WithLabelValues("accepted").Inc()
	}

	// Rounding happens once, here. VATTotal is the difference of the two
	// rounded subtotals so subtotal + vat always reproduces the gross amount
	// the customer saw in the cart.
	subtotal := money.Round(netSubtotal)
	vatTotal := money.Round(grossSubtotal).Sub(subtotal)
	discountAmount := decimal.Zero
	if applied != nil {
		discountAmount = applied.Amount
	}
	total := money.ClampNonNegative(subtotal.Add(vatTotal).Add(shippingCost).Sub(discountAmount))

	orderNumber, err := s.repo.NextOrderNumber(ctx)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("storage").Inc()
		return nil, err
	}

	shipTo := req.Billing
	if req.Shipping != nil {
		shipTo = *req.Shipping
	}

	order := &models.Order{
		OrderNumber:   orderNumber,
		CustomerID:    req.CustomerID,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,

		BillingFirstName:   req.Billing.FirstName,
		BillingLastName:    req.Billing.LastName,
		BillingEmail:       req.Billing.Email,
		BillingPhone:       req.Billing.Phone,
		BillingStreet:      req.Billing.Street,
		BillingCity:        req.Billing.City,
		BillingZIP:         req.Billing.ZIP,
		BillingCountry:     req.Billing.Country,
		BillingCompanyName: req.Billing.CompanyName,
		BillingICO:         req.Billing.ICO,
		BillingDIC:         req.Billing.DIC,
		BillingICDPH:       req.Billing.ICDPH,

		ShippingFirstName: shipTo.FirstName,
		ShippingLastName:  shipTo.LastName,
		ShippingStreet:    shipTo.Street,
		ShippingCity:      shipTo.City,
		ShippingZIP:       shipTo.ZIP,
		ShippingCountry:   shipTo.Country,
		ShippingPhone:     shipTo.Phone,

		ShippingMethodID:   shipping.ID,
		ShippingMethodName: shipping.Name,
		PaymentMethodID:    payment.ID,
		PaymentMethodName:  payment.Name,

		Subtotal:       subtotal,
		VATTotal:       vatTotal,
		ShippingCost:   shippingCost,
		DiscountAmount: discountAmount,
		Total:          total,
		Currency:       s.business.Currency,

		CustomerNote: req.CustomerNote,
	}
	if applied != nil {
		order.DiscountID = &applied.DiscountID
		order.DiscountCode = &applied.Code
	}

	if err := s.repo.CreateOrder(ctx, order, items); err != nil {
		switch {
		case errors.Is(err, store.ErrInsufficientStock):
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, err
		case errors.Is(err, store.ErrDiscountExhausted):
			// The counter moved between validation and commit; report it the
			// same way the validator would have.
			util.OrdersFailedTotal.WithLabelValues("discount").Inc()
			return nil, ErrExhaustedGlobally
		default:
			util.OrdersFailedTotal.WithLabelValues("storage").Inc()
			return nil, err
		}
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("items", len(items)))

	if s.publisher != nil {
		s.publisher.PublishOrderCreated(ctx, order)
	}

	return &OrderWithItems{Order: order, Items: items}, nil
}

// GetOrder returns an order with its items.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*OrderWithItems, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &OrderWithItems{Order: order, Items: items}, nil
}

// UpdateStatus moves an order through the fulfillment machine. The shipped
// transition stamps shipped_at and the optional tracking number; delivered
// stamps delivered_at. The write is a compare-and-set against the status
// read here, so two concurrent staff actions cannot both win.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, to string, trackingNumber *string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !models.IsOrderStatus(to) {
		return nil, ErrInvalidStatus
	}

	current, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransitionOrder(current.Status, to) {
		return nil, ErrIllegalTransition
	}

	var shippedAt, deliveredAt *time.Time
	switch to {
	case models.OrderStatusShipped:
		t := s.now()
		shippedAt = &t
	case models.OrderStatusDelivered:
		t := s.now()
		deliveredAt = &t
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, current.Status, to, shippedAt, deliveredAt, trackingNumber)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status changed",
		zap.String("order_number", updated.OrderNumber),
		zap.String("from", current.Status),
		zap.String("to", to))

	if s.publisher != nil {
		s.publisher.PublishOrderStatusChanged(ctx, updated, current.Status)
	}
	return updated, nil
}

// UpdatePaymentStatus toggles the payment flag for manual reconciliation.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID int64, to string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdatePaymentStatus")
	defer span.End()

	current, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransitionPayment(current.PaymentStatus, to) {
		return nil, ErrIllegalTransition
	}
	return s.repo.UpdatePaymentStatus(ctx, orderID, current.PaymentStatus, to)
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"billing-service/internal/models"
	"billing-service/internal/money"
	"billing-service/internal/store"
	"billing-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Discount rejection reasons. These are business-rule rejections: retrying
// with the same input will not succeed, and the caller is told exactly why.
var (
	ErrEmptyCode            = errors.New("discount code is empty")
	ErrCodeNotFound         = errors.New("discount code not found")
	ErrCodeExpired          = errors.New("discount code is not active")
	ErrBelowMinimum         = errors.New("order is below the discount minimum")
	ErrExhaustedGlobally    = errors.New("discount usage limit reached")
	ErrExhaustedForCustomer = errors.New("discount customer limit reached")
	ErrNotApplicable        = errors.New("discount does not apply to any cart item")
)

// ReasonCode maps a rejection to the stable reason identifier exposed to
// API clients and metrics labels. Non-rejection errors map to empty.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCode):
		return "empty_code"
	case errors.Is(err, ErrCodeNotFound):
		return "not_found"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrBelowMinimum):
		return "below_minimum"
	case errors.Is(err, ErrExhaustedGlobally):
		return "exhausted_globally"
	case errors.Is(err, ErrExhaustedForCustomer):
		return "exhausted_for_customer"
	case errors.Is(err, ErrNotApplicable):
		return "not_applicable"
	default:
		return ""
	}
}

// IsRejection reports whether err is a discount business-rule rejection.
func IsRejection(err error) bool {
	return ReasonCode(err) != ""
}

// CartLine is one client-held cart entry. Prices are never taken from the
// client; the server reprices from the catalog.
type CartLine struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// AppliedDiscount is the validated, computed result of evaluating a code
// against a specific cart.
type AppliedDiscount struct {
	DiscountID int64           `json:"discount_id"`
	Code       string          `json:"code"`
	Type       string          `json:"type"`
	Value      decimal.Decimal `json:"value"`
	Amount     decimal.Decimal `json:"computed_amount"`
}

// DiscountService validates promotional codes against cart snapshots.
type DiscountService struct {
	repo   store.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewDiscountService creates a new discount service.
func NewDiscountService(repo store.Repository) *DiscountService {
	return &DiscountService{
		repo:   repo,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// Validate evaluates a candidate code against a cart snapshot. It reprices
// the cart from the catalog and applies the validation pipeline; the first
// failing rule wins.
func (s *DiscountService) Validate(ctx context.Context, code string, lines []CartLine, customerID *int64) (*AppliedDiscount, error) {
	ctx, span := util.StartSpan(ctx, "DiscountService.Validate")
	defer span.End()

	products, gross, err := s.priceCart(ctx, lines)
	if err != nil {
		return nil, err
	}

	applied, err := s.evaluate(ctx, code, lines, products, gross, customerID)
	if err != nil {
		if reason := ReasonCode(err); reason != "" {
			util.DiscountValidationsTotal.WithLabelValues(reason).Inc()
		}
		return nil, err
	}

	util.DiscountValidationsTotal.WithLabelValues("accepted").Inc()
	return applied, nil
}

// priceCart loads the referenced products and computes the VAT-inclusive
// cart subtotal.
func (s *DiscountService) priceCart(ctx context.Context, lines []CartLine) (map[int64]models.Product, decimal.Decimal, error) {
	ids := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}

	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}

	gross := decimal.Zero
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			return nil, decimal.Zero, store.ErrNotFound
		}
		gross = gross.Add(money.LineTotal(p.EffectivePrice(), line.Quantity))
	}
	return products, money.Round(gross), nil
}

// evaluate runs the validation pipeline against already-priced cart data.
// Order matters: each rule short-circuits, so callers always see the first
// applicable rejection.
func (s *DiscountService) evaluate(ctx context.Context, code string, lines []CartLine, products map[int64]models.Product, grossSubtotal decimal.Decimal, customerID *int64) (*AppliedDiscount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyCode
	}

	discount, err := s.repo.GetDiscountByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}

	if !discount.EffectiveAt(s.now()) {
		return nil, ErrCodeExpired
	}

	if discount.MinOrderValue != nil && grossSubtotal.LessThan(*discount.MinOrderValue) {
		return nil, ErrBelowMinimum
	}

	if discount.MaxUsesTotal != nil && discount.CurrentUses >= *discount.MaxUsesTotal {
		return nil, ErrExhaustedGlobally
	}

	if discount.MaxUsesPerCustomer > 0 && customerID != nil {
		used, err := s.repo.CountCustomerRedemptions(ctx, discount.Code, *customerID)
		if err != nil {
			return nil, err
		}
		if used >= discount.MaxUsesPerCustomer {
			return nil, ErrExhaustedForCustomer
		}
	}

	if len(discount.RestrictedCategoryIDs) > 0 || len(discount.RestrictedProductIDs) > 0 {
		if !cartMatchesRestrictions(discount, lines, products) {
			return nil, ErrNotApplicable
		}
	}

	amount := computeDiscountAmount(discount, grossSubtotal)

	s.logger.Debug("Discount accepted",
		zap.String("code", discount.Code),
		zap.String("amount", amount.StringFixed(2)))

	return &AppliedDiscount{
		DiscountID: discount.ID,
		Code:       discount.Code,
		Type:       discount.Type,
		Value:      discount.Value,
		Amount:     amount,
	}, nil
}

func cartMatchesRestrictions(discount *models.Discount, lines []CartLine, products map[int64]models.Product) bool {
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			continue
		}
		for _, id := range discount.RestrictedProductIDs {
			if id == p.ID {
				return true
			}
		}
		for _, id := range discount.RestrictedCategoryIDs {
			if id == p.CategoryID {
				return true
			}
		}
	}
	return false
}

// computeDiscountAmount derives the monetary discount from the
// VAT-inclusive cart subtotal. A fixed discount never exceeds the subtotal,
// so the order total cannot go negative through the discount alone.
func computeDiscountAmount(discount *models.Discount, grossSubtotal decimal.Decimal) decimal.Decimal {
	if discount.Type == models.DiscountTypePercentage {
		return money.Percentage(grossSubtotal, discount.Value)
	}
	return money.Min(money.Round(discount.Value), grossSubtotal)
}

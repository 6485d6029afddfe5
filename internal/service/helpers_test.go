package service

import (
	"time"

	"billing-service/config"
	"billing-service/internal/models"
	"billing-service/internal/store/memory"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }
func strPtr(s string) *string { return &s }

var testBusiness = config.BusinessConfig{
	Currency:       "EUR",
	DefaultVATRate: dec("20"),
}

var testSeller = config.SellerConfig{
	Name:        "HD Retail s.r.o.",
	ICO:         "12345678",
	DIC:         "2012345678",
	ICDPH:       "SK2012345678",
	Street:      "Hlavna 123",
	City:        "Bratislava",
	ZIP:         "81101",
	Country:     "SK",
	BankAccount: "SK12 1234 5678 9012 3456 7890",
	BankName:    "Slovenska sporitelna",
}

// fixtures is a seeded memory store with the catalog rows most tests need.
type fixtures struct {
	repo     *memory.Store
	monitor  models.Product
	mouse    models.Product
	shipping models.ShippingMethod
	payment  models.PaymentMethod
}

func newFixtures() *fixtures {
	repo := memory.New()
	return &fixtures{
		repo: repo,
		monitor: repo.AddProduct(models.Product{
			SKU:          "MON-24",
			Name:         "24in Monitor",
			CategoryID:   1,
			PriceWithVAT: dec("250.00"),
			VATRate:      dec("20"),
			VATMode:      "standard",
			TrackStock:   false,
			IsActive:     true,
		}),
		mouse: repo.AddProduct(models.Product{
			SKU:          "MOUSE-01",
			Name:         "Wireless Mouse",
			CategoryID:   2,
			PriceWithVAT: dec("49.99"),
			VATRate:      dec("20"),
			VATMode:      "standard",
			TrackStock:   false,
			IsActive:     true,
		}),
		shipping: repo.AddShippingMethod(models.ShippingMethod{
			Code:     "courier",
			Name:     "Courier",
			Price:    dec("4.99"),
			VATRate:  dec("20"),
			IsActive: true,
		}),
		payment: repo.AddPaymentMethod(models.PaymentMethod{
			Code:     "bank_transfer",
			Name:     "Bank transfer",
			IsActive: true,
		}),
	}
}

func (f *fixtures) orderService() *OrderService {
	return NewOrderService(f.repo, NewDiscountService(f.repo), nil, testBusiness)
}

func (f *fixtures) invoiceService(renderer DocumentRenderer, cache DocumentCache) *InvoiceService {
	return NewInvoiceService(f.repo, renderer, cache, nil, testBusiness, testSeller)
}

func (f *fixtures) checkoutRequest() *CreateOrderRequest {
	return &CreateOrderRequest{
		Items: []CartLine{
			{ProductID: f.monitor.ID, Quantity: 1},
			{ProductID: f.mouse.ID, Quantity: 2},
		},
		Billing: Address{
			FirstName: "Jana",
			LastName:  "Novakova",
			Email:     "jana@example.com",
			Street:    "Mlynska 7",
			City:      "Kosice",
			ZIP:       "04001",
			Country:   "SK",
		},
		ShippingMethodID: f.shipping.ID,
		PaymentMethodID:  f.payment.ID,
	}
}

func activeDiscount(code string) models.Discount {
	return models.Discount{
		Code:      code,
		Type:      models.DiscountTypePercentage,
		Value:     dec("10"),
		ValidFrom: time.Now().Add(-time.Hour),
		IsActive:  true,
	}
}

package worker

import (
	"context"
	"testing"
	"time"

	"billing-service/config"
	"billing-service/internal/models"
	"billing-service/internal/service"
	"billing-service/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type noopRenderer struct{}

func (noopRenderer) Render(*models.Invoice, []models.InvoiceItem) ([]byte, error) {
	return []byte("pdf"), nil
}

func setup(t *testing.T) (*ReconciliationWorker, *memory.Store, *models.Order) {
	t.Helper()

	repo := memory.New()
	product := repo.AddProduct(models.Product{
		SKU: "MON-24", Name: "24in Monitor", CategoryID: 1,
		PriceWithVAT: dec("250.00"), VATRate: dec("20"), VATMode: "standard", IsActive: true,
	})
	shipping := repo.AddShippingMethod(models.ShippingMethod{
		Code: "courier", Name: "Courier", Price: dec("4.99"), VATRate: dec("20"), IsActive: true,
	})
	payment := repo.AddPaymentMethod(models.PaymentMethod{
		Code: "bank_transfer", Name: "Bank transfer", IsActive: true,
	})

	business := config.BusinessConfig{Currency: "EUR", DefaultVATRate: dec("20")}
	discounts := service.NewDiscountService(repo)
	orders := service.NewOrderService(repo, discounts, nil, business)
	invoices := service.NewInvoiceService(repo, noopRenderer{}, nil, nil, business, config.SellerConfig{Name: "HD Retail s.r.o."})

	resp, err := orders.CreateOrder(context.Background(), &service.CreateOrderRequest{
		Items: []service.CartLine{{ProductID: product.ID, Quantity: 1}},
		Billing: service.Address{
			FirstName: "Jana", LastName: "Novakova",
			Street: "Mlynska 7", City: "Kosice", ZIP: "04001", Country: "SK",
		},
		ShippingMethodID: shipping.ID,
		PaymentMethodID:  payment.ID,
	})
	require.NoError(t, err)

	w := NewReconciliationWorker(nil, repo, orders, invoices)
	return w, repo, resp.Order
}

func payment(vs, amount string) *models.PaymentReceivedEvent {
	return &models.PaymentReceivedEvent{
		VariableSymbol: vs,
		Amount:         dec(amount),
		Currency:       "EUR",
		Reference:      "stmt-0042",
		ReceivedAt:     time.Now(),
	}
}

func TestReconcileSettlesOrderAndInvoice(t *testing.T) {
	w, repo, order := setup(t)

	err := w.Reconcile(context.Background(), payment("000001", "254.99"))
	require.NoError(t, err)

	stored, err := repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)

	invoice, err := repo.GetInvoiceByOrderID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, invoice.Status)
	require.NotNil(t, invoice.PaidAt)
}

func TestReconcileIsIdempotent(t *testing.T) {
	w, repo, order := setup(t)

	require.NoError(t, w.Reconcile(context.Background(), payment("000001", "254.99")))
	require.NoError(t, w.Reconcile(context.Background(), payment("000001", "254.99")))

	invoice, err := repo.GetInvoiceByOrderID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "FV000001", invoice.InvoiceNumber)
	assert.Equal(t, models.InvoiceStatusPaid, invoice.Status)
}

func TestReconcileUnknownVariableSymbol(t *testing.T) {
	w, repo, order := setup(t)

	err := w.Reconcile(context.Background(), payment("999999", "254.99"))
	require.NoError(t, err)

	stored, err := repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
}

func TestReconcileAmountMismatch(t *testing.T) {
	w, repo, order := setup(t)

	err := w.Reconcile(context.Background(), payment("000001", "100.00"))
	require.NoError(t, err)

	stored, err := repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
	assert.Nil(t, stored.InvoiceID)
}

func TestReconcileMissingVariableSymbol(t *testing.T) {
	w, _, _ := setup(t)
	assert.NoError(t, w.Reconcile(context.Background(), payment("", "254.99")))
}

func TestReconcileExistingInvoice(t *testing.T) {
	w, repo, order := setup(t)

	// Staff already issued the invoice before the payment arrived.
	invoices := service.NewInvoiceService(repo, noopRenderer{}, nil, nil,
		config.BusinessConfig{Currency: "EUR", DefaultVATRate: dec("20")}, config.SellerConfig{})
	issued, _, created, err := invoices.Generate(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, w.Reconcile(context.Background(), payment("000001", "254.99")))

	invoice, err := repo.GetInvoiceByID(context.Background(), issued.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, invoice.Status)
}

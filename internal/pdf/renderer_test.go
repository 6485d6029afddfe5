package pdf

import (
	"bytes"
	"testing"
	"time"

	"billing-service/internal/models"

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

func sampleInvoice() (*models.Invoice, []models.InvoiceItem) {
	issue := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	inv := &models.Invoice{
		InvoiceNumber: "FV000042",
		OrderID:       7,
		Type:          models.InvoiceTypeInvoice,
		Status:        models.InvoiceStatusIssued,
		IssueDate:     issue,
		DueDate:       issue.AddDate(0, 0, 14),
		DeliveryDate:  issue,

		SellerName:        "HD Retail s.r.o.",
		SellerICO:         "12345678",
		SellerDIC:         "2012345678",
		SellerICDPH:       "SK2012345678",
		SellerStreet:      "Hlavna 123",
		SellerCity:        "Bratislava",
		SellerZIP:         "81101",
		SellerCountry:     "SK",
		SellerBankAccount: "SK12 1234 5678 9012 3456 7890",
		SellerBankName:    "Slovenska sporitelna",

		BuyerName:    "Jana Novakova",
		BuyerStreet:  "Mlynska 7",
		BuyerCity:    "Kosice",
		BuyerZIP:     "04001",
		BuyerCountry: "SK",

		Subtotal:       dec("291.65"),
		VATTotal:       dec("58.33"),
		ShippingCost:   dec("4.99"),
		DiscountAmount: dec("0"),
		Total:          dec("354.97"),
		Currency:       "EUR",

		PaymentMethod:  "Bank transfer",
		VariableSymbol: "000007",
	}
	items := []models.InvoiceItem{
		{ProductName: "24in Monitor", ProductSKU: "MON-24", Quantity: 1, Unit: "pcs",
			PriceWithoutVAT: dec("208.33"), PriceWithVAT: dec("250.00"), VATRate: dec("20"), LineTotal: dec("250.00")},
		{ProductName: "Wireless Mouse", ProductSKU: "MOUSE-01", Quantity: 2, Unit: "pcs",
			PriceWithoutVAT: dec("41.66"), PriceWithVAT: dec("49.99"), VATRate: dec("20"), LineTotal: dec("99.98")},
		{ProductName: "Courier", ProductSKU: models.ShippingSKU, Quantity: 1, Unit: "pcs",
			PriceWithoutVAT: dec("4.16"), PriceWithVAT: dec("4.99"), VATRate: dec("20"), LineTotal: dec("4.99")},
	}
	return inv, items
}

func TestRenderProducesPDF(t *testing.T) {
	inv, items := sampleInvoice()

	data, err := NewRenderer().Render(inv, items)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Greater(t, len(data), 1000)
}

func TestRenderIsDeterministic(t *testing.T) {
	inv, items := sampleInvoice()
	r := NewRenderer()

	first, err := r.Render(inv, items)
	require.NoError(t, err)
	second, err := r.Render(inv, items)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRenderHandlesOptionalBlocks(t *testing.T) {
	inv, items := sampleInvoice()
	note := "VAT exempt, reverse charge applies."
	ico := "87654321"
	paidAt := inv.IssueDate.AddDate(0, 0, 3)
	inv.Note = &note
	inv.BuyerICO = &ico
	inv.PaidAt = &paidAt
	inv.Status = models.InvoiceStatusPaid
	inv.DiscountAmount = dec("35.00")

	data, err := NewRenderer().Render(inv, items)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestRenderLongProductName(t *testing.T) {
	inv, items := sampleInvoice()
	items[0].ProductName = "Extremely long product name that would overflow the item column if rendered untruncated"

	data, err := NewRenderer().Render(inv, items)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-10", truncate("exactly-10", 10))
	assert.Equal(t, "toolong...", truncate("toolongvalue", 10))

	// Multi-byte characters are counted, never split.
	assert.Equal(t, "Šošovica", truncate("Šošovica", 8))
	assert.Equal(t, "Šošovic...", truncate("Šošovica s údeným kolenom", 10))
}

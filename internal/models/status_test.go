package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionOrder(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusShipped, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, true},

		{OrderStatusConfirmed, OrderStatusPending, false},
		{OrderStatusShipped, OrderStatusShipped, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{OrderStatusPending, "unknown", false},
		{"unknown", OrderStatusConfirmed, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransitionOrder(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCanTransitionPayment(t *testing.T) {
	assert.True(t, CanTransitionPayment(PaymentStatusPending, PaymentStatusPaid))
	assert.True(t, CanTransitionPayment(PaymentStatusPaid, PaymentStatusPending))
	assert.False(t, CanTransitionPayment(PaymentStatusPaid, PaymentStatusPaid))
	assert.False(t, CanTransitionPayment(PaymentStatusPending, "refunded"))
}

func TestCanTransitionInvoice(t *testing.T) {
	assert.True(t, CanTransitionInvoice(InvoiceStatusIssued, InvoiceStatusPaid))
	assert.True(t, CanTransitionInvoice(InvoiceStatusIssued, InvoiceStatusCancelled))
	assert.False(t, CanTransitionInvoice(InvoiceStatusPaid, InvoiceStatusCancelled))
	assert.False(t, CanTransitionInvoice(InvoiceStatusCancelled, InvoiceStatusIssued))
}

func TestBuyerName(t *testing.T) {
	order := Order{BillingFirstName: "Jana", BillingLastName: "Novakova"}
	assert.Equal(t, "Jana Novakova", order.BuyerName())

	company := "Acme s.r.o."
	order.BillingCompanyName = &company
	assert.Equal(t, "Acme s.r.o.", order.BuyerName())

	empty := ""
	order.BillingCompanyName = &empty
	assert.Equal(t, "Jana Novakova", order.BuyerName())
}

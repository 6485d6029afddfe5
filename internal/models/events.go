package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated       = "order.created"
	EventTypeOrderStatusChanged = "order.status_changed"
	EventTypeInvoiceIssued      = "invoice.issued"
	EventTypeInvoicePaid        = "invoice.paid"
	EventTypePaymentReceived    = "payment.received"
)

// BaseEvent contains common event fields
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent is published after a checkout commits.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID      int64           `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	CustomerID   *int64          `json:"customer_id,omitempty"`
	Total        decimal.Decimal `json:"total"`
	Currency     string          `json:"currency"`
	DiscountCode *string         `json:"discount_code,omitempty"`
}

// OrderStatusChangedEvent is published on every accepted status transition.
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	From        string `json:"from"`
	To          string `json:"to"`
}

// InvoiceIssuedEvent is published when a new invoice is created. Replays of
// the idempotent generate call do not publish it again.
type InvoiceIssuedEvent struct {
	BaseEvent
	InvoiceID     int64           `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	OrderID       int64           `json:"order_id"`
	Total         decimal.Decimal `json:"total"`
}

// InvoicePaidEvent is published when an invoice is marked paid.
type InvoicePaidEvent struct {
	BaseEvent
	InvoiceID     int64     `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	OrderID       int64     `json:"order_id"`
	PaidAt        time.Time `json:"paid_at"`
}

// PaymentReceivedEvent arrives on the bank feed topic. The variable symbol
// identifies the order; the reconciliation worker matches it and settles
// the order and its invoice.
type PaymentReceivedEvent struct {
	BaseEvent
	VariableSymbol string          `json:"variable_symbol"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Reference      string          `json:"reference"`
	ReceivedAt     time.Time       `json:"received_at"`
}

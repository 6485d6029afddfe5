package models

// IsTerminalOrderStatus reports whether no further order transitions are
// accepted. Delivered and cancelled orders are frozen.
func IsTerminalOrderStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}

var orderStatuses = map[string]bool{
	OrderStatusPending:    true,
	OrderStatusConfirmed:  true,
	OrderStatusProcessing: true,
	OrderStatusShipped:    true,
	OrderStatusDelivered:  true,
	OrderStatusCancelled:  true,
}

// IsOrderStatus reports whether s names a known order status.
func IsOrderStatus(s string) bool { return orderStatuses[s] }

// CanTransitionOrder reports whether staff may move an order from one
// status to another. Fulfillment is not strictly linear (pending may jump
// straight to shipped), but terminal states accept nothing and no order
// returns to pending.
func CanTransitionOrder(from, to string) bool {
	if !IsOrderStatus(from) || !IsOrderStatus(to) {
		return false
	}
	if IsTerminalOrderStatus(from) {
		return false
	}
	if to == from || to == OrderStatusPending {
		return false
	}
	return true
}

// CanTransitionPayment reports whether the payment status may change.
// Pending and paid toggle both ways for manual reconciliation.
func CanTransitionPayment(from, to string) bool {
	if from == to {
		return false
	}
	return (from == PaymentStatusPending && to == PaymentStatusPaid) ||
		(from == PaymentStatusPaid && to == PaymentStatusPending)
}

// CanTransitionInvoice reports whether an invoice status change is legal.
// Issued invoices may be paid or cancelled; paid and cancelled are final.
func CanTransitionInvoice(from, to string) bool {
	if from != InvoiceStatusIssued {
		return false
	}
	return to == InvoiceStatusPaid || to == InvoiceStatusCancelled
}

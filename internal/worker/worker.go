// Package worker reconciles incoming bank payments against open orders.
package worker

import (
	"context"
	"encoding/json"
	"errors"

	"billing-service/internal/broker"
	"billing-service/internal/models"
	"billing-service/internal/service"
	"billing-service/internal/store"
	"billing-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ReconciliationWorker consumes the bank payment feed. Each payment carries
// a variable symbol; a match settles the order and its invoice, issuing the
// invoice first if checkout never triggered one. Every outcome commits the
// message: a payment that cannot be matched is counted and logged for
// manual review, not retried forever.
type ReconciliationWorker struct {
	consumer *broker.Consumer
	repo     store.Repository
	orders   *service.OrderService
	invoices *service.InvoiceService
	logger   *zap.Logger
}

// NewReconciliationWorker creates a new worker.
func NewReconciliationWorker(consumer *broker.Consumer, repo store.Repository, orders *service.OrderService, invoices *service.InvoiceService) *ReconciliationWorker {
	return &ReconciliationWorker{
		consumer: consumer,
		repo:     repo,
		orders:   orders,
		invoices: invoices,
		logger:   util.GetLogger(),
	}
}

// Run consumes the feed until the context is cancelled.
func (w *ReconciliationWorker) Run(ctx context.Context) error {
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

func (w *ReconciliationWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.PaymentReceivedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		w.logger.Error("Malformed payment event", zap.Error(err))
		return nil
	}
	return w.Reconcile(ctx, &event)
}

// Reconcile matches one payment to an order and settles it.
func (w *ReconciliationWorker) Reconcile(ctx context.Context, event *models.PaymentReceivedEvent) error {
	if event.VariableSymbol == "" {
		w.unmatched(event, "missing variable symbol")
		return nil
	}

	order, err := w.repo.FindOrderByVariableSymbol(ctx, event.VariableSymbol)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.unmatched(event, "no matching order")
			return nil
		}
		return err
	}

	if !event.Amount.Equal(order.Total) {
		w.logger.Warn("Payment amount mismatch",
			zap.String("order_number", order.OrderNumber),
			zap.String("expected", order.Total.StringFixed(2)),
			zap.String("received", event.Amount.StringFixed(2)),
			zap.String("reference", event.Reference))
		util.PaymentsUnmatchedTotal.Inc()
		return nil
	}

	if order.PaymentStatus != models.PaymentStatusPaid {
		if _, err := w.orders.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusPaid); err != nil {
			// A concurrent settle already flipped the flag; proceed to the
			// invoice either way.
			if !errors.Is(err, store.ErrConflict) && !errors.Is(err, service.ErrIllegalTransition) {
				return err
			}
		}
	}

	invoice, _, _, err := w.invoices.Generate(ctx, order.ID)
	if err != nil {
		return err
	}
	if invoice.Status == models.InvoiceStatusIssued {
		if _, err := w.invoices.MarkPaid(ctx, invoice.ID, nil); err != nil && !errors.Is(err, store.ErrConflict) {
			return err
		}
	}

	util.PaymentsReconciledTotal.Inc()
	w.logger.Info("Payment reconciled",
		zap.String("order_number", order.OrderNumber),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("variable_symbol", event.VariableSymbol))
	return nil
}

func (w *ReconciliationWorker) unmatched(event *models.PaymentReceivedEvent, reason string) {
	util.PaymentsUnmatchedTotal.Inc()
	w.logger.Warn("Payment not reconciled",
		zap.String("variable_symbol", event.VariableSymbol),
		zap.String("amount", event.Amount.StringFixed(2)),
		zap.String("reference", event.Reference),
		zap.String("reason", reason))
}

package worker

import (
	"context"
	"encoding/json"

	"github.com/farewire/farewire/internal/constants"
	"github.com/farewire/farewire/internal/logger"
	"github.com/farewire/farewire/internal/provider"
	"github.com/farewire/farewire/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer handles queued tasks.
type Consumer struct {
	*provider.Container
}

// NewConsumer creates the consumer.
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register registers task handlers.
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskBookingConfirmation, c.handleBookingConfirmation)
	mux.HandleFunc(queue.TaskOperatorAlert, c.handleOperatorAlert)
}

// handleBookingConfirmation hands a paid invoice to the ticketing desk.
// The paid latch has already committed by the time this runs, so a
// retry here can never double-charge; it only re-notifies.
func (c *Consumer) handleBookingConfirmation(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.BookingConfirmationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_booking_confirmation_unmarshal_failed", "error", err)
		return err
	}
	if payload.InvoiceID == 0 {
		logger.Debugw("worker_booking_confirmation_skip_invalid_payload")
		return nil
	}
	invoice, err := c.InvoiceRepo.GetByID(payload.InvoiceID)
	if err != nil {
		logger.Warnw("worker_booking_confirmation_fetch_failed", "invoice_id", payload.InvoiceID, "error", err)
		return err
	}
	if invoice == nil {
		logger.Debugw("worker_booking_confirmation_skip_not_found", "invoice_id", payload.InvoiceID)
		return nil
	}
	if invoice.PaymentStatus != constants.InvoiceStatusPaid {
		logger.Warnw("worker_booking_confirmation_skip_not_paid",
			"invoice_id", invoice.ID,
			"invoice_no", invoice.InvoiceNo,
			"payment_status", invoice.PaymentStatus,
		)
		return nil
	}

	logger.Infow("worker_booking_confirmation_dispatched",
		"invoice_id", invoice.ID,
		"invoice_no", invoice.InvoiceNo,
		"route", invoice.Route,
		"customer_email", invoice.CustomerEmail,
	)
	return nil
}

// handleOperatorAlert surfaces reconciliation misses to operations.
func (c *Consumer) handleOperatorAlert(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.OperatorAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_operator_alert_unmarshal_failed", "error", err)
		return err
	}

	logger.Errorw("worker_operator_alert",
		"kind", payload.Kind,
		"provider", payload.Provider,
		"invoice_no", payload.InvoiceNo,
		"transaction_id", payload.TransactionID,
		"message", payload.Message,
	)
	return nil
}

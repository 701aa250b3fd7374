package queue

import (
	"encoding/json"

	"github.com/farewire/farewire/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskBookingConfirmation sends the ticketing desk a paid booking.
	TaskBookingConfirmation = constants.TaskBookingConfirmation
	// TaskOperatorAlert pages operations about a reconciliation miss.
	TaskOperatorAlert = constants.TaskOperatorAlert
)

// BookingConfirmationPayload is the booking confirmation task payload.
type BookingConfirmationPayload struct {
	InvoiceID uint   `json:"invoice_id"`
	InvoiceNo string `json:"invoice_no"`
}

// OperatorAlertPayload is the operator alert task payload.
type OperatorAlertPayload struct {
	Kind          string `json:"kind"`
	Provider      string `json:"provider"`
	InvoiceNo     string `json:"invoice_no"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
}

// NewBookingConfirmationTask creates a booking confirmation task.
func NewBookingConfirmationTask(payload BookingConfirmationPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingConfirmation, body), nil
}

// NewOperatorAlertTask creates an operator alert task.
func NewOperatorAlertTask(payload OperatorAlertPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOperatorAlert, body), nil
}

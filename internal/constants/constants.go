package constants

// Invoice payment status constants
const (
	InvoiceStatusUnpaid           = "unpaid"
	InvoiceStatusPendingChallenge = "pending_challenge"
	InvoiceStatusPaid             = "paid"
	InvoiceStatusFailed           = "failed"
)

// Ledger entry status constants. Declines never produce a ledger row,
// so succeeded is the only status written.
const (
	PaymentStatusSucceeded = "succeeded"
)

// Payment provider constants
const (
	PaymentProviderCardgate = "cardgate"
	PaymentProviderPaylink  = "paylink"
)

// Checkout outcome constants (client-visible)
const (
	CheckoutOutcomeSuccess     = "success"
	CheckoutOutcomeRequires3DS = "requires_3ds"
	CheckoutOutcomeDeclined    = "declined"
	CheckoutOutcomeFailed      = "failed"
)

// Queue name constants
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// Background task type constants
const (
	TaskBookingConfirmation = "booking:confirmation"
	TaskOperatorAlert       = "ops:alert"
)

package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/farewire/farewire/internal/constants"
	"github.com/farewire/farewire/internal/logger"
	"github.com/farewire/farewire/internal/models"
	"github.com/farewire/farewire/internal/payment/cardgate"
	"github.com/farewire/farewire/internal/payment/paylink"
	"github.com/farewire/farewire/internal/queue"
	"github.com/farewire/farewire/internal/repository"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CheckoutService drives a booking payment from quote to paid invoice.
type CheckoutService struct {
	invoiceRepo repository.InvoiceRepository
	paymentRepo repository.PaymentRepository
	queueClient *queue.Client
	cardgateCfg *cardgate.Config
	paylinkCfg  *paylink.Config
}

// NewCheckoutService creates the checkout service.
func NewCheckoutService(invoiceRepo repository.InvoiceRepository, paymentRepo repository.PaymentRepository, queueClient *queue.Client, cardgateCfg *cardgate.Config, paylinkCfg *paylink.Config) *CheckoutService {
	return &CheckoutService{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		queueClient: queueClient,
		cardgateCfg: cardgateCfg,
		paylinkCfg:  paylinkCfg,
	}
}

func checkoutLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// StartPaymentInput captures a priced quote the customer accepted.
type StartPaymentInput struct {
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Route         string
	DepartureDate *time.Time
	ReturnDate    *time.Time
	Passengers    int
	Amount        string
	Currency      string
	RedirectURL   string
	Context       context.Context
}

// StartPaymentResult carries the invoice plus the hosted card form the
// browser posts to next.
type StartPaymentResult struct {
	Invoice *models.Invoice
	FormURL string
	TokenID string
}

// CompletePaymentInput finishes the handshake after the hosted form.
type CompletePaymentInput struct {
	InvoiceNo string
	TokenID   string
	Billing   cardgate.BillingInfo
	Context   context.Context
}

// CompletePaymentResult is the client-visible completion outcome.
type CompletePaymentResult struct {
	Invoice       *models.Invoice
	Outcome       string
	RedirectURL   string
	TransactionID string
	Reason        string
}

// StartPayment creates the invoice and opens the gateway handshake.
func (s *CheckoutService) StartPayment(input StartPaymentInput) (*StartPaymentResult, error) {
	if err := validateStartPayment(&input); err != nil {
		return nil, err
	}
	amount, _ := decimal.NewFromString(strings.TrimSpace(input.Amount))
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))

	invoice := &models.Invoice{
		InvoiceNo:     generateInvoiceNo(),
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerEmail: strings.TrimSpace(input.CustomerEmail),
		CustomerPhone: strings.TrimSpace(input.CustomerPhone),
		Route:         strings.TrimSpace(input.Route),
		DepartureDate: input.DepartureDate,
		ReturnDate:    input.ReturnDate,
		Passengers:    input.Passengers,
		Amount:        models.NewMoneyFromDecimal(amount),
		Currency:      currency,
		PaymentStatus: constants.InvoiceStatusUnpaid,
	}

	log := checkoutLogger(
		"invoice_no", invoice.InvoiceNo,
		"amount", invoice.Amount.String(),
		"currency", currency,
	)

	if err := s.invoiceRepo.Create(invoice); err != nil {
		log.Errorw("checkout_invoice_create_failed", "error", err)
		return nil, ErrInvoiceUpdateFailed
	}
	log.Infow("checkout_invoice_created", "invoice_id", invoice.ID)

	result, err := cardgate.Initiate(input.Context, s.cardgateCfg, cardgate.InitiateInput{
		OrderNo:     invoice.InvoiceNo,
		Amount:      invoice.Amount.String(),
		Currency:    currency,
		Description: invoice.Route,
		Email:       invoice.CustomerEmail,
		RedirectURL: strings.TrimSpace(input.RedirectURL),
	})
	if err != nil {
		log.Warnw("checkout_gateway_initiate_failed", "error", err)
		s.failInvoice(invoice, log)
		return nil, mapCardgateError(err)
	}
	log.Infow("checkout_gateway_initiated", "invoice_id", invoice.ID)

	return &StartPaymentResult{
		Invoice: invoice,
		FormURL: result.FormURL,
		TokenID: result.TokenID,
	}, nil
}

// CompletePayment finishes the three-step handshake. Completing an
// already-paid invoice is a no-op success, so a double-submitted form
// never charges twice.
func (s *CheckoutService) CompletePayment(input CompletePaymentInput) (*CompletePaymentResult, error) {
	invoiceNo := strings.TrimSpace(input.InvoiceNo)
	tokenID := strings.TrimSpace(input.TokenID)
	if invoiceNo == "" || tokenID == "" {
		return nil, ErrCheckoutInvalid
	}

	log := checkoutLogger("invoice_no", invoiceNo)

	invoice, err := s.invoiceRepo.GetByInvoiceNo(invoiceNo)
	if err != nil {
		log.Errorw("checkout_invoice_fetch_failed", "error", err)
		return nil, ErrInvoiceUpdateFailed
	}
	if invoice == nil {
		log.Warnw("checkout_invoice_not_found")
		return nil, ErrInvoiceNotFound
	}
	if invoice.PaymentStatus == constants.InvoiceStatusPaid {
		log.Infow("checkout_complete_idempotent_paid", "invoice_id", invoice.ID)
		return &CompletePaymentResult{
			Invoice: invoice,
			Outcome: constants.CheckoutOutcomeSuccess,
		}, nil
	}
	if invoice.PaymentStatus == constants.InvoiceStatusFailed {
		log.Infow("checkout_complete_idempotent_failed", "invoice_id", invoice.ID)
		return &CompletePaymentResult{
			Invoice: invoice,
			Outcome: constants.CheckoutOutcomeDeclined,
			Reason:  "payment previously declined",
		}, nil
	}

	outcome, err := cardgate.Finalize(input.Context, s.cardgateCfg, cardgate.FinalizeInput{
		TokenID:  tokenID,
		Amount:   invoice.Amount.String(),
		Currency: invoice.Currency,
		OrderNo:  invoice.InvoiceNo,
		Email:    invoice.CustomerEmail,
		Billing:  input.Billing,
	})
	if err != nil {
		log.Warnw("checkout_gateway_finalize_failed", "error", err)
		s.failInvoice(invoice, log)
		mapped := mapCardgateError(err)
		if errors.Is(mapped, ErrGatewayConfigInvalid) {
			return nil, mapped
		}
		// Timeouts and bad gateway responses are not declines: the
		// customer can start a fresh checkout. The invoice itself is
		// done; a late paid webhook for it can still flip the latch.
		return &CompletePaymentResult{
			Invoice: invoice,
			Outcome: constants.CheckoutOutcomeFailed,
			Reason:  "payment gateway request failed",
		}, nil
	}

	switch outcome.Kind {
	case cardgate.OutcomeSucceeded:
		updated, _, err := s.markInvoicePaid(invoice, paidTransition{
			Provider:      constants.PaymentProviderCardgate,
			TransactionID: outcome.TransactionID,
			Amount:        invoice.Amount,
			Currency:      invoice.Currency,
			PaymentMethod: "card",
			Payload:       valuesToJSON(outcome.Raw),
			PaidAt:        time.Now(),
		}, log)
		if err != nil {
			return nil, err
		}
		return &CompletePaymentResult{
			Invoice:       updated,
			Outcome:       constants.CheckoutOutcomeSuccess,
			TransactionID: outcome.TransactionID,
		}, nil

	case cardgate.OutcomeChallengeRequired:
		now := time.Now()
		if err := s.invoiceRepo.UpdateStatus(invoice.ID, constants.InvoiceStatusPendingChallenge, map[string]interface{}{
			"updated_at": now,
		}); err != nil {
			log.Errorw("checkout_challenge_status_update_failed", "error", err)
			return nil, ErrInvoiceUpdateFailed
		}
		invoice.PaymentStatus = constants.InvoiceStatusPendingChallenge
		invoice.UpdatedAt = now
		log.Infow("checkout_challenge_required",
			"invoice_id", invoice.ID,
			"transaction_id", outcome.TransactionID,
		)
		return &CompletePaymentResult{
			Invoice:       invoice,
			Outcome:       constants.CheckoutOutcomeRequires3DS,
			RedirectURL:   outcome.RedirectURL,
			TransactionID: outcome.TransactionID,
		}, nil

	default:
		s.failInvoice(invoice, log)
		log.Infow("checkout_declined",
			"invoice_id", invoice.ID,
			"transaction_id", outcome.TransactionID,
			"reason", outcome.Reason,
		)
		return &CompletePaymentResult{
			Invoice:       invoice,
			Outcome:       constants.CheckoutOutcomeDeclined,
			TransactionID: outcome.TransactionID,
			Reason:        outcome.Reason,
		}, nil
	}
}

// GetInvoice returns the invoice for a status poll.
func (s *CheckoutService) GetInvoice(invoiceNo string) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByInvoiceNo(invoiceNo)
	if err != nil {
		return nil, ErrInvoiceUpdateFailed
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	return invoice, nil
}

// failInvoice moves the invoice to failed after a decline or gateway
// error. Best effort: a status-write failure is logged, not surfaced,
// so the caller can still report the gateway outcome. Never touches a
// paid invoice, and the paid latch can still override failed if the
// gateway's webhook later confirms the sale.
func (s *CheckoutService) failInvoice(invoice *models.Invoice, log *zap.SugaredLogger) {
	if invoice == nil || invoice.PaymentStatus == constants.InvoiceStatusPaid {
		return
	}
	now := time.Now()
	if err := s.invoiceRepo.UpdateStatus(invoice.ID, constants.InvoiceStatusFailed, map[string]interface{}{
		"updated_at": now,
	}); err != nil {
		log.Errorw("checkout_fail_status_update_failed",
			"invoice_id", invoice.ID,
			"error", err,
		)
		return
	}
	invoice.PaymentStatus = constants.InvoiceStatusFailed
	invoice.UpdatedAt = now
}

// paidTransition is the evidence backing a paid latch.
type paidTransition struct {
	Provider      string
	TransactionID string
	Amount        models.Money
	Currency      string
	PaymentMethod string
	Payload       models.JSON
	PaidAt        time.Time
}

// markInvoicePaid applies the one-way paid latch plus the ledger insert
// in one transaction. The ledger row rides on the transaction-id unique
// index, so the synchronous completer and the webhook reconciler can
// both call this with the same evidence and exactly one of them flips
// the invoice. Returns whether this call performed the flip.
func (s *CheckoutService) markInvoicePaid(invoice *models.Invoice, transition paidTransition, log *zap.SugaredLogger) (*models.Invoice, bool, error) {
	if invoice == nil {
		return nil, false, ErrInvoiceNotFound
	}
	if strings.TrimSpace(transition.TransactionID) == "" {
		log.Warnw("invoice_paid_missing_transaction_id")
		return nil, false, ErrGatewayResponseInvalid
	}

	newlyPaid := false
	paidAt := transition.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		invoiceRepo := s.invoiceRepo.WithTx(tx)
		paymentRepo := s.paymentRepo.WithTx(tx)

		current, err := invoiceRepo.GetByID(invoice.ID)
		if err != nil {
			return ErrInvoiceUpdateFailed
		}
		if current == nil {
			return ErrInvoiceNotFound
		}

		inserted, err := paymentRepo.CreateIfAbsent(&models.Payment{
			InvoiceID:       invoice.ID,
			TransactionID:   strings.TrimSpace(transition.TransactionID),
			Provider:        transition.Provider,
			Amount:          transition.Amount,
			Currency:        strings.ToUpper(strings.TrimSpace(transition.Currency)),
			Status:          constants.PaymentStatusSucceeded,
			PaymentMethod:   transition.PaymentMethod,
			CustomerEmail:   current.CustomerEmail,
			ProviderPayload: transition.Payload,
		})
		if err != nil {
			return ErrInvoiceUpdateFailed
		}
		if !inserted {
			log.Infow("invoice_paid_ledger_duplicate",
				"invoice_id", invoice.ID,
				"transaction_id", transition.TransactionID,
			)
		}

		if current.PaymentStatus == constants.InvoiceStatusPaid {
			invoice.PaymentStatus = current.PaymentStatus
			invoice.PaidAt = current.PaidAt
			invoice.PaymentMethod = current.PaymentMethod
			return nil
		}

		if err := invoiceRepo.UpdateStatus(invoice.ID, constants.InvoiceStatusPaid, map[string]interface{}{
			"paid_at":        paidAt,
			"payment_method": transition.PaymentMethod,
			"updated_at":     paidAt,
		}); err != nil {
			return ErrInvoiceUpdateFailed
		}
		invoice.PaymentStatus = constants.InvoiceStatusPaid
		invoice.PaidAt = &paidAt
		invoice.PaymentMethod = transition.PaymentMethod
		invoice.UpdatedAt = paidAt
		newlyPaid = true
		return nil
	})
	if err != nil {
		log.Errorw("invoice_paid_transaction_failed",
			"invoice_id", invoice.ID,
			"transaction_id", transition.TransactionID,
			"error", err,
		)
		return nil, false, err
	}

	if newlyPaid {
		log.Infow("invoice_paid",
			"invoice_id", invoice.ID,
			"transaction_id", transition.TransactionID,
			"provider", transition.Provider,
		)
		s.enqueueBookingConfirmationAsync(invoice, log)
	}
	return invoice, newlyPaid, nil
}

func (s *CheckoutService) enqueueBookingConfirmationAsync(invoice *models.Invoice, log *zap.SugaredLogger) {
	if s.queueClient == nil || invoice == nil {
		return
	}
	if err := s.queueClient.EnqueueBookingConfirmation(queue.BookingConfirmationPayload{
		InvoiceID: invoice.ID,
		InvoiceNo: invoice.InvoiceNo,
	}, asynq.MaxRetry(5)); err != nil {
		log.Warnw("booking_confirmation_enqueue_failed",
			"invoice_id", invoice.ID,
			"error", err,
		)
	}
}

func (s *CheckoutService) enqueueOperatorAlertAsync(payload queue.OperatorAlertPayload, log *zap.SugaredLogger) {
	if s.queueClient == nil {
		return
	}
	if err := s.queueClient.EnqueueOperatorAlert(payload, asynq.MaxRetry(5)); err != nil {
		log.Warnw("operator_alert_enqueue_failed",
			"kind", payload.Kind,
			"invoice_no", payload.InvoiceNo,
			"error", err,
		)
	}
}

func validateStartPayment(input *StartPaymentInput) error {
	if input == nil {
		return ErrCheckoutInvalid
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrCheckoutInvalid)
	}
	email := strings.TrimSpace(input.CustomerEmail)
	if email == "" {
		return fmt.Errorf("%w: customer email is required", ErrCheckoutInvalid)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: customer email is invalid", ErrCheckoutInvalid)
	}
	if strings.TrimSpace(input.Route) == "" {
		return fmt.Errorf("%w: route is required", ErrCheckoutInvalid)
	}
	if input.Passengers <= 0 {
		input.Passengers = 1
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(input.Amount))
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount must be a positive number", ErrCheckoutInvalid)
	}
	if len(strings.TrimSpace(input.Currency)) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrCheckoutInvalid)
	}
	return nil
}

func mapCardgateError(err error) error {
	switch {
	case errors.Is(err, cardgate.ErrConfigInvalid):
		return fmt.Errorf("%w: %v", ErrGatewayConfigInvalid, err)
	case errors.Is(err, cardgate.ErrRequestFailed):
		return ErrGatewayRequestFailed
	case errors.Is(err, cardgate.ErrSignatureInvalid):
		return ErrWebhookSignatureInvalid
	case errors.Is(err, cardgate.ErrResponseInvalid):
		return ErrGatewayResponseInvalid
	default:
		return ErrGatewayRequestFailed
	}
}

func valuesToJSON(values map[string][]string) models.JSON {
	payload := models.JSON{}
	for key, vals := range values {
		if len(vals) == 1 {
			payload[key] = vals[0]
			continue
		}
		payload[key] = vals
	}
	return payload
}

func generateInvoiceNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("FW%s%s", now, randNumeric(6))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}

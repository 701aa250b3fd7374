package service

import (
	"errors"
	"strings"
	"time"

	"github.com/farewire/farewire/internal/constants"
	"github.com/farewire/farewire/internal/models"
	"github.com/farewire/farewire/internal/payment/cardgate"
	"github.com/farewire/farewire/internal/payment/paylink"
	"github.com/farewire/farewire/internal/queue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WebhookInput is a raw gateway notification as received on the wire.
// Body must be the exact bytes the gateway sent; signatures cover them.
type WebhookInput struct {
	Headers map[string]string
	Body    []byte
}

const alertKindUnknownInvoice = "webhook_unknown_invoice"
const alertKindAmountMismatch = "webhook_amount_mismatch"

// HandleCardgateWebhook verifies and applies a card gateway
// notification. A nil return tells the handler to acknowledge; the
// gateway redelivers on anything else.
func (s *CheckoutService) HandleCardgateWebhook(input WebhookInput) error {
	log := checkoutLogger(
		"provider", constants.PaymentProviderCardgate,
		"body_size", len(input.Body),
	)

	if s.cardgateCfg == nil || strings.TrimSpace(s.cardgateCfg.WebhookSecret) == "" {
		log.Errorw("webhook_secret_missing")
		return ErrGatewayConfigInvalid
	}

	header := headerValue(input.Headers, "Cardgate-Signature")
	if !cardgate.VerifyWebhookSignature(s.cardgateCfg.WebhookSecret, header, input.Body, time.Now(), s.cardgateCfg.WebhookToleranceSeconds) {
		log.Warnw("webhook_signature_invalid")
		return ErrWebhookSignatureInvalid
	}

	event, err := cardgate.ParseWebhookEvent(input.Body)
	if err != nil {
		log.Warnw("webhook_payload_invalid", "error", err)
		return ErrWebhookPayloadInvalid
	}
	log = checkoutLogger(
		"provider", constants.PaymentProviderCardgate,
		"invoice_no", event.InvoiceNo,
		"transaction_id", event.TransactionID,
		"response_code", event.ResponseCode,
	)

	if !event.IsSale() {
		log.Infow("webhook_event_ignored")
		return nil
	}

	return s.applyPaidNotification(paidNotification{
		Provider:      constants.PaymentProviderCardgate,
		InvoiceNo:     event.InvoiceNo,
		TransactionID: event.TransactionID,
		Amount:        event.Amount,
		Currency:      event.Currency,
		PaymentMethod: firstNonEmpty(event.PaymentMethod, "card"),
		Payload:       valuesToJSON(event.Raw),
	}, log)
}

// HandlePaylinkWebhook verifies and applies a payment-link
// notification.
func (s *CheckoutService) HandlePaylinkWebhook(input WebhookInput) error {
	log := checkoutLogger(
		"provider", constants.PaymentProviderPaylink,
		"body_size", len(input.Body),
	)

	notification, err := paylink.ParseNotification(input.Body)
	if err != nil {
		log.Warnw("webhook_payload_invalid", "error", err)
		return ErrWebhookPayloadInvalid
	}
	if err := paylink.VerifyNotification(s.paylinkCfg, notification); err != nil {
		log.Warnw("webhook_signature_invalid", "error", err)
		if errors.Is(err, paylink.ErrConfigInvalid) {
			return ErrGatewayConfigInvalid
		}
		return ErrWebhookSignatureInvalid
	}
	log = checkoutLogger(
		"provider", constants.PaymentProviderPaylink,
		"invoice_no", notification.InvoiceNo,
		"transaction_id", notification.TransactionID,
		"status", notification.Status,
	)

	if !notification.IsPaid() {
		log.Infow("webhook_event_ignored")
		return nil
	}

	return s.applyPaidNotification(paidNotification{
		Provider:      constants.PaymentProviderPaylink,
		InvoiceNo:     notification.InvoiceNo,
		TransactionID: notification.TransactionID,
		Amount:        notification.GetAmount(),
		Currency:      notification.Currency,
		PaymentMethod: firstNonEmpty(notification.PaymentMethod, "payment_link"),
		Payload:       notificationToJSON(notification),
	}, log)
}

// paidNotification is a verified paid event from either provider.
type paidNotification struct {
	Provider      string
	InvoiceNo     string
	TransactionID string
	Amount        string
	Currency      string
	PaymentMethod string
	Payload       models.JSON
}

// applyPaidNotification correlates the event to an invoice and runs the
// idempotent paid transition. Unknown invoices and amount mismatches
// are acknowledged so the gateway stops retrying, but operations gets
// paged: money moved and the books do not reflect it.
func (s *CheckoutService) applyPaidNotification(event paidNotification, log *zap.SugaredLogger) error {
	if strings.TrimSpace(event.InvoiceNo) == "" {
		log.Warnw("webhook_invoice_no_missing")
		s.enqueueOperatorAlertAsync(queue.OperatorAlertPayload{
			Kind:          alertKindUnknownInvoice,
			Provider:      event.Provider,
			TransactionID: event.TransactionID,
			Message:       "paid notification without invoice number",
		}, log)
		return nil
	}

	invoice, err := s.invoiceRepo.GetByInvoiceNo(event.InvoiceNo)
	if err != nil {
		log.Errorw("webhook_invoice_fetch_failed", "error", err)
		return ErrInvoiceUpdateFailed
	}
	if invoice == nil {
		log.Warnw("webhook_invoice_not_found")
		s.enqueueOperatorAlertAsync(queue.OperatorAlertPayload{
			Kind:          alertKindUnknownInvoice,
			Provider:      event.Provider,
			InvoiceNo:     event.InvoiceNo,
			TransactionID: event.TransactionID,
			Message:       "paid notification references unknown invoice",
		}, log)
		return nil
	}

	amount := invoice.Amount
	if strings.TrimSpace(event.Amount) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(event.Amount))
		if err != nil {
			log.Warnw("webhook_amount_invalid", "amount", event.Amount)
			return ErrWebhookPayloadInvalid
		}
		if parsed.Cmp(invoice.Amount.Decimal) != 0 || !currencyMatches(event.Currency, invoice.Currency) {
			log.Warnw("webhook_amount_mismatch",
				"invoice_amount", invoice.Amount.String(),
				"event_amount", parsed.String(),
				"invoice_currency", invoice.Currency,
				"event_currency", event.Currency,
			)
			s.enqueueOperatorAlertAsync(queue.OperatorAlertPayload{
				Kind:          alertKindAmountMismatch,
				Provider:      event.Provider,
				InvoiceNo:     event.InvoiceNo,
				TransactionID: event.TransactionID,
				Message:       "paid notification amount does not match invoice",
			}, log)
			return nil
		}
		amount = models.NewMoneyFromDecimal(parsed)
	}

	_, newlyPaid, err := s.markInvoicePaid(invoice, paidTransition{
		Provider:      event.Provider,
		TransactionID: event.TransactionID,
		Amount:        amount,
		Currency:      firstNonEmpty(event.Currency, invoice.Currency),
		PaymentMethod: event.PaymentMethod,
		Payload:       event.Payload,
		PaidAt:        time.Now(),
	}, log)
	if err != nil {
		return err
	}
	log.Infow("webhook_processed", "newly_paid", newlyPaid)
	return nil
}

func notificationToJSON(notification *paylink.Notification) models.JSON {
	if notification == nil {
		return models.JSON{}
	}
	return models.JSON{
		"invoice_no":     notification.InvoiceNo,
		"transaction_id": notification.TransactionID,
		"amount":         notification.GetAmount(),
		"currency":       notification.Currency,
		"status":         notification.Status,
		"payment_method": notification.PaymentMethod,
	}
}

func currencyMatches(eventCurrency, invoiceCurrency string) bool {
	eventCurrency = strings.ToUpper(strings.TrimSpace(eventCurrency))
	if eventCurrency == "" {
		return true
	}
	return eventCurrency == strings.ToUpper(strings.TrimSpace(invoiceCurrency))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func headerValue(headers map[string]string, name string) string {
	if headers == nil {
		return ""
	}
	if value, ok := headers[name]; ok {
		return value
	}
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

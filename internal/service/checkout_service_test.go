package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/farewire/farewire/internal/constants"
	"github.com/farewire/farewire/internal/models"
	"github.com/farewire/farewire/internal/payment/cardgate"
	"github.com/farewire/farewire/internal/payment/paylink"
	"github.com/farewire/farewire/internal/queue"
	"github.com/farewire/farewire/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupCheckoutServiceTest(t *testing.T) *CheckoutService {
	t.Helper()
	dsn := fmt.Sprintf("file:checkout_svc_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Invoice{}, &models.Payment{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	return NewCheckoutService(
		repository.NewInvoiceRepository(db),
		repository.NewPaymentRepository(db),
		queueClient,
		&cardgate.Config{
			APIBaseURL:              "https://gw.example.com",
			PrivateKey:              "pk_test_123",
			WebhookSecret:           "whsec_test_abc",
			TimeoutSeconds:          5,
			WebhookToleranceSeconds: 300,
		},
		&paylink.Config{SigningKey: "plk_test_key"},
	)
}

func createTestInvoice(t *testing.T, svc *CheckoutService, invoiceNo string) *models.Invoice {
	t.Helper()
	invoice := &models.Invoice{
		InvoiceNo:     invoiceNo,
		CustomerName:  "Ada Traveler",
		CustomerEmail: "ada@example.com",
		Route:         "JFK-LHR round trip",
		Passengers:    2,
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromFloat(499.90)),
		Currency:      "USD",
		PaymentStatus: constants.InvoiceStatusUnpaid,
	}
	if err := svc.invoiceRepo.Create(invoice); err != nil {
		t.Fatalf("create invoice failed: %v", err)
	}
	return invoice
}

func cardgateSignature(secret string, timestamp int64, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(strconv.FormatInt(timestamp, 10) + "." + string(body)))
	return hex.EncodeToString(h.Sum(nil))
}

func signedCardgateInput(body string) WebhookInput {
	now := time.Now().Unix()
	sig := cardgateSignature("whsec_test_abc", now, []byte(body))
	return WebhookInput{
		Headers: map[string]string{
			"Cardgate-Signature": fmt.Sprintf("t=%d,v1=%s", now, sig),
		},
		Body: []byte(body),
	}
}

func TestStartPaymentValidation(t *testing.T) {
	svc := setupCheckoutServiceTest(t)

	_, err := svc.StartPayment(StartPaymentInput{
		CustomerName:  "Ada Traveler",
		CustomerEmail: "not-an-email",
		Route:         "JFK-LHR",
		Amount:        "100.00",
		Currency:      "USD",
	})
	if err == nil {
		t.Fatalf("expected validation error for bad email")
	}

	_, err = svc.StartPayment(StartPaymentInput{
		CustomerName:  "Ada Traveler",
		CustomerEmail: "ada@example.com",
		Route:         "JFK-LHR",
		Amount:        "-1",
		Currency:      "USD",
	})
	if err == nil {
		t.Fatalf("expected validation error for negative amount")
	}

	_, err = svc.StartPayment(StartPaymentInput{
		CustomerName:  "Ada Traveler",
		CustomerEmail: "ada@example.com",
		Route:         "JFK-LHR",
		Amount:        "100.00",
		Currency:      "DOLLARS",
	})
	if err == nil {
		t.Fatalf("expected validation error for bad currency")
	}
}

func TestStartPaymentCreatesInvoiceAndHandshake(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("form-url=https%3A%2F%2Fsecure.example.com%2Fform%2Fabc&token-id=tok_123"))
	}))
	defer server.Close()

	svc := setupCheckoutServiceTest(t)
	svc.cardgateCfg.APIBaseURL = server.URL

	result, err := svc.StartPayment(StartPaymentInput{
		CustomerName:  "Ada Traveler",
		CustomerEmail: "ada@example.com",
		Route:         "JFK-LHR round trip",
		Passengers:    2,
		Amount:        "499.90",
		Currency:      "usd",
	})
	if err != nil {
		t.Fatalf("start payment failed: %v", err)
	}
	if result.TokenID != "tok_123" {
		t.Fatalf("unexpected token id: %s", result.TokenID)
	}
	if result.Invoice.PaymentStatus != constants.InvoiceStatusUnpaid {
		t.Fatalf("unexpected invoice status: %s", result.Invoice.PaymentStatus)
	}
	if result.Invoice.Currency != "USD" {
		t.Fatalf("unexpected currency: %s", result.Invoice.Currency)
	}

	stored, err := svc.GetInvoice(result.Invoice.InvoiceNo)
	if err != nil {
		t.Fatalf("get invoice failed: %v", err)
	}
	if stored.Amount.String() != "499.90" {
		t.Fatalf("unexpected stored amount: %s", stored.Amount.String())
	}
}

func TestCompletePaymentApproved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("response-code=100&transaction-id=txn_complete_1&response-text=SUCCESS"))
	}))
	defer server.Close()

	svc := setupCheckoutServiceTest(t)
	svc.cardgateCfg.APIBaseURL = server.URL
	invoice := createTestInvoice(t, svc, "FW20260801000001")

	result, err := svc.CompletePayment(CompletePaymentInput{
		InvoiceNo: invoice.InvoiceNo,
		TokenID:   "tok_123",
	})
	if err != nil {
		t.Fatalf("complete payment failed: %v", err)
	}
	if result.Outcome != constants.CheckoutOutcomeSuccess {
		t.Fatalf("unexpected outcome: %s", result.Outcome)
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusPaid {
		t.Fatalf("expected paid invoice, got: %s", stored.PaymentStatus)
	}
	if stored.PaidAt == nil {
		t.Fatalf("expected paid_at to be set")
	}

	payment, err := svc.paymentRepo.GetByTransactionID("txn_complete_1")
	if err != nil {
		t.Fatalf("get payment failed: %v", err)
	}
	if payment == nil {
		t.Fatalf("expected ledger entry")
	}
	if payment.Status != constants.PaymentStatusSucceeded {
		t.Fatalf("unexpected payment status: %s", payment.Status)
	}
}

func TestCompletePaymentIdempotentWhenPaid(t *testing.T) {
	svc := setupCheckoutServiceTest(t)
	invoice := createTestInvoice(t, svc, "FW20260801000002")
	now := time.Now()
	if err := svc.invoiceRepo.UpdateStatus(invoice.ID, constants.InvoiceStatusPaid, map[string]interface{}{
		"paid_at": now,
	}); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}

	// No gateway server is running; a second completion must not call out.
	result, err := svc.CompletePayment(CompletePaymentInput{
		InvoiceNo: invoice.InvoiceNo,
		TokenID:   "tok_123",
	})
	if err != nil {
		t.Fatalf("complete payment failed: %v", err)
	}
	if result.Outcome != constants.CheckoutOutcomeSuccess {
		t.Fatalf("unexpected outcome: %s", result.Outcome)
	}
}

func TestStartPaymentGatewayErrorMarksInvoiceFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // unreachable gateway

	svc := setupCheckoutServiceTest(t)
	svc.cardgateCfg.APIBaseURL = server.URL

	_, err := svc.StartPayment(StartPaymentInput{
		CustomerName:  "Ada Traveler",
		CustomerEmail: "ada@example.com",
		Route:         "JFK-LHR round trip",
		Passengers:    2,
		Amount:        "499.90",
		Currency:      "USD",
	})
	if !errors.Is(err, ErrGatewayRequestFailed) {
		t.Fatalf("expected gateway request error, got: %v", err)
	}

	var failed int64
	if err := models.DB.Model(&models.Invoice{}).
		Where("payment_status = ?", constants.InvoiceStatusFailed).
		Count(&failed).Error; err != nil {
		t.Fatalf("count invoices failed: %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected the created invoice to be failed, got %d failed invoices", failed)
	}
}

func TestCompletePaymentGatewayErrorReturnsFailedOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // unreachable gateway

	svc := setupCheckoutServiceTest(t)
	svc.cardgateCfg.APIBaseURL = server.URL
	invoice := createTestInvoice(t, svc, "FW20260801000014")

	result, err := svc.CompletePayment(CompletePaymentInput{
		InvoiceNo: invoice.InvoiceNo,
		TokenID:   "tok_gw_down",
	})
	if err != nil {
		t.Fatalf("gateway failure is an outcome, not an error: %v", err)
	}
	if result.Outcome != constants.CheckoutOutcomeFailed {
		t.Fatalf("unexpected outcome: %s", result.Outcome)
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusFailed {
		t.Fatalf("unexpected invoice status: %s", stored.PaymentStatus)
	}
	payments, _ := svc.paymentRepo.ListByInvoiceID(invoice.ID)
	if len(payments) != 0 {
		t.Fatalf("gateway failure must not write the ledger")
	}
}

func TestCompletePaymentConfigErrorFailsInvoice(t *testing.T) {
	svc := setupCheckoutServiceTest(t)
	svc.cardgateCfg.PrivateKey = ""
	invoice := createTestInvoice(t, svc, "FW20260801000015")

	_, err := svc.CompletePayment(CompletePaymentInput{
		InvoiceNo: invoice.InvoiceNo,
		TokenID:   "tok_no_cfg",
	})
	if !errors.Is(err, ErrGatewayConfigInvalid) {
		t.Fatalf("expected config error, got: %v", err)
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusFailed {
		t.Fatalf("unexpected invoice status: %s", stored.PaymentStatus)
	}
}

func TestCompletePaymentIdempotentWhenFailed(t *testing.T) {
	svc := setupCheckoutServiceTest(t)
	invoice := createTestInvoice(t, svc, "FW20260801000016")
	if err := svc.invoiceRepo.UpdateStatus(invoice.ID, constants.InvoiceStatusFailed, nil); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	// No gateway server is running; a failed invoice must not be re-charged.
	result, err := svc.CompletePayment(CompletePaymentInput{
		InvoiceNo: invoice.InvoiceNo,
		TokenID:   "tok_retry",
	})
	if err != nil {
		t.Fatalf("complete payment failed: %v", err)
	}
	if result.Outcome != constants.CheckoutOutcomeDeclined {
		t.Fatalf("unexpected outcome: %s", result.Outcome)
	}
}

func TestHandleCardgateWebhookPaidOverridesFailed(t *testing.T) {
	svc := setupCheckoutServiceTest(t)
	invoice := createTestInvoice(t, svc, "FW20260801000017")
	if err := svc.invoiceRepo.UpdateStatus(invoice.ID, constants.InvoiceStatusFailed, nil); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	// The gateway's notification is the source of truth: a sale it
	// confirms wins over a locally recorded gateway failure.
	body := fmt.Sprintf("invoice-no=%s&transaction-id=txn_hook_5&response-code=100&amount=499.90&currency=USD", invoice.InvoiceNo)
	if err := svc.HandleCardgateWebhook(signedCardgateInput(body)); err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusPaid {
		t.Fatalf("expected paid invoice, got: %s", stored.PaymentStatus)
	}
}

func TestCompletePaymentChallenge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("response-code=350&transaction-id=txn_3ds_1&redirect-url=https%3A%2F%2Facs.example.com%2F3ds"))
	}))
	defer server.Close()

	svc := setupCheckoutServiceTest(t)
	svc.cardgateCfg.APIBaseURL = server.URL
	invoice := createTestInvoice(t, svc, "FW20260801000003")

	result, err := svc.CompletePayment(CompletePaymentInput{
		InvoiceNo: invoice.InvoiceNo,
		TokenID:   "tok_124",
	})
	if err != nil {
		t.Fatalf("complete payment failed: %v", err)
	}
	if result.Outcome != constants.CheckoutOutcomeRequires3DS {
		t.Fatalf("unexpected outcome: %s", result.Outcome)
	}
	if result.RedirectURL == "" {
		t.Fatalf("expected redirect url")
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusPendingChallenge {
		t.Fatalf("unexpected invoice status: %s", stored.PaymentStatus)
	}
}

func TestCompletePaymentDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("response-code=200&transaction-id=txn_decl_1&response-text=DECLINED"))
	}))
	defer server.Close()

	svc := setupCheckoutServiceTest(t)
	svc.cardgateCfg.APIBaseURL = server.URL
	invoice := createTestInvoice(t, svc, "FW20260801000004")

	result, err := svc.CompletePayment(CompletePaymentInput{
		InvoiceNo: invoice.InvoiceNo,
		TokenID:   "tok_125",
	})
	if err != nil {
		t.Fatalf("complete payment failed: %v", err)
	}
	if result.Outcome != constants.CheckoutOutcomeDeclined {
		t.Fatalf("unexpected outcome: %s", result.Outcome)
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusFailed {
		t.Fatalf("unexpected invoice status: %s", stored.PaymentStatus)
	}
	if payment, _ := svc.paymentRepo.GetByTransactionID("txn_decl_1"); payment != nil {
		t.Fatalf("declined transaction must not reach the ledger")
	}
}

func TestCompletePaymentUnknownInvoice(t *testing.T) {
	svc := setupCheckoutServiceTest(t)
	_, err := svc.CompletePayment(CompletePaymentInput{
		InvoiceNo: "FW00000000000000",
		TokenID:   "tok_123",
	})
	if err != ErrInvoiceNotFound {
		t.Fatalf("expected invoice not found, got: %v", err)
	}
}

func TestHandleCardgateWebhookPaid(t *testing.T) {
	svc := setupCheckoutServiceTest(t)
	invoice := createTestInvoice(t, svc, "FW20260801000005")

	body := fmt.Sprintf("invoice-no=%s&transaction-id=txn_hook_1&response-code=100&amount=499.90&currency=USD&payment-method=visa", invoice.InvoiceNo)
	if err := svc.HandleCardgateWebhook(signedCardgateInput(body)); err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusPaid {
		t.Fatalf("expected paid invoice, got: %s", stored.PaymentStatus)
	}
	payment, _ := svc.paymentRepo.GetByTransactionID("txn_hook_1")
	if payment == nil {
		t.Fatalf("expected ledger entry")
	}
	if payment.PaymentMethod != "visa" {
		t.Fatalf("unexpected payment method: %s", payment.PaymentMethod)
	}
}

func TestHandleCardgateWebhookDuplicateDelivery(t *testing.T) {
	svc := setupCheckoutServiceTest(t)
	invoice := createTestInvoice(t, svc, "FW20260801000006")

	body := fmt.Sprintf("invoice-no=%s&transaction-id=txn_hook_2&response-code=100&amount=499.90&currency=USD", invoice.InvoiceNo)
	for i := 0; i < 3; i++ {
		if err := svc.HandleCardgateWebhook(signedCardgateInput(body)); err != nil {
			t.Fatalf("delivery %d failed: %v", i+1, err)
		}
	}

	payments, err := svc.paymentRepo.ListByInvoiceID(invoice.ID)
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", len(payments))
	}
}

func TestHandleCardgateWebhookBadSignature(t *testing.T) {
	svc := setupCheckoutServiceTest(t)
	invoice := createTestInvoice(t, svc, "FW20260801000007")

	body := fmt.Sprintf("invoice-no=%s&transaction-id=txn_hook_3&response-code=100", invoice.InvoiceNo)
	input := WebhookInput{
		Headers: map[string]string{
			"Cardgate-Signature": fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix()),
		},
		Body: []byte(body),
	}
	if err := svc.HandleCardgateWebhook(input); err != ErrWebhookSignatureInvalid {
		t.Fatalf("expected signature error, got: %v", err)
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusUnpaid {
		t.Fatalf("rejected webhook must not change the invoice")
	}
	if payment, _ := svc.paymentRepo.GetByTransactionID("txn_hook_3"); payment != nil {
		t.Fatalf("rejected webhook must not write the ledger")
	}
}

func TestHandleCardgateWebhookIgnoredEvent(t *testing.T) {
	svc := setupCheckoutServiceTest(t)
	invoice := createTestInvoice(t, svc, "FW20260801000008")

	body := fmt.Sprintf("invoice-no=%s&transaction-id=txn_refund_1&response-code=300", invoice.InvoiceNo)
	if err := svc.HandleCardgateWebhook(signedCardgateInput(body)); err != nil {
		t.Fatalf("ignored event must be acknowledged: %v", err)
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusUnpaid {
		t.Fatalf("ignored event must not change the invoice")
	}
}

func TestHandleCardgateWebhookUnknownInvoiceAcked(t *testing.T) {
	svc := setupCheckoutServiceTest(t)

	body := "invoice-no=FW99999999999999&transaction-id=txn_orphan_1&response-code=100&amount=10.00&currency=USD"
	if err := svc.HandleCardgateWebhook(signedCardgateInput(body)); err != nil {
		t.Fatalf("unknown invoice must be acknowledged: %v", err)
	}
}

func TestHandleCardgateWebhookAmountMismatch(t *testing.T) {
	svc := setupCheckoutServiceTest(t)
	invoice := createTestInvoice(t, svc, "FW20260801000009")

	body := fmt.Sprintf("invoice-no=%s&transaction-id=txn_hook_4&response-code=100&amount=1.00&currency=USD", invoice.InvoiceNo)
	if err := svc.HandleCardgateWebhook(signedCardgateInput(body)); err != nil {
		t.Fatalf("amount mismatch must be acknowledged: %v", err)
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusUnpaid {
		t.Fatalf("mismatched amount must not mark the invoice paid")
	}
	if payment, _ := svc.paymentRepo.GetByTransactionID("txn_hook_4"); payment != nil {
		t.Fatalf("mismatched amount must not write the ledger")
	}
}

func TestCompleteAndWebhookRaceSingleLedgerEntry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("response-code=100&transaction-id=txn_race_1"))
	}))
	defer server.Close()

	svc := setupCheckoutServiceTest(t)
	svc.cardgateCfg.APIBaseURL = server.URL
	invoice := createTestInvoice(t, svc, "FW20260801000010")

	if _, err := svc.CompletePayment(CompletePaymentInput{
		InvoiceNo: invoice.InvoiceNo,
		TokenID:   "tok_race",
	}); err != nil {
		t.Fatalf("complete payment failed: %v", err)
	}

	// The gateway delivers its own notification for the same sale.
	body := fmt.Sprintf("invoice-no=%s&transaction-id=txn_race_1&response-code=100&amount=499.90&currency=USD", invoice.InvoiceNo)
	if err := svc.HandleCardgateWebhook(signedCardgateInput(body)); err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}

	payments, err := svc.paymentRepo.ListByInvoiceID(invoice.ID)
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", len(payments))
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusPaid {
		t.Fatalf("expected paid invoice, got: %s", stored.PaymentStatus)
	}
}

func TestHandlePaylinkWebhookPaid(t *testing.T) {
	svc := setupCheckoutServiceTest(t)
	invoice := createTestInvoice(t, svc, "FW20260801000011")

	payload := map[string]interface{}{
		"invoice_no":     invoice.InvoiceNo,
		"transaction_id": "pl_txn_1",
		"amount":         "499.90",
		"currency":       "USD",
		"status":         "paid",
		"nonce":          "nonce-1",
		"signature":      paylink.Sign("nonce-1", "plk_test_key"),
	}
	body, _ := json.Marshal(payload)
	if err := svc.HandlePaylinkWebhook(WebhookInput{Body: body}); err != nil {
		t.Fatalf("handle paylink webhook failed: %v", err)
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusPaid {
		t.Fatalf("expected paid invoice, got: %s", stored.PaymentStatus)
	}
	payment, _ := svc.paymentRepo.GetByTransactionID("pl_txn_1")
	if payment == nil {
		t.Fatalf("expected ledger entry")
	}
	if payment.Provider != constants.PaymentProviderPaylink {
		t.Fatalf("unexpected provider: %s", payment.Provider)
	}
}

func TestHandlePaylinkWebhookBadSignature(t *testing.T) {
	svc := setupCheckoutServiceTest(t)
	invoice := createTestInvoice(t, svc, "FW20260801000012")

	payload := map[string]interface{}{
		"invoice_no":     invoice.InvoiceNo,
		"transaction_id": "pl_txn_2",
		"status":         "paid",
		"nonce":          "nonce-2",
		"signature":      paylink.Sign("nonce-2", "wrong-key"),
	}
	body, _ := json.Marshal(payload)
	if err := svc.HandlePaylinkWebhook(WebhookInput{Body: body}); err != ErrWebhookSignatureInvalid {
		t.Fatalf("expected signature error, got: %v", err)
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusUnpaid {
		t.Fatalf("rejected notification must not change the invoice")
	}
}

func TestHandlePaylinkWebhookExpiredIgnored(t *testing.T) {
	svc := setupCheckoutServiceTest(t)
	invoice := createTestInvoice(t, svc, "FW20260801000013")

	payload := map[string]interface{}{
		"invoice_no":     invoice.InvoiceNo,
		"transaction_id": "pl_txn_3",
		"status":         "expired",
		"nonce":          "nonce-3",
		"signature":      paylink.Sign("nonce-3", "plk_test_key"),
	}
	body, _ := json.Marshal(payload)
	if err := svc.HandlePaylinkWebhook(WebhookInput{Body: body}); err != nil {
		t.Fatalf("ignored notification must be acknowledged: %v", err)
	}

	stored, _ := svc.GetInvoice(invoice.InvoiceNo)
	if stored.PaymentStatus != constants.InvoiceStatusUnpaid {
		t.Fatalf("ignored notification must not change the invoice")
	}
}

func TestMapCardgateError(t *testing.T) {
	if got := mapCardgateError(cardgate.ErrRequestFailed); got != ErrGatewayRequestFailed {
		t.Fatalf("expected request failed mapping, got: %v", got)
	}
	if got := mapCardgateError(cardgate.ErrResponseInvalid); got != ErrGatewayResponseInvalid {
		t.Fatalf("expected response invalid mapping, got: %v", got)
	}
}

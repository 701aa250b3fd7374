package cardgate

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid    = errors.New("cardgate config invalid")
	ErrRequestFailed    = errors.New("cardgate request failed")
	ErrResponseInvalid  = errors.New("cardgate response invalid")
	ErrSignatureInvalid = errors.New("cardgate signature invalid")
)

const (
	defaultTimeout           = 15 * time.Second
	defaultWebhookToleranceS = 300

	stepOnePath   = "/api/v2/three-step/transaction"
	stepThreePath = "/api/v2/three-step/complete"
	salePath      = "/api/v2/transact"
)

// Gateway response codes. Everything the mapping does not recognize is
// treated as a decline, never a success.
const (
	ResponseCodeApproved  = "100"
	ResponseCodeDeclined  = "200"
	ResponseCodeChallenge = "350"
)

// OutcomeKind tags the normalized finalize/sale result.
type OutcomeKind string

const (
	OutcomeSucceeded         OutcomeKind = "succeeded"
	OutcomeChallengeRequired OutcomeKind = "challenge_required"
	OutcomeDeclined          OutcomeKind = "declined"
)

// Config holds the gateway credentials and tuning.
type Config struct {
	APIBaseURL              string
	PrivateKey              string
	WebhookSecret           string
	TimeoutSeconds          int
	WebhookToleranceSeconds int
}

// InitiateInput is the step-one request.
type InitiateInput struct {
	OrderNo     string
	Amount      string
	Currency    string
	Description string
	Email       string
	RedirectURL string
}

// InitiateResult is the step-one response: the hosted form URL the
// browser posts card data to, and the handshake token for step three.
type InitiateResult struct {
	FormURL string
	TokenID string
	Raw     url.Values
}

// BillingInfo carries the cardholder billing fields for step three.
type BillingInfo struct {
	FirstName string
	LastName  string
	Address   string
	City      string
	State     string
	Zip       string
	Country   string
}

// FinalizeInput is the step-three request.
type FinalizeInput struct {
	TokenID  string
	Amount   string
	Currency string
	OrderNo  string
	Email    string
	Billing  BillingInfo
}

// SaleInput is the legacy one-step sale request.
type SaleInput struct {
	Amount   string
	Currency string
	OrderNo  string
	Email    string
	CardData map[string]string
}

// Outcome is the tagged result of a finalize or sale call. The rest of
// the system branches on Kind, never on raw response codes.
type Outcome struct {
	Kind          OutcomeKind
	TransactionID string
	RedirectURL   string
	Reason        string
	Raw           url.Values
}

// WebhookEvent is a parsed gateway notification.
type WebhookEvent struct {
	InvoiceNo     string
	TransactionID string
	Amount        string
	Currency      string
	ResponseCode  string
	PaymentMethod string
	Raw           url.Values
}

// IsSale reports whether the event is a completed sale. Anything else
// is acknowledged and ignored by the reconciler.
func (e *WebhookEvent) IsSale() bool {
	return e != nil && strings.TrimSpace(e.ResponseCode) == ResponseCodeApproved
}

// ValidateConfig checks credential presence. Payments fail closed when
// the private key or webhook secret is missing.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return fmt.Errorf("%w: api_base_url is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(cfg.APIBaseURL)); err != nil {
		return fmt.Errorf("%w: api_base_url is invalid", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return fmt.Errorf("%w: private_key is required", ErrConfigInvalid)
	}
	return nil
}

// Initiate performs step one of the three-step handshake.
func Initiate(ctx context.Context, cfg *Config, input InitiateInput) (*InitiateResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	orderNo := strings.TrimSpace(input.OrderNo)
	if orderNo == "" {
		return nil, fmt.Errorf("%w: order_no is required", ErrConfigInvalid)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrConfigInvalid)
	}
	amount, err := normalizeAmount(input.Amount)
	if err != nil {
		return nil, err
	}

	form := map[string]string{
		"security-key": cfg.PrivateKey,
		"amount":       amount,
		"currency":     currency,
		"order-id":     orderNo,
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		form["email"] = email
	}
	if desc := strings.TrimSpace(input.Description); desc != "" {
		form["order-description"] = desc
	}
	if redirect := strings.TrimSpace(input.RedirectURL); redirect != "" {
		form["redirect-url"] = redirect
	}

	values, err := postForm(ctx, cfg, stepOnePath, form)
	if err != nil {
		return nil, err
	}

	result := &InitiateResult{
		FormURL: strings.TrimSpace(values.Get("form-url")),
		TokenID: strings.TrimSpace(values.Get("token-id")),
		Raw:     values,
	}
	if result.FormURL == "" || result.TokenID == "" {
		message := strings.TrimSpace(values.Get("error-message"))
		if message == "" {
			message = "missing form-url or token-id"
		}
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, message)
	}
	return result, nil
}

// Finalize performs step three: completing the handshake with the
// token the browser carried through the hosted form.
func Finalize(ctx context.Context, cfg *Config, input FinalizeInput) (*Outcome, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	tokenID := strings.TrimSpace(input.TokenID)
	if tokenID == "" {
		return nil, fmt.Errorf("%w: token_id is required", ErrConfigInvalid)
	}
	amount, err := normalizeAmount(input.Amount)
	if err != nil {
		return nil, err
	}

	form := map[string]string{
		"security-key": cfg.PrivateKey,
		"token-id":     tokenID,
		"amount":       amount,
		"currency":     strings.ToUpper(strings.TrimSpace(input.Currency)),
		"order-id":     strings.TrimSpace(input.OrderNo),
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		form["email"] = email
	}
	fillBilling(form, input.Billing)

	values, err := postForm(ctx, cfg, stepThreePath, form)
	if err != nil {
		return nil, err
	}
	return mapOutcome(values), nil
}

// Sale performs the legacy one-step sale.
func Sale(ctx context.Context, cfg *Config, input SaleInput) (*Outcome, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	amount, err := normalizeAmount(input.Amount)
	if err != nil {
		return nil, err
	}

	form := map[string]string{
		"security-key": cfg.PrivateKey,
		"type":         "sale",
		"amount":       amount,
		"currency":     strings.ToUpper(strings.TrimSpace(input.Currency)),
		"order-id":     strings.TrimSpace(input.OrderNo),
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		form["email"] = email
	}
	for key, value := range input.CardData {
		if strings.TrimSpace(value) == "" {
			continue
		}
		form[key] = value
	}

	values, err := postForm(ctx, cfg, salePath, form)
	if err != nil {
		return nil, err
	}
	return mapOutcome(values), nil
}

// VerifyWebhookSignature checks the t=...,v1=... signature header
// against HMAC-SHA-256 over "timestamp.rawBody". It covers the exact
// unparsed body bytes; re-serializing a parsed payload breaks it.
// Returns false on any malformed input, never an error.
func VerifyWebhookSignature(secret string, signatureHeader string, body []byte, now time.Time, toleranceSeconds int) bool {
	if strings.TrimSpace(secret) == "" || len(body) == 0 {
		return false
	}
	timestamp, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return false
	}
	if now.IsZero() {
		now = time.Now()
	}
	if toleranceSeconds <= 0 {
		toleranceSeconds = defaultWebhookToleranceS
	}
	if math.Abs(float64(now.Unix()-timestamp)) > float64(toleranceSeconds) {
		return false
	}

	expected := computeSignature(secret, timestamp, body)
	for _, sig := range signatures {
		if hmac.Equal([]byte(strings.ToLower(sig)), []byte(expected)) {
			return true
		}
	}
	return false
}

// ParseWebhookEvent decodes a form-encoded gateway notification.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: body is empty", ErrResponseInvalid)
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	event := &WebhookEvent{
		InvoiceNo:     strings.TrimSpace(values.Get("invoice-no")),
		TransactionID: strings.TrimSpace(values.Get("transaction-id")),
		Amount:        strings.TrimSpace(values.Get("amount")),
		Currency:      strings.ToUpper(strings.TrimSpace(values.Get("currency"))),
		ResponseCode:  strings.TrimSpace(values.Get("response-code")),
		PaymentMethod: strings.TrimSpace(values.Get("payment-method")),
		Raw:           values,
	}
	if event.InvoiceNo == "" {
		event.InvoiceNo = strings.TrimSpace(values.Get("order-id"))
	}
	if event.TransactionID == "" {
		return nil, fmt.Errorf("%w: transaction-id is missing", ErrResponseInvalid)
	}
	return event, nil
}

// mapOutcome normalizes the raw response at the boundary. Unrecognized
// codes become declines with the raw text preserved.
func mapOutcome(values url.Values) *Outcome {
	code := strings.TrimSpace(values.Get("response-code"))
	transactionID := strings.TrimSpace(values.Get("transaction-id"))
	reason := strings.TrimSpace(values.Get("response-text"))

	switch code {
	case ResponseCodeApproved:
		return &Outcome{
			Kind:          OutcomeSucceeded,
			TransactionID: transactionID,
			Raw:           values,
		}
	case ResponseCodeChallenge:
		redirect := strings.TrimSpace(values.Get("redirect-url"))
		if redirect != "" {
			return &Outcome{
				Kind:          OutcomeChallengeRequired,
				TransactionID: transactionID,
				RedirectURL:   redirect,
				Raw:           values,
			}
		}
		// Challenge code without a redirect target cannot proceed.
		return &Outcome{
			Kind:          OutcomeDeclined,
			TransactionID: transactionID,
			Reason:        "challenge requested without redirect-url",
			Raw:           values,
		}
	default:
		if reason == "" {
			reason = fmt.Sprintf("unrecognized response-code %q", code)
		}
		return &Outcome{
			Kind:          OutcomeDeclined,
			TransactionID: transactionID,
			Reason:        reason,
			Raw:           values,
		}
	}
}

func fillBilling(form map[string]string, billing BillingInfo) {
	pairs := map[string]string{
		"first-name": billing.FirstName,
		"last-name":  billing.LastName,
		"address1":   billing.Address,
		"city":       billing.City,
		"state":      billing.State,
		"postal":     billing.Zip,
		"country":    billing.Country,
	}
	for key, value := range pairs {
		if strings.TrimSpace(value) == "" {
			continue
		}
		form[key] = strings.TrimSpace(value)
	}
}

func normalizeAmount(amount string) (string, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return "", fmt.Errorf("%w: amount is invalid", ErrConfigInvalid)
	}
	if parsed.LessThanOrEqual(decimal.Zero) {
		return "", fmt.Errorf("%w: amount must be greater than zero", ErrConfigInvalid)
	}
	return parsed.StringFixed(2), nil
}

// postForm issues a form-encoded POST and decodes the form-encoded
// response body. The gateway always answers 200 with kv text; failures
// are signaled through response fields, not status codes.
func postForm(ctx context.Context, cfg *Config, path string, form map[string]string) (url.Values, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")).
		SetTimeout(timeout)

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(form).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode())
	}
	values, err := url.ParseQuery(strings.TrimSpace(string(resp.Body())))
	if err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return values, nil
}

func computeSignature(secret string, timestamp int64, body []byte) string {
	payload := strconv.FormatInt(timestamp, 10) + "." + string(body)
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(payload))
	return strings.ToLower(hex.EncodeToString(h.Sum(nil)))
}

func parseSignatureHeader(signatureHeader string) (int64, []string, error) {
	timestamp := int64(0)
	signatures := make([]string, 0)
	for _, part := range strings.Split(signatureHeader, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil || parsed <= 0 {
				return 0, nil, fmt.Errorf("%w: invalid timestamp", ErrSignatureInvalid)
			}
			timestamp = parsed
		case "v1":
			if value != "" {
				signatures = append(signatures, strings.ToLower(value))
			}
		}
	}
	if timestamp <= 0 {
		return 0, nil, fmt.Errorf("%w: timestamp is missing", ErrSignatureInvalid)
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: v1 signature is missing", ErrSignatureInvalid)
	}
	return timestamp, signatures, nil
}

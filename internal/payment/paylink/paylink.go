package paylink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrConfigInvalid    = errors.New("paylink config invalid")
	ErrResponseInvalid  = errors.New("paylink response invalid")
	ErrSignatureInvalid = errors.New("paylink signature invalid")
)

// Notification statuses the provider sends.
const (
	StatusPaid     = "paid"
	StatusExpired  = "expired"
	StatusCanceled = "canceled"
)

// Config holds the shared signing key for the hosted payment-link
// provider. The provider pushes notifications only; no outbound calls.
type Config struct {
	SigningKey string `json:"signing_key"`
}

// Notification is a pushed payment-link event.
type Notification struct {
	InvoiceNo     string      `json:"invoice_no"`
	TransactionID string      `json:"transaction_id"`
	Amount        interface{} `json:"amount"` // float64 or string depending on provider version
	Currency      string      `json:"currency"`
	Status        string      `json:"status"`
	PaymentMethod string      `json:"payment_method"`
	Nonce         string      `json:"nonce"`
	Signature     string      `json:"signature"`
}

// GetAmount returns the amount as a string regardless of wire type.
func (n *Notification) GetAmount() string {
	switch v := n.Amount.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return ""
}

// IsPaid reports whether the notification is a completed payment.
func (n *Notification) IsPaid() bool {
	return n != nil && strings.EqualFold(strings.TrimSpace(n.Status), StatusPaid)
}

// ValidateConfig checks the signing key is present. Verification fails
// closed without it.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.SigningKey) == "" {
		return fmt.Errorf("%w: signing_key is required", ErrConfigInvalid)
	}
	return nil
}

// ParseNotification decodes a notification body.
func ParseNotification(body []byte) (*Notification, error) {
	if len(body) == 0 {
		return nil, ErrResponseInvalid
	}
	var notification Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if strings.TrimSpace(notification.TransactionID) == "" {
		return nil, fmt.Errorf("%w: transaction_id is missing", ErrResponseInvalid)
	}
	return &notification, nil
}

// VerifyNotification checks the nonce-based signature: HMAC-SHA-256
// over "nonce|signingKey", keyed with the signing key. The nonce comes
// from the payload; the key never travels on the wire.
func VerifyNotification(cfg *Config, notification *Notification) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	if notification == nil {
		return ErrResponseInvalid
	}
	nonce := strings.TrimSpace(notification.Nonce)
	if nonce == "" {
		return fmt.Errorf("%w: nonce is missing", ErrSignatureInvalid)
	}
	got := strings.ToLower(strings.TrimSpace(notification.Signature))
	if got == "" {
		return fmt.Errorf("%w: signature is missing", ErrSignatureInvalid)
	}
	expected := Sign(nonce, cfg.SigningKey)
	if !hmac.Equal([]byte(expected), []byte(got)) {
		return ErrSignatureInvalid
	}
	return nil
}

// Sign computes the notification signature for a nonce.
func Sign(nonce string, signingKey string) string {
	h := hmac.New(sha256.New, []byte(signingKey))
	_, _ = h.Write([]byte(nonce + "|" + signingKey))
	return strings.ToLower(hex.EncodeToString(h.Sum(nil)))
}

package service

import "errors"

var (
	ErrCheckoutInvalid         = errors.New("checkout request invalid")
	ErrInvoiceNotFound         = errors.New("invoice not found")
	ErrInvoiceUpdateFailed     = errors.New("invoice update failed")
	ErrGatewayConfigInvalid    = errors.New("payment gateway config invalid")
	ErrGatewayRequestFailed    = errors.New("payment gateway request failed")
	ErrGatewayResponseInvalid  = errors.New("payment gateway response invalid")
	ErrWebhookSignatureInvalid = errors.New("webhook signature invalid")
	ErrWebhookPayloadInvalid   = errors.New("webhook payload invalid")
)

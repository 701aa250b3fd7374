package public

import (
	"errors"

	"github.com/farewire/farewire/internal/http/response"
	"github.com/farewire/farewire/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError maps a service error to an API error response.
// withFallback appends the support phone path: a customer hitting a
// payment-subsystem failure always gets a human way to finish the
// booking.
type mappedHandlerError struct {
	target       error
	code         int
	msg          string
	withFallback bool
}

var checkoutErrorRules = []mappedHandlerError{
	{target: service.ErrCheckoutInvalid, code: response.CodeBadRequest, msg: "checkout request invalid"},
	{target: service.ErrInvoiceNotFound, code: response.CodeNotFound, msg: "invoice not found"},
	{target: service.ErrGatewayConfigInvalid, code: response.CodeInternal, msg: "payment is temporarily unavailable", withFallback: true},
	{target: service.ErrGatewayRequestFailed, code: response.CodeBadGateway, msg: "payment could not be processed", withFallback: true},
	{target: service.ErrGatewayResponseInvalid, code: response.CodeBadGateway, msg: "payment could not be processed", withFallback: true},
	{target: service.ErrInvoiceUpdateFailed, code: response.CodeInternal, msg: "payment processing failed", withFallback: true},
}

// Webhook callers are gateways, not customers; no fallback messaging.
var webhookErrorRules = []mappedHandlerError{
	{target: service.ErrWebhookSignatureInvalid, code: response.CodeUnauthorized, msg: "signature verification failed"},
	{target: service.ErrWebhookPayloadInvalid, code: response.CodeBadRequest, msg: "payload invalid"},
	{target: service.ErrGatewayConfigInvalid, code: response.CodeInternal, msg: "webhook not configured"},
	{target: service.ErrInvoiceUpdateFailed, code: response.CodeInternal, msg: "webhook processing failed"},
}

func (h *Handler) respondCheckoutError(c *gin.Context, err error) {
	for _, rule := range checkoutErrorRules {
		if errors.Is(err, rule.target) {
			msg := rule.msg
			if rule.withFallback {
				msg = h.supportFallback(msg)
			}
			respondError(c, rule.code, msg, nil)
			return
		}
	}
	respondError(c, response.CodeInternal, h.supportFallback("payment processing failed"), err)
}

func respondWebhookError(c *gin.Context, err error) {
	for _, rule := range webhookErrorRules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, response.CodeInternal, "webhook processing failed", err)
}

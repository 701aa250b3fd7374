package public

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/farewire/farewire/internal/http/response"
	"github.com/farewire/farewire/internal/service"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MiB

// CardgateWebhook receives card gateway notifications. The raw body is
// handed to the service untouched; the signature covers exact bytes.
func (h *Handler) CardgateWebhook(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		log.Warnw("cardgate_webhook_body_read_failed", "error", err)
		respondError(c, response.CodeBadRequest, "body read failed", err)
		return
	}
	log.Infow("cardgate_webhook_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"signature", truncateWebhookLogValue(strings.TrimSpace(c.GetHeader("Cardgate-Signature"))),
	)

	headers := make(map[string]string)
	for key, values := range c.Request.Header {
		if len(values) == 0 {
			continue
		}
		headers[key] = values[0]
	}

	if err := h.CheckoutService.HandleCardgateWebhook(service.WebhookInput{
		Headers: headers,
		Body:    body,
	}); err != nil {
		log.Warnw("cardgate_webhook_handle_failed", "error", err)
		respondWebhookError(c, err)
		return
	}
	response.Success(c, gin.H{"accepted": true})
}

// PaylinkWebhook receives payment-link notifications.
func (h *Handler) PaylinkWebhook(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		log.Warnw("paylink_webhook_body_read_failed", "error", err)
		respondError(c, response.CodeBadRequest, "body read failed", err)
		return
	}
	log.Infow("paylink_webhook_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
	)

	if err := h.CheckoutService.HandlePaylinkWebhook(service.WebhookInput{
		Body: body,
	}); err != nil {
		log.Warnw("paylink_webhook_handle_failed", "error", err)
		respondWebhookError(c, err)
		return
	}
	response.Success(c, gin.H{"accepted": true})
}

// WebhookHealth answers gateway liveness probes. Gateways GET the
// notification URL before saving it.
func (h *Handler) WebhookHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

func truncateWebhookLogValue(raw string) string {
	const max = 64
	if len(raw) <= max {
		return raw
	}
	return raw[:max] + "..."
}

package public

import (
	"fmt"
	"strings"
	"time"

	"github.com/farewire/farewire/internal/constants"
	"github.com/farewire/farewire/internal/http/response"
	"github.com/farewire/farewire/internal/models"
	"github.com/farewire/farewire/internal/payment/cardgate"
	"github.com/farewire/farewire/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutInitiateRequest starts a payment for an accepted quote.
type CheckoutInitiateRequest struct {
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerEmail string `json:"customer_email" binding:"required"`
	CustomerPhone string `json:"customer_phone"`
	Route         string `json:"route" binding:"required"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date"`
	Passengers    int    `json:"passengers"`
	Amount        string `json:"amount" binding:"required"`
	Currency      string `json:"currency" binding:"required"`
	RedirectURL   string `json:"redirect_url"`
}

// CheckoutCompleteRequest finishes the hosted-form handshake.
type CheckoutCompleteRequest struct {
	InvoiceNo string `json:"invoice_no" binding:"required"`
	TokenID   string `json:"token_id" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
}

// CheckoutInitiate creates the invoice and returns the hosted card
// form target.
func (h *Handler) CheckoutInitiate(c *gin.Context) {
	log := requestLog(c)
	var req CheckoutInitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "request body invalid", err)
		return
	}

	result, err := h.CheckoutService.StartPayment(service.StartPaymentInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Route:         req.Route,
		DepartureDate: parseDate(req.DepartureDate),
		ReturnDate:    parseDate(req.ReturnDate),
		Passengers:    req.Passengers,
		Amount:        req.Amount,
		Currency:      req.Currency,
		RedirectURL:   req.RedirectURL,
		Context:       c.Request.Context(),
	})
	if err != nil {
		log.Warnw("checkout_initiate_failed", "error", err)
		h.respondCheckoutError(c, err)
		return
	}

	response.Success(c, gin.H{
		"invoice":  invoiceView(result.Invoice),
		"form_url": result.FormURL,
		"token_id": result.TokenID,
	})
}

// CheckoutComplete finishes the handshake and reports the outcome.
func (h *Handler) CheckoutComplete(c *gin.Context) {
	log := requestLog(c)
	var req CheckoutCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "request body invalid", err)
		return
	}

	result, err := h.CheckoutService.CompletePayment(service.CompletePaymentInput{
		InvoiceNo: req.InvoiceNo,
		TokenID:   req.TokenID,
		Billing: cardgate.BillingInfo{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Address:   req.Address,
			City:      req.City,
			State:     req.State,
			Zip:       req.Zip,
			Country:   req.Country,
		},
		Context: c.Request.Context(),
	})
	if err != nil {
		log.Warnw("checkout_complete_failed", "invoice_no", req.InvoiceNo, "error", err)
		h.respondCheckoutError(c, err)
		return
	}

	payload := gin.H{
		"invoice": invoiceView(result.Invoice),
		"outcome": result.Outcome,
	}
	switch result.Outcome {
	case constants.CheckoutOutcomeRequires3DS:
		payload["redirect_url"] = result.RedirectURL
	case constants.CheckoutOutcomeDeclined, constants.CheckoutOutcomeFailed:
		payload["message"] = h.declineMessage(result.Reason)
	}
	response.Success(c, payload)
}

// InvoiceShow returns payment status for a booking poll.
func (h *Handler) InvoiceShow(c *gin.Context) {
	invoiceNo := strings.TrimSpace(c.Param("invoice_no"))
	invoice, err := h.CheckoutService.GetInvoice(invoiceNo)
	if err != nil {
		h.respondCheckoutError(c, err)
		return
	}
	response.Success(c, invoiceView(invoice))
}

// declineMessage keeps the gateway's decline reason away from the
// customer and points them at a human instead.
func (h *Handler) declineMessage(reason string) string {
	phone := ""
	if h.Config != nil {
		phone = strings.TrimSpace(h.Config.Support.Phone)
	}
	if phone == "" {
		return "Your payment could not be completed. Please try another card or contact support."
	}
	return fmt.Sprintf("Your payment could not be completed. Please try another card or call us at %s.", phone)
}

// supportFallback appends the booking line to a failure message so the
// customer can always finish the purchase by phone.
func (h *Handler) supportFallback(msg string) string {
	phone := ""
	if h.Config != nil {
		phone = strings.TrimSpace(h.Config.Support.Phone)
	}
	if phone == "" {
		return msg + ". Please contact support to complete your booking."
	}
	return fmt.Sprintf("%s. Please call us at %s to complete your booking.", msg, phone)
}

func invoiceView(invoice *models.Invoice) gin.H {
	if invoice == nil {
		return gin.H{}
	}
	return gin.H{
		"invoice_no":     invoice.InvoiceNo,
		"route":          invoice.Route,
		"passengers":     invoice.Passengers,
		"amount":         invoice.Amount.String(),
		"currency":       invoice.Currency,
		"payment_status": invoice.PaymentStatus,
		"payment_method": invoice.PaymentMethod,
		"paid_at":        invoice.PaidAt,
		"created_at":     invoice.CreatedAt,
	}
}

func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &parsed
}

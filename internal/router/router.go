package router

import (
	"fmt"
	"strings"

	"github.com/farewire/farewire/internal/cache"
	"github.com/farewire/farewire/internal/config"
	publichandlers "github.com/farewire/farewire/internal/http/handlers/public"
	"github.com/farewire/farewire/internal/logger"
	"github.com/farewire/farewire/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter wires middleware and routes.
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "fw"
	}
	redisClient := cache.Client()
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxAttempts,
		Message:       "too many checkout attempts, please wait a moment",
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		checkout := apiV1.Group("/checkout")
		{
			checkout.POST("/initiate", RateLimitMiddleware(redisClient, checkoutRule, KeyByIP), publicHandler.CheckoutInitiate)
			checkout.POST("/complete", publicHandler.CheckoutComplete)
		}

		apiV1.GET("/invoices/:invoice_no", publicHandler.InvoiceShow)

		// Gateways probe their notification URLs with GET before
		// saving them.
		apiV1.POST("/webhooks/cardgate", publicHandler.CardgateWebhook)
		apiV1.GET("/webhooks/cardgate", publicHandler.WebhookHealth)
		apiV1.POST("/webhooks/paylink", publicHandler.PaylinkWebhook)
		apiV1.GET("/webhooks/paylink", publicHandler.WebhookHealth)
	}

	return r
}

package provider

import (
	"github.com/farewire/farewire/internal/cache"
	"github.com/farewire/farewire/internal/config"
	"github.com/farewire/farewire/internal/logger"
	"github.com/farewire/farewire/internal/models"
	"github.com/farewire/farewire/internal/payment/cardgate"
	"github.com/farewire/farewire/internal/payment/paylink"
	"github.com/farewire/farewire/internal/queue"
	"github.com/farewire/farewire/internal/repository"
	"github.com/farewire/farewire/internal/service"
)

// Container wires repositories and services.
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	InvoiceRepo repository.InvoiceRepository
	PaymentRepo repository.PaymentRepository

	// Services
	CheckoutService *service.CheckoutService
}

// NewContainer builds the container.
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}
	c.initRepositories()
	c.initServices()
	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.InvoiceRepo = repository.NewInvoiceRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
}

func (c *Container) initServices() {
	c.CheckoutService = service.NewCheckoutService(
		c.InvoiceRepo,
		c.PaymentRepo,
		c.QueueClient,
		&cardgate.Config{
			APIBaseURL:              c.Config.Cardgate.APIBaseURL,
			PrivateKey:              c.Config.Cardgate.PrivateKey,
			WebhookSecret:           c.Config.Cardgate.WebhookSecret,
			TimeoutSeconds:          c.Config.Cardgate.TimeoutSeconds,
			WebhookToleranceSeconds: c.Config.Cardgate.WebhookToleranceSeconds,
		},
		&paylink.Config{SigningKey: c.Config.Paylink.SigningKey},
	)
}

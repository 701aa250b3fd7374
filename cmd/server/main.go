package main

import (
	"flag"
	"os"
	"strings"
	"syscall"

	"github.com/farewire/farewire/internal/app"
	"github.com/farewire/farewire/internal/config"
	"github.com/farewire/farewire/internal/logger"
	"github.com/farewire/farewire/internal/models"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	checkGatewaySecrets(cfg, stdLog.Printf, stdLog.Fatalf)

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("database init failed: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("database migration failed: %v", err)
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	var mode string
	flag.StringVar(&mode, "mode", app.ModeAll, "run mode: all (default), api, worker")
	flag.Parse()

	if err := app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
	}); err != nil {
		stdLog.Fatalf("service exited with error: %v", err)
	}
}

// checkGatewaySecrets refuses to start in release mode with missing or
// placeholder gateway secrets; other modes only warn.
func checkGatewaySecrets(cfg *config.Config, warnf, fatalf func(string, ...interface{})) {
	checks := []struct {
		name   string
		secret string
	}{
		{"cardgate private key", cfg.Cardgate.PrivateKey},
		{"cardgate webhook secret", cfg.Cardgate.WebhookSecret},
		{"paylink signing key", cfg.Paylink.SigningKey},
	}
	for _, check := range checks {
		if !isWeakSecret(check.secret) {
			continue
		}
		if cfg.Server.Mode == "release" {
			fatalf("%s is missing or a placeholder, set a real credential before serving traffic", check.name)
		} else {
			warnf("warning: %s is missing or a placeholder, gateway calls will fail", check.name)
		}
	}
}

func isWeakSecret(secret string) bool {
	if len(secret) < 16 {
		return true
	}
	normalized := strings.ToLower(secret)
	if strings.Contains(normalized, "change-me") ||
		strings.Contains(normalized, "change-in-production") ||
		strings.Contains(normalized, "your-secret-key") {
		return true
	}
	return false
}

package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	CRDBDSN        string
	MongoURI       string
	RedisAddr      string
	RabbitURL      string
	ProviderURL    string
	ProviderAPIKey string
	Currency       string
	RefundWindow   time.Duration
	SettlementPoll time.Duration
	OTLPEndpoint   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	refundWindow, _ := time.ParseDuration(os.Getenv("REFUND_WINDOW"))
	if refundWindow == 0 {
		refundWindow = 72 * time.Hour
	}
	settlementPoll, _ := time.ParseDuration(os.Getenv("SETTLEMENT_POLL"))
	if settlementPoll == 0 {
		settlementPoll = 30 * time.Second
	}
	currency := os.Getenv("CURRENCY")
	if currency == "" {
		currency = "USD"
	}

	return &Config{
		CRDBDSN:        os.Getenv("CRDB_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		ProviderURL:    os.Getenv("PAYMENT_PROVIDER_URL"),
		ProviderAPIKey: os.Getenv("PAYMENT_PROVIDER_API_KEY"),
		Currency:       currency,
		RefundWindow:   refundWindow,
		SettlementPoll: settlementPoll,
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

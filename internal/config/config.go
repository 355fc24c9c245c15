package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Postgres is used to build a DSN when DATABASE_URL is not set.
type Postgres struct {
	User     string `env:"POSTGRES_USER" envDefault:"estate_hub"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"estate_hub_pass"`
	DB       string `env:"POSTGRES_DB" envDefault:"estate_hub"`
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	SSLMode  string `env:"DATABASE_SSLMODE" envDefault:"disable"`
}

// Config holds service configuration.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	Postgres    Postgres
	MaxConns    int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	ServerAddr  string `env:"SERVER_ADDR" envDefault:"0.0.0.0:8080"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	OfferTTL              time.Duration `env:"OFFER_TTL" envDefault:"72h"`
	ReservationWindow     time.Duration `env:"RESERVATION_WINDOW" envDefault:"720h"`
	OTPTTL                time.Duration `env:"OTP_TTL" envDefault:"10m"`
	MaxCounterRounds      int           `env:"MAX_COUNTER_ROUNDS" envDefault:"5"`
	RequireCompletedVisit bool          `env:"REQUIRE_COMPLETED_VISIT" envDefault:"true"`
	LowballRule           string        `env:"LOWBALL_RULE" envDefault:"pct_vs_asking < -15"`
	SweepInterval         time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	AuditSigningKeyHex string `env:"AUDIT_SIGNING_KEY"`
	JWTSecret          string `env:"JWT_SECRET"`

	RabbitMQURL    string `env:"RABBITMQ_URL"`
	NotifyExchange string `env:"NOTIFY_EXCHANGE" envDefault:"estate.events"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`

	OmisePublicKey  string `env:"OMISE_PUBLIC_KEY"`
	OmiseSecretKey  string `env:"OMISE_SECRET_KEY"`
	PaymentCurrency string `env:"PAYMENT_CURRENCY" envDefault:"thb"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse()
}

func parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		p := cfg.Postgres
		cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
	}
	switch cfg.StoreDriver {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", cfg.StoreDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.MaxCounterRounds < 1 {
		return nil, errors.New("MAX_COUNTER_ROUNDS must be at least 1")
	}
	if _, err := cfg.AuditSigningKey(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AuditSigningKey decodes AUDIT_SIGNING_KEY. An empty key disables signing.
func (c *Config) AuditSigningKey() ([]byte, error) {
	if c.AuditSigningKeyHex == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.AuditSigningKeyHex)
	if err != nil {
		return nil, fmt.Errorf("AUDIT_SIGNING_KEY must be hex: %w", err)
	}
	if len(key) < 16 {
		return nil, errors.New("AUDIT_SIGNING_KEY must be at least 16 bytes")
	}
	return key, nil
}

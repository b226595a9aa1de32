package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Stripe   StripeConfig
	Payments PaymentDefaults
	Auth     AuthConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	BookingCreated   string
	BookingApproved  string
	BookingRejected  string
	BookingCancelled string
	PaymentReminder  string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// PaymentDefaults seeds the payment_settings row when none exists yet.
// Once materialized, the DB row wins; these are only the bootstrap values.
type PaymentDefaults struct {
	CardEnabled          bool
	BankTransferEnabled  bool
	PaymentDeadlineDays  int
	ReminderLeadHours    int
	RemindersEnabled     bool
	TaxRate              float64
	Currency             string
	InvoicePrefix        string
	BankName             string
	BankAccountName      string
	BankIBAN             string
	BankBIC              string
	TransferNoteTemplate string
	PaymentPageURL       string
	SettingsSecret       string // key for encrypting gateway credentials at rest
}

type AuthConfig struct {
	OIDCIssuer string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "booking_user"),
			Password:     getEnv("DB_PASSWORD", "booking_pass"),
			Database:     getEnv("DB_NAME", "booking_engine"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				BookingCreated:   getEnv("KAFKA_TOPIC_BOOKING_CREATED", "booking-created"),
				BookingApproved:  getEnv("KAFKA_TOPIC_BOOKING_APPROVED", "booking-approved"),
				BookingRejected:  getEnv("KAFKA_TOPIC_BOOKING_REJECTED", "booking-rejected"),
				BookingCancelled: getEnv("KAFKA_TOPIC_BOOKING_CANCELLED", "booking-cancelled"),
				PaymentReminder:  getEnv("KAFKA_TOPIC_PAYMENT_REMINDER", "payment-reminder"),
			},
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:    getEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/payments/success"),
			CancelURL:     getEnv("STRIPE_CANCEL_URL", "http://localhost:3000/payments/cancelled"),
		},
		Payments: PaymentDefaults{
			CardEnabled:          getEnvBool("PAYMENTS_CARD_ENABLED", true),
			BankTransferEnabled:  getEnvBool("PAYMENTS_BANK_TRANSFER_ENABLED", true),
			PaymentDeadlineDays:  getEnvInt("PAYMENTS_DEADLINE_DAYS", 5),
			ReminderLeadHours:    getEnvInt("PAYMENTS_REMINDER_LEAD_HOURS", 24),
			RemindersEnabled:     getEnvBool("PAYMENTS_REMINDERS_ENABLED", true),
			TaxRate:              getEnvFloat("PAYMENTS_TAX_RATE", 22.0),
			Currency:             getEnv("PAYMENTS_CURRENCY", "eur"),
			InvoicePrefix:        getEnv("PAYMENTS_INVOICE_PREFIX", "INV"),
			BankName:             getEnv("PAYMENTS_BANK_NAME", ""),
			BankAccountName:      getEnv("PAYMENTS_BANK_ACCOUNT_NAME", ""),
			BankIBAN:             getEnv("PAYMENTS_BANK_IBAN", ""),
			BankBIC:              getEnv("PAYMENTS_BANK_BIC", ""),
			TransferNoteTemplate: getEnv("PAYMENTS_TRANSFER_NOTE_TEMPLATE", "Prenotazione {CODICE} - {RISORSA} - {DATA}"),
			PaymentPageURL:       getEnv("PAYMENTS_PAGE_URL", "http://localhost:3000/payments"),
			SettingsSecret:       getEnv("SETTINGS_SECRET", "dev-only-settings-secret"),
		},
		Auth: AuthConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

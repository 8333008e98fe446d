// Package config loads service settings from .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"oneof=debug info warn error"`

	JWT       JWTConfig
	Casso     CassoConfig
	Reconcile ReconcileConfig
	AMQP      AMQPConfig
	Bank      BankConfig
	Ticket    TicketConfig

	AllowedOrigins []string
}

type JWTConfig struct {
	SecretKey   string `validate:"required,min=16"`
	ExpiryHours int    `validate:"gt=0"`
}

type CassoConfig struct {
	// APIKey is the shared secret sent as "Authorization: Apikey <key>".
	// Empty rejects every webhook.
	APIKey string
}

type ReconcileConfig struct {
	AmountTolerance int64 `validate:"gte=0"`
	DedupTTL        time.Duration
}

type AMQPConfig struct {
	URL      string
	Exchange string `validate:"required"`
}

// BankConfig is the account customers transfer to.
type BankConfig struct {
	BankID      string `validate:"required"` // NAPAS acquirer id, e.g. 970422
	BankName    string
	AccountNo   string `validate:"required"`
	AccountName string `validate:"required"`
	Template    string
}

type TicketConfig struct {
	SigningKey string `validate:"required,min=16"`
	CacheTTL   time.Duration
}

var bindings = map[string]string{
	"port":                       "PORT",
	"log.level":                  "LOG_LEVEL",
	"cors.allowed_origins":       "CORS_ALLOWED_ORIGINS",
	"database.host":              "DATABASE_HOST",
	"database.port":              "DATABASE_PORT",
	"database.user":              "DATABASE_USER",
	"database.password":          "DATABASE_PASSWORD",
	"database.name":              "DATABASE_NAME",
	"database.ssl_mode":          "DATABASE_SSL_MODE",
	"redis.host":                 "REDIS_HOST",
	"redis.port":                 "REDIS_PORT",
	"redis.password":             "REDIS_PASSWORD",
	"redis.db":                   "REDIS_DB",
	"jwt.secret_key":             "JWT_SECRET_KEY",
	"jwt.expiry_hours":           "JWT_EXPIRY_HOURS",
	"argon2.time":                "ARGON2_TIME",
	"argon2.memory":              "ARGON2_MEMORY",
	"argon2.threads":             "ARGON2_THREADS",
	"argon2.key_length":          "ARGON2_KEY_LENGTH",
	"argon2.salt_length":         "ARGON2_SALT_LENGTH",
	"casso.api_key":              "CASSO_API_KEY",
	"reconcile.amount_tolerance": "RECONCILE_AMOUNT_TOLERANCE",
	"reconcile.dedup_ttl":        "RECONCILE_DEDUP_TTL",
	"amqp.url":                   "AMQP_URL",
	"amqp.exchange":              "AMQP_EXCHANGE",
	"payment.bank_id":            "PAYMENT_BANK_ID",
	"payment.bank_name":          "PAYMENT_BANK_NAME",
	"payment.account_no":         "PAYMENT_BANK_ACCOUNT_NO",
	"payment.account_name":       "PAYMENT_BANK_ACCOUNT_NAME",
	"payment.template":           "PAYMENT_BANK_TEMPLATE",
	"ticket.signing_key":         "TICKET_SIGNING_KEY",
	"ticket.cache_ttl":           "TICKET_CACHE_TTL",
}

func setDefaults() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("cors.allowed_origins", "https://*,http://*")
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("reconcile.amount_tolerance", 1000)
	viper.SetDefault("reconcile.dedup_ttl", 24*time.Hour)
	viper.SetDefault("amqp.exchange", "xevcp.notifications")
	viper.SetDefault("payment.bank_id", "970422")
	viper.SetDefault("payment.bank_name", "MB Bank")
	viper.SetDefault("payment.template", "compact2")
	viper.SetDefault("ticket.cache_ttl", 24*time.Hour)
}

// Load reads path (a .env file, optional) and the environment into viper and
// returns the validated settings. Packages that read viper directly, such as
// database, see the same values.
func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	// .env keys are read verbatim (casso_api_key); surface them under the
	// dotted names, below real environment variables.
	for key, env := range bindings {
		if v := viper.GetString(strings.ToLower(env)); v != "" {
			viper.SetDefault(key, v)
		}
	}

	cfg := &Config{
		Port:     viper.GetString("port"),
		LogLevel: strings.ToLower(viper.GetString("log.level")),
		JWT: JWTConfig{
			SecretKey:   viper.GetString("jwt.secret_key"),
			ExpiryHours: viper.GetInt("jwt.expiry_hours"),
		},
		Casso: CassoConfig{
			APIKey: viper.GetString("casso.api_key"),
		},
		Reconcile: ReconcileConfig{
			AmountTolerance: viper.GetInt64("reconcile.amount_tolerance"),
			DedupTTL:        viper.GetDuration("reconcile.dedup_ttl"),
		},
		AMQP: AMQPConfig{
			URL:      viper.GetString("amqp.url"),
			Exchange: viper.GetString("amqp.exchange"),
		},
		Bank: BankConfig{
			BankID:      viper.GetString("payment.bank_id"),
			BankName:    viper.GetString("payment.bank_name"),
			AccountNo:   viper.GetString("payment.account_no"),
			AccountName: viper.GetString("payment.account_name"),
			Template:    viper.GetString("payment.template"),
		},
		Ticket: TicketConfig{
			SigningKey: viper.GetString("ticket.signing_key"),
			CacheTTL:   viper.GetDuration("ticket.cache_ttl"),
		},
		AllowedOrigins: splitList(viper.GetString("cors.allowed_origins")),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

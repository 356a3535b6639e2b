// Package config loads runtime configuration from .env, config.yaml and LEDGERLY_ env vars.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ledgerly/backend/common"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FirebaseConfig holds Admin SDK credentials. At most one credential source is used,
// in the order JSON, base64, file.
type FirebaseConfig struct {
	ProjectID         string
	CredentialsJSON   string
	CredentialsBase64 string
	CredentialsFile   string
}

// HasCredentials reports whether any explicit credential source is configured.
func (f FirebaseConfig) HasCredentials() bool {
	return f.CredentialsJSON != "" || f.CredentialsBase64 != "" || f.CredentialsFile != ""
}

// LocalDBConfig selects the SQL database that holds guest storage and the billing ledger.
type LocalDBConfig struct {
	Driver string
	DSN    string
}

// StripeConfig holds payment processor settings.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	SuccessURL    string
	CancelURL     string
}

// BillingConfig controls dead-letter redelivery.
type BillingConfig struct {
	RetrySchedule string
	MaxAttempts   int
}

// Config is the application configuration, built once in the composition root.
type Config struct {
	Env                 string
	Port                string
	StaticDir           string
	LogLevel            string
	LogFormat           string
	EncryptionKey       string
	CORSAllowedOrigins  []string
	FreeMaxTransactions int
	GuestCapacity       int
	MigrationPolicy     string
	GuestIdleTTL        time.Duration
	GuestPurgeSchedule  string
	Firebase            FirebaseConfig
	LocalDB             LocalDBConfig
	Stripe              StripeConfig
	Billing             BillingConfig
}

// IsDevelopment reports whether the service runs outside production.
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("static_dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("local_db.driver", "sqlite3")
	v.SetDefault("local_db.dsn", "./ledgerly.db")
	v.SetDefault("cors.allowed_origins", []string{
		"http://localhost:5173",
		"http://localhost:3000",
		"http://localhost:8080",
	})
	v.SetDefault("plan.free_max_transactions", 10)
	v.SetDefault("guest.capacity", 3)
	v.SetDefault("guest.migration_policy", "clear_all")
	v.SetDefault("guest.idle_ttl", "720h")
	v.SetDefault("guest.purge_schedule", "@daily")
	v.SetDefault("billing.retry_schedule", "@every 5m")
	v.SetDefault("billing.max_attempts", 5)
	v.SetDefault("stripe.success_url", "http://localhost:5173/billing/success")
	v.SetDefault("stripe.cancel_url", "http://localhost:5173/billing/cancel")
}

// Load reads .env (if present), an optional config file and LEDGERLY_* environment variables.
// An empty cfgFile searches ./config.yaml.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LEDGERLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromViper builds a Config from an already-populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Env:                 v.GetString("env"),
		Port:                v.GetString("port"),
		StaticDir:           v.GetString("static_dir"),
		LogLevel:            v.GetString("log.level"),
		LogFormat:           v.GetString("log.format"),
		EncryptionKey:       v.GetString("encryption_key"),
		CORSAllowedOrigins:  splitList(v.GetStringSlice("cors.allowed_origins")),
		FreeMaxTransactions: v.GetInt("plan.free_max_transactions"),
		GuestCapacity:       v.GetInt("guest.capacity"),
		MigrationPolicy:     v.GetString("guest.migration_policy"),
		GuestIdleTTL:        v.GetDuration("guest.idle_ttl"),
		GuestPurgeSchedule:  v.GetString("guest.purge_schedule"),
		Firebase: FirebaseConfig{
			ProjectID:         v.GetString("firebase.project_id"),
			CredentialsJSON:   v.GetString("firebase.credentials_json"),
			CredentialsBase64: v.GetString("firebase.credentials_base64"),
			CredentialsFile:   v.GetString("firebase.credentials_file"),
		},
		LocalDB: LocalDBConfig{
			Driver: v.GetString("local_db.driver"),
			DSN:    v.GetString("local_db.dsn"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("stripe.secret_key"),
			WebhookSecret: v.GetString("stripe.webhook_secret"),
			PriceID:       v.GetString("stripe.price_id"),
			SuccessURL:    v.GetString("stripe.success_url"),
			CancelURL:     v.GetString("stripe.cancel_url"),
		},
		Billing: BillingConfig{
			RetrySchedule: v.GetString("billing.retry_schedule"),
			MaxAttempts:   v.GetInt("billing.max_attempts"),
		},
	}
}

// Validate checks required settings. Production refuses to start without an
// encryption key or a webhook secret.
func (c *Config) Validate() error {
	switch c.LocalDB.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("%w: unsupported local_db.driver %q", common.ErrInvalidConfig, c.LocalDB.Driver)
	}
	if c.GuestCapacity <= 0 {
		return fmt.Errorf("%w: guest.capacity must be positive", common.ErrInvalidConfig)
	}
	switch c.MigrationPolicy {
	case "", "clear_all", "retain_failed":
	default:
		return fmt.Errorf("%w: unsupported guest.migration_policy %q", common.ErrInvalidConfig, c.MigrationPolicy)
	}
	if c.GuestIdleTTL <= 0 {
		return fmt.Errorf("%w: guest.idle_ttl must be positive", common.ErrInvalidConfig)
	}
	if c.FreeMaxTransactions <= 0 {
		return fmt.Errorf("%w: plan.free_max_transactions must be positive", common.ErrInvalidConfig)
	}
	if c.Billing.MaxAttempts <= 0 {
		return fmt.Errorf("%w: billing.max_attempts must be positive", common.ErrInvalidConfig)
	}

	if c.IsDevelopment() {
		return nil
	}
	if c.EncryptionKey == "" {
		return fmt.Errorf("%w: encryption_key", common.ErrMissingConfig)
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("%w: stripe.webhook_secret", common.ErrMissingConfig)
	}
	return nil
}

// env vars arrive as one comma separated string, config files as a list.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

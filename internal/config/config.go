package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the service configuration.
type Config struct {
	HTTPAddr          string        `mapstructure:"HTTP_ADDR"`
	HTTPTimeout       time.Duration `mapstructure:"HTTP_TIMEOUT"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	AuthDisabled      bool          `mapstructure:"AUTH_DISABLED"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	CORSOrigins       string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RabbitMQURL       string        `mapstructure:"RABBITMQ_URL"`
	RabbitMQExchange  string        `mapstructure:"RABBITMQ_EXCHANGE"`
	OutboxRelayCron   string        `mapstructure:"OUTBOX_RELAY_CRON"`
	BillingPolicyFile string        `mapstructure:"BILLING_POLICY_FILE"`
	BillingCron       string        `mapstructure:"BILLING_CRON"`
	BillingComplexes  string        `mapstructure:"BILLING_COMPLEXES"`
}

var keys = []string{
	"HTTP_ADDR",
	"HTTP_TIMEOUT",
	"DATABASE_URL",
	"JWT_SECRET",
	"AUTH_DISABLED",
	"LOG_LEVEL",
	"CORS_ALLOWED_ORIGINS",
	"RABBITMQ_URL",
	"RABBITMQ_EXCHANGE",
	"OUTBOX_RELAY_CRON",
	"BILLING_POLICY_FILE",
	"BILLING_CRON",
	"BILLING_COMPLEXES",
}

// Load reads .env when present, then environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("HTTP_TIMEOUT", "30s")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("RABBITMQ_EXCHANGE", "residential.events")
	viper.SetDefault("OUTBOX_RELAY_CRON", "@every 30s")
	viper.SetDefault("BILLING_CRON", "0 2 1 * *") // 02:00 on the first of the month
	viper.AutomaticEnv()

	for _, key := range keys {
		_ = viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" && !cfg.AuthDisabled {
		return nil, errors.New("config: JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, errors.New("config: HTTP_TIMEOUT must be positive")
	}
	if _, err := cfg.ScheduledComplexes(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AllowedOrigins parses CORS_ALLOWED_ORIGINS. Empty disables CORS.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, part := range strings.Split(c.CORSOrigins, ",") {
		if part = strings.TrimSpace(part); part != "" {
			origins = append(origins, part)
		}
	}
	return origins
}

// ScheduledComplexes parses BILLING_COMPLEXES, a comma separated list of
// complex ids billed by the monthly job.
func (c Config) ScheduledComplexes() ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(c.BillingComplexes, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("config: invalid complex id %q in BILLING_COMPLEXES", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

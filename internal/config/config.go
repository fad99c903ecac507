// Package config loads service configuration with viper: built-in defaults,
// an optional config.yaml, then environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting. Environment variables are the
// upper-cased keys with dots replaced by underscores (jwt.secret -> JWT_SECRET).
type Config struct {
	Port     string `mapstructure:"port"`
	HTTPAddr string `mapstructure:"http_addr"`

	Store    string `mapstructure:"store"` // mongo | postgres | memory
	MongoURI string `mapstructure:"mongodb_uri"`
	MongoDB  string `mapstructure:"mongodb_database"`
	Postgres string `mapstructure:"postgres_dsn"`

	JWT struct {
		Secret    string `mapstructure:"secret"`
		Keys      string `mapstructure:"keys"` // kid:secret,kid2:secret2
		ActiveKid string `mapstructure:"active_kid"`
	} `mapstructure:"jwt"`

	TLS struct {
		Cert string `mapstructure:"cert"`
		Key  string `mapstructure:"key"`
	} `mapstructure:"tls"`
	RequireTLS bool `mapstructure:"require_tls"`

	RateLimit struct {
		RPM   int `mapstructure:"rpm"`
		Burst int `mapstructure:"burst"`
	} `mapstructure:"rate_limit"`

	Booking struct {
		MinDuration time.Duration `mapstructure:"min_duration"`
		MaxDuration time.Duration `mapstructure:"max_duration"`
		AllowPast   bool          `mapstructure:"allow_past"`
		LockTTL     time.Duration `mapstructure:"lock_ttl"`
		LockWait    time.Duration `mapstructure:"lock_wait"`
	} `mapstructure:"booking"`

	Rabbit struct {
		URL             string `mapstructure:"url"`
		BookingExchange string `mapstructure:"booking_exchange"`
		PaymentExchange string `mapstructure:"payment_exchange"`
		PaymentQueue    string `mapstructure:"payment_queue"`
	} `mapstructure:"rabbit"`

	PaymentWebhookSecret string `mapstructure:"payment_webhook_secret"`

	OTel struct {
		Endpoint    string `mapstructure:"endpoint"`
		ServiceName string `mapstructure:"service_name"`
		Env         string `mapstructure:"env"`
	} `mapstructure:"otel"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

var defaults = map[string]any{
	"port":                    "50051",
	"http_addr":               ":8080",
	"store":                   "mongo",
	"mongodb_uri":             "",
	"mongodb_database":        "coova",
	"postgres_dsn":            "",
	"jwt.secret":              "",
	"jwt.keys":                "",
	"jwt.active_kid":          "",
	"tls.cert":                "",
	"tls.key":                 "",
	"require_tls":             false,
	"rate_limit.rpm":          30,
	"rate_limit.burst":        5,
	"booking.min_duration":    "1h",
	"booking.max_duration":    "720h",
	"booking.allow_past":      false,
	"booking.lock_ttl":        "10s",
	"booking.lock_wait":       "2s",
	"rabbit.url":              "",
	"rabbit.booking_exchange": "booking.exchange",
	"rabbit.payment_exchange": "payment.exchange",
	"rabbit.payment_queue":    "coova.payment.q",
	"payment_webhook_secret":  "",
	"otel.endpoint":           "",
	"otel.service_name":       "coova-api",
	"otel.env":                "dev",
	"logging.level":           "info",
	"logging.format":          "text",
	"shutdown_timeout":        "10s",
}

// Load reads configuration. Extra search paths for config.yaml may be given;
// a missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/coova")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.Store {
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI must be set when STORE=mongo")
		}
	case "postgres":
		if c.Postgres == "" {
			return errors.New("POSTGRES_DSN must be set when STORE=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE %q (want mongo, postgres or memory)", c.Store)
	}
	if c.JWT.Secret == "" && c.JWT.Keys == "" {
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if c.RequireTLS && (c.TLS.Cert == "" || c.TLS.Key == "") {
		return errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	if c.Booking.MinDuration <= 0 {
		return errors.New("BOOKING_MIN_DURATION must be positive")
	}
	if c.Booking.MaxDuration != 0 && c.Booking.MaxDuration < c.Booking.MinDuration {
		return errors.New("BOOKING_MAX_DURATION must not be below BOOKING_MIN_DURATION")
	}
	if _, err := c.JWTKeyMap(); err != nil {
		return err
	}
	return nil
}

// JWTKeyMap parses JWT_KEYS ("kid:secret,kid2:secret2"). It returns nil when
// no keys are configured.
func (c *Config) JWTKeyMap() (map[string]string, error) {
	if c.JWT.Keys == "" {
		return nil, nil
	}
	keys := map[string]string{}
	for _, p := range strings.Split(c.JWT.Keys, ",") {
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[parts[0]] = parts[1]
	}
	if c.JWT.ActiveKid != "" {
		if _, ok := keys[c.JWT.ActiveKid]; !ok {
			return nil, fmt.Errorf("JWT_ACTIVE_KID %q not present in JWT_KEYS", c.JWT.ActiveKid)
		}
	}
	return keys, nil
}

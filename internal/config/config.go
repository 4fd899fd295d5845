package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	defaultAddress          = ":4000"
	defaultDisputeWindow    = 48 * time.Hour
	defaultAutoMessageDelay = 3 * time.Hour
	defaultOfferTTL         = 24 * time.Hour
	defaultInviteTTL        = 7 * 24 * time.Hour
	defaultTriggerTick      = 30 * time.Second
	defaultSagaTick         = time.Minute
	defaultExpiryTick       = 10 * time.Minute
	defaultBatchSize        = 100
)

// Config is the server configuration. Values come from the YAML file first
// and environment variables override them.
type Config struct {
	Server struct {
		Address  string `yaml:"address"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	JWT struct {
		Secret string `yaml:"secret"`
	} `yaml:"jwt"`
	Payments struct {
		BaseURL    string `yaml:"base_url"`
		MerchantID string `yaml:"merchant_id"`
		Secret     string `yaml:"secret"`
		Callback   string `yaml:"callback_url"`
	} `yaml:"payments"`
	Firebase struct {
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"firebase"`
	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`
	AMQP struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`
	Booking Booking `yaml:"booking"`
}

// Booking holds lifecycle timings and worker cadence.
type Booking struct {
	DisputeWindow    time.Duration `yaml:"dispute_window"`
	AutoMessageDelay time.Duration `yaml:"auto_message_delay"`
	OfferTTL         time.Duration `yaml:"offer_ttl"`
	InviteTTL        time.Duration `yaml:"invite_ttl"`
	TriggerTick      time.Duration `yaml:"trigger_tick"`
	SagaTick         time.Duration `yaml:"saga_tick"`
	ExpiryTick       time.Duration `yaml:"expiry_tick"`
	BatchSize        int           `yaml:"batch_size"`
}

// Load reads path when it exists, applies environment overrides and defaults,
// and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Address, "SERVER_ADDRESS")
	setString(&c.Server.LogLevel, "LOG_LEVEL")
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.URL, "DB_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.JWT.Secret, "JWT_SECRET")
	setString(&c.Payments.BaseURL, "PAYMENTS_BASE_URL")
	setString(&c.Payments.MerchantID, "PAYMENTS_MERCHANT_ID")
	setString(&c.Payments.Secret, "PAYMENTS_SECRET")
	setString(&c.Payments.Callback, "PAYMENTS_CALLBACK_URL")
	setString(&c.Firebase.CredentialsFile, "FIREBASE_CREDENTIALS_FILE")
	setString(&c.SMTP.Host, "SMTP_HOST")
	setString(&c.SMTP.Username, "SMTP_USERNAME")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.SMTP.From, "SMTP_FROM")
	setString(&c.AMQP.URL, "AMQP_URL")
	setString(&c.AMQP.Exchange, "AMQP_EXCHANGE")

	ints := []struct {
		name string
		dst  *int
	}{
		{"REDIS_DB", &c.Redis.DB},
		{"SMTP_PORT", &c.SMTP.Port},
		{"BOOKING_BATCH_SIZE", &c.Booking.BatchSize},
	}
	for _, v := range ints {
		n, err := readIntEnv(v.name)
		if err != nil {
			return fmt.Errorf("parse %s: %w", v.name, err)
		}
		if n != nil {
			*v.dst = *n
		}
	}

	durations := []struct {
		name string
		unit time.Duration
		dst  *time.Duration
	}{
		{"DISPUTE_WINDOW_HOURS", time.Hour, &c.Booking.DisputeWindow},
		{"AUTO_MESSAGE_DELAY_MINUTES", time.Minute, &c.Booking.AutoMessageDelay},
		{"OFFER_TTL_HOURS", time.Hour, &c.Booking.OfferTTL},
		{"INVITE_TTL_HOURS", time.Hour, &c.Booking.InviteTTL},
		{"TRIGGER_TICK_SECONDS", time.Second, &c.Booking.TriggerTick},
		{"SAGA_TICK_SECONDS", time.Second, &c.Booking.SagaTick},
		{"EXPIRY_TICK_SECONDS", time.Second, &c.Booking.ExpiryTick},
	}
	for _, v := range durations {
		n, err := readIntEnv(v.name)
		if err != nil {
			return fmt.Errorf("parse %s: %w", v.name, err)
		}
		if n != nil {
			*v.dst = time.Duration(*n) * v.unit
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "booking.events"
	}
	b := &c.Booking
	if b.DisputeWindow <= 0 {
		b.DisputeWindow = defaultDisputeWindow
	}
	if b.AutoMessageDelay <= 0 {
		b.AutoMessageDelay = defaultAutoMessageDelay
	}
	if b.OfferTTL <= 0 {
		b.OfferTTL = defaultOfferTTL
	}
	if b.InviteTTL <= 0 {
		b.InviteTTL = defaultInviteTTL
	}
	if b.TriggerTick <= 0 {
		b.TriggerTick = defaultTriggerTick
	}
	if b.SagaTick <= 0 {
		b.SagaTick = defaultSagaTick
	}
	if b.ExpiryTick <= 0 {
		b.ExpiryTick = defaultExpiryTick
	}
	if b.BatchSize <= 0 {
		b.BatchSize = defaultBatchSize
	}
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	switch {
	case c.Database.URL == "":
		return errors.New("config: database url is required")
	case c.Database.Driver != "mysql" && c.Database.Driver != "sqlite":
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	case c.JWT.Secret == "":
		return errors.New("config: jwt secret is required")
	case c.Payments.Secret == "":
		return errors.New("config: payments secret is required")
	}
	return nil
}

func setString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func readIntEnv(name string) (*int, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

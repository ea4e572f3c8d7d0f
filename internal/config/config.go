package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"hanapbahay/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	PayMongo   PayMongoConfig   `yaml:"paymongo"`
	Payments   PaymentsConfig   `yaml:"payments"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	// Timezone is the IANA zone calendar dates (due dates, move-in dates,
	// grace days) are read in.
	Timezone string `yaml:"timezone"`
}

// DefaultTimezone is where the marketplace operates.
const DefaultTimezone = "Asia/Manila"

// Location loads the configured timezone.
func (a AppConfig) Location() (*time.Location, error) {
	name := a.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("app.timezone: %w", err)
	}
	return loc, nil
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	JWTSecret    string         `yaml:"jwt_secret"`
	JWTIssuer    string         `yaml:"jwt_issuer"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey authenticates a service client (admin tooling, cron).
type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type PayMongoConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BaseURL          string        `yaml:"base_url"`
	SecretKey        string        `yaml:"secret_key"`
	PublicKey        string        `yaml:"public_key"`
	WebhookSecret    string        `yaml:"webhook_secret"`
	LiveMode         bool          `yaml:"live_mode"`
	ReturnURL        string        `yaml:"return_url"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	WebhookTolerance time.Duration `yaml:"webhook_tolerance"`
	PaymentMethods   []string      `yaml:"payment_methods"`
}

type PaymentsConfig struct {
	Currency          string        `yaml:"currency"`
	GraceDays         int           `yaml:"grace_days"`
	LateFeeMode       string        `yaml:"late_fee_mode"`
	LateFeeAmount     int64         `yaml:"late_fee_amount"`
	LateFeePercent    float64       `yaml:"late_fee_percent"`
	DefaultLeaseMonth int           `yaml:"default_lease_months"`
	ReminderDays      int           `yaml:"reminder_days"`
	ReminderTime      string        `yaml:"reminder_time"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	CheckoutTTL       time.Duration `yaml:"checkout_ttl"`
	CheckoutAttempts  int           `yaml:"checkout_attempts"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string           `yaml:"credentials_file"`
	LedgerSpreadSheetID   string           `yaml:"ledger_spreadsheet_id"`
	Sync                  LedgerSyncConfig `yaml:"sync"`
}

// LedgerSyncConfig controls retries of spreadsheet writes.
type LedgerSyncConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// Load reads the YAML config, expanding ${VAR} references from the
// environment (and .env when present).
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if _, err := c.App.Location(); err != nil {
		return err
	}

	if c.PayMongo.Enabled {
		if c.PayMongo.SecretKey == "" {
			return errors.New("paymongo secret key is required when paymongo is enabled")
		}
		if c.PayMongo.WebhookSecret == "" {
			return errors.New("paymongo webhook secret is required when paymongo is enabled")
		}
	}

	if c.API.Auth.Enabled && c.API.Auth.JWTSecret == "" {
		return errors.New("api.auth.jwt_secret is required when auth is enabled")
	}

	return c.Payments.Validate()
}

// Validate checks the rent rules.
func (p PaymentsConfig) Validate() error {
	if p.GraceDays < 0 {
		return fmt.Errorf("payments.grace_days must not be negative: %d", p.GraceDays)
	}
	switch p.LateFeeMode {
	case models.LateFeeFixed:
		if p.LateFeeAmount < 0 {
			return fmt.Errorf("payments.late_fee_amount must not be negative: %d", p.LateFeeAmount)
		}
	case models.LateFeePercent:
		if p.LateFeePercent < 0 || p.LateFeePercent > 100 {
			return fmt.Errorf("payments.late_fee_percent out of range: %v", p.LateFeePercent)
		}
	default:
		return fmt.Errorf("unknown payments.late_fee_mode %q", p.LateFeeMode)
	}
	if _, _, err := ParseClock(p.ReminderTime); err != nil {
		return fmt.Errorf("payments.reminder_time: %w", err)
	}
	return nil
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (int, int, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	return h, m, nil
}

func (c *Config) applyDefaults() {
	if c.App.Timezone == "" {
		c.App.Timezone = DefaultTimezone
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 3000
	}
	if c.API.HTTP.ReadTimeout == 0 {
		c.API.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.API.HTTP.WriteTimeout == 0 {
		c.API.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.API.HTTP.ShutdownTimeout == 0 {
		c.API.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.PayMongo.BaseURL == "" {
		c.PayMongo.BaseURL = "https://api.paymongo.com/v1"
	}
	if c.PayMongo.Timeout == 0 {
		c.PayMongo.Timeout = 15 * time.Second
	}
	if c.PayMongo.MaxRetries == 0 {
		c.PayMongo.MaxRetries = 3
	}
	if c.PayMongo.WebhookTolerance == 0 {
		c.PayMongo.WebhookTolerance = 5 * time.Minute
	}
	if len(c.PayMongo.PaymentMethods) == 0 {
		c.PayMongo.PaymentMethods = []string{"card", "gcash", "paymaya"}
	}

	if c.Payments.Currency == "" {
		c.Payments.Currency = "PHP"
	}
	if c.Payments.GraceDays == 0 {
		c.Payments.GraceDays = models.DefaultGraceDays
	}
	if c.Payments.LateFeeMode == "" {
		c.Payments.LateFeeMode = models.LateFeePercent
		if c.Payments.LateFeePercent == 0 {
			c.Payments.LateFeePercent = 5
		}
	}
	if c.Payments.DefaultLeaseMonth == 0 {
		c.Payments.DefaultLeaseMonth = models.DefaultLeaseMonths
	}
	if c.Payments.ReminderDays == 0 {
		c.Payments.ReminderDays = models.DefaultReminderDays
	}
	if c.Payments.ReminderTime == "" {
		c.Payments.ReminderTime = fmt.Sprintf("%02d:00", models.ReminderHour)
	}
	if c.Payments.SweepInterval == 0 {
		c.Payments.SweepInterval = time.Hour
	}
	if c.Payments.CheckoutTTL == 0 {
		c.Payments.CheckoutTTL = time.Duration(models.DefaultCheckoutTTL) * time.Second
	}
	if c.Payments.CheckoutAttempts == 0 {
		c.Payments.CheckoutAttempts = models.RateLimitAttempts
	}

	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}

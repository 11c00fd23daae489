package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RunTriggerLimit caps manual billing triggers per caller per minute. 0 disables it.
	RunTriggerLimit int `yaml:"run_trigger_limit"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type BillingConfig struct {
	PageSize int           `yaml:"page_size"`
	RunLock  time.Duration `yaml:"run_lock_ttl"`
	// LapseActiveSubscriptions moves active subscriptions whose paid period ended to past_due.
	LapseActiveSubscriptions *bool  `yaml:"lapse_active_subscriptions"`
	TrialReminderDays        []int  `yaml:"trial_reminder_days"`
	PastDueReminderWindow    int    `yaml:"past_due_reminder_window_days"`
	DefaultCurrency          string `yaml:"default_currency"`
}

type SchedulerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	BillingInterval time.Duration `yaml:"billing_interval"`
	RunOnStart      bool          `yaml:"run_on_start"`
	RunTimeout      time.Duration `yaml:"run_timeout"`
	GaugeInterval   time.Duration `yaml:"gauge_interval"`
	// Secret lets an external cron call the manual trigger without a user token.
	Secret string `yaml:"secret"`
}

type EmailConfig struct {
	Provider  string `yaml:"provider"` // resend|noop
	APIKey    string `yaml:"api_key"`
	From      string `yaml:"from"`
	ReplyTo   string `yaml:"reply_to"`
	PortalURL string `yaml:"portal_url"`
	Locale    string `yaml:"locale"` // template catalog, e.g. en
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Billing   BillingConfig   `yaml:"billing"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Email     EmailConfig     `yaml:"email"`
	Auth      AuthConfig      `yaml:"auth"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LapseActive reports whether active subscriptions with an ended period are lapsed. Defaults to true.
func (b BillingConfig) LapseActive() bool {
	return b.LapseActiveSubscriptions == nil || *b.LapseActiveSubscriptions
}

// LoadConfig parses -config and -dev and loads the file.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	return Load(configPath, dev)
}

// Load reads a yaml file, applies environment overrides and defaults, and validates.
func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Email.Provider == "resend" && cfg.Email.APIKey == "" {
		return nil, errors.New("email.api_key is required for the resend provider")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// applyEnv lets secrets live outside the yaml file.
func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&cfg.Database.URL, "DATABASE_URL")
	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Email.APIKey, "RESEND_API_KEY")
	override(&cfg.Email.From, "EMAIL_FROM")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Scheduler.Secret, "SCHEDULER_SECRET")
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Billing.PageSize <= 0 {
		cfg.Billing.PageSize = 200
	}
	if cfg.Billing.RunLock <= 0 {
		cfg.Billing.RunLock = 15 * time.Minute
	}
	if len(cfg.Billing.TrialReminderDays) == 0 {
		cfg.Billing.TrialReminderDays = []int{7, 3, 1}
	}
	if cfg.Billing.PastDueReminderWindow <= 0 {
		cfg.Billing.PastDueReminderWindow = 5
	}
	if cfg.Billing.DefaultCurrency == "" {
		cfg.Billing.DefaultCurrency = "USD"
	}

	if cfg.Scheduler.BillingInterval <= 0 {
		cfg.Scheduler.BillingInterval = 24 * time.Hour
	}
	if cfg.Scheduler.RunTimeout <= 0 {
		cfg.Scheduler.RunTimeout = 10 * time.Minute
	}
	if cfg.Scheduler.GaugeInterval <= 0 {
		cfg.Scheduler.GaugeInterval = 5 * time.Minute
	}

	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "noop"
	}
	if cfg.Email.Locale == "" {
		cfg.Email.Locale = "en"
	}
	if cfg.Email.From == "" {
		cfg.Email.From = "Billing <billing@example.com>"
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port         int           `yaml:"port"`
	WebhookPath  string        `yaml:"webhook_path"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	Timeout      time.Duration `yaml:"timeout"` // per-request deadline
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type StoreConfig struct {
	Driver    string          `yaml:"driver"` // firestore|postgres
	Postgres  DatabaseConfig  `yaml:"postgres"`
	Firestore FirestoreConfig `yaml:"firestore"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	UsersCollection string `yaml:"users_collection"`
	LogsCollection  string `yaml:"logs_collection"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables dedupe, cache and rate limiting
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`       // order cache ttl
	DedupTTL time.Duration `yaml:"dedup_ttl"` // delivery id retention
}

type PaymentConfig struct {
	Razorpay struct {
		KeyID         string        `yaml:"key_id"`
		KeySecret     string        `yaml:"key_secret"`
		WebhookSecret string        `yaml:"webhook_secret"`
		BaseURL       string        `yaml:"base_url"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"razorpay"`
	Currency string `yaml:"currency"`
}

type SMSConfig struct {
	APIURL      string `yaml:"api_url"`
	APIID       string `yaml:"api_id"`
	APIPassword string `yaml:"api_password"`
	SenderID    string `yaml:"sender_id"`
	TemplateID  string `yaml:"template_id"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	From         string `yaml:"from"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type SecurityConfig struct {
	AuditEncryptionKey string `yaml:"audit_encryption_key"` // empty stores raw payloads in clear
}

type PremiumConfig struct {
	DefaultPlanTitle  string `yaml:"default_plan_title"`
	DefaultForm       string `yaml:"default_form"`
	DefaultExpiryDays int    `yaml:"default_expiry_days"`
}

type ReconcileConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
}

type NotifyConfig struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"` // per notification task
}

type SchedulerConfig struct {
	ExpiryInterval    time.Duration `yaml:"expiry_interval"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	SweepStaleAfter   time.Duration `yaml:"sweep_stale_after"`
	CreateOrderLimit  int           `yaml:"create_order_limit"` // per user per window
	CreateOrderWindow time.Duration `yaml:"create_order_window"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	SMS       SMSConfig       `yaml:"sms"`
	Email     EmailConfig     `yaml:"email"`
	Auth      AuthConfig      `yaml:"auth"`
	Security  SecurityConfig  `yaml:"security"`
	Premium   PremiumConfig   `yaml:"premium"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Notify    NotifyConfig    `yaml:"notify"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. ${VAR} references are expanded
// from the environment before parsing so secrets can stay in .env.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse applies env expansion, defaults and validation to raw YAML.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Payment.Razorpay.WebhookSecret == "" {
		return nil, errors.New("payment.razorpay.webhook_secret is required")
	}
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.Postgres.URL == "" {
			return nil, errors.New("store.postgres.url is required")
		}
	case "firestore":
		if cfg.Store.Firestore.ProjectID == "" {
			return nil, errors.New("store.firestore.project_id is required")
		}
	default:
		return nil, fmt.Errorf("store.driver must be postgres or firestore, got %q", cfg.Store.Driver)
	}
	if cfg.Auth.JWTSecret == "" && !dev {
		return nil, errors.New("auth.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.WebhookPath == "" {
		cfg.HTTP.WebhookPath = "/webhook"
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}
	if cfg.HTTP.Timeout <= 0 {
		cfg.HTTP.Timeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Postgres.MaxConns <= 0 {
		cfg.Store.Postgres.MaxConns = 10
	}
	if cfg.Store.Firestore.UsersCollection == "" {
		cfg.Store.Firestore.UsersCollection = "users"
	}
	if cfg.Store.Firestore.LogsCollection == "" {
		cfg.Store.Firestore.LogsCollection = "paymentLogs"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL, 5*time.Minute)
	cfg.Redis.DedupTTL = normalizeTTL(cfg.Redis.DedupTTL, 72*time.Hour)

	if cfg.Payment.Razorpay.BaseURL == "" {
		cfg.Payment.Razorpay.BaseURL = "https://api.razorpay.com/v1"
	}
	if cfg.Payment.Razorpay.Timeout <= 0 {
		cfg.Payment.Razorpay.Timeout = 15 * time.Second
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "INR"
	}
	if cfg.SMS.APIURL == "" {
		cfg.SMS.APIURL = "https://www.bulksmsplans.com/api/send_sms"
	}
	if cfg.Email.SMTPHost == "" {
		cfg.Email.SMTPHost = "smtp.gmail.com"
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.Email.From == "" {
		cfg.Email.From = `"Saarathi" <noreply@counsellingapp.com>`
	}
	cfg.Auth.TokenTTL = normalizeTTL(cfg.Auth.TokenTTL, 30*24*time.Hour)

	if cfg.Premium.DefaultPlanTitle == "" {
		cfg.Premium.DefaultPlanTitle = "Saarathi"
	}
	if cfg.Premium.DefaultForm == "" {
		cfg.Premium.DefaultForm = "Sarathi-Online"
	}
	if cfg.Premium.DefaultExpiryDays <= 0 {
		cfg.Premium.DefaultExpiryDays = 180
	}
	if cfg.Reconcile.MaxAttempts <= 0 {
		cfg.Reconcile.MaxAttempts = 5
	}
	if cfg.Reconcile.BaseBackoff <= 0 {
		cfg.Reconcile.BaseBackoff = 50 * time.Millisecond
	}
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 4
	}
	if cfg.Notify.Timeout <= 0 {
		cfg.Notify.Timeout = 30 * time.Second
	}
	cfg.Scheduler.ExpiryInterval = normalizeTTL(cfg.Scheduler.ExpiryInterval, time.Hour)
	cfg.Scheduler.SweepInterval = normalizeTTL(cfg.Scheduler.SweepInterval, 5*time.Minute)
	cfg.Scheduler.SweepStaleAfter = normalizeTTL(cfg.Scheduler.SweepStaleAfter, 15*time.Minute)
	if cfg.Scheduler.CreateOrderLimit <= 0 {
		cfg.Scheduler.CreateOrderLimit = 10
	}
	cfg.Scheduler.CreateOrderWindow = normalizeTTL(cfg.Scheduler.CreateOrderWindow, time.Minute)
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

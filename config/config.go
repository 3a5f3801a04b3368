package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Billing    BillingConfig    `yaml:"billing"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Push       PushConfig       `yaml:"push"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" validate:"gte=1,lte=65535"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" validate:"oneof=postgres sqlite"`
	DSN                    string `yaml:"dsn" validate:"required"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnforceConstraints     bool   `yaml:"enforce_constraints"`
}

// BillingConfig holds the knobs of the billing engine.
type BillingConfig struct {
	PaymentDeadlineDays int    `yaml:"payment_deadline_days" validate:"gte=0"`
	SemesterOverride    string `yaml:"semester_override"`
}

// PaymentDeadline returns the grace period before a pending charge is overdue.
func (b BillingConfig) PaymentDeadline() time.Duration {
	return time.Duration(b.PaymentDeadlineDays) * 24 * time.Hour
}

// SchedulerConfig holds cron specs for the periodic jobs.
type SchedulerConfig struct {
	Enabled              bool   `yaml:"enabled"`
	NewMonthSchedule     string `yaml:"new_month_schedule"`
	NewSemesterSchedule  string `yaml:"new_semester_schedule"`
	OverdueSweepSchedule string `yaml:"overdue_sweep_schedule"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// AMQPConfig configures the optional event publisher.
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size           int `yaml:"size"`
	QueueSize      int `yaml:"queue_size"`
	MaxAttempts    int `yaml:"max_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`
	SendsPerSecond int `yaml:"sends_per_second"`
}

// RetryBackoff is the delay before the first retry; it doubles per attempt.
func (w WorkerPoolConfig) RetryBackoff() time.Duration {
	return time.Duration(w.RetryBackoffMs) * time.Millisecond
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Keys absent from the file keep these values; an explicit zero is honored.
	cfg := Config{Billing: BillingConfig{PaymentDeadlineDays: 10}}
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Scheduler.NewMonthSchedule == "" {
		cfg.Scheduler.NewMonthSchedule = "0 0 1 * *" // 00:00 on the 1st of every month
	}
	if cfg.Scheduler.NewSemesterSchedule == "" {
		cfg.Scheduler.NewSemesterSchedule = "5 0 1 1,6,9 *" // first day of spring, summer and fall
	}
	if cfg.Scheduler.OverdueSweepSchedule == "" {
		cfg.Scheduler.OverdueSweepSchedule = "30 * * * *"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.AMQP.Exchange == "" {
		cfg.AMQP.Exchange = "residence_events"
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 256
	}
	if cfg.WorkerPool.MaxAttempts <= 0 {
		cfg.WorkerPool.MaxAttempts = 5
	}
	if cfg.WorkerPool.RetryBackoffMs <= 0 {
		cfg.WorkerPool.RetryBackoffMs = 500
	}
	if cfg.WorkerPool.SendsPerSecond <= 0 {
		cfg.WorkerPool.SendsPerSecond = 20
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

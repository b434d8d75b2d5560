package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	Prompt     PromptConfig     `yaml:"prompt"`
	Triggers   TriggersConfig   `yaml:"triggers"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Cache      CacheConfig      `yaml:"cache"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the push fan-out pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys and the message sent for the daily prompt.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
	Title      string `yaml:"title"`
	Body       string `yaml:"body"`
	URL        string `yaml:"url"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	TriggerToken    string  `yaml:"trigger_token"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PromptConfig controls when the daily prompt fires and how long posting stays open.
type PromptConfig struct {
	Timezone               string        `yaml:"timezone"`
	MinHour                *int          `yaml:"min_hour"`
	MaxHour                *int          `yaml:"max_hour"`
	OpenDurationSeconds    int           `yaml:"open_duration_seconds"`
	OpenDuration           time.Duration `yaml:"-"`
	EligibilityBandSeconds int           `yaml:"eligibility_band_seconds"`
	EligibilityBand        time.Duration `yaml:"-"`
	LateGraceSeconds       int           `yaml:"late_grace_seconds"`
	LateGrace              time.Duration `yaml:"-"`
	WaitForDue             *bool         `yaml:"wait_for_due"`
}

// TriggersConfig controls the in-process periodic triggers. When disabled the
// scheduler and dispatcher only run through the HTTP trigger endpoints.
type TriggersConfig struct {
	Enabled                 bool          `yaml:"enabled"`
	DispatchIntervalSeconds int           `yaml:"dispatch_interval_seconds"`
	DispatchInterval        time.Duration `yaml:"-"`
	ScheduleIntervalSeconds int           `yaml:"schedule_interval_seconds"`
	ScheduleInterval        time.Duration `yaml:"-"`
}

// CacheConfig controls the read cache in front of notification lookups.
type CacheConfig struct {
	NotificationTTLSeconds int           `yaml:"notification_ttl_seconds"`
	NotificationTTL        time.Duration `yaml:"-"`
}

// LogConfig holds the logger level.
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

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, as if loaded
// from an empty file.
func Default() *Config {
	var cfg Config
	// defaults on an empty config cannot fail validation
	_ = cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Push.Subject == "" {
		cfg.Push.Subject = "mailto:hello@example.com"
	}
	if cfg.Push.Title == "" {
		cfg.Push.Title = "📸 Time to post!"
	}
	if cfg.Push.Body == "" {
		cfg.Push.Body = "Open the app and post your daily photo!"
	}

	p := &cfg.Prompt
	if p.Timezone == "" {
		p.Timezone = "Europe/Rome"
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("prompt.timezone %q: %w", p.Timezone, err)
	}
	// hours are pointers so an explicit 0 is not mistaken for "unset"
	if p.MinHour == nil {
		minHour := 9
		p.MinHour = &minHour
	}
	if p.MaxHour == nil {
		maxHour := 22
		p.MaxHour = &maxHour
	}
	if *p.MinHour < 0 || *p.MaxHour > 23 || *p.MinHour > *p.MaxHour {
		return fmt.Errorf("prompt hours out of range: min_hour=%d max_hour=%d", *p.MinHour, *p.MaxHour)
	}
	if p.OpenDurationSeconds <= 0 {
		p.OpenDurationSeconds = 300
	}
	p.OpenDuration = time.Duration(p.OpenDurationSeconds) * time.Second
	if p.EligibilityBandSeconds <= 0 {
		p.EligibilityBandSeconds = 120
	}
	p.EligibilityBand = time.Duration(p.EligibilityBandSeconds) * time.Second
	if p.LateGraceSeconds < 0 {
		p.LateGraceSeconds = 0
	}
	p.LateGrace = time.Duration(p.LateGraceSeconds) * time.Second
	if p.WaitForDue == nil {
		wait := true
		p.WaitForDue = &wait
	}

	if cfg.Triggers.DispatchIntervalSeconds <= 0 {
		cfg.Triggers.DispatchIntervalSeconds = 30
	}
	cfg.Triggers.DispatchInterval = time.Duration(cfg.Triggers.DispatchIntervalSeconds) * time.Second
	if cfg.Triggers.ScheduleIntervalSeconds <= 0 {
		cfg.Triggers.ScheduleIntervalSeconds = 3600
	}
	cfg.Triggers.ScheduleInterval = time.Duration(cfg.Triggers.ScheduleIntervalSeconds) * time.Second

	if cfg.Cache.NotificationTTLSeconds <= 0 {
		cfg.Cache.NotificationTTLSeconds = 60
	}
	cfg.Cache.NotificationTTL = time.Duration(cfg.Cache.NotificationTTLSeconds) * time.Second

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 4")
		cfg.WorkerPool.Size = 4
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return nil
}

package models

import "time"

type Config struct {
	LogLevel  string          `json:"log_level"`
	Database  DatabaseConfig  `json:"database"`
	Channel   ChannelConfig   `json:"channel"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Window    WindowConfig    `json:"window"`
	Jobs      JobsConfig      `json:"jobs"`
	Server    ServerConfig    `json:"server"`
	Retry     RetryConfig     `json:"retry"`
	Tracing   TracingConfig   `json:"tracing"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type ChannelConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	PhoneID     string `json:"phone_id"`
	AccessToken string `json:"-"` // environment only, never in the config file
	TimeoutSec  int    `json:"timeout_sec"`
	CountryCode string `json:"country_code"`
}

func (c ChannelConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Configured reports whether real channel credentials are present. When
// false the process runs with the demo client instead of the Cloud API.
func (c ChannelConfig) Configured() bool {
	return c.PhoneID != "" && c.AccessToken != ""
}

type RateLimitConfig struct {
	MaxPerHour int `json:"max_per_hour"`
	MaxPerDay  int `json:"max_per_day"`
}

type DispatchConfig struct {
	BatchSize     int  `json:"batch_size"`
	BatchDelaySec int  `json:"batch_delay_sec"`
	DelayMinSec   int  `json:"delay_min_sec"`
	DelayMaxSec   int  `json:"delay_max_sec"`
	// BypassWindow lets interactively triggered runs send outside the
	// configured window. Scheduled runs always honor the window.
	BypassWindow bool `json:"bypass_window"`
}

type WindowConfig struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
	// AllowedDays uses Monday=0 .. Sunday=6. Empty means Mon-Fri.
	AllowedDays []int `json:"allowed_days"`
}

type JobsConfig struct {
	MonthlyReminderDay int `json:"monthly_reminder_day"`
	OverdueReminderDay int `json:"overdue_reminder_day"`
	StartHour          int `json:"start_hour"`
	StartMinute        int `json:"start_minute"`
}

type ServerConfig struct {
	Port int `json:"port"`
}

type RetryConfig struct {
	InitialBackoffMs int `json:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"max_backoff_ms"`
	MaxAttempts      int `json:"max_attempts"`
}

type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	UseStdout    bool    `json:"use_stdout"`
	OTLPEndpoint string  `json:"otlp_endpoint"`
	SampleRate   float64 `json:"sample_rate"`
	Environment  string  `json:"environment"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

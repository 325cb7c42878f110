package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"payreminder/internal/constants"
	"payreminder/internal/models"
)

var (
	ErrMissingDBPath = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	if path == "" || strings.Contains(path, "\x00") {
		return nil, fmt.Errorf("invalid config path")
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Channel.APIBaseURL == "" {
		c.Channel.APIBaseURL = constants.DefaultChannelAPIBaseURL
	}
	if c.Channel.TimeoutSec <= 0 {
		c.Channel.TimeoutSec = constants.DefaultChannelTimeoutSec
	}
	if c.Channel.CountryCode == "" {
		c.Channel.CountryCode = constants.DefaultCountryCode
	}

	if c.RateLimit.MaxPerHour <= 0 {
		c.RateLimit.MaxPerHour = constants.DefaultMaxPerHour
	}
	if c.RateLimit.MaxPerDay <= 0 {
		c.RateLimit.MaxPerDay = constants.DefaultMaxPerDay
	}
	if c.RateLimit.MaxPerHour > c.RateLimit.MaxPerDay {
		return models.ConfigError{Message: "hourly rate limit cannot exceed daily rate limit"}
	}

	if c.Dispatch.BatchSize <= 0 {
		c.Dispatch.BatchSize = constants.DefaultBatchSize
	}
	if c.Dispatch.BatchDelaySec <= 0 {
		c.Dispatch.BatchDelaySec = constants.DefaultBatchDelaySec
	}
	if c.Dispatch.DelayMinSec <= 0 {
		c.Dispatch.DelayMinSec = constants.DefaultDelayMinSec
	}
	if c.Dispatch.DelayMaxSec <= 0 {
		c.Dispatch.DelayMaxSec = constants.DefaultDelayMaxSec
	}
	if c.Dispatch.DelayMinSec > c.Dispatch.DelayMaxSec {
		return models.ConfigError{Message: "dispatch delay_min_sec cannot exceed delay_max_sec"}
	}

	if c.Window.StartHour == 0 && c.Window.EndHour == 0 {
		c.Window.StartHour = constants.DefaultSendStartHour
		c.Window.EndHour = constants.DefaultSendEndHour
	}
	if c.Window.StartHour < 0 || c.Window.EndHour > 24 || c.Window.StartHour >= c.Window.EndHour {
		return models.ConfigError{Message: fmt.Sprintf("invalid send window hours: %d-%d", c.Window.StartHour, c.Window.EndHour)}
	}
	for _, day := range c.Window.AllowedDays {
		if day < 0 || day > 6 {
			return models.ConfigError{Message: fmt.Sprintf("invalid allowed day: %d (expected 0=Monday .. 6=Sunday)", day)}
		}
	}

	if c.Jobs.MonthlyReminderDay <= 0 {
		c.Jobs.MonthlyReminderDay = constants.DefaultMonthlyReminderDay
	}
	if c.Jobs.OverdueReminderDay <= 0 {
		c.Jobs.OverdueReminderDay = constants.DefaultOverdueReminderDay
	}
	if c.Jobs.MonthlyReminderDay > 28 || c.Jobs.OverdueReminderDay > 28 {
		return models.ConfigError{Message: "reminder days must be between 1 and 28 so every month has them"}
	}
	if c.Jobs.StartHour <= 0 {
		c.Jobs.StartHour = constants.DefaultJobStartHour
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryInitialBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultRetryMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultRetryMaxAttempts
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("WHATSAPP_API_URL"); url != "" {
		c.Channel.APIBaseURL = url
	}
	if phoneID := os.Getenv("WHATSAPP_PHONE_ID"); phoneID != "" {
		c.Channel.PhoneID = phoneID
	}

	// SECURITY: the access token is only ever read from the environment,
	// never from the config file.
	if token := os.Getenv("WHATSAPP_ACCESS_TOKEN"); token != "" {
		c.Channel.AccessToken = token
	}

	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
}

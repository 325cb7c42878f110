package constants

// Default rate limiting values
const (
	DefaultMaxPerHour = 30
	DefaultMaxPerDay  = 200
)

// Default humanized delay values (seconds)
const (
	DefaultDelayMinSec      = 45
	DefaultDelayMaxSec      = 120
	MaxDelayMinSec          = 300
	MaxDelayMaxSec          = 600
	DelayEscalationStep     = 50
	DelayEscalationFraction = 0.2
)

// Default sending window values
const (
	DefaultSendStartHour = 9
	DefaultSendEndHour   = 20
)

// Default dispatch values
const (
	DefaultBatchSize     = 15
	DefaultBatchDelaySec = 300
	DefaultQueueListSize = 200
)

// Default scheduler values
const (
	DefaultMonthlyReminderDay = 5
	DefaultOverdueReminderDay = 15
	DefaultJobStartHour       = 10
	SchedulerTickSec          = 60
)

// Default channel values
const (
	DefaultChannelAPIBaseURL = "https://graph.facebook.com/v18.0"
	DefaultChannelTimeoutSec = 10
	DefaultCountryCode       = "51"
)

// Message sanitization bounds
const (
	MaxMessageLength  = 4096
	TruncationSuffix  = "..."
	MinPhoneDigits    = 10
	MaxPhoneDigits    = 15
	LocalNumberDigits = 9
)

// Default timeout and retry values
const (
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryInitialBackoffMs = 1000
	DefaultRetryMaxBackoffMs     = 60000
	DefaultRetryMaxAttempts      = 3
	DefaultGracefulShutdownSec   = 30
	DefaultServerPort            = 8082
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	ServerErrorChannelSize       = 1
)

// Privacy settings
const (
	PhoneMaskVisiblePrefix = 3
	PhoneMaskVisibleSuffix = 3
)

// Encryption parameters for at-rest protection of destinations and bodies.
const (
	EncryptionSalt = "payreminder-db-salt-v1"
)

package config

// Config is the full on-disk configuration.
//
// The file may be YAML or JSON; YAML is coerced to JSON so both formats go
// through the same strict decoder (unknown fields are rejected).
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Access    AccessConfig    `json:"access"`
	Reminders RemindersConfig `json:"reminders"`
	Sweep     SweepConfig     `json:"sweep"`
}

type TelegramConfig struct {
	// Token may be left empty in the file; it then falls back to the
	// BOT_TOKEN environment variable (with .env support).
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
	// AdminUserIDs may be set here or via ADMIN_IDS (comma separated).
	AdminUserIDs []int64 `json:"admin_user_ids,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the sqlite user store.
type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string; 0 means the driver default.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// AccessConfig controls the trial grant.
type AccessConfig struct {
	TrialDays int `json:"trial_days"`
}

// RemindersConfig holds the three fixed local fire times as "HH:MM".
//
// Changing these in a running process reschedules every user under the new
// local times on the next config reload.
type RemindersConfig struct {
	Morning string `json:"morning"`
	Midday  string `json:"midday"`
	Evening string `json:"evening"`
}

// SweepConfig controls the housekeeping cron that re-evaluates access for all
// scheduled users between reminder firings.
type SweepConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron spec or descriptor (e.g. "@hourly").
	Schedule string `json:"schedule,omitempty"`
}

// Defaults fills zero values that have sensible built-ins.
func (c *Config) Defaults() {
	if c.Access.TrialDays <= 0 {
		c.Access.TrialDays = 3
	}
	if c.Reminders.Morning == "" {
		c.Reminders.Morning = "08:00"
	}
	if c.Reminders.Midday == "" {
		c.Reminders.Midday = "12:00"
	}
	if c.Reminders.Evening == "" {
		c.Reminders.Evening = "20:00"
	}
	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = "@hourly"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./data/remindbot.db"
	}
}

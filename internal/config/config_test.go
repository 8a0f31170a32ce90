package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  poll_timeout: "15s"
  admin_user_ids: [11, 22]
logging:
  level: "debug"
  console: true
storage:
  path: "/tmp/x.db"
  busy_timeout: "5s"
access:
  trial_days: 5
reminders:
  morning: "07:00"
  midday: "13:00"
  evening: "21:00"
sweep:
  enabled: true
`)
	cfg, err := NewManager(path).Parse()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "15s", cfg.Telegram.PollTimeout)
	assert.Equal(t, []int64{11, 22}, cfg.Telegram.AdminUserIDs)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.Access.TrialDays)
	assert.Equal(t, "07:00", cfg.Reminders.Morning)
	assert.True(t, cfg.Sweep.Enabled)
	// Unset schedule falls back to the default.
	assert.Equal(t, "@hourly", cfg.Sweep.Schedule)
}

func TestParseAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", `
telegram:
  token: "t"
`)
	cfg, err := NewManager(path).Parse()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Access.TrialDays)
	assert.Equal(t, "08:00", cfg.Reminders.Morning)
	assert.Equal(t, "12:00", cfg.Reminders.Midday)
	assert.Equal(t, "20:00", cfg.Reminders.Evening)
	assert.Equal(t, "./data/remindbot.db", cfg.Storage.Path)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", `
telegram:
  token: "t"
  chat_id: 42
`)
	_, err := NewManager(path).Parse()
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.json",
		`{"telegram":{"token":"t"},"access":{"trial_days":7}}`)
	cfg, err := NewManager(path).Parse()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Access.TrialDays)
}

func TestParseRejectsTrailingJSON(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.json", `{"telegram":{"token":"t"}}{"extra":1}`)
	_, err := NewManager(path).Parse()
	assert.Error(t, err)
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	d, err := ParseDurationField("x", "90s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = ParseDurationField("x", "")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = ParseDurationField("x", "three days")
	assert.Error(t, err)
	_, err = ParseDurationField("x", "-1s")
	assert.Error(t, err)
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	d, err := ParseDurationOrDefault("x", "", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	d, err = ParseDurationOrDefault("x", "2m", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)
}

func TestParseAdminIDs(t *testing.T) {
	t.Parallel()

	assert.Nil(t, parseAdminIDs(""))
	assert.Equal(t, []int64{1, 2, 3}, parseAdminIDs("1,2,3"))
	assert.Equal(t, []int64{5}, parseAdminIDs(" 5 , x, -2, "))
}

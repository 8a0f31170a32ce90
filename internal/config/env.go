package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads a .env file if present and overlays secrets onto cfg.
// Environment values win over file values so deployments can override
// a checked-in config without editing it.
func LoadEnv(cfg *Config) {
	// Missing .env is fine; env vars may be set directly.
	_ = godotenv.Load()

	if tok := strings.TrimSpace(os.Getenv("BOT_TOKEN")); tok != "" {
		cfg.Telegram.Token = tok
	}
	if ids := parseAdminIDs(os.Getenv("ADMIN_IDS")); len(ids) > 0 {
		cfg.Telegram.AdminUserIDs = ids
	}
}

// parseAdminIDs parses "123,456,789"; malformed entries are skipped.
func parseAdminIDs(raw string) []int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		out = append(out, id)
	}
	return out
}

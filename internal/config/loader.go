package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SNIPEBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SNIPEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Anthropic ──
	setStr(&cfg.Anthropic.APIKey, "SNIPEBOT_ANTHROPIC_API_KEY")
	setStr(&cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY") // compatibility alias
	setStr(&cfg.Anthropic.Model, "SNIPEBOT_ANTHROPIC_MODEL")
	setInt(&cfg.Anthropic.MaxTokensPerCall, "SNIPEBOT_ANTHROPIC_MAX_TOKENS_PER_CALL")
	setInt64(&cfg.Anthropic.MaxRunTokens, "SNIPEBOT_ANTHROPIC_MAX_RUN_TOKENS")
	setInt(&cfg.Anthropic.MaxToolCalls, "SNIPEBOT_ANTHROPIC_MAX_TOOL_CALLS")

	// ── Tavily ──
	setStr(&cfg.Tavily.APIKey, "SNIPEBOT_TAVILY_API_KEY")
	setStr(&cfg.Tavily.APIKey, "TAVILY_API_KEY") // compatibility alias

	// ── Discogs ──
	setStr(&cfg.Discogs.Token, "SNIPEBOT_DISCOGS_TOKEN")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SNIPEBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SNIPEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SNIPEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SNIPEBOT_REDIS_DB")

	// ── Budget ──
	setStr(&cfg.Budget.DataDir, "SNIPEBOT_BUDGET_DATA_DIR")
	setInt64(&cfg.Budget.DailyTokenLimit, "SNIPEBOT_BUDGET_DAILY_TOKEN_LIMIT")

	// ── Runs ──
	setInt(&cfg.Runs.MaxConcurrent, "SNIPEBOT_RUNS_MAX_CONCURRENT")
	setDuration(&cfg.Runs.Timeout, "SNIPEBOT_RUNS_TIMEOUT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SNIPEBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SNIPEBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SNIPEBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.SharedSecret, "SNIPEBOT_SERVER_SHARED_SECRET")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SNIPEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SNIPEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SNIPEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SNIPEBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "SNIPEBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

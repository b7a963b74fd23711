// Package config defines the top-level configuration for the snipebot
// pipeline and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SNIPEBOT_* environment variables.
type Config struct {
	Anthropic AnthropicConfig `toml:"anthropic"`
	Tavily    TavilyConfig    `toml:"tavily"`
	Discogs   DiscogsConfig   `toml:"discogs"`
	Redis     RedisConfig     `toml:"redis"`
	Budget    BudgetConfig    `toml:"budget"`
	Runs      RunsConfig      `toml:"runs"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	LogLevel  string          `toml:"log_level"`
}

// AnthropicConfig holds the LLM credentials and per-run ceilings for the
// verification phase.
type AnthropicConfig struct {
	APIKey           string `toml:"api_key"`
	Model            string `toml:"model"`
	MaxTokensPerCall int    `toml:"max_tokens_per_call"`
	// MaxRunTokens caps total tokens per run; 0 disables the cap.
	MaxRunTokens int64 `toml:"max_run_tokens"`
	// MaxToolCalls caps tool executions per run, hard ceiling 5.
	MaxToolCalls int `toml:"max_tool_calls"`
}

// TavilyConfig holds the web-search API credentials.
type TavilyConfig struct {
	APIKey string `toml:"api_key"`
}

// DiscogsConfig holds the Discogs marketplace API token. Optional; without it
// the collectibles agent scouts with the sneaker source only.
type DiscogsConfig struct {
	Token string `toml:"token"`
}

// RedisConfig holds Redis connection parameters for the signal bus. When
// disabled, an in-process bus carries run events instead.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// BudgetConfig holds the daily token budget parameters.
type BudgetConfig struct {
	// DataDir is where the usage and budget ledger files live.
	DataDir string `toml:"data_dir"`
	// DailyTokenLimit is the default ceiling; a limit already persisted in
	// the data dir takes precedence.
	DailyTokenLimit int64 `toml:"daily_token_limit"`
}

// RunsConfig holds the run queue and deadline parameters.
type RunsConfig struct {
	// MaxConcurrent is how many runs may execute at once; later triggers
	// queue FIFO.
	MaxConcurrent int `toml:"max_concurrent"`
	// Timeout bounds one whole pipeline run.
	Timeout duration `toml:"timeout"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "3m", "90s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "3m" or "90s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// SharedSecret gates the API when non-empty.
	SharedSecret string `toml:"shared_secret"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Anthropic: AnthropicConfig{
			Model:            "claude-sonnet-4-20250514",
			MaxTokensPerCall: 4096,
			MaxRunTokens:     0,
			MaxToolCalls:     5,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Budget: BudgetConfig{
			DataDir:         "data",
			DailyTokenLimit: 500_000,
		},
		Runs: RunsConfig{
			MaxConcurrent: 2,
			Timeout:       duration{3 * time.Minute},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunities", "run_failed", "budget_exhausted"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Anthropic — required for every agent except crypto, so treat as
	// mandatory for a server that accepts arbitrary triggers.
	if c.Anthropic.APIKey == "" {
		errs = append(errs, "anthropic: api_key must not be empty")
	}
	if c.Anthropic.Model == "" {
		errs = append(errs, "anthropic: model must not be empty")
	}
	if c.Anthropic.MaxTokensPerCall <= 0 {
		errs = append(errs, "anthropic: max_tokens_per_call must be > 0")
	}
	if c.Anthropic.MaxRunTokens < 0 {
		errs = append(errs, "anthropic: max_run_tokens must be >= 0 (0 disables the cap)")
	}
	if c.Anthropic.MaxToolCalls < 0 || c.Anthropic.MaxToolCalls > 5 {
		errs = append(errs, fmt.Sprintf("anthropic: max_tool_calls must be 0-5, got %d", c.Anthropic.MaxToolCalls))
	}

	// Tavily — the sold-price tool and the web-search source both need it.
	if c.Tavily.APIKey == "" {
		errs = append(errs, "tavily: api_key must not be empty")
	}

	// Redis
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	// Budget
	if c.Budget.DataDir == "" {
		errs = append(errs, "budget: data_dir must not be empty")
	}
	if c.Budget.DailyTokenLimit <= 0 {
		errs = append(errs, "budget: daily_token_limit must be > 0")
	}

	// Runs
	if c.Runs.MaxConcurrent < 1 {
		errs = append(errs, "runs: max_concurrent must be >= 1")
	}
	if c.Runs.Timeout.Duration <= 0 {
		errs = append(errs, "runs: timeout must be > 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify — Telegram needs both halves.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

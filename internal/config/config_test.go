package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Anthropic.APIKey = "sk-test"
	cfg.Tavily.APIKey = "tvly-test"
	return cfg
}

func TestValidateDefaultsNeedOnlyKeys(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Runs.MaxConcurrent = 0
	cfg.Budget.DailyTokenLimit = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{
		"log_level",
		"anthropic: api_key",
		"tavily: api_key",
		"runs: max_concurrent",
		"budget: daily_token_limit",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateToolCallCeiling(t *testing.T) {
	cfg := validConfig()
	cfg.Anthropic.MaxToolCalls = 6
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted max_tool_calls above 5")
	}

	cfg.Anthropic.MaxToolCalls = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() rejected max_tool_calls 0: %v", err)
	}
}

func TestValidateTelegramHalvesMustPair(t *testing.T) {
	cfg := validConfig()
	cfg.Notify.TelegramToken = "123:abc"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted telegram token without chat id")
	}
	cfg.Notify.TelegramChatID = "-100"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() rejected paired telegram settings: %v", err)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	doc := `
log_level = "debug"

[anthropic]
api_key = "sk-file"

[runs]
timeout = "90s"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Anthropic.APIKey != "sk-file" {
		t.Errorf("Anthropic.APIKey = %q, want sk-file", cfg.Anthropic.APIKey)
	}
	if got := cfg.Runs.Timeout.Duration; got != 90*time.Second {
		t.Errorf("Runs.Timeout = %v, want 90s", got)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want default 8000", cfg.Server.Port)
	}
	if cfg.Anthropic.Model == "" {
		t.Error("Anthropic.Model lost its default")
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nport = 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SNIPEBOT_SERVER_PORT", "9443")
	t.Setenv("SNIPEBOT_ANTHROPIC_API_KEY", "sk-env")
	t.Setenv("SNIPEBOT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9443 {
		t.Errorf("Server.Port = %d, want env override 9443", cfg.Server.Port)
	}
	if cfg.Anthropic.APIKey != "sk-env" {
		t.Errorf("Anthropic.APIKey = %q, want sk-env", cfg.Anthropic.APIKey)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Password = "hunter2"
	cfg.Server.SharedSecret = "gate"
	cfg.Notify.DiscordWebhookURL = "https://discord.com/api/webhooks/1/x"

	red := RedactedConfig(&cfg)

	for name, got := range map[string]string{
		"anthropic api key":   red.Anthropic.APIKey,
		"tavily api key":      red.Tavily.APIKey,
		"redis password":      red.Redis.Password,
		"shared secret":       red.Server.SharedSecret,
		"discord webhook url": red.Notify.DiscordWebhookURL,
	} {
		if got != "***" {
			t.Errorf("%s not redacted: %q", name, got)
		}
	}

	// Original is untouched.
	if cfg.Anthropic.APIKey != "sk-test" {
		t.Errorf("original mutated: %q", cfg.Anthropic.APIKey)
	}
}

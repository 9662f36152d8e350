package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DAILY_LIMIT", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("WEB_APP_URL", "")

	cfg := Load()
	if cfg.DailyLimit != 1 || cfg.AdminUserID != 0 {
		t.Errorf("quota defaults = %d/%d", cfg.DailyLimit, cfg.AdminUserID)
	}
	if cfg.PollInterval != 2*time.Second || cfg.PollBudget != 120*time.Second || cfg.JobTTL != time.Hour {
		t.Errorf("poll defaults = %v/%v/%v", cfg.PollInterval, cfg.PollBudget, cfg.JobTTL)
	}
	if len(cfg.CORSOrigins) != len(defaultCORSOrigins) {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.WebAppURL != "https://batyrai.com" {
		t.Errorf("WebAppURL = %q", cfg.WebAppURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DAILY_LIMIT", "3")
	t.Setenv("ADMIN_USER_ID", "777000")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("POLL_BUDGET", "90")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	if cfg.DailyLimit != 3 || cfg.AdminUserID != 777000 {
		t.Errorf("quota = %d/%d", cfg.DailyLimit, cfg.AdminUserID)
	}
	if cfg.PollInterval != 500*time.Millisecond || cfg.PollBudget != 90*time.Second {
		t.Errorf("poll = %v/%v", cfg.PollInterval, cfg.PollBudget)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			TelegramBotToken: "t",
			PiAPIKey:         "k",
			DailyLimit:       1,
			PollInterval:     time.Second,
			PollBudget:       time.Minute,
			QuotaTimezone:    "Asia/Almaty",
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}

	tests := map[string]func(*Config){
		"no bot token":  func(c *Config) { c.TelegramBotToken = "" },
		"no piapi key":  func(c *Config) { c.PiAPIKey = "" },
		"negative":      func(c *Config) { c.DailyLimit = -1 },
		"zero interval": func(c *Config) { c.PollInterval = 0 },
		"bad timezone":  func(c *Config) { c.QuotaTimezone = "Mars/Olympus" },
	}
	for name, mutate := range tests {
		cfg := valid()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate returned nil", name)
		}
	}
}

func TestFeatureFlags(t *testing.T) {
	cfg := &Config{SpeechKey: "k", SpeechRegion: "westeurope"}
	if !cfg.SpeechEnabled() || cfg.AssistantEnabled() {
		t.Errorf("speech only: %v/%v", cfg.SpeechEnabled(), cfg.AssistantEnabled())
	}
	cfg.OpenAIKey, cfg.OpenAIEndpoint, cfg.OpenAIDeployment = "k", "https://x", "gpt"
	if !cfg.AssistantEnabled() {
		t.Error("assistant should be enabled")
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultModels are the chat models offered in the settings form.
var DefaultModels = []string{"gpt-4-turbo-preview", "gpt-4", "gpt-3.5-turbo"}

// Config holds all application configuration. The LLM API key is not part of it:
// it is only ever entered at runtime.
type Config struct {
	Feed struct {
		URL         string        `yaml:"url" validate:"required,url"`
		ProxyPrefix string        `yaml:"proxy_prefix" validate:"omitempty,url"`
		Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
		PollCron    string        `yaml:"poll_cron" validate:"required"`
	} `yaml:"feed"`
	LLM struct {
		BaseURL      string   `yaml:"base_url" validate:"omitempty,url"`
		DefaultModel string   `yaml:"default_model" validate:"required"`
		Models       []string `yaml:"models" validate:"min=1,dive,required"`
	} `yaml:"llm"`
	Server struct {
		ListenAddr     string   `yaml:"listen_addr" validate:"required"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		Debug          bool     `yaml:"debug"`
	} `yaml:"server"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id" validate:"omitempty,numeric"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy    string `yaml:"proxy" validate:"omitempty,url"`
	LogLevel string `yaml:"log_level" validate:"oneof=trace debug info warn warning error"`
}

// Load reads an optional .env, then the YAML file, then applies environment overrides and defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	overrides := []struct {
		env string
		dst *string
	}{
		{"FEED_URL", &cfg.Feed.URL},
		{"FEED_PROXY_PREFIX", &cfg.Feed.ProxyPrefix},
		{"FEED_POLL_CRON", &cfg.Feed.PollCron},
		{"LLM_BASE_URL", &cfg.LLM.BaseURL},
		{"LLM_DEFAULT_MODEL", &cfg.LLM.DefaultModel},
		{"LISTEN_ADDR", &cfg.Server.ListenAddr},
		{"TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID},
		{"HTTPS_PROXY", &cfg.Proxy},
		{"SQLITE_PATH", &cfg.Database.SQLitePath},
		{"LOG_LEVEL", &cfg.LogLevel},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}

	// Defaults
	if cfg.Feed.URL == "" {
		cfg.Feed.URL = "https://www.forexlive.com/feed/news"
	}
	if cfg.Feed.ProxyPrefix == "" {
		cfg.Feed.ProxyPrefix = "https://api.allorigins.win/raw?url="
	}
	if cfg.Feed.Timeout == 0 {
		cfg.Feed.Timeout = 10 * time.Second
	}
	if cfg.Feed.PollCron == "" {
		cfg.Feed.PollCron = "@every 5m"
	}
	if len(cfg.LLM.Models) == 0 {
		cfg.LLM.Models = append([]string(nil), DefaultModels...)
	}
	if cfg.LLM.DefaultModel == "" {
		cfg.LLM.DefaultModel = cfg.LLM.Models[0]
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Validate checks field constraints, the cron spec and the default model.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	if _, err := cron.ParseStandard(c.Feed.PollCron); err != nil {
		return fmt.Errorf("feed.poll_cron: %w", err)
	}
	if !slices.Contains(c.LLM.Models, c.LLM.DefaultModel) {
		return fmt.Errorf("llm.default_model %q is not in llm.models", c.LLM.DefaultModel)
	}
	return nil
}

// TelegramEnabled reports whether a bot token is configured.
func (c *Config) TelegramEnabled() bool { return c.Telegram.BotToken != "" }

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Stacks      string `yaml:"stacks"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// DatabaseConfig holds Postgres connection settings. Field layout matches
// core/database.Config so the structs convert directly.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsPath string `yaml:"migrations_path" envconfig:"DB_MIGRATIONS_PATH"`
}

// SessionConfig controls the chat session lifecycle.
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
}

// BotConfig holds conversation-level limits and matching thresholds.
type BotConfig struct {
	MaxAmount        float64 `yaml:"max_amount" envconfig:"BOT_MAX_AMOUNT"`
	AIMinChars       int     `yaml:"ai_min_chars" envconfig:"BOT_AI_MIN_CHARS"`
	AIMaxChars       int     `yaml:"ai_max_chars" envconfig:"BOT_AI_MAX_CHARS"`
	Timezone         string  `yaml:"timezone" envconfig:"BOT_TIMEZONE"`
	SuggestThreshold int     `yaml:"suggest_threshold" envconfig:"BOT_SUGGEST_THRESHOLD"`
	ExactThreshold   int     `yaml:"exact_threshold" envconfig:"BOT_EXACT_THRESHOLD"`
}

// AIConfig configures the free-text extraction collaborator.
type AIConfig struct {
	APIKey         string `yaml:"api_key" envconfig:"GEMINI_API_KEY"`
	Model          string `yaml:"model" envconfig:"AI_MODEL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"AI_TIMEOUT_SECONDS"`
}

// ReminderConfig provides seed values for the reminder settings row on first boot.
type ReminderConfig struct {
	Hour       int `yaml:"hour" envconfig:"REMINDER_HOUR"`
	Minute     int `yaml:"minute" envconfig:"REMINDER_MINUTE"`
	MonthlyDay int `yaml:"monthly_day" envconfig:"REMINDER_MONTHLY_DAY"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the whole application configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
	Session   SessionConfig   `yaml:"session"`
	Bot       BotConfig       `yaml:"bot"`
	AI        AIConfig        `yaml:"ai"`
	Reminder  ReminderConfig  `yaml:"reminder"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConnections <= 0 {
		cfg.Database.MaxConnections = 10
	}
	if cfg.Database.MigrationsPath == "" {
		cfg.Database.MigrationsPath = "migrations"
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if cfg.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	if cfg.Session.TTLMinutes <= 0 {
		cfg.Session.TTLMinutes = 30
	}

	if cfg.Bot.MaxAmount <= 0 {
		cfg.Bot.MaxAmount = 100000
	}
	if cfg.Bot.AIMinChars <= 0 {
		cfg.Bot.AIMinChars = 10
	}
	if cfg.Bot.AIMaxChars <= 0 {
		cfg.Bot.AIMaxChars = 2000
	}
	if cfg.Bot.AIMaxChars <= cfg.Bot.AIMinChars {
		return fmt.Errorf("bot.ai_max_chars must be > bot.ai_min_chars")
	}
	if cfg.Bot.Timezone == "" {
		cfg.Bot.Timezone = "Asia/Jerusalem"
	}
	if cfg.Bot.SuggestThreshold <= 0 {
		cfg.Bot.SuggestThreshold = 90
	}
	if cfg.Bot.ExactThreshold <= 0 {
		cfg.Bot.ExactThreshold = 100
	}
	if cfg.Bot.SuggestThreshold > cfg.Bot.ExactThreshold {
		return fmt.Errorf("bot.suggest_threshold must be <= bot.exact_threshold")
	}

	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-2.0-flash"
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 20
	}

	if cfg.Reminder.Hour < 0 || cfg.Reminder.Hour > 23 {
		return fmt.Errorf("reminder.hour must be in 0..23")
	}
	if cfg.Reminder.Minute < 0 || cfg.Reminder.Minute > 59 {
		return fmt.Errorf("reminder.minute must be in 0..59")
	}
	if cfg.Reminder.MonthlyDay == 0 {
		cfg.Reminder.MonthlyDay = 1
	}
	if cfg.Reminder.MonthlyDay < 1 || cfg.Reminder.MonthlyDay > 28 {
		return fmt.Errorf("reminder.monthly_day must be in 1..28")
	}
	return nil
}

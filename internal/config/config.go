package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values sourced from environment
// variables and an optional config.yaml.
type Config struct {
	HTTPPort    string
	DatabaseURL string
	LogLevel    string
	LogFormat   string

	TicketPrefix       string
	TicketScanWindow   int
	TicketAllocRetries int
	PortalBaseURL      string
	CacheMaxAge        time.Duration
	CacheStaleWindow   time.Duration

	MQURL            string
	MQTicketExchange string
	MQTicketQueue    string

	NotifyWebhookURL string
	SlackBotToken    string
	NotifyTimeout    time.Duration

	AgentWebhookURL string
	AgentTimeout    time.Duration

	AnthropicAPIKey string
	AnthropicModel  string

	OAuthClientID       string
	OAuthClientSecret   string
	OAuthRedirectURL    string
	AllowedEmailDomains []string
	JWTSecret           string
	SessionTTL          time.Duration
	RedisAddr           string
	RedisPassword       string
}

// Load reads environment variables and produces a Config with sane defaults for local development.
func Load() Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file unreadable, using environment only", "error", err)
		}
	}

	return Config{
		HTTPPort:    v.GetString("API_HTTP_PORT"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFormat:   v.GetString("LOG_FORMAT"),

		TicketPrefix:       v.GetString("TICKET_PREFIX"),
		TicketScanWindow:   v.GetInt("TICKET_SCAN_WINDOW"),
		TicketAllocRetries: v.GetInt("TICKET_ALLOC_RETRIES"),
		PortalBaseURL:      strings.TrimRight(v.GetString("PORTAL_BASE_URL"), "/"),
		CacheMaxAge:        duration(v, "CACHE_MAX_AGE", 10*time.Second),
		CacheStaleWindow:   duration(v, "CACHE_STALE_WINDOW", 60*time.Second),

		MQURL:            v.GetString("RABBITMQ_URL"),
		MQTicketExchange: v.GetString("RABBITMQ_TICKET_EXCHANGE"),
		MQTicketQueue:    v.GetString("RABBITMQ_TICKET_QUEUE"),

		NotifyWebhookURL: v.GetString("NOTIFY_WEBHOOK_URL"),
		SlackBotToken:    v.GetString("SLACK_BOT_TOKEN"),
		NotifyTimeout:    duration(v, "NOTIFY_TIMEOUT", 10*time.Second),

		AgentWebhookURL: v.GetString("AGENT_WEBHOOK_URL"),
		AgentTimeout:    duration(v, "AGENT_TIMEOUT", 60*time.Second),

		AnthropicAPIKey: v.GetString("ANTHROPIC_API_KEY"),
		AnthropicModel:  v.GetString("ANTHROPIC_MODEL"),

		OAuthClientID:       v.GetString("OAUTH_CLIENT_ID"),
		OAuthClientSecret:   v.GetString("OAUTH_CLIENT_SECRET"),
		OAuthRedirectURL:    v.GetString("OAUTH_REDIRECT_URL"),
		AllowedEmailDomains: splitList(v.GetString("ALLOWED_EMAIL_DOMAINS")),
		JWTSecret:           v.GetString("JWT_SECRET"),
		SessionTTL:          duration(v, "SESSION_TTL", 24*time.Hour),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API_HTTP_PORT", ":8080")
	v.SetDefault("DATABASE_URL", "postgres://helpdesk:helpdesk@db:5432/helpdesk?sslmode=disable")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("TICKET_PREFIX", "TKT")
	v.SetDefault("TICKET_SCAN_WINDOW", 0)
	v.SetDefault("TICKET_ALLOC_RETRIES", 3)
	v.SetDefault("PORTAL_BASE_URL", "http://localhost:3000")
	v.SetDefault("CACHE_MAX_AGE", "10s")
	v.SetDefault("CACHE_STALE_WINDOW", "60s")

	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_TICKET_EXCHANGE", "ticket.events")
	v.SetDefault("RABBITMQ_TICKET_QUEUE", "ticket.events.notify")

	v.SetDefault("NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("SLACK_BOT_TOKEN", "")
	v.SetDefault("NOTIFY_TIMEOUT", "10s")

	v.SetDefault("AGENT_WEBHOOK_URL", "")
	v.SetDefault("AGENT_TIMEOUT", "60s")

	v.SetDefault("ANTHROPIC_API_KEY", "")
	v.SetDefault("ANTHROPIC_MODEL", "claude-haiku-4-5-20251001")

	v.SetDefault("OAUTH_CLIENT_ID", "")
	v.SetDefault("OAUTH_CLIENT_SECRET", "")
	v.SetDefault("OAUTH_REDIRECT_URL", "http://localhost:8080/auth/callback")
	v.SetDefault("ALLOWED_EMAIL_DOMAINS", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
}

func duration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid duration, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

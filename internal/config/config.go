package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	LogMode  string `mapstructure:"LOG_MODE"`
	LogDir   string `mapstructure:"LOG_DIR"`
	AppName  string `mapstructure:"APP_NAME"`
	SiteURL  string `mapstructure:"SITE_URL"`
	Currency string `mapstructure:"CURRENCY"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabasePath   string `mapstructure:"DATABASE_PATH"`
	DatabaseDSN    string `mapstructure:"DATABASE_DSN"`

	StripeAPIKey         string `mapstructure:"STRIPE_API_KEY"`
	StripePublishableKey string `mapstructure:"STRIPE_PUBLISHABLE_KEY"`
	StripeWebhookSecret  string `mapstructure:"STRIPE_WEBHOOK_SECRET"`

	EarlyBirdCutoff   string        `mapstructure:"EARLY_BIRD_CUTOFF"`
	StalePendingAfter time.Duration `mapstructure:"STALE_PENDING_AFTER"`
	SweepInterval     time.Duration `mapstructure:"SWEEP_INTERVAL"`
	MinAttendeeAge    int           `mapstructure:"MIN_ATTENDEE_AGE"`
	MaxAttendeeAge    int           `mapstructure:"MAX_ATTENDEE_AGE"`

	RedisEnabled  bool          `mapstructure:"REDIS_ENABLED"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	RedisPrefix   string        `mapstructure:"REDIS_PREFIX"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
	SecureCookies bool          `mapstructure:"SECURE_COOKIES"`

	QueueEnabled     bool `mapstructure:"QUEUE_ENABLED"`
	QueueConcurrency int  `mapstructure:"QUEUE_CONCURRENCY"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`

	DiscordClientID               string   `mapstructure:"DISCORD_CLIENT_ID"`
	DiscordClientSecret           string   `mapstructure:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURL            string   `mapstructure:"DISCORD_REDIRECT_URL"`
	DiscordGuildID                string   `mapstructure:"DISCORD_GUILD_ID"`
	DiscordBotToken               string   `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordNotificationsChannelID string   `mapstructure:"DISCORD_NOTIFICATIONS_CHANNEL_ID"`
	AdminDiscordIDs               []string `mapstructure:"ADMIN_DISCORD_IDS"`
	JWTSecret                     string   `mapstructure:"JWT_SECRET"`
	FrontendURL                   string   `mapstructure:"FRONTEND_URL"`
}

func LoadConfig() *Config {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_MODE", "release")
	viper.SetDefault("APP_NAME", "California Kids Camp")
	viper.SetDefault("SITE_URL", "http://127.0.0.1:8080")
	viper.SetDefault("CURRENCY", "usd")
	viper.SetDefault("DATABASE_DRIVER", "sqlite")
	viper.SetDefault("DATABASE_PATH", "camp.db")
	viper.SetDefault("EARLY_BIRD_CUTOFF", "")
	viper.SetDefault("STALE_PENDING_AFTER", time.Hour)
	viper.SetDefault("SWEEP_INTERVAL", 10*time.Minute)
	viper.SetDefault("MIN_ATTENDEE_AGE", 1)
	viper.SetDefault("MAX_ATTENDEE_AGE", 99)
	viper.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	viper.SetDefault("REDIS_PREFIX", "camp")
	viper.SetDefault("SESSION_TTL", 2*time.Hour)
	viper.SetDefault("QUEUE_CONCURRENCY", 5)
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("MAIL_FROM", "registrations@californiakidscamp.org")
	viper.SetDefault("DISCORD_REDIRECT_URL", "http://127.0.0.1:8080/auth/discord/callback")
	viper.SetDefault("FRONTEND_URL", "http://127.0.0.1:4000")

	viper.BindEnv("LOG_DIR")
	viper.BindEnv("DATABASE_DSN")
	viper.BindEnv("STRIPE_API_KEY")
	viper.BindEnv("STRIPE_PUBLISHABLE_KEY")
	viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	viper.BindEnv("REDIS_ENABLED")
	viper.BindEnv("REDIS_PASSWORD")
	viper.BindEnv("REDIS_DB")
	viper.BindEnv("SECURE_COOKIES")
	viper.BindEnv("QUEUE_ENABLED")
	viper.BindEnv("SMTP_HOST")
	viper.BindEnv("SMTP_USERNAME")
	viper.BindEnv("SMTP_PASSWORD")
	viper.BindEnv("DISCORD_CLIENT_ID")
	viper.BindEnv("DISCORD_CLIENT_SECRET")
	viper.BindEnv("DISCORD_GUILD_ID")
	viper.BindEnv("DISCORD_BOT_TOKEN")
	viper.BindEnv("DISCORD_NOTIFICATIONS_CHANNEL_ID")
	viper.BindEnv("ADMIN_DISCORD_IDS")
	viper.BindEnv("JWT_SECRET")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	return &config
}

// PaymentsEnabled reports whether both Stripe keys are configured.
func (c *Config) PaymentsEnabled() bool {
	return strings.TrimSpace(c.StripeAPIKey) != "" && strings.TrimSpace(c.StripePublishableKey) != ""
}

// EarlyBirdCutoffTime parses EARLY_BIRD_CUTOFF (YYYY-MM-DD, end of that day in UTC).
// An empty or malformed value yields the zero time, which disables early-bird pricing.
func (c *Config) EarlyBirdCutoffTime() time.Time {
	raw := strings.TrimSpace(c.EarlyBirdCutoff)
	if raw == "" {
		return time.Time{}
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		log.Printf("Ignoring malformed EARLY_BIRD_CUTOFF %q: %v", raw, err)
		return time.Time{}
	}
	return day.Add(24 * time.Hour)
}

func (c *Config) IsAdminDiscordID(id string) bool {
	for _, candidate := range c.AdminDiscordIDs {
		if strings.TrimSpace(candidate) == id && id != "" {
			return true
		}
	}
	return false
}

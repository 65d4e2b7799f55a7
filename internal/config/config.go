package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string `mapstructure:"PORT"`
	LogMode        string `mapstructure:"LOG_MODE"`
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabasePath   string `mapstructure:"DATABASE_PATH"`
	DatabaseDSN    string `mapstructure:"DATABASE_DSN"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`

	DiscordClientID               string `mapstructure:"DISCORD_CLIENT_ID"`
	DiscordClientSecret           string `mapstructure:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURL            string `mapstructure:"DISCORD_REDIRECT_URL"`
	DiscordBotToken               string `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordNotificationsChannelID string `mapstructure:"DISCORD_NOTIFICATIONS_CHANNEL_ID"`
	TelegramBotToken              string `mapstructure:"TELEGRAM_BOT_TOKEN"`

	NotificationQueue      string `mapstructure:"NOTIFICATION_QUEUE"`
	NotificationMaxRetries int    `mapstructure:"NOTIFICATION_MAX_RETRIES"`

	CronTimezone          string `mapstructure:"CRON_TIMEZONE"`
	CronPurgeSchedule     string `mapstructure:"CRON_PURGE_SCHEDULE"`
	CronReconcileSchedule string `mapstructure:"CRON_RECONCILE_SCHEDULE"`

	LeaderboardMaxLimit int `mapstructure:"LEADERBOARD_MAX_LIMIT"`
}

func LoadConfig() *Config {
	// .env is optional; real deployments pass plain environment variables.
	_ = godotenv.Load()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_MODE", "development")
	viper.SetDefault("DATABASE_DRIVER", "sqlite")
	viper.SetDefault("DATABASE_PATH", "sputnik.db")
	viper.SetDefault("DISCORD_REDIRECT_URL", "http://127.0.0.1:8080/auth/discord/callback")
	viper.SetDefault("NOTIFICATION_QUEUE", "notifications")
	viper.SetDefault("NOTIFICATION_MAX_RETRIES", 5)
	viper.SetDefault("CRON_TIMEZONE", "Europe/Moscow")
	viper.SetDefault("CRON_PURGE_SCHEDULE", "0 13 * * *")
	viper.SetDefault("CRON_RECONCILE_SCHEDULE", "30 3 * * *")
	viper.SetDefault("LEADERBOARD_MAX_LIMIT", 100)

	viper.BindEnv("DATABASE_DSN")
	viper.BindEnv("REDIS_URL")
	viper.BindEnv("JWT_SECRET")
	viper.BindEnv("DISCORD_CLIENT_ID")
	viper.BindEnv("DISCORD_CLIENT_SECRET")
	viper.BindEnv("DISCORD_BOT_TOKEN")
	viper.BindEnv("DISCORD_NOTIFICATIONS_CHANNEL_ID")
	viper.BindEnv("TELEGRAM_BOT_TOKEN")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	return &config
}

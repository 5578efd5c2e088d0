package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/patch-warden/internal/logger"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string
}

// GitHubConfig holds authentication material for the GitHub App and,
// alternatively, a personal access token for CLI use.
type GitHubConfig struct {
	AppID          int64
	WebhookSecret  string
	PrivateKeyPath string
	Token          string

	// BotLogin is the login the service comments under. Used to recognize
	// our own comments and to refuse triggers from other bot accounts.
	BotLogin string
}

// GitConfig holds the automation identity used for created commits.
type GitConfig struct {
	CommitAuthorName  string
	CommitAuthorEmail string
}

// DBConfig holds Postgres connection settings for the run ledger.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Config holds the application's configuration values.
type Config struct {
	Server     ServerConfig
	GitHub     GitHubConfig
	Git        GitConfig
	Database   DBConfig
	Logging    logger.Config
	MaxWorkers int
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("LOG_OUTPUT", "stdout")
	viper.SetDefault("MAX_WORKERS", 5)
	viper.SetDefault("GITHUB_PRIVATE_KEY_PATH", "keys/patch-warden-app.private-key.pem")
	viper.SetDefault("BOT_LOGIN", "patch-warden[bot]")
	viper.SetDefault("COMMIT_AUTHOR_NAME", "patch-warden")
	viper.SetDefault("COMMIT_AUTHOR_EMAIL", "patch-warden[bot]@users.noreply.github.com")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "patchwarden")
	viper.SetDefault("DB_NAME", "patchwarden")
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("DB_CONN_MAX_IDLE_TIME", "5m")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// A missing .env is fine; a malformed one is not.
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if viper.GetInt64("GITHUB_APP_ID") == 0 {
		return nil, fmt.Errorf("GITHUB_APP_ID must be set")
	}
	if viper.GetString("GITHUB_WEBHOOK_SECRET") == "" {
		return nil, fmt.Errorf("GITHUB_WEBHOOK_SECRET must be set")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
		},
		GitHub: GitHubConfig{
			AppID:          viper.GetInt64("GITHUB_APP_ID"),
			WebhookSecret:  viper.GetString("GITHUB_WEBHOOK_SECRET"),
			PrivateKeyPath: viper.GetString("GITHUB_PRIVATE_KEY_PATH"),
			Token:          viper.GetString("GITHUB_TOKEN"),
			BotLogin:       viper.GetString("BOT_LOGIN"),
		},
		Git: GitConfig{
			CommitAuthorName:  viper.GetString("COMMIT_AUTHOR_NAME"),
			CommitAuthorEmail: viper.GetString("COMMIT_AUTHOR_EMAIL"),
		},
		Database: DBConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			Username:        viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: viper.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		Logging: logger.Config{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
			Output: viper.GetString("LOG_OUTPUT"),
		},
		MaxWorkers: viper.GetInt("MAX_WORKERS"),
	}

	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}

	return cfg, nil
}

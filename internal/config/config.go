// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
	DBURL         string        `mapstructure:"DB_URL"`
	TelegramToken string        `mapstructure:"TELEGRAM_TOKEN"`
	SuperAdmins   string        `mapstructure:"SUPER_ADMINS"`
	SyncInterval  time.Duration `mapstructure:"SYNC_INTERVAL"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
	HTTPAddr      string        `mapstructure:"HTTP_ADDR"`
}

// SuperAdminList splits the configured superadmin usernames. Both comma
// and semicolon separators are accepted.
func (c *Config) SuperAdminList() []string {
	var admins []string
	for _, name := range strings.FieldsFunc(c.SuperAdmins, func(r rune) bool {
		return r == ',' || r == ';'
	}) {
		name = strings.TrimSpace(name)
		if name != "" {
			admins = append(admins, strings.TrimPrefix(name, "@"))
		}
	}
	return admins
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SYNC_INTERVAL", "30s")
	viper.SetDefault("SESSION_TTL", "10m")
	viper.SetDefault("HTTP_ADDR", ":8080")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_TOKEN is a required configuration field")
	}
	if len(cfg.SuperAdminList()) == 0 {
		return nil, errors.New("SUPER_ADMINS must contain at least one Telegram username")
	}

	return &cfg, nil
}

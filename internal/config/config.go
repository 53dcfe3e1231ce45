package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for medtrackd
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Security  SecurityConfig  `mapstructure:"security"`
	Clock     ClockConfig     `mapstructure:"clock"`
	Reminders RemindersConfig `mapstructure:"reminders"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Inventory InventoryConfig `mapstructure:"inventory"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	JWTSecret    string   `mapstructure:"jwt_secret"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// ClockConfig pins the timezone used for day boundaries. Every day key in
// the system is derived in this one zone.
type ClockConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// RemindersConfig holds reminder engine settings
type RemindersConfig struct {
	SnoozeMinutes int `mapstructure:"snooze_minutes"`
}

// AnalyticsConfig holds analytics window settings
type AnalyticsConfig struct {
	AllTimeDays int `mapstructure:"all_time_days"`
}

// InventoryConfig holds stock tracking settings
type InventoryConfig struct {
	DefaultLowStockThreshold int `mapstructure:"default_low_stock_threshold"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.Set("storage.sqlite_path", filepath.Join(dataDir, "medtrack.db"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "medtrack.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (MEDTRACK_SERVER_PORT, MEDTRACK_CLOCK_TIMEZONE, etc.)
	v.SetEnvPrefix("MEDTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	// Security defaults
	v.SetDefault("security.allow_origins", []string{"*"})

	// Clock defaults
	v.SetDefault("clock.timezone", "Local")

	// Domain defaults
	v.SetDefault("reminders.snooze_minutes", 10)
	v.SetDefault("analytics.all_time_days", 90)
	v.SetDefault("inventory.default_low_stock_threshold", 5)
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "medtrack")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "medtrack")
}

// loadEnvOverrides loads env vars Viper misses for unset struct keys
func loadEnvOverrides(cfg *Config) {
	getEnv := func(key, fallback string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return fallback
	}

	cfg.Server.Address = getEnv("MEDTRACK_SERVER_ADDRESS", cfg.Server.Address)
	if port := os.Getenv("MEDTRACK_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	cfg.Storage.DataDir = getEnv("MEDTRACK_STORAGE_DATA_DIR", cfg.Storage.DataDir)
	cfg.Security.JWTSecret = getEnv("MEDTRACK_SECURITY_JWT_SECRET", cfg.Security.JWTSecret)
	cfg.Clock.Timezone = getEnv("MEDTRACK_CLOCK_TIMEZONE", cfg.Clock.Timezone)
}

func validate(cfg *Config) error {
	if _, err := time.LoadLocation(cfg.Clock.Timezone); err != nil {
		return fmt.Errorf("invalid clock.timezone %q: %w", cfg.Clock.Timezone, err)
	}
	if cfg.Reminders.SnoozeMinutes < 1 {
		return fmt.Errorf("reminders.snooze_minutes must be at least 1")
	}
	if cfg.Analytics.AllTimeDays < 1 {
		return fmt.Errorf("analytics.all_time_days must be at least 1")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	return nil
}

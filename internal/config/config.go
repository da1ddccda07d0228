package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Configuration struct {
	Server   ServerConfig   `json:"server"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
	Database DatabaseConfig `json:"database"`
	Auditor  AuditorConfig  `json:"auditor"`
}

type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

type SecurityConfig struct {
	SessionTimeout    time.Duration `json:"session_timeout"`
	PasswordMinLength int           `json:"password_min_length"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type DatabaseConfig struct {
	Host            string `json:"host"`
	Port            string `json:"port"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	Name            string `json:"name"`
	SSLMode         string `json:"ssl_mode"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	MaxOpenConns    int    `json:"max_open_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime"`
}

type AuditorConfig struct {
	CleanupInterval time.Duration `json:"cleanup_interval"`
	TokenRetention  time.Duration `json:"token_retention"`
	AccessLogBuffer int           `json:"access_log_buffer"`
}

var (
	config     *Configuration
	configOnce sync.Once
)

func LoadConfig(filePath string) (*Configuration, error) {
	var err error

	configOnce.Do(func() {
		var file *os.File
		file, err = os.Open(filePath)
		if err != nil {
			err = fmt.Errorf("failed to open config file: %w", err)
			return
		}
		defer file.Close()

		cfg := defaultConfiguration()
		if decodeErr := json.NewDecoder(file).Decode(cfg); decodeErr != nil {
			err = fmt.Errorf("failed to parse config file: %w", decodeErr)
			return
		}
		config = cfg
	})

	if err != nil {
		return nil, err
	}
	return config, nil
}

// InitializeDefaultConfig returns the built-in configuration, applying the
// config file named by EQMS_CONFIG when present.
func InitializeDefaultConfig() *Configuration {
	if path := os.Getenv("EQMS_CONFIG"); path != "" {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	return defaultConfiguration()
}

func defaultConfiguration() *Configuration {
	return &Configuration{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Security: SecurityConfig{
			SessionTimeout:    8 * time.Hour,
			PasswordMinLength: 12,
		},
		Logging: LoggingConfig{
			Level:  "development",
			Format: "console",
		},
		Database: DatabaseConfig{
			Host:            envOr("DB_HOST", "localhost"),
			Port:            envOr("DB_PORT", "5432"),
			Username:        envOr("DB_USER", "eqms"),
			Password:        envOr("DB_PASSWORD", "eqms"),
			Name:            envOr("DB_NAME", "eqms"),
			SSLMode:         envOr("DB_SSLMODE", "disable"),
			MaxIdleConns:    5,
			MaxOpenConns:    25,
			ConnMaxLifetime: 300,
		},
		Auditor: AuditorConfig{
			CleanupInterval: time.Hour,
			TokenRetention:  30 * 24 * time.Hour,
			AccessLogBuffer: 256,
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func LogConfig(logger *zap.Logger) {
	cfg := config
	if cfg == nil {
		cfg = defaultConfiguration()
	}
	logger.Info("Configuration loaded",
		zap.String("server_port", cfg.Server.Port),
		zap.String("db_host", cfg.Database.Host),
		zap.String("db_name", cfg.Database.Name),
		zap.Duration("session_timeout", cfg.Security.SessionTimeout),
		zap.Duration("auditor_cleanup_interval", cfg.Auditor.CleanupInterval))
}

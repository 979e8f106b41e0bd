package config

import (
	"fmt"
	"os"
	"time"
)

// Config carries all runtime settings, loaded from environment variables.
type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	// DataFile is the JSON document the aggregation state is persisted to.
	DataFile     string
	SaveInterval time.Duration

	// PublicDir holds the static dashboard assets.
	PublicDir string

	SevenTVBaseURL string
	ReconnectDelay time.Duration

	// StartRate limits /api/start requests per second (burst StartBurst)
	// to protect the emote provider from tracking-start floods.
	StartRate  float64
	StartBurst int

	MaxClients int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "3000"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		DataFile:       getEnv("DATA_FILE", "data.json"),
		PublicDir:      getEnv("PUBLIC_DIR", "public"),
		SevenTVBaseURL: getEnv("SEVENTV_BASE_URL", "https://7tv.io"),
		StartRate:      1,
		StartBurst:     5,
		MaxClients:     256,
	}

	var err error
	if cfg.SaveInterval, err = getDuration("SAVE_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconnectDelay, err = getDuration("RECONNECT_DELAY", 5*time.Second); err != nil {
		return nil, err
	}

	if cfg.Port == "" {
		return nil, fmt.Errorf("PORT must not be empty")
	}
	if cfg.DataFile == "" {
		return nil, fmt.Errorf("DATA_FILE must not be empty")
	}
	if cfg.SaveInterval <= 0 {
		return nil, fmt.Errorf("SAVE_INTERVAL must be positive")
	}
	if cfg.ReconnectDelay <= 0 {
		return nil, fmt.Errorf("RECONNECT_DELAY must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return d, nil
}

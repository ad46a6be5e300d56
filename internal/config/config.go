package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	ProviderURL    string
	ProviderAPIKey string
	DBPath         string
	ServerPort     string
	LogLevel       string
	// CommentarySeed seeds template selection; 0 means time-seeded.
	CommentarySeed int64
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	seed, err := strconv.ParseInt(getEnv("COMMENTARY_SEED", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid COMMENTARY_SEED: %w", err)
	}

	cfg := &Config{
		ProviderURL:    getEnv("PROVIDER_URL", ""),
		ProviderAPIKey: getEnv("PROVIDER_API_KEY", ""),
		DBPath:         getEnv("DB_PATH", "cricket.db"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CommentarySeed: seed,
	}

	if cfg.ProviderURL == "" {
		return nil, fmt.Errorf("PROVIDER_URL is required")
	}

	logger.Info().
		Str("provider_url", cfg.ProviderURL).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)

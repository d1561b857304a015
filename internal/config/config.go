package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	JWTSecret          string
	SessionTTL         time.Duration
	SweepInterval      time.Duration
	SweepBatchSize     int
	NotifyInterval     time.Duration
	NotifyBatchSize    int
	RateLimitPerMinute int
	RateLimitBurst     int
}

func Load() Config {
	// Optional; env vars win over .env entries.
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:               port,
		DatabaseURL:        os.Getenv("DB_DSN"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		SessionTTL:         readDurationSeconds("SESSION_TTL_SECONDS", 43200),
		SweepInterval:      readDurationSeconds("SWEEP_INTERVAL_SECONDS", 30),
		SweepBatchSize:     readInt("SWEEP_BATCH_SIZE", 100),
		NotifyInterval:     readDurationSeconds("NOTIFY_INTERVAL_SECONDS", 15),
		NotifyBatchSize:    readInt("NOTIFY_BATCH_SIZE", 50),
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	DatabaseURL string
	DBMaxConns  int32
	LockTimeout time.Duration

	RedisURL string
	CacheTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret string
	LogLevel  string

	DefaultReorderThreshold int
}

const minJWTSecretLength = 32

// Load reads .env from the working directory when present. Process
// environment variables take precedence over the file.
func Load() (Config, error) {
	return LoadFile(filepath.Join(".", ".env"))
}

func LoadFile(envPath string) (Config, error) {
	values := map[string]string{}
	if _, err := os.Stat(envPath); err == nil {
		fileValues, err := godotenv.Read(envPath)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", envPath, err)
		}
		values = fileValues
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("stat %s: %w", envPath, err)
	}
	lookup := func(key string) string {
		return firstNonEmpty(os.Getenv(key), values[key])
	}

	cfg := Config{
		Port:                    8080,
		DBMaxConns:              20,
		LockTimeout:             5 * time.Second,
		CacheTTL:                5 * time.Minute,
		KafkaTopic:              "inventory-events",
		LogLevel:                "info",
		DefaultReorderThreshold: 5,
	}

	var err error
	if cfg.Port, err = positiveInt(lookup("PORT"), "PORT", cfg.Port); err != nil {
		return Config{}, err
	}

	cfg.DatabaseURL = lookup("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required (environment variable or .env)")
	}
	maxConns, err := positiveInt(lookup("DB_MAX_CONNS"), "DB_MAX_CONNS", int(cfg.DBMaxConns))
	if err != nil {
		return Config{}, err
	}
	cfg.DBMaxConns = int32(maxConns)
	if cfg.LockTimeout, err = duration(lookup("DB_LOCK_TIMEOUT"), "DB_LOCK_TIMEOUT", cfg.LockTimeout); err != nil {
		return Config{}, err
	}

	cfg.RedisURL = lookup("REDIS_URL")
	if cfg.CacheTTL, err = duration(lookup("CACHE_TTL"), "CACHE_TTL", cfg.CacheTTL); err != nil {
		return Config{}, err
	}

	for _, broker := range strings.Split(lookup("KAFKA_BROKERS"), ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
		}
	}
	cfg.KafkaTopic = firstNonEmpty(lookup("KAFKA_TOPIC"), cfg.KafkaTopic)

	cfg.JWTSecret = lookup("JWT_SECRET")
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}

	cfg.LogLevel = strings.ToLower(firstNonEmpty(lookup("LOG_LEVEL"), cfg.LogLevel))

	if raw := lookup("DEFAULT_REORDER_THRESHOLD"); raw != "" {
		threshold, err := strconv.Atoi(raw)
		if err != nil || threshold < 0 {
			return Config{}, fmt.Errorf("invalid DEFAULT_REORDER_THRESHOLD: %q", raw)
		}
		cfg.DefaultReorderThreshold = threshold
	}

	return cfg, nil
}

func positiveInt(raw, key string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return value, nil
}

func duration(raw, key string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return value, nil
}

func firstNonEmpty(candidates ...string) string {
	for _, candidate := range candidates {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	return ""
}

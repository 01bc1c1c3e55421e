package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	StoreBackend      string
	MySQLDSN          string
	RedisAddr         string
	RedisPoolSize     int
	LowStockThreshold *int
	MonitorInterval   time.Duration
	MetricsAddr       string
	LogLevel          logrus.Level
	LogJSON           bool
}

// Load reads an optional .env file and then the process environment.
// A missing envFile is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Config{
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMySQL)),
		MySQLDSN:     getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/oms?parseTime=true"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		MetricsAddr:  getEnv("METRICS_ADDR", ":2112"),
		LogJSON:      getEnv("LOG_FORMAT", "json") == "json",
	}

	switch cfg.StoreBackend {
	case BackendMySQL, BackendRedis, BackendMemory:
	default:
		return Config{}, fmt.Errorf("STORE_BACKEND must be one of mysql, redis, memory; got %q", cfg.StoreBackend)
	}

	var err error
	if cfg.RedisPoolSize, err = getEnvInt("REDIS_POOL_SIZE", 100); err != nil {
		return Config{}, err
	}
	if cfg.MonitorInterval, err = getEnvDuration("MONITOR_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.MonitorInterval <= 0 {
		return Config{}, fmt.Errorf("MONITOR_INTERVAL must be positive")
	}
	if raw := strings.TrimSpace(os.Getenv("LOW_STOCK_THRESHOLD")); raw != "" {
		threshold, err := strconv.Atoi(raw)
		if err != nil || threshold < 0 {
			return Config{}, fmt.Errorf("LOW_STOCK_THRESHOLD must be a non-negative integer")
		}
		cfg.LowStockThreshold = &threshold
	}
	if cfg.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// Logger builds a logrus logger honoring LOG_LEVEL and LOG_FORMAT.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	if c.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return v, nil
}

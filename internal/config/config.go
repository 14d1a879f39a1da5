package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	TCPAddr    string
	HTTPAddr   string
	PoolSize   int
	Tick       time.Duration
	Resolution time.Duration

	OutboxSize   int
	WriteTimeout time.Duration
	InputRate    float64
	InputBurst   int

	LogLevel string
	LogJSON  bool

	// Optional backends; empty disables them.
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TCPAddr:       envOr("TCP_ADDR", ":3001"),
		HTTPAddr:      envOr("HTTP_ADDR", ":8080"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	var errs []error
	num := func(key string, def, min int) int {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < min {
			errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalid, key, v))
			return def
		}
		return n
	}
	millis := func(key string, def int) time.Duration {
		return time.Duration(num(key, def, 1)) * time.Millisecond
	}

	cfg.PoolSize = num("POOL_SIZE", 2, 1)
	cfg.Tick = millis("TICK_MS", 500)
	cfg.Resolution = millis("SCHEDULER_RESOLUTION_MS", 15)
	cfg.OutboxSize = num("OUTBOX_SIZE", 64, 1)
	cfg.WriteTimeout = millis("WRITE_TIMEOUT_MS", 3000)
	cfg.InputBurst = num("INPUT_BURST", 10, 1)
	cfg.RedisDB = num("REDIS_DB", 0, 0)

	cfg.InputRate = 30
	if v := os.Getenv("INPUT_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			errs = append(errs, fmt.Errorf("%w: INPUT_RATE=%q", ErrInvalid, v))
		} else {
			cfg.InputRate = f
		}
	}

	if v := os.Getenv("LOG_JSON"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: LOG_JSON=%q", ErrInvalid, v))
		}
		cfg.LogJSON = b
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

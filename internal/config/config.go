// Package config loads CLI settings from the environment and optional .env
// files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reamp/dsp/conv"
)

// Environment keys.
const (
	KeyLogLevel      = "REAMP_LOG_LEVEL"
	KeyBitDepth      = "REAMP_BIT_DEPTH"
	KeyConvMethod    = "REAMP_CONV_METHOD"
	KeyTrainCommand  = "REAMP_TRAIN_CMD"
	KeyRedisAddr     = "REAMP_REDIS_ADDR"
	KeyRedisPassword = "REAMP_REDIS_PASSWORD"
	KeyConcurrency   = "REAMP_CONCURRENCY"
)

var defaults = map[string]string{
	KeyLogLevel:    "info",
	KeyBitDepth:    "24",
	KeyConvMethod:  "auto",
	KeyConcurrency: "1",
}

// ErrInvalid is wrapped by every parse error.
var ErrInvalid = errors.New("config: invalid value")

// Config holds the resolved settings.
type Config struct {
	LogLevel      logrus.Level
	BitDepth      int
	ConvMethod    conv.Method
	TrainCommand  string
	RedisAddr     string
	RedisPassword string
	Concurrency   int
}

// LoadEnv loads the given .env files, skipping missing ones, then fills in
// defaults for unset keys. Variables already in the environment win.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	for k, v := range defaults {
		setEnvDefault(k, v)
	}

	return nil
}

// setEnvDefault sets key=value if key is not set.
func setEnvDefault(key, value string) {
	if os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}

// FromEnv parses the process environment.
func FromEnv() (*Config, error) {
	return Parse(os.Getenv)
}

// FromFile parses a single .env file without touching the environment.
func FromFile(path string) (*Config, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	return Parse(func(k string) string { return env[k] })
}

// Parse builds a Config from lookup. Empty values take the defaults.
func Parse(lookup func(string) string) (*Config, error) {
	get := func(key string) string {
		if v := lookup(key); v != "" {
			return v
		}

		return defaults[key]
	}

	level, err := logrus.ParseLevel(get(KeyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, KeyLogLevel, err)
	}

	method, err := conv.ParseMethod(get(KeyConvMethod))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, KeyConvMethod, err)
	}

	cfg := &Config{
		LogLevel:      level,
		ConvMethod:    method,
		TrainCommand:  lookup(KeyTrainCommand),
		RedisAddr:     lookup(KeyRedisAddr),
		RedisPassword: lookup(KeyRedisPassword),
	}

	ints := []struct {
		key string
		dst *int
	}{
		{KeyBitDepth, &cfg.BitDepth},
		{KeyConcurrency, &cfg.Concurrency},
	}

	for _, it := range ints {
		n, err := strconv.Atoi(get(it.key))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalid, it.key, get(it.key))
		}

		*it.dst = n
	}

	switch cfg.BitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %s=%d, want 16, 24 or 32", ErrInvalid, KeyBitDepth, cfg.BitDepth)
	}

	return cfg, nil
}

package crudclient

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Environment variables read by LoadConfigFromEnv.
const (
	EnvBaseURL         = "CRUDCLIENT_BASE_URL"
	EnvTimeout         = "CRUDCLIENT_TIMEOUT"
	EnvFallbackEnabled = "CRUDCLIENT_FALLBACK_ENABLED"
	EnvInitialDelay    = "CRUDCLIENT_INITIAL_DELAY"
	EnvMaxDelay        = "CRUDCLIENT_MAX_DELAY"
	EnvMultiplier      = "CRUDCLIENT_MULTIPLIER"
)

// LoadConfigFromEnv builds a Config from DefaultConfig and the CRUDCLIENT_*
// environment variables. Dotenv files are loaded first when they exist
// (".env" if none are named); variables already set in the process win.
//
// Durations accept Go syntax ("5s", "250ms") or a bare number of milliseconds.
func LoadConfigFromEnv(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	cfg := DefaultConfig()
	cfg.BaseURL = os.Getenv(EnvBaseURL)

	var err error
	if cfg.Timeout, err = durationFromEnv(EnvTimeout, cfg.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.InitialDelay, err = durationFromEnv(EnvInitialDelay, cfg.InitialDelay); err != nil {
		return Config{}, err
	}
	if cfg.MaxDelay, err = durationFromEnv(EnvMaxDelay, cfg.MaxDelay); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(EnvFallbackEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", EnvFallbackEnabled, v, err)
		}
		cfg.FallbackEnabled = enabled
	}

	if v := os.Getenv(EnvMultiplier); v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", EnvMultiplier, v, err)
		}
		cfg.Multiplier = m
	}

	return cfg, nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

// FileConfig is the YAML layout accepted by LoadConfigFile.
type FileConfig struct {
	Headers         map[string]string `yaml:"headers"`
	BaseURL         string            `yaml:"base_url"`
	Backoff         BackoffFileConfig `yaml:"backoff"`
	Timeout         time.Duration     `yaml:"timeout"`
	FallbackEnabled bool              `yaml:"fallback_enabled"`
}

// BackoffFileConfig is the backoff section of FileConfig.
type BackoffFileConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// LoadConfigFile reads executor configuration from a YAML file. Environment
// variables in the file are expanded before parsing; unset fields keep the
// DefaultConfig values.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &fc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := DefaultConfig()
	cfg.BaseURL = fc.BaseURL
	cfg.FallbackEnabled = fc.FallbackEnabled
	if len(fc.Headers) > 0 {
		cfg.DefaultHeaders = fc.Headers
	}
	if fc.Timeout != 0 {
		cfg.Timeout = fc.Timeout
	}
	if fc.Backoff.InitialDelay != 0 {
		cfg.InitialDelay = fc.Backoff.InitialDelay
	}
	if fc.Backoff.MaxDelay != 0 {
		cfg.MaxDelay = fc.Backoff.MaxDelay
	}
	if fc.Backoff.Multiplier != 0 {
		cfg.Multiplier = fc.Backoff.Multiplier
	}

	return cfg, nil
}

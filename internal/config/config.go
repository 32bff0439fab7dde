// Package config loads service configuration from an optional TOML file
// layered under environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	// HTTP settings
	HTTPPort    int    `toml:"http_port"`
	BearerToken string `toml:"bearer_token"`

	// Request limits
	MaxTextLength int    `toml:"max_text_length"`
	DefaultVoice  string `toml:"default_voice"`

	// Primary (local) synthesis engine. VoicesDir is scanned for a model
	// when PiperModel is unset.
	PiperPath  string `toml:"piper_path"`
	PiperModel string `toml:"piper_model"`
	VoicesDir  string `toml:"voices_dir"`

	// Secondary (remote) synthesis provider
	RemoteURL    string `toml:"remote_url"`
	RemoteAPIKey string `toml:"remote_api_key"`
	RemoteVoice  string `toml:"remote_voice"`

	// Processing behavior
	SynthTimeout time.Duration `toml:"synth_timeout"`

	// Artifact storage and retention
	ArtifactDir       string        `toml:"artifact_dir"`
	ArtifactRetention time.Duration `toml:"artifact_retention"`
	StaleJobAfter     time.Duration `toml:"stale_job_after"`
	SweepInterval     time.Duration `toml:"sweep_interval"`

	// Logging settings
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
}

// Load reads configuration from the optional TOML file named by VOXRELAY_CONFIG,
// then applies environment variable overrides and validates the result.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("VOXRELAY_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTPPort:          8080,
		MaxTextLength:     1000,
		DefaultVoice:      "default",
		PiperPath:         "piper",
		SynthTimeout:      60 * time.Second,
		ArtifactDir:       "audio",
		ArtifactRetention: 5 * time.Minute,
		StaleJobAfter:     time.Hour,
		SweepInterval:     time.Hour,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// loadFile merges values from a TOML file into the config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// applyEnv overrides file values with environment variables where set.
func (c *Config) applyEnv() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.BearerToken = getEnvString("BEARER_TOKEN", c.BearerToken)

	c.MaxTextLength = getEnvInt("MAX_TEXT_LENGTH", c.MaxTextLength)
	c.DefaultVoice = getEnvString("DEFAULT_VOICE", c.DefaultVoice)

	c.PiperPath = getEnvString("PIPER_PATH", c.PiperPath)
	c.PiperModel = getEnvString("PIPER_MODEL", c.PiperModel)
	c.VoicesDir = getEnvString("VOICES_DIR", c.VoicesDir)

	c.RemoteURL = getEnvString("REMOTE_TTS_URL", c.RemoteURL)
	c.RemoteAPIKey = getEnvString("REMOTE_TTS_API_KEY", c.RemoteAPIKey)
	c.RemoteVoice = getEnvString("REMOTE_TTS_VOICE", c.RemoteVoice)

	c.SynthTimeout = getEnvDuration("SYNTH_TIMEOUT", c.SynthTimeout)

	c.ArtifactDir = getEnvString("ARTIFACT_DIR", c.ArtifactDir)
	c.ArtifactRetention = getEnvDuration("ARTIFACT_RETENTION", c.ArtifactRetention)
	c.StaleJobAfter = getEnvDuration("STALE_JOB_AFTER", c.StaleJobAfter)
	c.SweepInterval = getEnvDuration("SWEEP_INTERVAL", c.SweepInterval)

	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvString("LOG_FORMAT", c.LogFormat)
	c.LogFile = getEnvString("LOG_FILE", c.LogFile)
}

// AuthDisabled returns true if bearer token authentication is disabled.
func (c *Config) AuthDisabled() bool {
	return c.BearerToken == ""
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return errors.New("HTTP_PORT must be between 1 and 65535")
	}

	if c.MaxTextLength < 1 {
		return errors.New("MAX_TEXT_LENGTH must be at least 1")
	}

	if c.SynthTimeout <= 0 {
		return errors.New("SYNTH_TIMEOUT must be positive")
	}

	if c.ArtifactRetention <= 0 {
		return errors.New("ARTIFACT_RETENTION must be positive")
	}

	if c.StaleJobAfter <= 0 {
		return errors.New("STALE_JOB_AFTER must be positive")
	}

	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"text": true, "json": true, "console": true}
	if !validLogFormats[c.LogFormat] {
		return errors.New("LOG_FORMAT must be one of: text, json, console")
	}

	return nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

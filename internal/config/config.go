// Package config loads the agent's process configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvAPIKey        = "GEMINI_API_KEY"
	EnvModel         = "AGENT_MODEL"
	EnvModelBaseURL  = "AGENT_MODEL_BASE_URL"
	EnvCallTimeout   = "AGENT_CALL_TIMEOUT"
	EnvMaxToolRounds = "AGENT_MAX_TOOL_ROUNDS"
	EnvRateLimit     = "AGENT_RATE_LIMIT"
	EnvGmailEndpoint = "GMAIL_ENDPOINT"
)

// Defaults.
const (
	DefaultModel         = "gemini-1.5-flash"
	DefaultModelBaseURL  = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultCallTimeout   = 30 * time.Second
	DefaultMaxToolRounds = 1
	MaxToolRoundsCeiling = 3
)

// Config is read once at start and shared read-only afterwards.
type Config struct {
	// APIKey is the model-access secret. Empty means the model is not configured.
	APIKey       string
	Model        string
	ModelBaseURL string

	// CallTimeout bounds every outbound call: model turns, mail list, mail send.
	CallTimeout time.Duration

	// MaxToolRounds caps tool round-trips per request.
	MaxToolRounds int

	// RateLimit is requests per second accepted on /agent; 0 disables limiting.
	RateLimit float64

	// GmailEndpoint overrides the Gmail API base URL when set.
	GmailEndpoint string
}

// Load reads configuration from the environment, after loading envFile into
// it when envFile is not empty.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("godotenv.Load failed: %w", err)
		}
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		APIKey:        getenv(EnvAPIKey),
		Model:         valueOr(getenv(EnvModel), DefaultModel),
		ModelBaseURL:  valueOr(getenv(EnvModelBaseURL), DefaultModelBaseURL),
		CallTimeout:   DefaultCallTimeout,
		MaxToolRounds: DefaultMaxToolRounds,
		GmailEndpoint: getenv(EnvGmailEndpoint),
	}

	if v := getenv(EnvCallTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvCallTimeout, err)
		}
		cfg.CallTimeout = d
	}

	if v := getenv(EnvMaxToolRounds); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvMaxToolRounds, err)
		}
		cfg.MaxToolRounds = n
	}

	if v := getenv(EnvRateLimit); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvRateLimit, err)
		}
		cfg.RateLimit = f
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks value ranges. A missing APIKey is not an error here: the
// request handler reports it per request.
func (c Config) Validate() error {
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", EnvCallTimeout, c.CallTimeout)
	}
	if c.MaxToolRounds < 1 || c.MaxToolRounds > MaxToolRoundsCeiling {
		return fmt.Errorf("%s must be between 1 and %d, got %d", EnvMaxToolRounds, MaxToolRoundsCeiling, c.MaxToolRounds)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%s must not be negative, got %v", EnvRateLimit, c.RateLimit)
	}
	return nil
}

// ModelConfigured reports whether the model-access secret is present.
func (c Config) ModelConfigured() bool {
	return c.APIKey != ""
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Package config loads ChatBank runtime configuration from the environment,
// an optional .env file, and viper-bound flags.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"chatbank/internal/logger"
	"chatbank/pkg/banktypes"
)

// ErrCredential marks a missing or invalid API credential. It is a
// configuration problem, not a transient failure: callers direct the user to
// fix their setup instead of retrying.
var ErrCredential = errors.New("gemini API key not configured")

// Config holds everything the engine, store and voice channel need at startup.
type Config struct {
	GeminiAPIKey string
	LocalBaseURL string
	StoreDriver  string // "file" or "sqlite"
	StorePath    string
	VoiceName    string
	ImageQuality banktypes.ImageQuality
}

// Load reads configuration with precedence: explicit env vars, then .env,
// then defaults. A missing .env file is not an error.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	v := viper.New()
	v.SetEnvPrefix("CHATBANK")
	v.AutomaticEnv()
	v.SetDefault("local_base_url", "http://localhost:8000/v1")
	v.SetDefault("store_driver", "file")
	v.SetDefault("store_path", defaultStorePath())
	v.SetDefault("voice_name", "Zephyr")
	v.SetDefault("image_quality", string(banktypes.ImageQuality1K))

	// The Gemini key follows the SDK's conventional variable name rather
	// than the CHATBANK prefix.
	if err := v.BindEnv("gemini_api_key", "GEMINI_API_KEY", "CHATBANK_GEMINI_API_KEY"); err != nil {
		logger.Warn("failed to bind GEMINI_API_KEY", "error", err)
	}

	return &Config{
		GeminiAPIKey: v.GetString("gemini_api_key"),
		LocalBaseURL: v.GetString("local_base_url"),
		StoreDriver:  v.GetString("store_driver"),
		StorePath:    v.GetString("store_path"),
		VoiceName:    v.GetString("voice_name"),
		ImageQuality: banktypes.ImageQuality(v.GetString("image_quality")),
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "chatbank_sessions.json"
	}
	return filepath.Join(home, ".chatbank", "sessions.json")
}

// RequireCredential returns ErrCredential when no cloud API key is present.
func (c *Config) RequireCredential() error {
	if c.GeminiAPIKey == "" {
		return ErrCredential
	}
	return nil
}

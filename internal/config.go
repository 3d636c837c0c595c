package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`

	// TikTok (browser-backed)
	TikTokMSToken string `yaml:"tiktok_ms_token"`
	TikTokBrowser string `yaml:"tiktok_browser"`

	// Instagram (protocol-backed)
	InstagramUsername  string `yaml:"instagram_username"`
	InstagramPassword  string `yaml:"instagram_password"`
	InstagramSessionID string `yaml:"instagram_session_id"`
	InstagramProxy     string `yaml:"instagram_proxy"`

	// Outbound network
	ProxyURL    string `yaml:"proxy_url"`
	HTTPTimeout int    `yaml:"http_timeout"` // seconds
	MaxRetries  int    `yaml:"max_retries"`

	// Pacing windows, per platform
	TikTokPacing    PacingConfig `yaml:"tiktok_pacing"`
	InstagramPacing PacingConfig `yaml:"instagram_pacing"`
	AntiDetection   bool         `yaml:"anti_detection"`

	// Session persistence
	StateDir      string        `yaml:"state_dir"`
	SessionMaxAge time.Duration `yaml:"session_max_age"`

	// Logging configuration
	LogLevel    string `yaml:"log_level"`
	EnableDebug bool   `yaml:"debug"`
	QuietMode   bool   `yaml:"quiet"`
	LogFile     string `yaml:"log_file"`
}

// PacingConfig is the serializable form of a pacing window.
type PacingConfig struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:        "0.0.0.0",
		Port:        8000,
		HTTPTimeout: 30,
		MaxRetries:  3,

		TikTokBrowser: "chromium",

		TikTokPacing:    PacingConfig{Min: time.Second, Max: 3 * time.Second},
		InstagramPacing: PacingConfig{Min: time.Second, Max: 3 * time.Second},
		AntiDetection:   true,

		StateDir:      ".",
		SessionMaxAge: 24 * time.Hour,

		LogLevel:    "info",
		EnableDebug: false,
		QuietMode:   false,
		LogFile:     "",
	}
}

// LoadFromEnv loads configuration from environment variables. Credential
// variables keep the names the deployment already uses; service-level knobs
// use the SOCIALGATE_ prefix.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
			c.Port = p
		}
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.APIKey = v
	}

	if v := os.Getenv("MS_TOKEN"); v != "" {
		c.TikTokMSToken = v
	}
	if v := os.Getenv("TIKTOK_BROWSER"); v != "" {
		c.TikTokBrowser = v
	}

	if v := os.Getenv("INSTAGRAM_USERNAME"); v != "" {
		c.InstagramUsername = v
	}
	if v := os.Getenv("INSTAGRAM_PASSWORD"); v != "" {
		c.InstagramPassword = v
	}
	if v := os.Getenv("INSTAGRAM_SESSION_ID"); v != "" {
		c.InstagramSessionID = v
	}
	if v := os.Getenv("INSTAGRAM_PROXY"); v != "" {
		c.InstagramProxy = v
	}
	if v := os.Getenv("PROXY_URL"); v != "" {
		c.ProxyURL = v
	}

	if v := os.Getenv("MIN_REQUEST_DELAY"); v != "" {
		if d, err := parseDelaySeconds(v); err == nil {
			c.TikTokPacing.Min = d
			c.InstagramPacing.Min = d
		}
	}
	if v := os.Getenv("MAX_REQUEST_DELAY"); v != "" {
		if d, err := parseDelaySeconds(v); err == nil {
			c.TikTokPacing.Max = d
			c.InstagramPacing.Max = d
		}
	}
	if v := os.Getenv("ENABLE_ANTI_DETECTION"); v != "" {
		c.AntiDetection = v == "true" || v == "1"
	}

	if v := os.Getenv("SOCIALGATE_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("SOCIALGATE_SESSION_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.SessionMaxAge = d
		}
	}
	if v := os.Getenv("SOCIALGATE_HTTP_TIMEOUT"); v != "" {
		if t, err := strconv.Atoi(v); err == nil && t > 0 {
			c.HTTPTimeout = t
		}
	}

	if v := os.Getenv("SOCIALGATE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SOCIALGATE_DEBUG"); v != "" {
		c.EnableDebug = v == "true" || v == "1"
	}
	if v := os.Getenv("SOCIALGATE_QUIET"); v != "" {
		c.QuietMode = v == "true" || v == "1"
	}
	if v := os.Getenv("SOCIALGATE_LOG_FILE"); v != "" {
		c.LogFile = v
	}
}

// LoadFile overlays settings from a YAML config file onto the current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// parseDelaySeconds accepts the original fractional-seconds form ("1.5").
func parseDelaySeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid delay: %q", s)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// Credential assembles the read-only credential for one platform.
func (c *Config) Credential(platform Platform) Credential {
	switch platform {
	case PlatformTikTok:
		return Credential{Platform: platform, Token: c.TikTokMSToken}
	case PlatformInstagram:
		return Credential{
			Platform:  platform,
			Username:  c.InstagramUsername,
			Secret:    c.InstagramPassword,
			SessionID: c.InstagramSessionID,
		}
	default:
		return Credential{Platform: platform}
	}
}

// Pacing returns the configured pacing window for a platform.
func (c *Config) Pacing(platform Platform) PacingWindow {
	var pc PacingConfig
	switch platform {
	case PlatformTikTok:
		pc = c.TikTokPacing
	case PlatformInstagram:
		pc = c.InstagramPacing
	}
	return PacingWindow{Min: pc.Min, Max: pc.Max}
}

// ValidateConfig validates the configuration values.
func (c *Config) ValidateConfig() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.HTTPTimeout < 1 {
		return fmt.Errorf("invalid http timeout: %d (must be > 0)", c.HTTPTimeout)
	}

	if c.MaxRetries < 1 {
		return fmt.Errorf("invalid max retries: %d (must be >= 1)", c.MaxRetries)
	}

	for _, w := range []PacingConfig{c.TikTokPacing, c.InstagramPacing} {
		if w.Min < 0 || w.Max < 0 {
			return fmt.Errorf("pacing delays cannot be negative")
		}
		if w.Max < w.Min {
			return fmt.Errorf("pacing max delay %s is below min delay %s", w.Max, w.Min)
		}
	}

	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("invalid session max age: %s (must be > 0)", c.SessionMaxAge)
	}

	if c.StateDir == "" {
		return fmt.Errorf("state directory cannot be empty")
	}

	return nil
}

// GetEnvWithDefault returns environment variable value or default.
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

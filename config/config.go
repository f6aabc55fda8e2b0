package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Legacy    LegacyConfig
	YCL       YCLConfig
	Transport TransportConfig
	Session   SessionConfig
	Fusion    FusionConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the driven browser.
type BrowserConfig struct {
	// CDPURL, when set, attaches to an already-running browser instead of
	// launching one.
	CDPURL string

	// Headless controls whether a launched browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 5

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// Bin overrides the Chromium binary path.
	Bin string
}

// LegacyConfig controls the browser-driven legacy catalog adapter.
type LegacyConfig struct {
	// BaseURL is the catalog's home page. Empty disables the source.
	BaseURL string

	// LoginTimeout bounds the wait for the post-login marker.
	LoginTimeout time.Duration // default: 20s

	// SearchTimeout bounds the wait for the results (or no-records) marker.
	SearchTimeout time.Duration // default: 15s
}

// YCLConfig controls the offset-paginated JSON catalog.
type YCLConfig struct {
	// Host is the API authority (e.g. "ebooks.example.org").
	// Empty disables the source.
	Host string

	// Scheme is "https" unless overridden for tests.
	Scheme string // default: "https"

	// Slug is the default library slug; overridable per request.
	Slug string

	// AuthURL is the login redirect entry point used for cookie capture.
	AuthURL string

	// SessionCookie is the primary session cookie name. Both the transport
	// sanitizer and the session line filter key off it.
	SessionCookie string // default: "osess"
}

// TransportConfig controls the low-level ycl wire client.
type TransportConfig struct {
	Timeout time.Duration // default: 30s
	Retries int           // default: 2
}

// SessionConfig controls cookie acquisition.
type SessionConfig struct {
	// Timeout bounds the redirect-interception wait.
	Timeout time.Duration // default: 30s
}

// FusionConfig controls the federated search engine.
type FusionConfig struct {
	// BranchTimeout boxes each source branch independently.
	BranchTimeout time.Duration // default: 15s

	// OverallTimeout races the whole fused request.
	OverallTimeout time.Duration // default: 60s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool // default: false
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("FEDCAT_HOST", "0.0.0.0"),
			Port: envIntOr("FEDCAT_PORT", 8080),
			Mode: envOr("FEDCAT_MODE", "release"),
		},
		Browser: BrowserConfig{
			CDPURL:    os.Getenv("FEDCAT_CDP_URL"),
			Headless:  envBoolOr("FEDCAT_HEADLESS", true),
			MaxPages:  envIntOr("FEDCAT_MAX_PAGES", 5),
			NoSandbox: envBoolOr("FEDCAT_NO_SANDBOX", false),
			Bin:       os.Getenv("FEDCAT_BROWSER_BIN"),
		},
		Legacy: LegacyConfig{
			BaseURL:       os.Getenv("FEDCAT_LEGACY_URL"),
			LoginTimeout:  envDurationOr("FEDCAT_LEGACY_LOGIN_TIMEOUT", 20*time.Second),
			SearchTimeout: envDurationOr("FEDCAT_LEGACY_SEARCH_TIMEOUT", 15*time.Second),
		},
		YCL: YCLConfig{
			Host:          os.Getenv("FEDCAT_YCL_HOST"),
			Scheme:        envOr("FEDCAT_YCL_SCHEME", "https"),
			Slug:          os.Getenv("FEDCAT_YCL_SLUG"),
			AuthURL:       os.Getenv("FEDCAT_YCL_AUTH_URL"),
			SessionCookie: envOr("FEDCAT_YCL_SESSION_COOKIE", "osess"),
		},
		Transport: TransportConfig{
			Timeout: envDurationOr("FEDCAT_TRANSPORT_TIMEOUT", 30*time.Second),
			Retries: envIntOr("FEDCAT_TRANSPORT_RETRIES", 2),
		},
		Session: SessionConfig{
			Timeout: envDurationOr("FEDCAT_SESSION_TIMEOUT", 30*time.Second),
		},
		Fusion: FusionConfig{
			BranchTimeout:  envDurationOr("FEDCAT_BRANCH_TIMEOUT", 15*time.Second),
			OverallTimeout: envDurationOr("FEDCAT_OVERALL_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("FEDCAT_AUTH_ENABLED", false),
			APIKeys: envSliceOr("FEDCAT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("FEDCAT_RATE_RPS", 5.0),
			Burst:             envIntOr("FEDCAT_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("FEDCAT_LOG_LEVEL", "info"),
			Format: envOr("FEDCAT_LOG_FORMAT", "json"),
		},
	}
}

// LegacyConfigured reports whether the legacy source can be used.
func (c *Config) LegacyConfigured() bool { return c.Legacy.BaseURL != "" }

// YCLConfigured reports whether the ycl source can be used.
func (c *Config) YCLConfigured() bool { return c.YCL.Host != "" }

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

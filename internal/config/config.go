package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	CORSOrigins        []string
	RateLimitPerMinute int
	MaxScreens         int
	ShutdownTimeout    time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Remote collaborators
	RemoteBackend  string
	APIBaseURL     string
	APITimeout     time.Duration
	FixturePath    string
	MinOccurrences int
	IncludeStale   bool

	// Engine
	UpcomingDays       int
	SpendableAccountID int
	FetchConcurrency   int
	CacheSize          int
	CacheTTL           time.Duration
	PrefetchInterval   time.Duration

	// Browse queue
	BrowseLimit int
	BrowseMode  string

	// Preferences
	PrefsBackend string
	PrefsDBPath  string

	// AMQP (optional; empty URL disables cache invalidation fan-out)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	InstanceID   string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		CORSOrigins:        getEnvList("CORS_ORIGINS", []string{"*"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MaxScreens:         getEnvInt("MAX_SCREENS", 256),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		RemoteBackend:  getEnv("REMOTE_BACKEND", "api"),
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8000"),
		APITimeout:     getEnvDuration("API_TIMEOUT", 15*time.Second),
		FixturePath:    getEnv("FIXTURE_PATH", "./data/fixture.json"),
		MinOccurrences: getEnvInt("MIN_OCCURRENCES", 3),
		IncludeStale:   getEnvBool("INCLUDE_STALE", false),

		UpcomingDays:       getEnvInt("UPCOMING_DAYS", 30),
		SpendableAccountID: getEnvInt("SPENDABLE_ACCOUNT_ID", 3),
		FetchConcurrency:   getEnvInt("FETCH_CONCURRENCY", 4),
		CacheSize:          getEnvInt("CACHE_SIZE", 64),
		CacheTTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
		PrefetchInterval:   getEnvDuration("PREFETCH_INTERVAL", 4*time.Minute),

		BrowseLimit: getEnvInt("BROWSE_LIMIT", 25),
		BrowseMode:  getEnv("BROWSE_MODE", "freq"),

		PrefsBackend: getEnv("PREFS_BACKEND", "sqlite"),
		PrefsDBPath:  getEnv("PREFS_DB_PATH", "./data/cashflow.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cashflow"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "calendar_invalidate"),
		InstanceID:   getEnv("INSTANCE_ID", ""),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative (0 disables)", c.RateLimitPerMinute))
	}
	if c.MaxScreens < 1 {
		errors = append(errors, fmt.Sprintf("invalid max screens %d: must be at least 1", c.MaxScreens))
	}
	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}
	if len(c.CORSOrigins) == 0 {
		errors = append(errors, "CORS origins cannot be empty")
	}

	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	validRemotes := []string{"api", "memory"}
	if !slices.Contains(validRemotes, c.RemoteBackend) {
		errors = append(errors, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, validRemotes))
	}

	if c.RemoteBackend == "api" {
		if c.APIBaseURL == "" {
			errors = append(errors, "API base URL cannot be empty when using api backend")
		} else if u, err := url.Parse(c.APIBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
		if c.APITimeout < 100*time.Millisecond {
			errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be at least 100ms", c.APITimeout))
		}
	}

	if c.RemoteBackend == "memory" && c.FixturePath == "" {
		errors = append(errors, "fixture path cannot be empty when using memory backend")
	}

	if c.MinOccurrences < 1 {
		errors = append(errors, fmt.Sprintf("invalid min occurrences %d: must be at least 1", c.MinOccurrences))
	}

	if c.UpcomingDays < 1 || c.UpcomingDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid upcoming days %d: must be between 1 and 366", c.UpcomingDays))
	}

	if c.SpendableAccountID < 0 {
		errors = append(errors, fmt.Sprintf("invalid spendable account id %d: must not be negative", c.SpendableAccountID))
	}

	if c.FetchConcurrency < 1 || c.FetchConcurrency > 32 {
		errors = append(errors, fmt.Sprintf("invalid fetch concurrency %d: must be between 1 and 32", c.FetchConcurrency))
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if c.PrefetchInterval != 0 && c.PrefetchInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid prefetch interval %v: must be at least 1 second (0 disables)", c.PrefetchInterval))
	}

	if c.BrowseLimit < 1 || c.BrowseLimit > 500 {
		errors = append(errors, fmt.Sprintf("invalid browse limit %d: must be between 1 and 500", c.BrowseLimit))
	}
	validModes := []string{"freq", "recent"}
	if !slices.Contains(validModes, c.BrowseMode) {
		errors = append(errors, fmt.Sprintf("invalid browse mode '%s': must be one of %v", c.BrowseMode, validModes))
	}

	validPrefs := []string{"sqlite", "memory"}
	if !slices.Contains(validPrefs, c.PrefsBackend) {
		errors = append(errors, fmt.Sprintf("invalid prefs backend '%s': must be one of %v", c.PrefsBackend, validPrefs))
	}

	if c.PrefsBackend == "sqlite" {
		if c.PrefsDBPath == "" {
			errors = append(errors, "preferences database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.PrefsDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create preferences database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

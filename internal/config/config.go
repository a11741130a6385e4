// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Mirror MirrorConfig
	Server ServerConfig
	Fetch  FetchConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// MirrorConfig describes the local story mirror.
type MirrorConfig struct {
	// Path is the root of the mirror (FF_DIR). Downloaded stories live below it.
	Path string
	// DatabasePath is the mirror database (default: {mirror}/ffmirror.db)
	DatabasePath string
	// PageThreshold is the story count that closes an author page (default: 100)
	PageThreshold int
	// PageSize is the number of stories per flat listing page (default: PageThreshold)
	PageSize int
	// Debug is passed to fetch jobs and turns on per-chapter progress logging.
	Debug bool
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 8080)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	AllowedOrigins []string      // CORS origins (default: *)
	// FavoriteRate caps favorite submissions per client per second (default: 0.2, 0 disables)
	FavoriteRate  float64
	FavoriteBurst int // default: 5
}

// FetchConfig holds the background story fetch configuration.
type FetchConfig struct {
	// QueuePath is the job queue database directory (default: {mirror}/.queue)
	QueuePath string
	// Workers is the number of concurrent fetch jobs (default: 1)
	Workers int
	// RequestsPerSecond caps requests to remote archives across all workers (default: 0.5)
	RequestsPerSecond float64
	// Timeout bounds a single HTTP request (default: 30s)
	Timeout time.Duration
	// MaxRetries bounds per-request retries inside one fetch (default: 3)
	MaxRetries int
	UserAgent  string
	// ResultTTL is how long finished jobs stay pollable (default: 24h)
	ResultTTL time.Duration
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")

	// Mirror flags
	mirrorPath := flag.String("mirror-path", "", "Root of the story mirror")
	mirrorDB := flag.String("mirror-db", "", "Path to the mirror database (default: {mirror}/ffmirror.db)")
	pageThreshold := flag.String("page-threshold", "", "Stories per author page (default: 100)")
	pageSize := flag.String("page-size", "", "Stories per flat listing page (default: page threshold)")
	debug := flag.String("debug", "", "Verbose fetch jobs (default: false)")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := flag.String("cors-origins", "", "Comma separated CORS origins (default: *)")
	favoriteRate := flag.String("favorite-rate", "", "Favorite submissions per client per second, 0 disables (default: 0.2)")
	favoriteBurst := flag.String("favorite-burst", "", "Favorite submission burst per client (default: 5)")

	// Fetch flags
	queuePath := flag.String("queue-path", "", "Path for the fetch job queue")
	fetchWorkers := flag.String("fetch-workers", "", "Concurrent fetch jobs (default: 1)")
	fetchRate := flag.String("fetch-rate", "", "Remote requests per second (default: 0.5)")
	fetchTimeout := flag.String("fetch-timeout", "", "Remote request timeout (default: 30s)")
	fetchRetries := flag.String("fetch-max-retries", "", "Retries per remote request (default: 3)")
	fetchUserAgent := flag.String("fetch-user-agent", "", "User-Agent for remote requests")
	resultTTL := flag.String("fetch-result-ttl", "", "How long finished jobs stay pollable (default: 24h)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Mirror: MirrorConfig{
			Path:          getConfigValue(*mirrorPath, "MIRROR_PATH", os.Getenv("FF_DIR")),
			DatabasePath:  getConfigValue(*mirrorDB, "MIRROR_DB", ""),
			PageThreshold: getIntConfigValue(*pageThreshold, "PAGE_THRESHOLD", 100),
			PageSize:      getIntConfigValue(*pageSize, "PAGE_SIZE", 0),
			Debug:         getBoolConfigValue(*debug, "DEBUG", false),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "CORS_ALLOWED_ORIGINS", "*")),
			FavoriteRate:   getFloatConfigValue(*favoriteRate, "FAVORITE_RATE", 0.2),
			FavoriteBurst:  getIntConfigValue(*favoriteBurst, "FAVORITE_BURST", 5),
		},
		Fetch: FetchConfig{
			QueuePath:         getConfigValue(*queuePath, "QUEUE_PATH", ""),
			Workers:           getIntConfigValue(*fetchWorkers, "FETCH_WORKERS", 1),
			RequestsPerSecond: getFloatConfigValue(*fetchRate, "FETCH_RATE", 0.5),
			MaxRetries:        getIntConfigValue(*fetchRetries, "FETCH_MAX_RETRIES", 3),
			UserAgent:         getConfigValue(*fetchUserAgent, "FETCH_USER_AGENT", "ffserve/1.0"),
		},
	}

	if cfg.Mirror.PageSize == 0 {
		cfg.Mirror.PageSize = cfg.Mirror.PageThreshold
	}

	durations := []struct {
		flagValue string
		envKey    string
		def       string
		dst       *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*fetchTimeout, "FETCH_TIMEOUT", "30s", &cfg.Fetch.Timeout},
		{*resultTTL, "FETCH_RESULT_TTL", "24h", &cfg.Fetch.ResultTTL},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid mirror path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Mirror.Path == "" {
		return errors.New("MIRROR_PATH (or FF_DIR) is required")
	}

	if c.Mirror.PageThreshold <= 0 {
		return fmt.Errorf("page threshold must be positive, got %d", c.Mirror.PageThreshold)
	}
	if c.Mirror.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.Mirror.PageSize)
	}

	if c.Server.FavoriteRate < 0 {
		return fmt.Errorf("favorite rate cannot be negative, got %v", c.Server.FavoriteRate)
	}

	if c.Fetch.Workers < 1 {
		return fmt.Errorf("fetch workers must be at least 1, got %d", c.Fetch.Workers)
	}
	if c.Fetch.RequestsPerSecond <= 0 {
		return fmt.Errorf("fetch rate must be positive, got %v", c.Fetch.RequestsPerSecond)
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch max retries cannot be negative, got %d", c.Fetch.MaxRetries)
	}

	return nil
}

// expandPaths resolves the mirror root and derives the database and queue locations from it.
func (c *Config) expandPaths() error {
	if c.Mirror.Path == "" {
		return nil
	}

	mirror, err := expandPath(c.Mirror.Path, "")
	if err != nil {
		return err
	}
	c.Mirror.Path = mirror

	if c.Mirror.DatabasePath, err = expandPath(c.Mirror.DatabasePath, filepath.Join(mirror, "ffmirror.db")); err != nil {
		return err
	}
	if c.Fetch.QueuePath, err = expandPath(c.Fetch.QueuePath, filepath.Join(mirror, ".queue")); err != nil {
		return err
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

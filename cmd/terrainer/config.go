package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavletto/terrainer/hgt"
	"github.com/pavletto/terrainer/terrain"
)

// Config holds application configuration
type Config struct {
	DataDir         string
	Resolution      string
	CacheMB         int
	AutoDownload    bool
	SRTM1URL        string
	SRTM3URL        string
	AuthMode        string
	AuthToken       string
	AuthUser        string
	AuthPassword    string
	DownloadWorkers int
	RateLimit       float64
	LogLevel        string
	LogJSON         bool
}

// LoadConfig loads configuration from environment variables and command flags
// Flags take precedence over environment variables
func LoadConfig(cmd *cobra.Command) Config {
	cfg := Config{}

	// Load from env or flags (flags take precedence)
	cfg.DataDir = getConfigString(cmd, "data-dir", "TERRAINER_DATA_DIR", "./data")
	cfg.Resolution = getConfigString(cmd, "resolution", "TERRAINER_RESOLUTION", "srtm1")
	cfg.CacheMB = getConfigInt(cmd, "cache-mb", "TERRAINER_CACHE_MB", 0)
	cfg.AutoDownload = getConfigBool(cmd, "auto-download", "TERRAINER_AUTO_DOWNLOAD", false)
	cfg.SRTM1URL = getConfigString(cmd, "srtm1-url", "TERRAINER_SRTM1_URL", "")
	cfg.SRTM3URL = getConfigString(cmd, "srtm3-url", "TERRAINER_SRTM3_URL", "")
	cfg.AuthMode = getConfigString(cmd, "auth-mode", "TERRAINER_AUTH_MODE", "none")
	cfg.AuthToken = getConfigString(cmd, "auth-token", "TERRAINER_AUTH_TOKEN", "")
	cfg.AuthUser = getConfigString(cmd, "auth-user", "TERRAINER_AUTH_USER", "")
	cfg.AuthPassword = getConfigString(cmd, "auth-password", "TERRAINER_AUTH_PASSWORD", "")
	cfg.DownloadWorkers = getConfigInt(cmd, "download-workers", "TERRAINER_DOWNLOAD_WORKERS", 2)
	cfg.RateLimit = getConfigFloat(cmd, "rate-limit", "TERRAINER_RATE_LIMIT", 0)
	cfg.LogLevel = getConfigString(cmd, "log-level", "TERRAINER_LOG_LEVEL", "info")
	cfg.LogJSON = getConfigBool(cmd, "log-json", "TERRAINER_LOG_JSON", false)

	return cfg
}

// Logger builds the process logger from the configured level and format
func (c *Config) Logger() *slog.Logger {
	level := slog.LevelInfo
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// CreateEngine creates a new tile engine from the configuration
func (c *Config) CreateEngine() (*terrain.Engine, error) {
	var res hgt.Resolution
	switch c.Resolution {
	case "srtm1":
		res = hgt.SRTM1
	case "srtm3":
		res = hgt.SRTM3
	default:
		return nil, fmt.Errorf("unknown resolution %q, want srtm1 or srtm3", c.Resolution)
	}

	auth := terrain.AuthConfig{}
	switch c.AuthMode {
	case "", "none":
	case "bearer":
		auth = terrain.AuthConfig{Mode: terrain.AuthBearer, Token: c.AuthToken}
	case "basic":
		auth = terrain.AuthConfig{Mode: terrain.AuthBasic, User: c.AuthUser, Password: c.AuthPassword}
	default:
		return nil, fmt.Errorf("unknown auth mode %q, want none, bearer or basic", c.AuthMode)
	}

	cfg := terrain.Config{
		DataDir:          c.DataDir,
		CacheBytes:       int64(c.CacheMB) << 20,
		Resolution:       res,
		AutoDownload:     c.AutoDownload,
		SRTM1URLTemplate: c.SRTM1URL,
		SRTM3URLTemplate: c.SRTM3URL,
		Auth:             auth,
		DownloadWorkers:  c.DownloadWorkers,
		RateLimit:        c.RateLimit,
		HTTPTimeout:      60 * time.Second,
		Logger:           c.Logger(),
	}

	return terrain.New(cfg)
}

// getConfigString gets a string value from flag, then env, then default
func getConfigString(cmd *cobra.Command, flagName, envName, defaultValue string) string {
	// Check if flag was explicitly set
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetString(flagName)
		return val
	}

	// Check environment variable
	if v := os.Getenv(envName); v != "" {
		return v
	}

	// Use default
	return defaultValue
}

// getConfigInt gets an int value from flag, then env, then default
func getConfigInt(cmd *cobra.Command, flagName, envName string, defaultValue int) int {
	// Check if flag was explicitly set
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetInt(flagName)
		return val
	}

	// Check environment variable
	if v := os.Getenv(envName); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	// Use default
	return defaultValue
}

// getConfigFloat gets a float64 value from flag, then env, then default
func getConfigFloat(cmd *cobra.Command, flagName, envName string, defaultValue float64) float64 {
	// Check if flag was explicitly set
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetFloat64(flagName)
		return val
	}

	// Check environment variable
	if v := os.Getenv(envName); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}

	// Use default
	return defaultValue
}

// getConfigBool gets a bool value from flag, then env, then default
func getConfigBool(cmd *cobra.Command, flagName, envName string, defaultValue bool) bool {
	// Check if flag was explicitly set
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetBool(flagName)
		return val
	}

	// Check environment variable
	if v := os.Getenv(envName); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}

	// Use default
	return defaultValue
}

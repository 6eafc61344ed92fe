package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the stream sniffer agent.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// Optional browser auto-launch
	LaunchBrowser     bool
	BrowserStartURL   string
	BrowserProfileDir string

	// Tab matching and behavior
	TabURLFilter   string
	ReloadOnAttach bool

	// Detection tuning
	MaxStreamsPerSession int
	MinStreamBytes       int
	MinVideoArea         int

	// API server
	APIHost string
	APIPort int

	// Logging
	LogFile string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:           getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:              getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		LaunchBrowser:        getEnvBoolOrDefault("SNIFFER_LAUNCH_BROWSER", false),
		BrowserStartURL:      getEnvOrDefault("SNIFFER_BROWSER_START_URL", ""),
		BrowserProfileDir:    getEnvOrDefault("SNIFFER_BROWSER_PROFILE_DIR", "./browser_profile"),
		TabURLFilter:         getEnvOrDefault("SNIFFER_TAB_URL_FILTER", ""),
		ReloadOnAttach:       getEnvBoolOrDefault("SNIFFER_RELOAD_ON_ATTACH", false),
		MaxStreamsPerSession: getEnvIntOrDefault("SNIFFER_MAX_STREAMS_PER_SESSION", 30),
		MinStreamBytes:       getEnvIntOrDefault("SNIFFER_MIN_STREAM_BYTES", 5000),
		MinVideoArea:         getEnvIntOrDefault("SNIFFER_MIN_VIDEO_AREA", 10000),
		APIHost:              getEnvOrDefault("SNIFFER_API_HOST", "127.0.0.1"),
		APIPort:              getEnvIntOrDefault("SNIFFER_API_PORT", 8560),
		LogFile:              getEnvOrDefault("SNIFFER_LOG_FILE", "logs/sniffer.log"),
	}

	return cfg, nil
}

// GetCDPURL returns the full CDP HTTP endpoint used by chromedp remote allocator.
func (c *Config) GetCDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

// APIAddr returns the host:port the API server binds to.
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Database
	DatabasePath string

	// VecLite trend index (optional, disabled when path is empty)
	VecLitePath string

	// Ollama embedding settings for the trend index
	OllamaHost     string
	EmbeddingModel string

	// Anthropic API (optional, enables LLM-backed insights)
	AnthropicAPIKey string

	// Source credentials. Twitter, GitHub and Reddit are optional;
	// Hacker News needs none.
	TwitterBearerToken string
	GitHubToken        string
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string

	// Bluesky
	BlueskyHandle      string
	BlueskyAppPassword string

	// Logging
	LogLevel string

	// Collection settings
	CollectionTimeout time.Duration
	TwitterLimit      int
	GitHubLimit       int
	RedditLimit       int
	HackerNewsLimit   int

	// Fraction of a batch that may fail to store before the batch aborts.
	StoreFailureThreshold float64

	// Retention and publishing limits
	RetentionDays   int
	DailyPostLimit  int
	MinPostInterval time.Duration

	// Scheduler settings
	CollectInterval  time.Duration
	AnalysisInterval time.Duration
	PublishInterval  time.Duration
	CleanupInterval  time.Duration

	// Notification settings
	NotifyHandle string
}

// Load reads configuration from environment variables.
// It automatically loads .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:       getEnv("DATABASE_PATH", "data/trendbot.db"),
		VecLitePath:        getEnv("VECLITE_PATH", ""),
		OllamaHost:         getEnv("OLLAMA_HOST", "http://localhost:11434"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		TwitterBearerToken: getEnv("TWITTER_BEARER_TOKEN", ""),
		GitHubToken:        getEnv("GITHUB_TOKEN", ""),
		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		RedditUserAgent:    getEnv("REDDIT_USER_AGENT", "trendbot:v1.0.0"),
		BlueskyHandle:      getEnv("BLUESKY_HANDLE", ""),
		BlueskyAppPassword: getEnv("BLUESKY_APP_PASSWORD", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		NotifyHandle:       getEnv("NOTIFY_HANDLE", ""),
	}

	// Parse durations
	var err error
	cfg.CollectionTimeout, err = parseDuration("COLLECTION_TIMEOUT", "5m")
	if err != nil {
		return nil, err
	}
	cfg.MinPostInterval, err = parseDuration("MIN_POST_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	cfg.CollectInterval, err = parseDuration("COLLECTION_INTERVAL", "2h")
	if err != nil {
		return nil, err
	}
	cfg.AnalysisInterval, err = parseDuration("ANALYSIS_INTERVAL", "12h")
	if err != nil {
		return nil, err
	}
	cfg.PublishInterval, err = parseDuration("PUBLISH_INTERVAL", "8h")
	if err != nil {
		return nil, err
	}
	cfg.CleanupInterval, err = parseDuration("CLEANUP_INTERVAL", "24h")
	if err != nil {
		return nil, err
	}

	// Parse integers
	cfg.TwitterLimit, err = parseInt("TWITTER_LIMIT", "50")
	if err != nil {
		return nil, err
	}
	cfg.GitHubLimit, err = parseInt("GITHUB_LIMIT", "30")
	if err != nil {
		return nil, err
	}
	cfg.RedditLimit, err = parseInt("REDDIT_LIMIT", "30")
	if err != nil {
		return nil, err
	}
	cfg.HackerNewsLimit, err = parseInt("HACKERNEWS_LIMIT", "20")
	if err != nil {
		return nil, err
	}
	cfg.RetentionDays, err = parseInt("RETENTION_DAYS", "30")
	if err != nil {
		return nil, err
	}
	cfg.DailyPostLimit, err = parseInt("DAILY_POST_LIMIT", "3")
	if err != nil {
		return nil, err
	}

	threshold, err := strconv.ParseFloat(getEnv("STORE_FAILURE_THRESHOLD", "0.5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_FAILURE_THRESHOLD: %w", err)
	}
	cfg.StoreFailureThreshold = threshold

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.StoreFailureThreshold <= 0 || c.StoreFailureThreshold > 1 {
		return fmt.Errorf("STORE_FAILURE_THRESHOLD must be in (0, 1], got %v", c.StoreFailureThreshold)
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("RETENTION_DAYS must be at least 1, got %d", c.RetentionDays)
	}
	return nil
}

// ValidateForCollection checks configuration needed for trend collection.
func (c *Config) ValidateForCollection() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.CollectionTimeout <= 0 {
		return fmt.Errorf("COLLECTION_TIMEOUT must be positive")
	}
	// Twitter, GitHub and Reddit are optional; HN works without auth
	return nil
}

// ValidateForPublishing checks configuration needed for publishing.
func (c *Config) ValidateForPublishing() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.BlueskyHandle == "" {
		return fmt.Errorf("BLUESKY_HANDLE is required for publishing")
	}
	if c.BlueskyAppPassword == "" {
		return fmt.Errorf("BLUESKY_APP_PASSWORD is required for publishing")
	}
	if c.DailyPostLimit < 1 {
		return fmt.Errorf("DAILY_POST_LIMIT must be at least 1, got %d", c.DailyPostLimit)
	}
	return nil
}

// ValidateForIndex checks configuration needed for the trend index.
func (c *Config) ValidateForIndex() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.VecLitePath == "" {
		return fmt.Errorf("VECLITE_PATH is required for the trend index")
	}
	return nil
}

// ValidateForServe checks all configuration needed for serve mode.
func (c *Config) ValidateForServe() error {
	if err := c.ValidateForCollection(); err != nil {
		return err
	}
	if err := c.ValidateForPublishing(); err != nil {
		return err
	}
	return nil
}

// IndexEnabled reports whether the VecLite trend index is configured.
func (c *Config) IndexEnabled() bool {
	return c.VecLitePath != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseDuration(key, defaultVal string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultVal))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseInt(key, defaultVal string) (int, error) {
	n, err := strconv.Atoi(getEnv(key, defaultVal))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

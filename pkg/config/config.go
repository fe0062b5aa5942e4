package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"twmediadl/pkg/auth"
	errs "twmediadl/pkg/errors"
)

// ConfigPathEnv names the environment variable that points at a YAML config file
const ConfigPathEnv = "TWMEDIADL_CONFIG"

// Link modes for the __all__ view
const (
	LinkModeCopy     = "copy"
	LinkModeHardlink = "hardlink"
	LinkModeSymlink  = "symlink"
)

// Config holds all configuration options for the downloader
type Config struct {
	Twitter   TwitterConfig   `yaml:"twitter"`
	Output    OutputConfig    `yaml:"output"`
	Download  DownloadConfig  `yaml:"download"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
	UI        UIConfig        `yaml:"ui"`
}

// TwitterConfig holds the OAuth1 credentials and the default target user
type TwitterConfig struct {
	ConsumerKey    string `yaml:"consumer_key" env:"CONSUMER_KEY"`
	ConsumerSecret string `yaml:"consumer_secret" env:"CONSUMER_SECRET"`
	AccessToken    string `yaml:"access_token" env:"ACCESS_TOKEN"`
	AccessSecret   string `yaml:"access_secret" env:"ACCESS_SECRET"`
	UserID         string `yaml:"user_id" env:"TWITTER_ID"`
}

// OutputConfig holds the media root and how the __all__ view is materialized
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" env:"TWMEDIADL_OUTPUT_DIR"`
	LinkMode      string `yaml:"link_mode" env:"TWMEDIADL_LINK_MODE"`
}

// DownloadConfig holds paging and download settings. Timeout bounds a media
// download; RequestTimeout bounds a single listing page request.
type DownloadConfig struct {
	Timeout        time.Duration `yaml:"timeout" env:"TWMEDIADL_DOWNLOAD_TIMEOUT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"TWMEDIADL_REQUEST_TIMEOUT"`
	PageSize       int           `yaml:"page_size" env:"TWMEDIADL_PAGE_SIZE"`
	MaxPosts       int           `yaml:"max_posts" env:"TWMEDIADL_MAX_POSTS"`
}

// RateLimitConfig paces listing requests. Zero RequestsPerWindow disables pacing.
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window" env:"TWMEDIADL_REQUESTS_PER_WINDOW"`
	Window            time.Duration `yaml:"window" env:"TWMEDIADL_RATE_WINDOW"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" env:"TWMEDIADL_LOG_LEVEL"`
	File  string `yaml:"file" env:"TWMEDIADL_LOG_FILE"`
}

// UIConfig holds terminal output preferences
type UIConfig struct {
	ShowProgress bool `yaml:"show_progress" env:"TWMEDIADL_SHOW_PROGRESS"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			BaseDirectory: "media",
			LinkMode:      LinkModeCopy,
		},
		Download: DownloadConfig{
			Timeout:        10 * time.Minute,
			RequestTimeout: 30 * time.Second,
			PageSize:       200,
			MaxPosts:       0,
		},
		// favorites/list allows 75 requests per 15 minutes
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 75,
			Window:            15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv overrides fields whose environment variable is set
func (c *Config) LoadFromEnv() error {
	if err := cleanenv.ReadEnv(c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// LoadFromStore fills still-empty credentials from a credential store
func (c *Config) LoadFromStore(store auth.Store) {
	auth.Lookup(store, c.credentialFields())
}

func (c *Config) credentialFields() map[string]*string {
	return map[string]*string{
		auth.KeyConsumerKey:    &c.Twitter.ConsumerKey,
		auth.KeyConsumerSecret: &c.Twitter.ConsumerSecret,
		auth.KeyAccessToken:    &c.Twitter.AccessToken,
		auth.KeyAccessSecret:   &c.Twitter.AccessSecret,
	}
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".twmediadl.yaml",
		".twmediadl.yml",
		filepath.Join(home, ".config", "twmediadl", "config.yaml"),
		filepath.Join(home, ".config", "twmediadl", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Missing credentials are
// reported as a single *errs.MissingCredentialError inside the joined error.
func (c *Config) Validate() error {
	var all []error

	var missing []string
	for _, key := range auth.CredentialKeys {
		if strings.TrimSpace(*c.credentialFields()[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		all = append(all, &errs.MissingCredentialError{Keys: missing})
	}

	if c.Output.BaseDirectory == "" {
		all = append(all, errors.New("output directory is required"))
	}
	switch c.Output.LinkMode {
	case LinkModeCopy, LinkModeHardlink, LinkModeSymlink:
	default:
		all = append(all, fmt.Errorf("invalid link mode %q", c.Output.LinkMode))
	}

	if c.Download.Timeout <= 0 {
		all = append(all, errors.New("download timeout must be positive"))
	}
	if c.Download.RequestTimeout <= 0 {
		all = append(all, errors.New("request timeout must be positive"))
	}
	if c.Download.PageSize <= 0 || c.Download.PageSize > 200 {
		all = append(all, errors.New("page size must be between 1 and 200"))
	}
	if c.Download.MaxPosts < 0 {
		all = append(all, errors.New("max posts cannot be negative"))
	}

	if c.RateLimit.RequestsPerWindow < 0 {
		all = append(all, errors.New("requests per window cannot be negative"))
	}
	if c.RateLimit.RequestsPerWindow > 0 && c.RateLimit.Window <= 0 {
		all = append(all, errors.New("rate limit window must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		all = append(all, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(all...)
}

// ResolveTarget picks the target user: the --user value wins over TWITTER_ID
func (c *Config) ResolveTarget(flagUser string) (string, error) {
	if user := strings.TrimSpace(flagUser); user != "" {
		return user, nil
	}
	if user := strings.TrimSpace(c.Twitter.UserID); user != "" {
		return user, nil
	}
	return "", &errs.NoTargetUserError{}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: environment variables > .env files > config file > defaults,
// with the system keychain consulted last for credentials that are still empty.
func Load(configPath string, store auth.Store) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".twmediadl.env"))

	if configPath == "" {
		configPath = os.Getenv(ConfigPathEnv)
	}

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if store != nil {
		cfg.LoadFromStore(store)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

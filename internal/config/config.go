// Package config provides application configuration management with support
// for a TOML file, environment variables, .env files and command-line flags.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/reelfeed/reelfeed/internal/filter"
)

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "reelfeed.toml"

// Config holds the application configuration.
type Config struct {
	App      AppConfig      `toml:"app"`
	Provider ProviderConfig `toml:"provider"`
	Store    StoreConfig    `toml:"store"`
	Cache    CacheConfig    `toml:"cache"`
	Filter   filter.Policy  `toml:"filter"`
	Notify   NotifyConfig   `toml:"notify"`
	Jobs     []JobConfig    `toml:"jobs" validate:"dive"`

	// Source is the config file that was read, empty when none was found.
	Source string `toml:"-"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `toml:"environment" validate:"oneof=development staging production"`
	LogLevel    string `toml:"log_level" validate:"oneof=debug info warn error"`
	Namespace   string `toml:"namespace" validate:"required,entitytype"`
}

// ProviderConfig describes the upstream metadata provider.
type ProviderConfig struct {
	Name         string   `toml:"name" validate:"required"`
	BaseURL      string   `toml:"base_url" validate:"required,url"`
	APIKey       string   `toml:"api_key"`
	Timeout      Duration `toml:"timeout"`
	RPS          float64  `toml:"rps" validate:"gt=0"`
	Burst        int      `toml:"burst" validate:"gte=1"`
	MaxInFlight  int      `toml:"max_in_flight" validate:"gte=1"`
	MaxRetries   int      `toml:"max_retries" validate:"gte=0"`
	BackoffBase  Duration `toml:"backoff_base"`
	BackoffMax   Duration `toml:"backoff_max"`
	DetailAppend string   `toml:"detail_append"`
}

// StoreConfig holds document store and search index locations.
type StoreConfig struct {
	Path         string `toml:"path" validate:"required"`
	IndexPath    string `toml:"index_path" validate:"required"`
	MaxBatchSize int    `toml:"max_batch_size" validate:"gte=1"`
}

// CacheConfig controls the payload cache.
type CacheConfig struct {
	Enabled       bool     `toml:"enabled"`
	TTL           Duration `toml:"ttl"`
	SchemaVersion string   `toml:"schema_version" validate:"required"`
}

// NotifyConfig lists run report destinations. Both are optional.
type NotifyConfig struct {
	NtfyTopic  string   `toml:"ntfy_topic" validate:"omitempty,url"`
	WebhookURL string   `toml:"webhook_url" validate:"omitempty,url"`
	Timeout    Duration `toml:"timeout"`
}

// JobConfig is one [[jobs]] entry.
type JobConfig struct {
	Name        string         `toml:"name" validate:"required"`
	EntityType  string         `toml:"entity_type" validate:"required,entitytype"`
	Enabled     *bool          `toml:"enabled"`
	WindowDays  int            `toml:"window_days" validate:"gte=0"`
	MaxPages    int            `toml:"max_pages" validate:"gte=0"`
	BatchSize   int            `toml:"batch_size" validate:"gte=0"`
	Concurrency int            `toml:"concurrency" validate:"gte=0"`
	Filter      *filter.Policy `toml:"filter"`
}

// IsEnabled reports whether the job runs by default. Jobs are enabled unless
// the file says otherwise.
func (j JobConfig) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// Duration is a time.Duration written as a string ("30s", "1h") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Overrides carries command-line flag values. Empty fields are ignored.
type Overrides struct {
	Environment string
	LogLevel    string
	StorePath   string
	IndexPath   string
}

// LoadOptions controls Load.
type LoadOptions struct {
	Path      string // config file; empty looks for DefaultConfigFile
	EnvFile   string // .env file; empty uses ".env"
	Overrides Overrides
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. TOML config file.
// 5. Default values (lowest priority).
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	path, exists, err := resolveConfigPath(opts.Path)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
		cfg.Source = path
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// Load .env file if it exists (silently ignore if not found).
	if err := loadEnvFile(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("env file %s: %w", envFile, err)
	}

	cfg.applyEnv(opts.Overrides)

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML data on top of the defaults without consulting the
// environment. It is used by tests and by "config check"-style callers.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- config path comes from the operator
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path, "")
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			return "", false, fmt.Errorf("config file: %w", err)
		}
		return expanded, true, nil
	}

	local, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(local); err == nil && !info.IsDir() {
		return local, true, nil
	}
	return "", false, nil
}

// applyEnv layers environment variables and then flags over file values.
func (c *Config) applyEnv(o Overrides) {
	c.App.Environment = getConfigValue(o.Environment, "REELFEED_ENV", c.App.Environment)
	c.App.LogLevel = getConfigValue(o.LogLevel, "LOG_LEVEL", c.App.LogLevel)
	c.Provider.APIKey = getConfigValue("", "PROVIDER_API_KEY", c.Provider.APIKey)
	c.Provider.BaseURL = getConfigValue("", "PROVIDER_BASE_URL", c.Provider.BaseURL)
	c.Store.Path = getConfigValue(o.StorePath, "STORE_PATH", c.Store.Path)
	c.Store.IndexPath = getConfigValue(o.IndexPath, "INDEX_PATH", c.Store.IndexPath)
	c.Notify.NtfyTopic = getConfigValue("", "NTFY_TOPIC", c.Notify.NtfyTopic)
	c.Notify.WebhookURL = getConfigValue("", "REPORT_WEBHOOK_URL", c.Notify.WebhookURL)
	c.Cache.Enabled = getBoolConfigValue("", "CACHE_ENABLED", c.Cache.Enabled)
	c.Provider.RPS = getFloatConfigValue("", "PROVIDER_RPS", c.Provider.RPS)
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		path = defaultPath
	}
	if path == "" {
		return "", nil
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

// getConfigValue returns the first non-empty value from flag, env var, or current.
func getConfigValue(flagValue, envKey, current string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return current
}

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true;
// any other non-empty value is false.
func getBoolConfigValue(flagValue, envKey string, current bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return current
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getFloatConfigValue keeps current when the value does not parse.
func getFloatConfigValue(flagValue, envKey string, current float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return current
	}
	v, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return current
	}
	return v
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- env file path from user input is expected
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
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real environment variables win over the file.
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

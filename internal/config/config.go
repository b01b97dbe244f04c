package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultDBFileName      = "breachwatch.db"
	DefaultRosterPath      = "emails.txt"
	DefaultLogLevel        = "info"
	DefaultFeedURL         = "https://haveibeenpwned.com/api/v3"
	DefaultUserAgent       = "breachwatch"
	DefaultFeedTimeout     = 10 * time.Second
	DefaultMinInterval     = 1500 * time.Millisecond
	DefaultSyncPastes      = true
	DefaultRefreshCatalog  = true
	LogLevelEnvKey         = "BREACHWATCH_LOG_LEVEL"
	configFileName         = ".breachwatch.toml"
	configDirEnvKey        = "BREACHWATCH_CONFIG_DIR"
	trustProjectConfigEnv  = "BREACHWATCH_TRUST_PROJECT_CONFIG"
	dbPathEnvKey           = "BREACHWATCH_DB"
	rosterPathEnvKey       = "BREACHWATCH_ROSTER"
	feedURLEnvKey          = "BREACHWATCH_FEED_URL"
	apiKeyEnvKey           = "BREACHWATCH_API_KEY"
	minIntervalEnvKey      = "BREACHWATCH_MIN_INTERVAL"
	metricsTextfileEnvKey  = "BREACHWATCH_METRICS_TEXTFILE"
	minimumAllowedInterval = 100 * time.Millisecond
)

// FeedConfig defines how the breach feed is reached.
type FeedConfig struct {
	BaseURL   string        `toml:"base_url"`
	UserAgent string        `toml:"user_agent"`
	APIKey    string        `toml:"api_key"`
	Timeout   time.Duration `toml:"timeout"`
}

// SyncConfig defines pacing and optional steps of a sync run.
type SyncConfig struct {
	MinInterval    time.Duration `toml:"min_interval"`
	Pastes         bool          `toml:"pastes"`
	RefreshCatalog bool          `toml:"refresh_catalog"`
}

// MetricsConfig defines where run metrics are written.
type MetricsConfig struct {
	Textfile string `toml:"textfile"`
}

// Config defines runtime configuration for breachwatch.
type Config struct {
	DBPath                   string        `toml:"db_path"`
	RosterPath               string        `toml:"roster_path"`
	LogLevel                 string        `toml:"log_level"`
	Feed                     FeedConfig    `toml:"feed"`
	Sync                     SyncConfig    `toml:"sync"`
	Metrics                  MetricsConfig `toml:"metrics"`
	TrustedProjectConfigPath string        `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		DBPath:     "",
		RosterPath: DefaultRosterPath,
		LogLevel:   DefaultLogLevel,
		Feed: FeedConfig{
			BaseURL:   DefaultFeedURL,
			UserAgent: DefaultUserAgent,
			Timeout:   DefaultFeedTimeout,
		},
		Sync: SyncConfig{
			MinInterval:    DefaultMinInterval,
			Pastes:         DefaultSyncPastes,
			RefreshCatalog: DefaultRefreshCatalog,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnv))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

// KeyInfo describes a settable config key.
type KeyInfo struct {
	Key  string `json:"key"`
	Env  string `json:"env,omitempty"`
	Help string `json:"help"`
}

var keyInfos = []KeyInfo{
	{Key: "db_path", Env: dbPathEnvKey, Help: "SQLite mirror file (default ./" + DefaultDBFileName + ")"},
	{Key: "roster_path", Env: rosterPathEnvKey, Help: "roster file, one email address per line"},
	{Key: "log_level", Env: LogLevelEnvKey, Help: "debug, info, warn or error"},
	{Key: "feed.base_url", Env: feedURLEnvKey, Help: "breach feed API root"},
	{Key: "feed.user_agent", Help: "User-Agent sent to the feed"},
	{Key: "feed.api_key", Env: apiKeyEnvKey, Help: "feed API key, needed for per-account lookups"},
	{Key: "feed.timeout", Help: "per-request timeout, e.g. 10s"},
	{Key: "sync.min_interval", Env: minIntervalEnvKey, Help: "minimum gap between feed requests (floor 100ms)"},
	{Key: "sync.pastes", Help: "also mirror paste exposures (true/false)"},
	{Key: "sync.refresh_catalog", Help: "pull new breaches into the catalog before reconciling (true/false)"},
	{Key: "metrics.textfile", Env: metricsTextfileEnvKey, Help: "Prometheus textfile written after each run"},
}

// Keys describes every settable config key in file order.
func Keys() []KeyInfo {
	return keyInfos
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	keys := make([]string, 0, len(keyInfos))
	for _, info := range keyInfos {
		keys = append(keys, info.Key)
	}
	return keys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, info := range keyInfos {
		if info.Key == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key. The API key is masked.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "db_path":
		return c.DBPath, nil
	case "roster_path":
		return c.RosterPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "feed.base_url":
		return c.Feed.BaseURL, nil
	case "feed.user_agent":
		return c.Feed.UserAgent, nil
	case "feed.api_key":
		if c.Feed.APIKey == "" {
			return "", nil
		}
		return "********", nil
	case "feed.timeout":
		return c.Feed.Timeout.String(), nil
	case "sync.min_interval":
		return c.Sync.MinInterval.String(), nil
	case "sync.pastes":
		return strconv.FormatBool(c.Sync.Pastes), nil
	case "sync.refresh_catalog":
		return strconv.FormatBool(c.Sync.RefreshCatalog), nil
	case "metrics.textfile":
		return c.Metrics.Textfile, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	if v := strings.TrimSpace(os.Getenv(dbPathEnvKey)); v != "" {
		cfg.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(rosterPathEnvKey)); v != "" {
		cfg.RosterPath = v
	}
	if v := strings.TrimSpace(os.Getenv(feedURLEnvKey)); v != "" {
		cfg.Feed.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(apiKeyEnvKey)); v != "" {
		cfg.Feed.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(metricsTextfileEnvKey)); v != "" {
		cfg.Metrics.Textfile = v
	}
	if v := strings.TrimSpace(os.Getenv(minIntervalEnvKey)); v != "" {
		if d, err := parseDuration(v); err == nil {
			cfg.Sync.MinInterval = d
		}
	}

	cfg.normalize()

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "feed.timeout", "sync.min_interval":
		d, err := parseDuration(value)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration (e.g. 1.5s)", key)
		}
		return d.String(), nil
	case "sync.pastes", "sync.refresh_catalog":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

// parseDuration accepts Go duration syntax or a plain number of seconds.
func parseDuration(value string) (time.Duration, error) {
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.RosterPath) == "" {
		c.RosterPath = DefaultRosterPath
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if strings.TrimSpace(c.Feed.BaseURL) == "" {
		c.Feed.BaseURL = DefaultFeedURL
	}
	if strings.TrimSpace(c.Feed.UserAgent) == "" {
		c.Feed.UserAgent = DefaultUserAgent
	}
	if c.Feed.Timeout <= 0 {
		c.Feed.Timeout = DefaultFeedTimeout
	}
	// The feed suspends callers that exceed its rate, so the interval has a floor.
	if c.Sync.MinInterval <= 0 {
		c.Sync.MinInterval = DefaultMinInterval
	} else if c.Sync.MinInterval < minimumAllowedInterval {
		c.Sync.MinInterval = minimumAllowedInterval
	}
}

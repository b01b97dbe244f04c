package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configDirEnvKey,
		trustProjectConfigEnv,
		dbPathEnvKey,
		rosterPathEnvKey,
		feedURLEnvKey,
		apiKeyEnvKey,
		minIntervalEnvKey,
		metricsTextfileEnvKey,
	} {
		t.Setenv(key, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DBPath != "" {
		t.Fatalf("expected empty db path, got %q", cfg.DBPath)
	}
	if cfg.RosterPath != "emails.txt" {
		t.Fatalf("expected default roster, got %q", cfg.RosterPath)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Feed.BaseURL != "https://haveibeenpwned.com/api/v3" {
		t.Fatalf("unexpected feed url %q", cfg.Feed.BaseURL)
	}
	if cfg.Sync.MinInterval != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s min interval, got %s", cfg.Sync.MinInterval)
	}
	if !cfg.Sync.Pastes || !cfg.Sync.RefreshCatalog {
		t.Fatal("expected pastes and catalog refresh on by default")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".breachwatch.toml")
	if err := os.WriteFile(path, []byte(`roster_path = "team.yaml"
log_level = "warn"

[feed]
api_key = "secret"
timeout = "30s"

[sync]
min_interval = "2s"
pastes = false
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RosterPath != "team.yaml" {
		t.Fatalf("expected roster 'team.yaml', got %q", cfg.RosterPath)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log_level 'warn', got %q", cfg.LogLevel)
	}
	if cfg.Feed.APIKey != "secret" {
		t.Fatalf("expected api key to load, got %q", cfg.Feed.APIKey)
	}
	if cfg.Feed.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", cfg.Feed.Timeout)
	}
	if cfg.Sync.MinInterval != 2*time.Second {
		t.Fatalf("expected 2s interval, got %s", cfg.Sync.MinInterval)
	}
	if cfg.Sync.Pastes {
		t.Fatal("expected pastes disabled")
	}
	if !cfg.Sync.RefreshCatalog {
		t.Fatal("unset keys should keep defaults")
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/.breachwatch.toml", &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.RosterPath != DefaultRosterPath {
		t.Fatal("defaults should be preserved")
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".breachwatch.toml")
	if err := os.WriteFile(path, []byte("log_level = \n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := Default()
	if err := loadFile(path, &cfg); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGetKey(t *testing.T) {
	cfg := Default()
	cfg.DBPath = "/tmp/mirror.db"
	cfg.Feed.APIKey = "secret"

	cases := map[string]string{
		"db_path":              "/tmp/mirror.db",
		"roster_path":          "emails.txt",
		"log_level":            "info",
		"feed.api_key":         "********",
		"feed.timeout":         "10s",
		"sync.min_interval":    "1.5s",
		"sync.pastes":          "true",
		"sync.refresh_catalog": "true",
		"metrics.textfile":     "",
	}
	for key, want := range cases {
		got, err := cfg.Get(key)
		if err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
		if got != want {
			t.Fatalf("get %s: expected %q, got %q", key, want, got)
		}
	}

	if _, err := cfg.Get("nope"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestAllowedKeysAreGettable(t *testing.T) {
	cfg := Default()
	for _, key := range AllowedKeys() {
		if !IsAllowedKey(key) {
			t.Fatalf("%s should be allowed", key)
		}
		if _, err := cfg.Get(key); err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
	}
	if IsAllowedKey("feed") {
		t.Fatal("section names are not keys")
	}
}

func TestKeysDescribeEnvOverrides(t *testing.T) {
	envByKey := map[string]string{}
	for _, info := range Keys() {
		if info.Help == "" {
			t.Fatalf("%s has no help text", info.Key)
		}
		envByKey[info.Key] = info.Env
	}
	if len(envByKey) != len(AllowedKeys()) {
		t.Fatalf("duplicate key in table: %v", AllowedKeys())
	}
	if envByKey["log_level"] != "BREACHWATCH_LOG_LEVEL" || envByKey["feed.api_key"] != "BREACHWATCH_API_KEY" {
		t.Fatalf("unexpected env overrides %v", envByKey)
	}
	if envByKey["sync.pastes"] != "" {
		t.Fatalf("sync.pastes has no env override, got %q", envByKey["sync.pastes"])
	}
}

func TestSetKeyCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".breachwatch.toml")
	if err := SetKey(path, "roster_path", "people.txt"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RosterPath != "people.txt" {
		t.Fatalf("expected roster 'people.txt', got %q", cfg.RosterPath)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestSetKeyUpdatesExistingNestedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".breachwatch.toml")
	if err := os.WriteFile(path, []byte("log_level = \"debug\"\n\n[feed]\nuser_agent = \"ops-audit\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := SetKey(path, "feed.timeout", "5"); err != nil {
		t.Fatalf("set timeout: %v", err)
	}
	if err := SetKey(path, "sync.pastes", "false"); err != nil {
		t.Fatalf("set pastes: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("existing keys should survive, got log level %q", cfg.LogLevel)
	}
	if cfg.Feed.UserAgent != "ops-audit" {
		t.Fatalf("sibling nested keys should survive, got %q", cfg.Feed.UserAgent)
	}
	if cfg.Feed.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %s", cfg.Feed.Timeout)
	}
	if cfg.Sync.Pastes {
		t.Fatal("expected pastes disabled")
	}
}

func TestSetKeyRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".breachwatch.toml")

	if err := SetKey(path, "nope", "x"); err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
	if err := SetKey(path, "sync.min_interval", "-1s"); err == nil {
		t.Fatal("expected error for negative interval")
	}
	if err := SetKey(path, "sync.refresh_catalog", "maybe"); err == nil {
		t.Fatal("expected error for non-boolean")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("rejected values should not create the file: %v", err)
	}
}

func TestConfigDirOverridePaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)

	global, err := GlobalPath()
	if err != nil {
		t.Fatalf("global path: %v", err)
	}
	project, err := ProjectPath()
	if err != nil {
		t.Fatalf("project path: %v", err)
	}
	want := filepath.Join(dir, ".breachwatch.toml")
	if global != want || project != want {
		t.Fatalf("expected both paths %q, got %q and %q", want, global, project)
	}
}

func TestLoadConfigDirOverride(t *testing.T) {
	clearEnv(t)
	configDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(configDir, ".breachwatch.toml"), []byte("db_path = \"/var/lib/breachwatch.db\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configDirEnvKey, configDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/var/lib/breachwatch.db" {
		t.Fatalf("expected db path from override dir, got %q", cfg.DBPath)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(configDirEnvKey, t.TempDir())
	t.Setenv(dbPathEnvKey, "/tmp/override.db")
	t.Setenv(rosterPathEnvKey, "/tmp/roster.yaml")
	t.Setenv(feedURLEnvKey, "http://127.0.0.1:9999/api")
	t.Setenv(apiKeyEnvKey, "env-key")
	t.Setenv(minIntervalEnvKey, "3")
	t.Setenv(metricsTextfileEnvKey, "/tmp/breachwatch.prom")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/override.db" {
		t.Fatalf("unexpected db path %q", cfg.DBPath)
	}
	if cfg.RosterPath != "/tmp/roster.yaml" {
		t.Fatalf("unexpected roster path %q", cfg.RosterPath)
	}
	if cfg.Feed.BaseURL != "http://127.0.0.1:9999/api" {
		t.Fatalf("unexpected feed url %q", cfg.Feed.BaseURL)
	}
	if cfg.Feed.APIKey != "env-key" {
		t.Fatalf("unexpected api key %q", cfg.Feed.APIKey)
	}
	if cfg.Sync.MinInterval != 3*time.Second {
		t.Fatalf("expected 3s interval, got %s", cfg.Sync.MinInterval)
	}
	if cfg.Metrics.Textfile != "/tmp/breachwatch.prom" {
		t.Fatalf("unexpected textfile %q", cfg.Metrics.Textfile)
	}
}

func TestLoadClampsMinInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv(configDirEnvKey, t.TempDir())
	t.Setenv(minIntervalEnvKey, "1ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sync.MinInterval != minimumAllowedInterval {
		t.Fatalf("expected interval clamped to %s, got %s", minimumAllowedInterval, cfg.Sync.MinInterval)
	}
}

func TestLoadFallsBackToDefaultsWhenConfiguredEmpty(t *testing.T) {
	clearEnv(t)
	configDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(configDir, ".breachwatch.toml"), []byte("log_level = \"\"\nroster_path = \"  \"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configDirEnvKey, configDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level, got %q", cfg.LogLevel)
	}
	if cfg.RosterPath != DefaultRosterPath {
		t.Fatalf("expected default roster, got %q", cfg.RosterPath)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
}

func writeHomeAndProject(t *testing.T) (string, string) {
	t.Helper()
	homeDir := t.TempDir()
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(homeDir, ".breachwatch.toml"), []byte("roster_path = \"home.txt\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, ".breachwatch.toml"), []byte("roster_path = \"project.txt\"\n"), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}
	return homeDir, workspace
}

func TestLoadIgnoresProjectConfigByDefault(t *testing.T) {
	clearEnv(t)
	homeDir, workspace := writeHomeAndProject(t)
	chdir(t, workspace)
	t.Setenv("HOME", homeDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RosterPath != "home.txt" {
		t.Fatalf("expected global roster, got %q", cfg.RosterPath)
	}
	if cfg.TrustedProjectConfigPath != "" {
		t.Fatalf("expected no trusted project config path, got %q", cfg.TrustedProjectConfigPath)
	}
}

func TestLoadAppliesProjectConfigWhenTrusted(t *testing.T) {
	clearEnv(t)
	homeDir, workspace := writeHomeAndProject(t)
	chdir(t, workspace)
	t.Setenv("HOME", homeDir)
	t.Setenv(trustProjectConfigEnv, "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RosterPath != "project.txt" {
		t.Fatalf("expected project roster, got %q", cfg.RosterPath)
	}
	if cfg.TrustedProjectConfigPath == "" {
		t.Fatal("expected trusted project config path to be recorded")
	}
}

func TestLoadDoesNotTrustProjectConfigOnInvalidEnvValue(t *testing.T) {
	clearEnv(t)
	homeDir, workspace := writeHomeAndProject(t)
	chdir(t, workspace)
	t.Setenv("HOME", homeDir)
	t.Setenv(trustProjectConfigEnv, "sure")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RosterPath != "home.txt" {
		t.Fatalf("expected global roster, got %q", cfg.RosterPath)
	}
}

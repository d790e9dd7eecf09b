package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/mountkeep/pkg/store"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return configPath
}

func TestLoad_DefaultsApplied(t *testing.T) {
	configPath := writeConfigFile(t, `
logging:
  level: "INFO"

database:
  type: sqlite
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.API.Port != 8474 {
		t.Errorf("Expected default API port 8474, got %d", cfg.API.Port)
	}
	if cfg.API.Bind != "127.0.0.1" {
		t.Errorf("Expected API to bind loopback by default, got %q", cfg.API.Bind)
	}
	if cfg.Mount.AttemptTimeout != 60*time.Second {
		t.Errorf("Expected default attempt_timeout 60s, got %v", cfg.Mount.AttemptTimeout)
	}
	if cfg.Mount.ReconcileInterval != 5*time.Minute {
		t.Errorf("Expected default reconcile_interval 5m, got %v", cfg.Mount.ReconcileInterval)
	}
	if cfg.Mount.BaseDir == "" {
		t.Error("Expected default base_dir to be set")
	}
	if cfg.Kerberos.Krb5Conf != "/etc/krb5.conf" {
		t.Errorf("Expected default krb5_conf, got %q", cfg.Kerberos.Krb5Conf)
	}
}

func TestLoad_ExplicitValues(t *testing.T) {
	configPath := writeConfigFile(t, `
logging:
  level: "debug"
  format: "json"

shutdown_timeout: "45s"

mount:
  base_dir: "/srv/shares"
  cleanup_enabled: true
  attempt_timeout: "90s"
  reconcile_interval: "1m"
  unmount_on_exit: true

database:
  type: sqlite

credentials:
  corp-nas:
    username: "alice"
    password: "s3cret"
    domain: "CORP"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Log level is normalized to uppercase
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format json, got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 45*time.Second {
		t.Errorf("Expected shutdown_timeout 45s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Mount.BaseDir != "/srv/shares" {
		t.Errorf("Expected base_dir /srv/shares, got %q", cfg.Mount.BaseDir)
	}
	if !cfg.Mount.CleanupEnabled {
		t.Error("Expected cleanup_enabled true")
	}
	if cfg.Mount.AttemptTimeout != 90*time.Second {
		t.Errorf("Expected attempt_timeout 90s, got %v", cfg.Mount.AttemptTimeout)
	}
	if cfg.Mount.ReconcileInterval != time.Minute {
		t.Errorf("Expected reconcile_interval 1m, got %v", cfg.Mount.ReconcileInterval)
	}
	if !cfg.Mount.UnmountOnExit {
		t.Error("Expected unmount_on_exit true")
	}

	entry, ok := cfg.Credentials["corp-nas"]
	if !ok {
		t.Fatal("Expected corp-nas credential entry")
	}
	if entry.Username != "alice" || entry.Password != "s3cret" || entry.Domain != "CORP" {
		t.Errorf("Unexpected credential entry: %+v", entry)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	configPath := writeConfigFile(t, `
logging:
  level: "INFO"

database:
  type: sqlite
`)

	t.Setenv("MOUNTKEEP_LOGGING_LEVEL", "DEBUG")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected env override to win, got %q", cfg.Logging.Level)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	// Point the default config dir at an empty temp dir
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Database.Type != store.DatabaseTypeSQLite {
		t.Errorf("Expected default database type sqlite, got %q", cfg.Database.Type)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	configPath := writeConfigFile(t, "logging: [broken")

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for malformed YAML")
	}
}

func TestMustLoad_MissingExplicitFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Mount.BaseDir = "/srv/shares"
	cfg.Logging.Level = "DEBUG"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Saved config missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to reload saved config: %v", err)
	}
	if loaded.Mount.BaseDir != "/srv/shares" {
		t.Errorf("Expected base_dir to survive round trip, got %q", loaded.Mount.BaseDir)
	}
	if loaded.Logging.Level != "DEBUG" {
		t.Errorf("Expected level to survive round trip, got %q", loaded.Logging.Level)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)

	expected := filepath.Join(tmp, "mountkeep", "config.yaml")
	if got := GetDefaultConfigPath(); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

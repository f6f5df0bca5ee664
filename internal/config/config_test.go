package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("EXPENSES_CONFIG_DIR", dir)
	return dir
}

func TestLoadMissingConfigReturnsDefaults(t *testing.T) {
	setConfigDir(t)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerURL != "" {
		t.Errorf("server url: %q", cfg.ServerURL)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := setConfigDir(t)

	if err := Save(&Config{ServerURL: "https://money.example.com", ProbeInterval: "30s"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerURL != "https://money.example.com" {
		t.Errorf("server url: %q", cfg.ServerURL)
	}
	if GetProbeInterval() != 30*time.Second {
		t.Errorf("probe interval: %s", GetProbeInterval())
	}

	// No temp files left behind by the atomic write.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestGetServerURLPrecedence(t *testing.T) {
	setConfigDir(t)

	if got := GetServerURL(); got != "http://localhost:8080" {
		t.Errorf("default url: %q", got)
	}

	Save(&Config{ServerURL: "http://configured:9000"})
	if got := GetServerURL(); got != "http://configured:9000" {
		t.Errorf("configured url: %q", got)
	}

	t.Setenv("EXPENSES_SERVER_URL", "http://env:7000")
	if got := GetServerURL(); got != "http://env:7000" {
		t.Errorf("env should win: %q", got)
	}
}

func TestSaveAuthMintsDeviceID(t *testing.T) {
	setConfigDir(t)

	creds := &AuthCredentials{APIKey: "xk_abc", UserID: "u1", Email: "a@b.c"}
	if err := SaveAuth(creds); err != nil {
		t.Fatal(err)
	}
	if creds.DeviceID == "" {
		t.Fatal("device id not minted")
	}
	first := creds.DeviceID

	// Second save keeps the existing device id.
	if err := SaveAuth(creds); err != nil {
		t.Fatal(err)
	}
	if creds.DeviceID != first {
		t.Error("device id changed on re-save")
	}

	loaded, err := LoadAuth()
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil || loaded.APIKey != "xk_abc" || loaded.DeviceID != first {
		t.Fatalf("loaded: %+v", loaded)
	}
}

func TestIsAuthenticated(t *testing.T) {
	setConfigDir(t)

	if IsAuthenticated() {
		t.Error("authenticated with no stored credentials")
	}
	SaveAuth(&AuthCredentials{APIKey: "xk_abc"})
	if !IsAuthenticated() {
		t.Error("not authenticated after save")
	}
}

func TestGetAPIKeyEnvOverride(t *testing.T) {
	setConfigDir(t)
	SaveAuth(&AuthCredentials{APIKey: "xk_stored"})

	if got := GetAPIKey(); got != "xk_stored" {
		t.Errorf("stored key: %q", got)
	}
	t.Setenv("EXPENSES_API_KEY", "xk_env")
	if got := GetAPIKey(); got != "xk_env" {
		t.Errorf("env key should win: %q", got)
	}
}

func TestConfigFileLocation(t *testing.T) {
	dir := setConfigDir(t)
	Save(&Config{ServerURL: "x"})
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Errorf("config.json not written: %v", err)
	}
}

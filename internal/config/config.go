// Package config manages the client configuration stored under
// ~/.config/expenses.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Config is the client config stored at ~/.config/expenses/config.json.
type Config struct {
	ServerURL     string `json:"server_url"`
	ProbeInterval string `json:"probe_interval,omitempty"` // duration string, default "15s"
}

// AuthCredentials stores authentication state at ~/.config/expenses/auth.json.
type AuthCredentials struct {
	APIKey   string `json:"api_key"`
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	DeviceID string `json:"device_id"`
}

const defaultServerURL = "http://localhost:8080"

// ConfigDir returns ~/.config/expenses, creating it if necessary.
// EXPENSES_CONFIG_DIR overrides the location (used by tests).
func ConfigDir() (string, error) {
	if v := os.Getenv("EXPENSES_CONFIG_DIR"); v != "" {
		if err := os.MkdirAll(v, 0755); err != nil {
			return "", fmt.Errorf("create config dir: %w", err)
		}
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "expenses")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Load reads the client config, returning defaults when the file is absent.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the client config using atomic write (temp file + rename).
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return atomicWriteJSON(filepath.Join(dir, "config.json"), cfg)
}

// GetServerURL returns the configured server URL, honoring
// EXPENSES_SERVER_URL, falling back to the default.
func GetServerURL() string {
	if v := os.Getenv("EXPENSES_SERVER_URL"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil && cfg.ServerURL != "" {
		return cfg.ServerURL
	}
	return defaultServerURL
}

// GetProbeInterval returns the connectivity probe interval.
func GetProbeInterval() time.Duration {
	cfg, err := Load()
	if err == nil && cfg.ProbeInterval != "" {
		if d, err := time.ParseDuration(cfg.ProbeInterval); err == nil {
			return d
		}
	}
	return 15 * time.Second
}

// LoadAuth reads stored credentials, or nil when not logged in.
func LoadAuth() (*AuthCredentials, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var creds AuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SaveAuth persists credentials, minting a device id on first save.
func SaveAuth(creds *AuthCredentials) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if creds.DeviceID == "" {
		creds.DeviceID = uuid.NewString()
	}
	return atomicWriteJSON(filepath.Join(dir, "auth.json"), creds)
}

// IsAuthenticated reports whether stored credentials exist.
func IsAuthenticated() bool {
	creds, err := LoadAuth()
	return err == nil && creds != nil && creds.APIKey != ""
}

// GetAPIKey returns the stored API key, honoring EXPENSES_API_KEY.
func GetAPIKey() string {
	if v := os.Getenv("EXPENSES_API_KEY"); v != "" {
		return v
	}
	creds, err := LoadAuth()
	if err != nil || creds == nil {
		return ""
	}
	return creds.APIKey
}

func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Package config is the viper-backed configuration singleton. Values
// resolve environment first (ENGAGIC_ prefix), then the config file,
// then defaults. Initialize is called once at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Config file precedence: ./engagic.yaml > ~/.config/engagic/config.yaml.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false
	if _, err := os.Stat("engagic.yaml"); err == nil {
		v.SetConfigFile("engagic.yaml")
		configFileSet = true
	}
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			path := filepath.Join(configDir, "engagic", "config.yaml")
			if _, err := os.Stat(path); err == nil {
				v.SetConfigFile(path)
				configFileSet = true
			}
		}
	}

	// ENGAGIC_DB_PATH maps to "db.path", ENGAGIC_SYNC_INTERVAL to
	// "sync.interval", and so on.
	v.SetEnvPrefix("ENGAGIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db.path", defaultDBPath())

	v.SetDefault("llm.api-key", "")
	v.SetDefault("llm.model", "")

	v.SetDefault("sync.interval", "72h")
	v.SetDefault("sync.pool", 8)
	v.SetDefault("sync.lookback", "168h")
	v.SetDefault("sync.horizon", "336h")

	v.SetDefault("process.workers", 8)
	v.SetDefault("process.meeting-timeout", "30m")
	v.SetDefault("process.stale-threshold", "10m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max-size-mb", 100)
	v.SetDefault("log.max-backups", 5)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "engagic.db"
	}
	return filepath.Join(home, ".engagic", "engagic.db")
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a configuration value, used by flag handling.
func Set(key string, value any) {
	if v != nil {
		v.Set(key, value)
	}
}

// DBPath returns the SQLite database location, creating the parent
// directory if needed.
func DBPath() string {
	path := GetString("db.path")
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	return path
}

// APIKey returns the LLM API key. The ANTHROPIC_API_KEY environment
// variable takes precedence inside the LLM client itself.
func APIKey() string {
	return GetString("llm.api-key")
}

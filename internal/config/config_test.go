package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := GetDuration("sync.interval"); got != 72*time.Hour {
		t.Errorf("sync.interval = %v, want 72h", got)
	}
	if got := GetInt("process.workers"); got != 8 {
		t.Errorf("process.workers = %d, want 8", got)
	}
	if got := GetDuration("process.meeting-timeout"); got != 30*time.Minute {
		t.Errorf("process.meeting-timeout = %v, want 30m", got)
	}
	if got := GetString("log.level"); got != "info" {
		t.Errorf("log.level = %q, want info", got)
	}
	if GetString("db.path") == "" {
		t.Error("db.path default is empty")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ENGAGIC_SYNC_POOL", "3")
	t.Setenv("ENGAGIC_PROCESS_STALE_THRESHOLD", "5m")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := GetInt("sync.pool"); got != 3 {
		t.Errorf("sync.pool = %d, want 3 from env", got)
	}
	if got := GetDuration("process.stale-threshold"); got != 5*time.Minute {
		t.Errorf("process.stale-threshold = %v, want 5m from env", got)
	}
}

func TestSetOverridesEverything(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	Set("db.path", "/tmp/override.db")
	if got := GetString("db.path"); got != "/tmp/override.db" {
		t.Errorf("db.path = %q after Set", got)
	}
}

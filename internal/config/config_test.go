package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/api.yaml")
	cfg := Load()

	if cfg.ServerAddr != ":8080" {
		t.Errorf("server addr = %q", cfg.ServerAddr)
	}
	if cfg.DeleteForEveryoneWindow != 24*time.Hour {
		t.Errorf("delete window = %v, want 24h", cfg.DeleteForEveryoneWindow)
	}
	if cfg.OnlineWindow != 2*time.Minute {
		t.Errorf("online window = %v, want 2m", cfg.OnlineWindow)
	}
	if cfg.MaxWSConnections != 10000 {
		t.Errorf("max ws connections = %d", cfg.MaxWSConnections)
	}
	if cfg.DBMaxConnections() != 20 {
		t.Errorf("db max connections = %d", cfg.DBMaxConnections())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/api.yaml")
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("DELETE_FOR_EVERYONE_WINDOW_HOURS", "48")
	t.Setenv("ONLINE_WINDOW_MINUTES", "5")
	t.Setenv("MAX_WS_CONNECTIONS", "100")

	cfg := Load()
	if cfg.ServerAddr != ":9999" {
		t.Errorf("server addr = %q", cfg.ServerAddr)
	}
	if cfg.DeleteForEveryoneWindow != 48*time.Hour {
		t.Errorf("delete window = %v, want 48h", cfg.DeleteForEveryoneWindow)
	}
	if cfg.OnlineWindow != 5*time.Minute {
		t.Errorf("online window = %v, want 5m", cfg.OnlineWindow)
	}
	if cfg.MaxWSConnections != 100 {
		t.Errorf("max ws connections = %d", cfg.MaxWSConnections)
	}
}

func TestPolicyFloors(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/api.yaml")
	t.Setenv("DELETE_FOR_EVERYONE_WINDOW_HOURS", "-1")
	t.Setenv("ONLINE_WINDOW_MINUTES", "0")

	cfg := Load()
	if cfg.DeleteForEveryoneWindow != 24*time.Hour {
		t.Errorf("delete window = %v, want floored to 24h", cfg.DeleteForEveryoneWindow)
	}
	if cfg.OnlineWindow != 2*time.Minute {
		t.Errorf("online window = %v, want floored to 2m", cfg.OnlineWindow)
	}
}

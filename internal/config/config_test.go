package config

import (
	"os"
	"testing"
	"time"
)

// TestLoadDefaults tests that default configuration values are loaded correctly.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default server host '0.0.0.0', got '%s'", cfg.Server.Host)
	}
	if cfg.Server.Port != 8097 {
		t.Errorf("Expected default server port 8097, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Expected default read timeout 30s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("Expected default shutdown timeout 15s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Debug != false {
		t.Errorf("Expected default debug false, got %v", cfg.Server.Debug)
	}

	if cfg.Store.StateDir != "/srv/vstate" {
		t.Errorf("Expected default state dir '/srv/vstate', got '%s'", cfg.Store.StateDir)
	}
	if cfg.Store.DataDir != "/srv/vdata" {
		t.Errorf("Expected default data dir '/srv/vdata', got '%s'", cfg.Store.DataDir)
	}

	if cfg.Backend.DockerHost != "unix:///var/run/docker.sock" {
		t.Errorf("Expected default docker host, got '%s'", cfg.Backend.DockerHost)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default logging level 'info', got '%s'", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected default logging format 'json', got '%s'", cfg.Logging.Format)
	}

	if cfg.Security.RateLimit != 20 {
		t.Errorf("Expected default rate limit 20, got %d", cfg.Security.RateLimit)
	}
	if len(cfg.Security.AllowedOrigins) != 1 || cfg.Security.AllowedOrigins[0] != "*" {
		t.Errorf("Expected default allowed origins ['*'], got %v", cfg.Security.AllowedOrigins)
	}
}

// TestLiteralEnvOverride tests that the unprefixed environment variables the
// daemon has always honored take effect without the VESSEL_ prefix.
func TestLiteralEnvOverride(t *testing.T) {
	for k, v := range map[string]string{
		"HOST_IP":     "10.0.0.5",
		"DEPLOY_DATA": "/data/vessel",
		"DEPLOY_STATE": "/state/vessel",
		"DOCKER_HOST": "tcp://127.0.0.1:2375",
	} {
		old := os.Getenv(k)
		os.Setenv(k, v)
		defer func(k, old string) {
			if old == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, old)
			}
		}(k, old)
	}

	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.HostIP != "10.0.0.5" {
		t.Errorf("expected HOST_IP override, got %q", cfg.Server.HostIP)
	}
	if cfg.Store.DataDir != "/data/vessel" {
		t.Errorf("expected DEPLOY_DATA override, got %q", cfg.Store.DataDir)
	}
	if cfg.Store.StateDir != "/state/vessel" {
		t.Errorf("expected DEPLOY_STATE override, got %q", cfg.Store.StateDir)
	}
	if cfg.Backend.DockerHost != "tcp://127.0.0.1:2375" {
		t.Errorf("expected DOCKER_HOST override, got %q", cfg.Backend.DockerHost)
	}
}

// TestVesselPrefixedEnvOverride tests that VESSEL_-prefixed variables override config values.
func TestVesselPrefixedEnvOverride(t *testing.T) {
	os.Setenv("VESSEL_SERVER_PORT", "9999")
	os.Setenv("VESSEL_SERVER_DEBUG", "true")
	defer os.Unsetenv("VESSEL_SERVER_PORT")
	defer os.Unsetenv("VESSEL_SERVER_DEBUG")

	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Expected port 9999 from environment, got %d", cfg.Server.Port)
	}
	if cfg.Server.Debug != true {
		t.Errorf("Expected debug true from environment, got %v", cfg.Server.Debug)
	}
}

// TestGet tests the global config getter.
func TestGet(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	retrieved := Get()
	if retrieved == nil {
		t.Fatal("Get() returned nil")
	}
	if retrieved.Server.Port != 8097 {
		t.Errorf("Expected port 8097 from Get(), got %d", retrieved.Server.Port)
	}
}

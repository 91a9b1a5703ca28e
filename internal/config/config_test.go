package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Gemini.Model != "gemini-2.0-flash" {
		t.Errorf("model = %q", cfg.Gemini.Model)
	}
	if cfg.Outbox.MaxAttempts != 8 || cfg.Outbox.Interval != 5*time.Second {
		t.Errorf("outbox = %+v", cfg.Outbox)
	}
	if cfg.Device.HTTPTimeout != 30*time.Second {
		t.Errorf("http timeout = %v", cfg.Device.HTTPTimeout)
	}
	if len(cfg.Server.CORS) != 1 || cfg.Server.CORS[0] != "*" {
		t.Errorf("cors = %v", cfg.Server.CORS)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	yaml := `
log_level: debug
server:
  port: "9000"
  cors:
    - https://a.example.com
    - https://b.example.com
gemini:
  api_key: from-file
outbox:
  interval: 1s
  backoff_base: 250ms
backup:
  bucket: snapshots
device:
  backend_url: http://backend:8080
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DRIVEMODE_GEMINI_API_KEY", "from-env")
	t.Setenv("DRIVEMODE_BACKUP_RETENTION_DAYS", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Server.Port != "9000" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if len(cfg.Server.CORS) != 2 {
		t.Errorf("cors = %v", cfg.Server.CORS)
	}
	if cfg.Gemini.APIKey != "from-env" {
		t.Errorf("api key = %q, want env override", cfg.Gemini.APIKey)
	}
	if cfg.Outbox.Interval != time.Second || cfg.Outbox.BackoffBase != 250*time.Millisecond {
		t.Errorf("outbox = %+v", cfg.Outbox)
	}
	if cfg.Backup.Bucket != "snapshots" || cfg.Backup.RetentionDays != 7 {
		t.Errorf("backup = %+v", cfg.Backup)
	}
	if cfg.Device.BackendURL != "http://backend:8080" {
		t.Errorf("backend url = %q", cfg.Device.BackendURL)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lnvps/lnvps-go"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
api:
  base_url: https://api.example.com
  timeout: 10s
payment:
  method: lightning
  poll_interval: 1s
server:
  public_url: https://node.example
  callback_keys:
    - 4f355bdcb7cc0af728ef3cceb9615d90684bb5b2ca5f859ab0f0b704075871aa
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v", cfg.API.Timeout)
	}
	if cfg.Payment.PollInterval != time.Second || cfg.Payment.PollTimeout != time.Hour {
		t.Errorf("Payment = %+v", cfg.Payment)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Payment.Method != lnvps.MethodLightning {
		t.Errorf("Method = %q", cfg.Payment.Method)
	}
	if len(cfg.Server.CallbackKeys) != 1 || cfg.Server.PublicURL != "https://node.example" {
		t.Errorf("Server = %+v", cfg.Server)
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeFile(t, "api:\n  base_url: https://api.example.com\n")
	t.Setenv("LNVPS_API_BASE_URL", "https://staging.example.com")
	t.Setenv("LNVPS_NATS_URL", "nats://127.0.0.1:4222")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != "https://staging.example.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.NATS.URL != "nats://127.0.0.1:4222" {
		t.Errorf("NATS.URL = %q", cfg.NATS.URL)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "log level", content: "log:\n  level: loud\n"},
		{name: "trailing slash", content: "api:\n  base_url: https://api.example.com/\n"},
		{name: "poll timeout below interval", content: "payment:\n  poll_interval: 10s\n  poll_timeout: 5s\n"},
		{name: "key not hex", content: "auth:\n  private_key: not-a-key\n"},
		{name: "short callback key", content: "server:\n  callback_keys: [abc123]\n"},
		{name: "public url", content: "server:\n  public_url: not a url\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			if !errors.Is(err, lnvps.ErrValidation) {
				t.Errorf("Load() error = %v; want validation error", err)
			}
		})
	}
}

func TestWriteAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Payment.Method = lnvps.MethodRevolut

	if err := cfg.Write(path, false); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := cfg.Write(path, false); err == nil {
		t.Error("Write() overwrote an existing file")
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Payment.Method != lnvps.MethodRevolut || got.Cache.MethodsTTL != 24*time.Hour {
		t.Errorf("reloaded = %+v", got)
	}
	if got.Timeouts() != lnvps.DefaultTimeouts {
		t.Errorf("Timeouts() = %+v", got.Timeouts())
	}
}

func TestPrivateKeyFile(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(keyPath, []byte("0000000000000000000000000000000000000000000000000000000000000003\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	cfg.Auth.KeyFile = keyPath

	key, err := cfg.PrivateKey()
	if err != nil {
		t.Fatalf("PrivateKey() error = %v", err)
	}
	if len(key) != 64 {
		t.Errorf("PrivateKey() = %q", key)
	}
}

package app

import (
	"errors"
	"testing"
	"time"

	"github.com/samvad-hq/tinyclients/internal/config"
	"github.com/samvad-hq/tinyclients/pkg/rest"
)

func baseConfig() *config.Config {
	return &config.Config{
		AppName:              "tinyclients",
		HTTPTimeout:          time.Second,
		TokenStore:           "memory",
		TokenTTL:             time.Hour,
		TokenCleanupInterval: time.Hour,
	}
}

func TestNewBuildsOnlyConfiguredClients(t *testing.T) {
	cfg := baseConfig()
	cfg.Nessus = config.NessusConfig{BaseURL: "https://nessus.example:8834/", AccessKey: "a", SecretKey: "s"}

	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, err := a.Nessus(); err != nil {
		t.Fatalf("Nessus: %v", err)
	}
	if _, err := a.FireEye(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := a.VxStream(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewFailsFastOnMissingCredentials(t *testing.T) {
	cfg := baseConfig()
	cfg.FireEye = config.FireEyeConfig{BaseURL: "https://ax.example"}

	if _, err := New(cfg, nil); !errors.Is(err, rest.ErrMissingConfig) {
		t.Fatalf("expected missing config error, got %v", err)
	}
}

func TestTokensOpensStoreOnce(t *testing.T) {
	cfg := baseConfig()
	cfg.TokenStore = "bbolt"
	cfg.TokenStorePath = t.TempDir() + "/tokens.db"

	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	first, err := a.Tokens()
	if err != nil {
		t.Fatalf("Tokens: %v", err)
	}
	second, err := a.Tokens()
	if err != nil {
		t.Fatalf("Tokens: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same store instance")
	}
}

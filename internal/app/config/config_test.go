package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewConfigReadsTOMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	toml := `ServicePort = 9090

[Payment]
Provider = "razorpay"
Timeout = "3s"

[Reaper]
DraftTTL = "24h"
`
	if err := os.WriteFile(filepath.Join(dir, "filing-test.toml"), []byte(toml), 0o600); err != nil {
		t.Fatal(err)
	}
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("CONFIG_NAME", "filing-test")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("PAYMENT_KEY_SECRET", "shh")
	t.Setenv("JWT_SECRET", "jwt-secret")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.ServicePort != 9090 {
		t.Errorf("ServicePort = %d", cfg.ServicePort)
	}
	if cfg.Payment.Provider != "razorpay" || cfg.Payment.Timeout != 3*time.Second {
		t.Errorf("payment config = %+v", cfg.Payment)
	}
	if cfg.Payment.KeySecret != "shh" {
		t.Errorf("env override not applied: %+v", cfg.Payment)
	}
	if cfg.Reaper.DraftTTL != 24*time.Hour || cfg.Reaper.PaymentTTL != 48*time.Hour {
		t.Errorf("reaper config = %+v", cfg.Reaper)
	}
	if cfg.Redis.Host != "cache" || cfg.Redis.Port != 6380 {
		t.Errorf("redis config = %+v", cfg.Redis)
	}
	if cfg.JWT.Token != "jwt-secret" {
		t.Errorf("jwt secret = %q", cfg.JWT.Token)
	}
}

func TestNewConfigRejectsBadRedisPort(t *testing.T) {
	t.Setenv("CONFIG_NAME", "does-not-exist")
	t.Setenv("REDIS_PORT", "six")
	if _, err := NewConfig(); err == nil {
		t.Fatal("expected error for non-numeric redis port")
	}
}

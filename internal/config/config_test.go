package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "COUNTRY_CODE")
	unsetEnvWithCleanup(t, "REDIS_CACHE_PREFIX")
	unsetEnvWithCleanup(t, "CONFIRM_TIMEOUT_SECONDS")
	unsetEnvWithCleanup(t, "FLOW_TTL_MINUTES")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.CountryCode != "NG" {
		t.Fatalf("expected default country NG, got %q", cfg.CountryCode)
	}
	if cfg.RedisCachePrefix != "billpay:cache" {
		t.Fatalf("expected default cache prefix, got %q", cfg.RedisCachePrefix)
	}
	if cfg.ConfirmTimeoutSeconds != 15 {
		t.Fatalf("expected default confirm timeout 15s, got %d", cfg.ConfirmTimeoutSeconds)
	}
	if cfg.FlowTTLMinutes != 15 {
		t.Fatalf("expected default flow ttl 15m, got %d", cfg.FlowTTLMinutes)
	}
}

func TestLoadConfig_PortEnvOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_NormalizesCountryCode(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "COUNTRY_CODE", " ng ")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.CountryCode != "NG" {
		t.Fatalf("expected normalized country code NG, got %q", cfg.CountryCode)
	}
}

func TestLoadConfig_CoercesInvalidDurations(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "CONFIRM_TIMEOUT_SECONDS", "-3")
	setEnvWithCleanup(t, "FLOW_TTL_MINUTES", "0")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ConfirmTimeoutSeconds != 15 {
		t.Fatalf("expected invalid confirm timeout to fall back to 15, got %d", cfg.ConfirmTimeoutSeconds)
	}
	if cfg.FlowTTLMinutes != 15 {
		t.Fatalf("expected invalid flow ttl to fall back to 15, got %d", cfg.FlowTTLMinutes)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
		}
	})
}

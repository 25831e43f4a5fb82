package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motor.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadOverlay(t *testing.T) {
	t.Setenv("MOTOR_TEST_DB_PASSWORD", "s3cret")

	path := writeConfig(t, `
server:
  port: 9090
repository:
  driver: postgres
  postgresHost: db.internal
  postgresPassword: "${MOTOR_TEST_DB_PASSWORD}"
hardRules:
  minNetIncome: 2000000
  payersFile: /etc/motor/payers.yaml
policyRules:
  velocityWindow: 72h
`)

	cfg, err := Load(path, domain.DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host to keep its default, got %q", cfg.Server.Host)
	}
	if cfg.Repository.PostgresPassword != "s3cret" {
		t.Errorf("expected expanded password, got %q", cfg.Repository.PostgresPassword)
	}
	if cfg.HardRules.MinNetIncome != 2000000 || cfg.HardRules.MaxDebtRatio != 0.5 {
		t.Errorf("unexpected hard rules %+v", cfg.HardRules)
	}
	if cfg.HardRules.PayersFile != "/etc/motor/payers.yaml" {
		t.Errorf("expected payers file, got %q", cfg.HardRules.PayersFile)
	}
	if cfg.PolicyRules.VelocityWindow != 72*time.Hour {
		t.Errorf("expected 72h window, got %v", cfg.PolicyRules.VelocityWindow)
	}
}

func TestLoadDoesNotMutateBase(t *testing.T) {
	base := domain.DefaultConfig()
	path := writeConfig(t, "server:\n  port: 9191\n")

	if _, err := Load(path, base); err != nil {
		t.Fatalf("load: %v", err)
	}
	if base.Server.Port != 8080 {
		t.Errorf("base config was modified: port %d", base.Server.Port)
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Run("Validation", func(t *testing.T) {
		path := writeConfig(t, "hardRules:\n  maxDebtRatio: 1.5\n")
		_, err := Load(path, domain.DefaultConfig())
		if !errors.Is(err, domain.ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		path := writeConfig(t, "server: [")
		if _, err := Load(path, domain.DefaultConfig()); err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := Load("does-not-exist.yaml", domain.DefaultConfig()); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestFromEnv(t *testing.T) {
	t.Run("Community", func(t *testing.T) {
		t.Setenv(EnvTier, "")
		t.Setenv(EnvConfig, "")

		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("from env: %v", err)
		}
		if cfg.Tier != domain.TierCommunity || cfg.Repository.Driver != "sqlite" {
			t.Errorf("expected community defaults, got %s/%s", cfg.Tier, cfg.Repository.Driver)
		}
	})

	t.Run("ProWithOverlay", func(t *testing.T) {
		t.Setenv(EnvTier, "PRO")
		t.Setenv(EnvConfig, writeConfig(t, "eventBus:\n  natsUrl: nats://bus:4222\n"))

		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("from env: %v", err)
		}
		if cfg.Tier != domain.TierPro || cfg.EventBus.Type != "nats" {
			t.Errorf("expected pro tier on nats, got %s/%s", cfg.Tier, cfg.EventBus.Type)
		}
		if cfg.EventBus.NATSUrl != "nats://bus:4222" {
			t.Errorf("expected overlaid nats url, got %q", cfg.EventBus.NATSUrl)
		}
	})
}

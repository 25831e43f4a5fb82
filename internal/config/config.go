// Package config resolves the service configuration from the environment
// and an optional YAML overlay file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

// Environment variables read by FromEnv.
const (
	EnvTier   = "MOTOR_TIER"
	EnvConfig = "MOTOR_CONFIG"
)

// Base returns the built-in configuration for a tier name. Anything other
// than "pro" is the community tier.
func Base(tier string) *domain.Config {
	if domain.Tier(strings.ToLower(tier)) == domain.TierPro {
		return domain.ProConfig()
	}
	return domain.DefaultConfig()
}

// Load applies the YAML file at path on top of base and validates the result.
// ${VAR} references in the file are expanded from the environment; fields the
// file leaves out keep their base values.
func Load(path string, base *domain.Config) (*domain.Config, error) {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	cfg := *base
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv picks the tier from MOTOR_TIER and overlays the file named by
// MOTOR_CONFIG, when set.
func FromEnv() (*domain.Config, error) {
	base := Base(os.Getenv(EnvTier))

	path := os.Getenv(EnvConfig)
	if path == "" {
		return base, base.Validate()
	}
	return Load(path, base)
}

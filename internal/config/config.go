// Package config loads and validates the agent's YAML config file.
//
// Secrets never live in the config. Provider API keys are resolved from the
// environment at startup (DOCFOLD_<PROVIDER>_API_KEY).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Model is one allowed model of a provider. Exactly one model across all
// providers must be marked default.
type Model struct {
	ID        string `yaml:"id"`
	IsDefault bool   `yaml:"is_default,omitempty"`
}

// Provider is one LLM provider entry.
//
// Kind is "anthropic", "openai" or "mock". Providers own their allowed model
// list; provider and model are always configured together.
type Provider struct {
	ID      string  `yaml:"id"`
	Kind    string  `yaml:"kind"`
	BaseURL string  `yaml:"base_url,omitempty"`
	Models  []Model `yaml:"models"`
}

type AIConfig struct {
	Providers []Provider `yaml:"providers"`

	// RequestTimeoutSeconds bounds one LLM completion call. Defaults to 120.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds,omitempty"`
}

type Config struct {
	// ListenAddr is the local HTTP API address. Defaults to 127.0.0.1:7350.
	ListenAddr string `yaml:"listen_addr,omitempty"`

	// StateDir holds the sqlite store, lockfile and telemetry log.
	// Defaults to ~/.docfold.
	StateDir string `yaml:"state_dir,omitempty"`

	AI AIConfig `yaml:"ai"`
}

const (
	defaultListenAddr     = "127.0.0.1:7350"
	defaultRequestTimeout = 120 * time.Second
)

var providerIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".docfold", "config.yaml")
}

func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docfold"
	}
	return filepath.Join(home, ".docfold")
}

// Load reads the config file and applies defaults. A missing file yields the
// defaults with a mock provider so a fresh install can run offline.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		cfg.AI.Providers = []Provider{{
			ID:     "mock",
			Kind:   "mock",
			Models: []Model{{ID: "mock-default", IsDefault: true}},
		}}
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = defaultListenAddr
	}
	if strings.TrimSpace(c.StateDir) == "" {
		c.StateDir = DefaultStateDir()
	}
	if c.AI.RequestTimeoutSeconds <= 0 {
		c.AI.RequestTimeoutSeconds = int(defaultRequestTimeout / time.Second)
	}
}

func (c *Config) Validate() error {
	if len(c.AI.Providers) == 0 {
		return errors.New("ai.providers is empty")
	}
	defaults := 0
	seen := map[string]bool{}
	for i, p := range c.AI.Providers {
		if !providerIDPattern.MatchString(p.ID) {
			return fmt.Errorf("ai.providers[%d]: invalid id %q", i, p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("ai.providers[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		switch p.Kind {
		case "anthropic", "openai", "mock":
		default:
			return fmt.Errorf("ai.providers[%d]: unknown kind %q", i, p.Kind)
		}
		if len(p.Models) == 0 {
			return fmt.Errorf("ai.providers[%d]: no models", i)
		}
		for _, m := range p.Models {
			if strings.TrimSpace(m.ID) == "" {
				return fmt.Errorf("ai.providers[%d]: model with empty id", i)
			}
			if m.IsDefault {
				defaults++
			}
		}
	}
	if defaults != 1 {
		return fmt.Errorf("exactly one provider model must have is_default (got %d)", defaults)
	}
	return nil
}

// DefaultModel returns the provider and model marked is_default.
func (c *Config) DefaultModel() (Provider, string) {
	for _, p := range c.AI.Providers {
		for _, m := range p.Models {
			if m.IsDefault {
				return p, m.ID
			}
		}
	}
	return Provider{}, ""
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.AI.RequestTimeoutSeconds) * time.Second
}

// APIKeyEnvVar names the environment variable holding a provider's key.
func APIKeyEnvVar(providerID string) string {
	normalized := strings.ToUpper(strings.NewReplacer("-", "_").Replace(strings.TrimSpace(providerID)))
	return "DOCFOLD_" + normalized + "_API_KEY"
}

// ResolveAPIKey reads the provider's key from the environment.
func ResolveAPIKey(providerID string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(APIKeyEnvVar(providerID)))
	return v, v != ""
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a service configuration from the given YAML file path.
// After parsing, defaults are applied to fields that were left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", errs[0].Error())
	}
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the first
// one found. Search order: ./remedy.yaml, ~/.remedy/config.yaml
func LoadDefault() (*Config, error) {
	candidates := []string{"remedy.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".remedy", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("no config found (searched: %v)", candidates)
}

// applyDefaults fills in listener address, store path and client timeouts when
// the file leaves them unset.
func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8090"
	}
	if cfg.Store.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Store.Path = filepath.Join(home, ".remedy", "remedy.db")
		} else {
			cfg.Store.Path = "remedy.db"
		}
	}
	if cfg.GitLab.Timeout == 0 {
		cfg.GitLab.Timeout = 30 * time.Second
	}
	if cfg.Jenkins.Timeout == 0 {
		cfg.Jenkins.Timeout = 30 * time.Second
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 120 * time.Second
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-4o-mini"
	}
}

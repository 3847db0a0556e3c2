package config

import "time"

// Config is the top-level service configuration parsed from YAML.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	GitLab  GitLabConfig  `yaml:"gitlab"`
	Jenkins JenkinsConfig `yaml:"jenkins"`
	AI      AIConfig      `yaml:"ai"`
}

// ServerConfig holds the HTTP API listener settings. Token is the shared
// caller credential expected on healing requests.
type ServerConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

// StoreConfig holds the SQLite database location.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// GitLabConfig holds GitLab API access settings.
type GitLabConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// JenkinsConfig holds Jenkins API access settings.
type JenkinsConfig struct {
	BaseURL  string        `yaml:"base_url"`
	User     string        `yaml:"user"`
	APIToken string        `yaml:"api_token"`
	Timeout  time.Duration `yaml:"timeout"`
}

// AIConfig holds settings for the inference service used to reason about
// build failures. The endpoint speaks an OpenAI-compatible chat API.
type AIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

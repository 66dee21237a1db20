// Package config loads warden's YAML configuration: ${VAR} expansion, a
// strict yaml.v3 decode, env-var overrides, then defaults. Fields cover
// the server bind address, store directory, default project root,
// provider defaults, the consent TTL, and the janitor cadence.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Project  ProjectConfig  `yaml:"project"`
	Provider ProviderConfig `yaml:"provider"`
	Consent  ConsentConfig  `yaml:"consent"`
	Janitor  JanitorConfig  `yaml:"janitor"`
	Mcp      McpConfig      `yaml:"mcp"`
}

// ConsentConfig overrides the pending-consent TTL.
type ConsentConfig struct {
	TTLSeconds int64 `yaml:"ttl_seconds"`
}

// JanitorConfig configures the periodic sweep cadence.
type JanitorConfig struct {
	// Interval is a robfig/cron expression, e.g. "@every 30s".
	Interval string `yaml:"interval"`
}

// McpConfig configures MCP server handling at startup.
type McpConfig struct {
	// AutoStart lists registered MCP server names to start on serve.
	AutoStart []string `yaml:"auto_start"`
}

// ServerConfig configures the RPC transports.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	Stdio    bool   `yaml:"stdio"`
}

// StoreConfig configures the durable JSON store location.
type StoreConfig struct {
	Dir string `yaml:"dir"`
}

// ProjectConfig configures the default project root.
type ProjectConfig struct {
	DefaultRoot string `yaml:"default_root"`
}

// ProviderConfig configures default provider wiring.
type ProviderConfig struct {
	Active  string            `yaml:"active"`
	OpenAI  OpenAIConfig      `yaml:"openai"`
	Anthro  AnthropicConfig   `yaml:"anthropic"`
	Configs map[string]string `yaml:"configs"`
}

// OpenAIConfig configures the OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
}

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
}

// Load reads path, expands ${VAR} references against the process
// environment, strictly decodes YAML, applies env-var overrides, then
// fills defaults. A missing file is not an error: env overrides and
// defaults alone make a runnable configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		data = nil
	} else if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("WARDEN_HTTP_ADDR")); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WARDEN_STDIO")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.Stdio = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("WARDEN_STORE_DIR")); v != "" {
		cfg.Store.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("WARDEN_PROJECT_ROOT")); v != "" {
		cfg.Project.DefaultRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("WARDEN_ACTIVE_PROVIDER")); v != "" {
		cfg.Provider.Active = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_MODEL")); v != "" {
		cfg.Provider.OpenAI.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); v != "" {
		cfg.Provider.OpenAI.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("WARDEN_CONSENT_TTL_SECONDS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Consent.TTLSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WARDEN_JANITOR_INTERVAL")); v != "" {
		cfg.Janitor.Interval = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = "127.0.0.1:8751"
	}
	if cfg.Store.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Store.Dir = home + "/.warden"
		} else {
			cfg.Store.Dir = ".warden"
		}
	}
	if cfg.Project.DefaultRoot == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Project.DefaultRoot = wd
		}
	}
	if cfg.Provider.OpenAI.APIKeyEnv == "" {
		cfg.Provider.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Provider.Anthro.APIKeyEnv == "" {
		cfg.Provider.Anthro.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if cfg.Janitor.Interval == "" {
		cfg.Janitor.Interval = "@every 30s"
	}
}

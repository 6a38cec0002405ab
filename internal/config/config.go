// Package config loads rrfusion configuration from an optional YAML file,
// a .env file, and environment variables. Environment variables win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete rrfusion configuration.
type Config struct {
	// RedisURL is the connection string for the state store.
	RedisURL string `yaml:"redis_url"`

	// Snapshot is the namespace qualifier applied to all store keys.
	Snapshot string `yaml:"snapshot"`

	Server   ServerConfig   `yaml:"server"`
	Fusion   FusionConfig   `yaml:"fusion"`
	Peek     PeekConfig     `yaml:"peek"`
	TTL      TTLConfig      `yaml:"ttl"`
	Backends BackendsConfig `yaml:"backends"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// ServerConfig configures the MCP tool surface bind.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AuthToken, when set, requires Authorization: Bearer <token> on every
	// HTTP tool call. Ignored for the stdio transport.
	AuthToken string `yaml:"auth_token"`
}

// FusionConfig carries engine-wide fusion defaults; blend may override per call.
type FusionConfig struct {
	RRFK int `yaml:"rrf_k"`
}

// PeekConfig carries hard caps for snippet peeking.
type PeekConfig struct {
	MaxDocs     int `yaml:"max_docs"`
	BudgetBytes int `yaml:"budget_bytes"`
}

// TTLConfig carries time-to-live windows, in hours.
type TTLConfig struct {
	// DataHours bounds rankings and run metadata.
	DataHours int `yaml:"data_hours"`
	// SnippetHours bounds cached document text.
	SnippetHours int `yaml:"snippet_hours"`
}

// BackendConfig wires one upstream lane backend.
type BackendConfig struct {
	BaseURL          string `yaml:"base_url"`
	SearchPath       string `yaml:"search_path"`
	SnippetsPath     string `yaml:"snippets_path"`
	PublicationsPath string `yaml:"publications_path"`
	NumbersPath      string `yaml:"numbers_path"`
	APIKey           string `yaml:"api_key"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
}

// BackendsConfig wires the upstream and internal-dense backends.
type BackendsConfig struct {
	Upstream BackendConfig `yaml:"upstream"`
	Dense    BackendConfig `yaml:"dense"`
	// UseStub replaces both backends with the deterministic local stub.
	UseStub bool `yaml:"use_stub"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		RedisURL: "redis://localhost:6379/0",
		Snapshot: "default",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Fusion: FusionConfig{RRFK: 60},
		Peek: PeekConfig{
			MaxDocs:     100,
			BudgetBytes: 12288,
		},
		TTL: TTLConfig{
			DataHours:    24,
			SnippetHours: 72,
		},
		Backends: BackendsConfig{
			Upstream: BackendConfig{
				SearchPath:       "/search",
				SnippetsPath:     "/snippets",
				PublicationsPath: "/publications",
				NumbersPath:      "/numbers",
				TimeoutSeconds:   30,
			},
			Dense: BackendConfig{
				SearchPath:     "/search",
				SnippetsPath:   "/snippets",
				TimeoutSeconds: 30,
			},
		},
		LogLevel: "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// non-empty), then a .env file in the working directory (if present), then
// process environment variables.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// .env is optional; missing file is not an error.
	_ = godotenv.Load()

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from environment variables.
func (c *Config) applyEnv() {
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.Snapshot, "SNAPSHOT")
	setString(&c.Server.Host, "MCP_HOST")
	setInt(&c.Server.Port, "MCP_PORT")
	setString(&c.Server.AuthToken, "MCP_AUTH_TOKEN")
	setInt(&c.Fusion.RRFK, "RRF_K")
	setInt(&c.Peek.MaxDocs, "PEEK_MAX_DOCS")
	setInt(&c.Peek.BudgetBytes, "PEEK_BUDGET_BYTES")
	setInt(&c.TTL.DataHours, "DATA_TTL_HOURS")
	setInt(&c.TTL.SnippetHours, "SNIPPET_TTL_HOURS")
	setString(&c.LogLevel, "LOG_LEVEL")

	setString(&c.Backends.Upstream.BaseURL, "UPSTREAM_URL")
	setString(&c.Backends.Upstream.APIKey, "UPSTREAM_API_KEY")
	setString(&c.Backends.Upstream.SearchPath, "UPSTREAM_SEARCH_PATH")
	setString(&c.Backends.Upstream.SnippetsPath, "UPSTREAM_SNIPPETS_PATH")
	setString(&c.Backends.Upstream.PublicationsPath, "UPSTREAM_PUBLICATIONS_PATH")
	setString(&c.Backends.Upstream.NumbersPath, "UPSTREAM_NUMBERS_PATH")
	setInt(&c.Backends.Upstream.TimeoutSeconds, "UPSTREAM_TIMEOUT_SECONDS")

	setString(&c.Backends.Dense.BaseURL, "DENSE_URL")
	setString(&c.Backends.Dense.APIKey, "DENSE_API_KEY")
	setString(&c.Backends.Dense.SearchPath, "DENSE_SEARCH_PATH")
	setString(&c.Backends.Dense.SnippetsPath, "DENSE_SNIPPETS_PATH")
	setInt(&c.Backends.Dense.TimeoutSeconds, "DENSE_TIMEOUT_SECONDS")

	setBool(&c.Backends.UseStub, "USE_STUB_BACKEND")
}

// Validate checks value ranges and required wiring.
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("redis_url is required")
	}
	if c.Snapshot == "" {
		return fmt.Errorf("snapshot must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Fusion.RRFK <= 0 {
		return fmt.Errorf("rrf_k must be positive, got %d", c.Fusion.RRFK)
	}
	if c.Peek.MaxDocs <= 0 {
		return fmt.Errorf("peek max_docs must be positive, got %d", c.Peek.MaxDocs)
	}
	if c.Peek.BudgetBytes <= 0 {
		return fmt.Errorf("peek budget_bytes must be positive, got %d", c.Peek.BudgetBytes)
	}
	if c.TTL.DataHours <= 0 || c.TTL.SnippetHours <= 0 {
		return fmt.Errorf("ttl hours must be positive")
	}
	if !c.Backends.UseStub && c.Backends.Upstream.BaseURL == "" {
		return fmt.Errorf("backends.upstream.base_url is required unless use_stub is set")
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}

// Package config loads promptgate configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/odvcencio/promptgate/pkg/errors"
)

// Defaults applied before any file or environment override.
const (
	DefaultBackend        = "claude"
	DefaultClaudeModel    = "sonnet"
	DefaultGeminiModel    = "gemini-2.5-pro"
	DefaultTimeout        = 5 * time.Minute
	DefaultMaxTimeout     = 30 * time.Minute
	DefaultMaxPromptBytes = 1 << 20 // 1 MiB
	DefaultListenAddr     = ":8080"
)

// BackendConfig holds per-backend settings.
type BackendConfig struct {
	// Command overrides the binary name looked up on PATH.
	Command string `yaml:"command"`
	// Model overrides the backend's default model.
	Model string `yaml:"model"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Config is the root configuration.
type Config struct {
	DefaultBackend  string        `yaml:"default_backend"`
	FallbackEnabled bool          `yaml:"fallback_enabled"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxTimeout      time.Duration `yaml:"max_timeout"`
	MaxPromptBytes  int           `yaml:"max_prompt_bytes"`
	LogDir          string        `yaml:"log_dir"`

	Claude BackendConfig `yaml:"claude"`
	Gemini BackendConfig `yaml:"gemini"`
	Server ServerConfig  `yaml:"server"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultBackend:  DefaultBackend,
		FallbackEnabled: true,
		Timeout:         DefaultTimeout,
		MaxTimeout:      DefaultMaxTimeout,
		MaxPromptBytes:  DefaultMaxPromptBytes,
		LogDir:          "",
		Claude:          BackendConfig{Command: "claude", Model: DefaultClaudeModel},
		Gemini:          BackendConfig{Command: "gemini", Model: DefaultGeminiModel},
		Server: ServerConfig{
			ListenAddr: DefaultListenAddr,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// PROMPTGATE_* environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = defaultConfigPath()
	}
	if path != "" {
		if err := loadAndMerge(cfg, path); err != nil {
			if !os.IsNotExist(err) {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "loading config file").
					WithContext("path", path)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfigPath returns the conventional config location, or "" when no
// home directory is resolvable.
func defaultConfigPath() string {
	if p := os.Getenv("PROMPTGATE_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".promptgate", "promptgate.yaml")
}

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigParse, "parsing YAML")
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigParse, "parsing YAML")
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Zero values only win when the raw
// document shows the key was actually set.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.DefaultBackend != "" {
		base.DefaultBackend = override.DefaultBackend
	}
	if keySet(raw, "fallback_enabled") {
		base.FallbackEnabled = override.FallbackEnabled
	}
	if override.Timeout != 0 {
		base.Timeout = override.Timeout
	}
	if override.MaxTimeout != 0 {
		base.MaxTimeout = override.MaxTimeout
	}
	if override.MaxPromptBytes != 0 {
		base.MaxPromptBytes = override.MaxPromptBytes
	}
	if override.LogDir != "" {
		base.LogDir = override.LogDir
	}

	if override.Claude.Command != "" {
		base.Claude.Command = override.Claude.Command
	}
	if override.Claude.Model != "" {
		base.Claude.Model = override.Claude.Model
	}
	if override.Gemini.Command != "" {
		base.Gemini.Command = override.Gemini.Command
	}
	if override.Gemini.Model != "" {
		base.Gemini.Model = override.Gemini.Model
	}

	if override.Server.ListenAddr != "" {
		base.Server.ListenAddr = override.Server.ListenAddr
	}
	if override.Server.AuthToken != "" {
		base.Server.AuthToken = override.Server.AuthToken
	}
	if len(override.Server.AllowedOrigins) > 0 {
		base.Server.AllowedOrigins = override.Server.AllowedOrigins
	}
}

func keySet(raw map[string]any, key string) bool {
	if raw == nil {
		return false
	}
	_, ok := raw[key]
	return ok
}

// applyEnvOverrides applies PROMPTGATE_* environment variables on top of the
// merged configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PROMPTGATE_DEFAULT_BACKEND"); v != "" {
		cfg.DefaultBackend = v
	}
	if v := os.Getenv("PROMPTGATE_FALLBACK"); v != "" {
		cfg.FallbackEnabled = parseBool(v, cfg.FallbackEnabled)
	}
	if v := os.Getenv("PROMPTGATE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("PROMPTGATE_MAX_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MaxTimeout = d
		}
	}
	if v := os.Getenv("PROMPTGATE_MAX_PROMPT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPromptBytes = n
		}
	}
	if v := os.Getenv("PROMPTGATE_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("PROMPTGATE_CLAUDE_COMMAND"); v != "" {
		cfg.Claude.Command = v
	}
	if v := os.Getenv("PROMPTGATE_CLAUDE_MODEL"); v != "" {
		cfg.Claude.Model = v
	}
	if v := os.Getenv("PROMPTGATE_GEMINI_COMMAND"); v != "" {
		cfg.Gemini.Command = v
	}
	if v := os.Getenv("PROMPTGATE_GEMINI_MODEL"); v != "" {
		cfg.Gemini.Model = v
	}
	if v := os.Getenv("PROMPTGATE_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("PROMPTGATE_AUTH_TOKEN"); v != "" {
		cfg.Server.AuthToken = v
	}
	if v := os.Getenv("PROMPTGATE_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitAndTrim(v)
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	switch c.DefaultBackend {
	case "claude", "gemini":
	default:
		return apperrors.New(apperrors.ErrCodeConfigInvalid,
			fmt.Sprintf("default_backend must be claude or gemini, got %q", c.DefaultBackend))
	}
	if c.Timeout <= 0 {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "timeout must be positive")
	}
	if c.MaxTimeout < c.Timeout {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "max_timeout must be >= timeout")
	}
	if c.MaxPromptBytes <= 0 {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "max_prompt_bytes must be positive")
	}
	if c.Claude.Command == "" || c.Gemini.Command == "" {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "backend commands must not be empty")
	}
	return nil
}

// BackendCommand returns the configured binary for a backend name.
func (c *Config) BackendCommand(name string) string {
	switch name {
	case "gemini":
		return c.Gemini.Command
	default:
		return c.Claude.Command
	}
}

// BackendModel returns the configured default model for a backend name.
func (c *Config) BackendModel(name string) string {
	switch name {
	case "gemini":
		return c.Gemini.Model
	default:
		return c.Claude.Model
	}
}

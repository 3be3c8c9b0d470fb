// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for pal.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.pal/config.toml
//   - ~/.pal/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete pal configuration.
type Config struct {
	// Workspace is the folder pal treats as the open workspace.
	// Empty means the current directory.
	Workspace string `toml:"workspace" json:"workspace"`

	Pal    PalConfig    `toml:"pal" json:"pal"`
	Ollama OllamaConfig `toml:"ollama" json:"ollama"`
	Server ServerConfig `toml:"server" json:"server"`
}

// PalConfig controls command discovery.
type PalConfig struct {
	// ConfigDir is the workspace-relative directory holding command files.
	ConfigDir string `toml:"config_dir" json:"config_dir"`
	// DebounceMs delays re-registration after command files change.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms"`
	// PollIntervalMs is used when filesystem notifications are unavailable.
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms"`
}

// OllamaConfig contains local Ollama configuration.
type OllamaConfig struct {
	// URL is the URL of the Ollama server
	URL string `toml:"url" json:"url"`
	// Model is the model used to answer requests
	Model string `toml:"model" json:"model"`
	// TimeoutSecs bounds non-streaming requests such as health checks
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// Temperature is passed through to the model (0 = model default)
	Temperature float64 `toml:"temperature" json:"temperature"`
}

// ServerConfig contains the HTTP chat host configuration.
type ServerConfig struct {
	// Addr is the listen address
	Addr string `toml:"addr" json:"addr"`
	// RateLimit is the sustained requests per second allowed per client
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	// RateBurst is the burst size allowed per client
	RateBurst int `toml:"rate_burst" json:"rate_burst"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Pal: PalConfig{
			ConfigDir:      ".config/pal",
			DebounceMs:     500,
			PollIntervalMs: 2000,
		},
		Ollama: OllamaConfig{
			URL:         "http://127.0.0.1:11434",
			Model:       "qwen2.5-coder:14b",
			TimeoutSecs: 30,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8788",
			RateLimit: 10,
			RateBurst: 20,
		},
	}
}

// Debounce returns the debounce delay.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Pal.DebounceMs) * time.Millisecond
}

// PollInterval returns the polling fallback interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Pal.PollIntervalMs) * time.Millisecond
}

// OllamaTimeout returns the timeout for non-streaming Ollama calls.
func (c *Config) OllamaTimeout() time.Duration {
	return time.Duration(c.Ollama.TimeoutSecs) * time.Second
}

// WorkspaceRoot returns the absolute workspace folder.
func (c *Config) WorkspaceRoot() (string, error) {
	ws := c.Workspace
	if ws == "" {
		ws = "."
	}
	return filepath.Abs(ws)
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the pal configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".pal"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	return finish(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# pal configuration file")
	fmt.Fprintln(file, "#")
	fmt.Fprintln(file, "# Command prompts live in <workspace>/<pal.config_dir>/*.md")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	dir := filepath.ToSlash(filepath.Clean(c.Pal.ConfigDir))
	if c.Pal.ConfigDir == "" || filepath.IsAbs(c.Pal.ConfigDir) || dir == ".." || strings.HasPrefix(dir, "../") {
		errs = append(errs, ValidationError{
			Field:   "pal.config_dir",
			Message: fmt.Sprintf("'%s' must be a relative path inside the workspace", c.Pal.ConfigDir),
		})
	}
	if c.Pal.DebounceMs < 0 {
		errs = append(errs, ValidationError{Field: "pal.debounce_ms", Message: "must not be negative"})
	}
	if c.Pal.PollIntervalMs <= 0 {
		errs = append(errs, ValidationError{Field: "pal.poll_interval_ms", Message: "must be positive"})
	}

	if u, err := url.Parse(c.Ollama.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Ollama.URL),
		})
	}
	if strings.TrimSpace(c.Ollama.Model) == "" {
		errs = append(errs, ValidationError{Field: "ollama.model", Message: "must not be empty"})
	}
	if c.Ollama.Temperature < 0 || c.Ollama.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "ollama.temperature",
			Message: fmt.Sprintf("%.2f is out of range 0.0-2.0", c.Ollama.Temperature),
		})
	}

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		errs = append(errs, ValidationError{
			Field:   "server.addr",
			Message: fmt.Sprintf("invalid listen address '%s': %v", c.Server.Addr, err),
		})
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "must not be negative"})
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, ValidationError{Field: "server.rate_burst", Message: "must be at least 1 when rate limiting"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values with defaults. Zero debounce is honored.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Pal.ConfigDir == "" {
		c.Pal.ConfigDir = d.Pal.ConfigDir
	}
	if c.Pal.PollIntervalMs == 0 {
		c.Pal.PollIntervalMs = d.Pal.PollIntervalMs
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = d.Ollama.URL
	}
	c.Ollama.URL = strings.TrimRight(c.Ollama.URL, "/")
	if c.Ollama.Model == "" {
		c.Ollama.Model = d.Ollama.Model
	}
	if c.Ollama.TimeoutSecs <= 0 {
		c.Ollama.TimeoutSecs = d.Ollama.TimeoutSecs
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PAL_WORKSPACE: overrides workspace
//   - PAL_OLLAMA_URL: overrides ollama.url
//   - PAL_MODEL: overrides ollama.model
//   - PAL_SERVER_ADDR: overrides server.addr
//   - PAL_DEBOUNCE_MS: overrides pal.debounce_ms (ignored if not an integer)
func (c *Config) ApplyEnvOverrides() {
	if ws := os.Getenv("PAL_WORKSPACE"); ws != "" {
		c.Workspace = ws
	}
	if u := os.Getenv("PAL_OLLAMA_URL"); u != "" {
		c.Ollama.URL = u
	}
	if model := os.Getenv("PAL_MODEL"); model != "" {
		c.Ollama.Model = model
	}
	if addr := os.Getenv("PAL_SERVER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if ms := os.Getenv("PAL_DEBOUNCE_MS"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil {
			c.Pal.DebounceMs = n
		}
	}
}

// =============================================================================
// GET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ollama.model").
func (c *Config) Get(key string) (interface{}, error) {
	if key == "" {
		return nil, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			return field.Interface(), nil
		}

		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}

	return nil, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds the struct field whose toml tag equals name.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tagName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tagName(f reflect.StructField) string {
	tag, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	return tag
}

// GetAllKeys returns all leaf configuration keys in dot notation, sorted.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := prefix + tagName(f)
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, name+".")
				continue
			}
			keys = append(keys, name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	sort.Strings(keys)
	return keys
}

// String returns an indented JSON rendering of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
